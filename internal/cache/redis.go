package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"agency-crm/internal/config"
	"agency-crm/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	ProfileKeyFmt = "profile:%d"
	RevokedKeyFmt = "revoked:%s"

	profileTTL = 10 * time.Minute
)

var client *redis.Client

// Init connects to Redis. On failure the client stays nil and every helper
// in this package degrades to a no-op or an in-process fallback.
func Init(cfg *config.Config) error {
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client and set to nil for graceful degradation
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetClient returns the Redis client, nil when Redis is unavailable
func GetClient() *redis.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// Ping reports the Redis connection state for health checks
func Ping(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis not configured")
	}
	return client.Ping(ctx).Err()
}

// ============================================
// Generic Cache Functions
// ============================================

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// InvalidateKeys removes specific cache keys
func InvalidateKeys(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// ============================================
// Profiles
// ============================================

func GetCachedProfile(ctx context.Context, userID int) (*models.Profile, bool) {
	data, ok := GetCached(ctx, fmt.Sprintf(ProfileKeyFmt, userID))
	if !ok {
		return nil, false
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func CacheProfile(ctx context.Context, p *models.Profile) {
	if client == nil || p == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	SetCached(ctx, fmt.Sprintf(ProfileKeyFmt, p.ID), data, profileTTL)
}

// InvalidateProfile is called when a user is updated, deactivated or deleted
func InvalidateProfile(ctx context.Context, userID int) {
	InvalidateKeys(ctx, fmt.Sprintf(ProfileKeyFmt, userID))
}

// ============================================
// Token revocation
// ============================================

// revoked holds token ids in process memory when Redis is down
var revoked = struct {
	sync.Mutex
	ids map[string]time.Time
}{ids: make(map[string]time.Time)}

// RevokeToken blocks a token id until its natural expiry
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) {
	if jti == "" || ttl <= 0 {
		return
	}
	if client != nil {
		if err := client.Set(ctx, fmt.Sprintf(RevokedKeyFmt, jti), 1, ttl).Err(); err == nil {
			return
		}
	}

	revoked.Lock()
	defer revoked.Unlock()
	now := time.Now()
	for id, until := range revoked.ids {
		if now.After(until) {
			delete(revoked.ids, id)
		}
	}
	revoked.ids[jti] = now.Add(ttl)
}

func IsRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	if client != nil {
		n, err := client.Exists(ctx, fmt.Sprintf(RevokedKeyFmt, jti)).Result()
		if err == nil && n > 0 {
			return true
		}
	}

	revoked.Lock()
	defer revoked.Unlock()
	until, ok := revoked.ids[jti]
	return ok && time.Now().Before(until)
}
