package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferenceRepository stores opaque per-user values keyed by name
type PreferenceRepository struct {
	DB *pgxpool.Pool
}

func NewPreferenceRepository(db *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{DB: db}
}

// Get returns models.ErrNotFound when the user never saved the key
func (r *PreferenceRepository) Get(ctx context.Context, userID int, key string) (string, time.Time, error) {
	var value string
	var updated time.Time
	err := r.DB.QueryRow(ctx,
		`SELECT value, updated_at FROM user_preferences WHERE user_id=$1 AND pref_key=$2`,
		userID, key).Scan(&value, &updated)
	return value, updated, mapErr(err)
}

func (r *PreferenceRepository) Set(ctx context.Context, userID int, key, value string) (time.Time, error) {
	var updated time.Time
	err := r.DB.QueryRow(ctx,
		`INSERT INTO user_preferences(user_id, pref_key, value) VALUES($1, $2, $3)
		 ON CONFLICT (user_id, pref_key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
		 RETURNING updated_at`,
		userID, key, value).Scan(&updated)
	return updated, mapErr(err)
}
