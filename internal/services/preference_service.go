package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"agency-crm/internal/models"

	"github.com/rs/zerolog/log"
)

var tableKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,49}$`)

const maxHiddenColumns = 100

type PreferenceStore interface {
	Get(ctx context.Context, userID int, key string) (string, time.Time, error)
	Set(ctx context.Context, userID int, key, value string) (time.Time, error)
}

// PreferenceService keeps per-user column visibility for list views
type PreferenceService struct {
	Repo PreferenceStore
}

func NewPreferenceService(repo PreferenceStore) *PreferenceService {
	return &PreferenceService{Repo: repo}
}

func columnsKey(table string) string {
	return "columns:" + table
}

// Columns never fails on a missing or unreadable value; both mean every column is visible
func (s *PreferenceService) Columns(ctx context.Context, userID int, table string) (*models.ColumnPreference, error) {
	if !tableKeyPattern.MatchString(table) {
		return nil, invalid("invalid table key %q", table)
	}
	pref := &models.ColumnPreference{Table: table, Hidden: []string{}}

	raw, updated, err := s.Repo.Get(ctx, userID, columnsKey(table))
	if errors.Is(err, models.ErrNotFound) {
		return pref, nil
	}
	if err != nil {
		return nil, err
	}
	pref.UpdatedAt = &updated

	var hidden []string
	if err := json.Unmarshal([]byte(raw), &hidden); err != nil {
		log.Warn().Err(err).Int("user_id", userID).Str("table", table).Msg("Ignoring unreadable column preference")
		return pref, nil
	}
	pref.Hidden = cleanColumns(hidden)
	return pref, nil
}

func (s *PreferenceService) SaveColumns(ctx context.Context, userID int, table string, req *models.ColumnPreferenceRequest) (*models.ColumnPreference, error) {
	if !tableKeyPattern.MatchString(table) {
		return nil, invalid("invalid table key %q", table)
	}
	hidden := cleanColumns(req.Hidden)
	if len(hidden) > maxHiddenColumns {
		return nil, invalid("too many hidden columns")
	}

	raw, err := json.Marshal(hidden)
	if err != nil {
		return nil, err
	}
	updated, err := s.Repo.Set(ctx, userID, columnsKey(table), string(raw))
	if err != nil {
		return nil, err
	}
	return &models.ColumnPreference{Table: table, Hidden: hidden, UpdatedAt: &updated}, nil
}

// cleanColumns trims, drops blanks and de-duplicates while keeping order
func cleanColumns(in []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
