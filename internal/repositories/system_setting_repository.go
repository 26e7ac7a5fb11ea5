package repositories

import (
	"context"

	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const settingColumns = `id, setting_key, setting_value, description, updated_at, COALESCE(updated_by_user_id, 0)`

func scanSetting(row rowScanner) (*models.SystemSetting, error) {
	var s models.SystemSetting
	if err := row.Scan(&s.ID, &s.SettingKey, &s.SettingValue, &s.Description, &s.UpdatedAt, &s.UpdatedByUserID); err != nil {
		return nil, err
	}
	return &s, nil
}

type SystemSettingRepository struct {
	DB *pgxpool.Pool
}

func NewSystemSettingRepository(db *pgxpool.Pool) *SystemSettingRepository {
	return &SystemSettingRepository{DB: db}
}

func (r *SystemSettingRepository) Get(ctx context.Context, key string) (*models.SystemSetting, error) {
	s, err := scanSetting(r.DB.QueryRow(ctx,
		`SELECT `+settingColumns+` FROM system_settings WHERE setting_key=$1`, key))
	return s, mapErr(err)
}

func (r *SystemSettingRepository) List(ctx context.Context) ([]*models.SystemSetting, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+settingColumns+` FROM system_settings ORDER BY setting_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := []*models.SystemSetting{}
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// Upsert writes a setting, creating it when the key is new. A zero userID stores NULL.
func (r *SystemSettingRepository) Upsert(ctx context.Context, key, value string, userID int) error {
	_, err := r.DB.Exec(ctx,
		`INSERT INTO system_settings(setting_key, setting_value, updated_by_user_id)
		 VALUES($1, $2, NULLIF($3, 0))
		 ON CONFLICT (setting_key) DO UPDATE
		 SET setting_value=EXCLUDED.setting_value, updated_at=NOW(), updated_by_user_id=EXCLUDED.updated_by_user_id`,
		key, value, userID)
	return mapErr(err)
}
