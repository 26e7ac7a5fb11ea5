package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"agency-crm/internal/cache"
	"agency-crm/internal/models"

	"github.com/rs/zerolog/log"
)

const companyCacheKey = "settings:company"

// Keys the settings screen may edit
var editableSettings = []string{
	"company_name",
	"company_tax_id",
	"company_address",
	"company_email",
	"company_phone",
	"document_footer",
}

type SettingStore interface {
	Get(ctx context.Context, key string) (*models.SystemSetting, error)
	List(ctx context.Context) ([]*models.SystemSetting, error)
	Upsert(ctx context.Context, key, value string, userID int) error
}

type SystemSettingService struct {
	Repo SettingStore
}

func NewSystemSettingService(repo SettingStore) *SystemSettingService {
	return &SystemSettingService{Repo: repo}
}

func (s *SystemSettingService) GetSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	return s.Repo.Get(ctx, key)
}

func (s *SystemSettingService) ListSettings(ctx context.Context) ([]*models.SystemSetting, error) {
	return s.Repo.List(ctx)
}

func (s *SystemSettingService) UpdateSetting(ctx context.Context, key, value string, userID int) (*models.SystemSetting, error) {
	if !oneOf(key, editableSettings) {
		return nil, invalid("unknown setting %q", key)
	}
	value = strings.TrimSpace(value)
	if key == "company_name" && value == "" {
		return nil, invalid("company name cannot be empty")
	}
	if len(value) > 2000 {
		return nil, invalid("setting value is too long")
	}
	if err := s.Repo.Upsert(ctx, key, value, userID); err != nil {
		return nil, err
	}
	cache.InvalidateKeys(ctx, companyCacheKey)
	return s.Repo.Get(ctx, key)
}

// CompanyInfo reads the issuer block for documents. Lookup errors yield
// an empty block rather than failing the render.
func (s *SystemSettingService) CompanyInfo(ctx context.Context) models.CompanyInfo {
	var info models.CompanyInfo
	if data, ok := cache.GetCached(ctx, companyCacheKey); ok && json.Unmarshal(data, &info) == nil {
		return info
	}

	settings, err := s.Repo.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load company settings for document header")
		return info
	}
	for _, st := range settings {
		switch st.SettingKey {
		case "company_name":
			info.Name = st.SettingValue
		case "company_tax_id":
			info.TaxID = st.SettingValue
		case "company_address":
			info.Address = st.SettingValue
		case "company_email":
			info.Email = st.SettingValue
		case "company_phone":
			info.Phone = st.SettingValue
		case "document_footer":
			info.Footer = st.SettingValue
		}
	}

	if data, err := json.Marshal(info); err == nil {
		cache.SetCached(ctx, companyCacheKey, data, 10*time.Minute)
	}
	return info
}
