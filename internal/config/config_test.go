package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "agency_crm", cfg.Database.Name)
	assert.Equal(t, "EUR", cfg.Business.Currency)
	assert.Equal(t, 3*time.Second, cfg.ProfileTimeout())
	assert.Equal(t, 30*time.Second, cfg.LoginTimeout())
	assert.True(t, cfg.EphemeralJWTSecret)
	assert.Len(t, cfg.JWT.Secret, 64)
	assert.False(t, cfg.StorageEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("JWT_SECRET", "fixed-secret")
	t.Setenv("STORAGE_ENDPOINT", "https://s3.example.com")
	t.Setenv("STORAGE_BUCKET", "docs")
	t.Setenv("STORAGE_ACCESS_KEY", "ak")
	t.Setenv("STORAGE_SECRET_KEY", "sk")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "fixed-secret", cfg.JWT.Secret)
	assert.False(t, cfg.EphemeralJWTSecret)
	assert.True(t, cfg.StorageEnabled())
	assert.Contains(t, cfg.DatabaseURL(), "@db.internal:6543/agency_crm")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 9090\nbusiness:\n  currency: USD\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "USD", cfg.Business.Currency)
}

func TestWarningsNeverFatal(t *testing.T) {
	var cfg Config
	cfg.EphemeralJWTSecret = true

	warnings := cfg.Warnings()

	assert.Len(t, warnings, 5)
}
