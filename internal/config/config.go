package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port                   int      `mapstructure:"port"`
		CorsAllowedOrigins     []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods     []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders     []string `mapstructure:"cors_allowed_headers"`
		ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
		MaxConns int    `mapstructure:"max_conns"`
	} `mapstructure:"database"`

	JWT struct {
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Storage struct {
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Prefix    string `mapstructure:"prefix"`
	} `mapstructure:"storage"`

	Razorpay struct {
		KeyID     string `mapstructure:"key_id"`
		KeySecret string `mapstructure:"key_secret"`
	} `mapstructure:"razorpay"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Auth struct {
		ProfileTimeoutSeconds  int    `mapstructure:"profile_timeout_seconds"`
		LoginTimeoutSeconds    int    `mapstructure:"login_timeout_seconds"`
		BootstrapAdminEmail    string `mapstructure:"bootstrap_admin_email"`
		BootstrapAdminPassword string `mapstructure:"bootstrap_admin_password"`
	} `mapstructure:"auth"`

	Business struct {
		Timezone string `mapstructure:"timezone"`
		Currency string `mapstructure:"currency"`
	} `mapstructure:"business"`

	// set when no JWT secret was configured and one was generated for this process
	EphemeralJWTSecret bool `mapstructure:"-"`
}

// Load reads configs/config.yaml (optional), .env (optional) and the environment.
func Load() *Config {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configFile())
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("component", "config").Msg("no config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatal().Err(err).Msg("config unmarshal error")
	}

	applyEnv(&cfg)

	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = randomSecret()
		cfg.EphemeralJWTSecret = true
	}

	return &cfg
}

func configFile() string {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "agency_crm")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "agency-crm")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "documents")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.profile_timeout_seconds", 3)
	v.SetDefault("auth.login_timeout_seconds", 30)
	v.SetDefault("business.timezone", "Europe/Madrid")
	v.SetDefault("business.currency", "EUR")
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")

	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.JWT.Secret, "JWT_SECRET")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&cfg.Storage.Region, "STORAGE_REGION")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")

	setString(&cfg.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	setString(&cfg.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	setString(&cfg.Auth.BootstrapAdminEmail, "BOOTSTRAP_ADMIN_EMAIL")
	setString(&cfg.Auth.BootstrapAdminPassword, "BOOTSTRAP_ADMIN_PASSWORD")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("agency-crm-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// DatabaseURL builds the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.SSLMode, c.Database.MaxConns)
}

// StorageEnabled reports whether every setting needed for the document store is present.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Endpoint != "" && c.Storage.Bucket != "" &&
		c.Storage.AccessKey != "" && c.Storage.SecretKey != ""
}

// RazorpayEnabled reports whether online payments can be offered.
func (c *Config) RazorpayEnabled() bool {
	return c.Razorpay.KeyID != "" && c.Razorpay.KeySecret != ""
}

func (c *Config) ProfileTimeout() time.Duration {
	return time.Duration(c.Auth.ProfileTimeoutSeconds) * time.Second
}

func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.Auth.LoginTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Warnings lists missing backend settings. None of them stop the process from booting.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Database.Password == "" {
		warnings = append(warnings, "database password is not set; database calls may fail")
	}
	if c.Database.Host == "" {
		warnings = append(warnings, "database host is not set; database calls will fail")
	}
	if c.EphemeralJWTSecret {
		warnings = append(warnings, "JWT secret is not set; using an ephemeral secret, sessions will not survive a restart")
	}
	if !c.StorageEnabled() {
		warnings = append(warnings, "document storage endpoint or keys are not set; generated PDFs will not be archived")
	}
	if !c.RazorpayEnabled() {
		warnings = append(warnings, "razorpay keys are not set; online payments are disabled")
	}
	return warnings
}
