package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	CoreAPI  CoreAPIConfig
	Staging  StagingConfig
	Drafts   DraftsConfig
	Receipts ReceiptsConfig
	Lookups  LookupsConfig
	Jobs     JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CoreAPIConfig points the gateway at the canonical school backend.
type CoreAPIConfig struct {
	BaseURL     string
	Timeout     time.Duration
	BearerToken string
}

// StagingConfig bounds files staged for a draft before commit.
type StagingConfig struct {
	Dir                string
	PhotoMaxBytes      int64
	PhotoExtensions    []string
	DocumentMaxBytes   int64
	DocumentMIMETypes  []string
	OrphanCleanupAfter time.Duration
}

// DraftsConfig controls draft lifetime and cleanup cadence.
type DraftsConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// ReceiptsConfig configures enrollment receipt downloads.
type ReceiptsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// LookupsConfig tunes caching for core-API lookup proxies.
type LookupsConfig struct {
	CacheTTL time.Duration
}

// JobsConfig sizes the background maintenance queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CoreAPI = CoreAPIConfig{
		BaseURL:     v.GetString("CORE_API_BASE_URL"),
		Timeout:     parseDuration(v.GetString("CORE_API_TIMEOUT"), 30*time.Second),
		BearerToken: v.GetString("CORE_API_TOKEN"),
	}

	photoMax := v.GetInt64("STAGING_PHOTO_MAX_BYTES")
	if photoMax <= 0 {
		photoMax = 5 * 1024 * 1024
	}
	docMax := v.GetInt64("STAGING_DOCUMENT_MAX_BYTES")
	if docMax <= 0 {
		docMax = 10 * 1024 * 1024
	}
	cfg.Staging = StagingConfig{
		Dir:                v.GetString("STAGING_DIR"),
		PhotoMaxBytes:      photoMax,
		PhotoExtensions:    splitAndTrim(v.GetString("STAGING_PHOTO_EXTENSIONS")),
		DocumentMaxBytes:   docMax,
		DocumentMIMETypes:  splitAndTrim(v.GetString("STAGING_DOCUMENT_MIME_TYPES")),
		OrphanCleanupAfter: parseDuration(v.GetString("STAGING_ORPHAN_CLEANUP_AFTER"), 72*time.Hour),
	}

	cfg.Drafts = DraftsConfig{
		TTL:             parseDuration(v.GetString("DRAFT_TTL"), 7*24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("DRAFT_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Receipts = ReceiptsConfig{
		SignedURLSecret: v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Lookups = LookupsConfig{
		CacheTTL: parseDuration(v.GetString("LOOKUP_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment_gateway")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "enrollment-gateway")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CORE_API_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("CORE_API_TIMEOUT", "30s")
	v.SetDefault("CORE_API_TOKEN", "")

	v.SetDefault("STAGING_DIR", "./staging")
	v.SetDefault("STAGING_PHOTO_MAX_BYTES", 5*1024*1024)
	v.SetDefault("STAGING_PHOTO_EXTENSIONS", "jpg,jpeg,png,gif")
	v.SetDefault("STAGING_DOCUMENT_MAX_BYTES", 10*1024*1024)
	v.SetDefault("STAGING_DOCUMENT_MIME_TYPES", "application/pdf,image/jpeg,image/png")
	v.SetDefault("STAGING_ORPHAN_CLEANUP_AFTER", "72h")

	v.SetDefault("DRAFT_TTL", "168h")
	v.SetDefault("DRAFT_CLEANUP_INTERVAL", "1h")

	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "24h")

	v.SetDefault("LOOKUP_CACHE_TTL", "5m")

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
