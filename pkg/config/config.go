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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Canvas        CanvasConfig
	Sync          SyncConfig
	Relationships RelationshipConfig
	Reports       ReportsConfig
	Auth          AuthConfig
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
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CanvasConfig points at the external data-fetch script and bounds its runtime.
type CanvasConfig struct {
	FetchScript  string
	FetchArgs    []string
	FetchTimeout time.Duration
	ArchiveDir   string
}

// SyncConfig tunes the sync coordinator and its async job queue.
type SyncConfig struct {
	ValidateIntegrity bool
	ConflictStrategy  string
	QueueBufferSize   int
	QueueMaxRetries   int
	QueueRetryDelay   time.Duration
	RunRetention      time.Duration
}

// RelationshipConfig governs caching of read-side relationship queries.
type RelationshipConfig struct {
	CacheTTL time.Duration
}

// ReportsConfig toggles sync report export endpoints.
type ReportsConfig struct {
	Enabled bool
}

// AuthConfig holds the bcrypt hash of the provisioning API key.
type AuthConfig struct {
	APIKeyHash string
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Canvas = CanvasConfig{
		FetchScript:  v.GetString("CANVAS_FETCH_SCRIPT"),
		FetchArgs:    splitAndTrim(v.GetString("CANVAS_FETCH_ARGS")),
		FetchTimeout: parseDuration(v.GetString("CANVAS_FETCH_TIMEOUT"), 5*time.Minute),
		ArchiveDir:   v.GetString("CANVAS_ARCHIVE_DIR"),
	}

	cfg.Sync = SyncConfig{
		ValidateIntegrity: v.GetBool("SYNC_VALIDATE_INTEGRITY"),
		ConflictStrategy:  v.GetString("SYNC_CONFLICT_STRATEGY"),
		QueueBufferSize:   v.GetInt("SYNC_QUEUE_BUFFER_SIZE"),
		QueueMaxRetries:   v.GetInt("SYNC_QUEUE_MAX_RETRIES"),
		QueueRetryDelay:   parseDuration(v.GetString("SYNC_QUEUE_RETRY_DELAY"), 30*time.Second),
		RunRetention:      parseDuration(v.GetString("SYNC_RUN_RETENTION"), 24*time.Hour),
	}

	cfg.Relationships = RelationshipConfig{
		CacheTTL: parseDuration(v.GetString("RELATIONSHIP_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled: v.GetBool("ENABLE_REPORTS"),
	}

	cfg.Auth = AuthConfig{
		APIKeyHash: v.GetString("API_KEY_HASH"),
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
	v.SetDefault("DB_NAME", "canvas_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CANVAS_FETCH_SCRIPT", "./scripts/fetch_canvas_data.sh")
	v.SetDefault("CANVAS_FETCH_TIMEOUT", "5m")
	v.SetDefault("CANVAS_ARCHIVE_DIR", "")

	v.SetDefault("SYNC_VALIDATE_INTEGRITY", true)
	v.SetDefault("SYNC_CONFLICT_STRATEGY", "canvas_wins")
	v.SetDefault("SYNC_QUEUE_BUFFER_SIZE", 8)
	v.SetDefault("SYNC_QUEUE_MAX_RETRIES", 1)
	v.SetDefault("SYNC_QUEUE_RETRY_DELAY", "30s")
	v.SetDefault("SYNC_RUN_RETENTION", "24h")

	v.SetDefault("RELATIONSHIP_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_REPORTS", true)
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
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
