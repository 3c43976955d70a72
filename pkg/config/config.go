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
	Session  SessionConfig
	Audit    AuditConfig
	Activity ActivityConfig
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
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionConfig controls the server-side session holding the selected school.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// AuditConfig tunes the background dispatch of activity events.
type AuditConfig struct {
	Sync        bool
	Workers     int
	BufferSize  int
	MaxRetries  int
	RetryDelay  time.Duration
	StopTimeout time.Duration
}

// ActivityConfig governs activity log queries and exports.
type ActivityConfig struct {
	RecentWindow  time.Duration
	StatsCacheTTL time.Duration
	ExportEnabled bool
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Session = SessionConfig{
		CookieName: v.GetString("SESSION_COOKIE_NAME"),
		TTL:        parseDuration(v.GetString("SESSION_TTL"), 12*time.Hour),
		Secure:     v.GetBool("SESSION_COOKIE_SECURE"),
	}

	cfg.Audit = AuditConfig{
		Sync:        v.GetBool("AUDIT_SYNC"),
		Workers:     v.GetInt("AUDIT_WORKERS"),
		BufferSize:  v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxRetries:  v.GetInt("AUDIT_MAX_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("AUDIT_RETRY_DELAY"), 500*time.Millisecond),
		StopTimeout: parseDuration(v.GetString("AUDIT_STOP_TIMEOUT"), 10*time.Second),
	}

	cfg.Activity = ActivityConfig{
		RecentWindow:  parseDuration(v.GetString("ACTIVITY_RECENT_WINDOW"), 7*24*time.Hour),
		StatsCacheTTL: parseDuration(v.GetString("ACTIVITY_STATS_CACHE_TTL"), 5*time.Minute),
		ExportEnabled: v.GetBool("ENABLE_ACTIVITY_EXPORT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_platform")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "sma-tenant-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SESSION_COOKIE_NAME", "SCHOOLSESSION")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SESSION_COOKIE_SECURE", false)

	v.SetDefault("AUDIT_SYNC", false)
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 1024)
	v.SetDefault("AUDIT_MAX_RETRIES", 1)
	v.SetDefault("AUDIT_RETRY_DELAY", "500ms")
	v.SetDefault("AUDIT_STOP_TIMEOUT", "10s")

	v.SetDefault("ACTIVITY_RECENT_WINDOW", "168h")
	v.SetDefault("ACTIVITY_STATS_CACHE_TTL", "5m")
	v.SetDefault("ENABLE_ACTIVITY_EXPORT", true)
}

// isMissingFile covers viper returning a raw fs error for an explicit SetConfigFile path.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
