package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	defaultJWTSecret = "dev_secret"
	minJWTSecretLen  = 32
)

// Config is the process configuration, read from the environment and an optional .env file.
type Config struct {
	Env             string
	Port            int
	APIPrefix       string
	RunMigrations   bool
	ShutdownTimeout time.Duration

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
	Audit     AuditConfig
	Timetable TimetableConfig
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
	// ConnectRetries is how many extra ping attempts NewPostgres makes at startup.
	ConnectRetries    int
	ConnectRetryDelay time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig toggles Redis caching of school membership lookups.
type CacheConfig struct {
	MembershipEnabled bool
	MembershipTTL     time.Duration
}

// AuditConfig sizes the background audit log queue.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// TimetableConfig bounds timetable import uploads.
type TimetableConfig struct {
	ImportMaxFileSize int64
	ImportMaxRows     int
}

// Load reads configuration and validates it. A missing .env file is not an error.
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Env:             strings.ToLower(v.GetString("ENV")),
		Port:            v.GetInt("PORT"),
		APIPrefix:       "/" + strings.Trim(v.GetString("API_PREFIX"), "/"),
		RunMigrations:   v.GetBool("RUN_MIGRATIONS"),
		ShutdownTimeout: durationOr(v, "SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:              v.GetString("DB_HOST"),
		Port:              v.GetInt("DB_PORT"),
		User:              v.GetString("DB_USER"),
		Password:          v.GetString("DB_PASSWORD"),
		Name:              v.GetString("DB_NAME"),
		SSLMode:           v.GetString("DB_SSL_MODE"),
		MaxOpenConns:      v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:      v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnectRetries:    v.GetInt("DB_CONNECT_RETRIES"),
		ConnectRetryDelay: durationOr(v, "DB_CONNECT_RETRY_DELAY", 2*time.Second),
	}
	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}
	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        durationOr(v, "JWT_EXPIRATION", 15*time.Minute),
		RefreshExpiration: durationOr(v, "REFRESH_TOKEN_EXPIRATION", 7*24*time.Hour),
	}
	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}
	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}
	cfg.Cache = CacheConfig{
		MembershipEnabled: v.GetBool("ENABLE_MEMBERSHIP_CACHE"),
		MembershipTTL:     durationOr(v, "MEMBERSHIP_CACHE_TTL", 5*time.Minute),
	}
	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER"),
		MaxRetries: v.GetInt("AUDIT_RETRIES"),
		RetryDelay: durationOr(v, "AUDIT_RETRY_DELAY", time.Second),
	}

	maxImport := v.GetInt64("IMPORT_MAX_FILE_SIZE")
	if maxImport <= 0 {
		maxImport = 2 * 1024 * 1024
	}
	cfg.Timetable = TimetableConfig{
		ImportMaxFileSize: maxImport,
		ImportMaxRows:     v.GetInt("IMPORT_MAX_ROWS"),
	}
	return cfg
}

// Validate rejects settings the server cannot start with. Production additionally requires
// a real signing secret.
func (c *Config) Validate() error {
	var problems []string
	switch c.Env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		problems = append(problems, fmt.Sprintf("ENV must be one of development, test, production (got %q)", c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT out of range: %d", c.Port))
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Env == EnvProduction && (c.JWT.Secret == defaultJWTSecret || len(c.JWT.Secret) < minJWTSecretLen) {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d characters in production", minJWTSecretLen))
	}
	if c.JWT.RefreshExpiration <= c.JWT.Expiration {
		problems = append(problems, "REFRESH_TOKEN_EXPIRATION must exceed JWT_EXPIRATION")
	}
	if c.Timetable.ImportMaxRows < 0 {
		problems = append(problems, "IMPORT_MAX_ROWS cannot be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"ENV":              EnvDevelopment,
		"PORT":             8080,
		"API_PREFIX":       "/api/v1",
		"RUN_MIGRATIONS":   false,
		"SHUTDOWN_TIMEOUT": "10s",

		"DB_HOST":                "localhost",
		"DB_PORT":                5432,
		"DB_USER":                "postgres",
		"DB_PASSWORD":            "postgres",
		"DB_NAME":                "mon_ecole",
		"DB_SSL_MODE":            "disable",
		"DB_MAX_OPEN_CONNS":      10,
		"DB_MAX_IDLE_CONNS":      5,
		"DB_CONNECT_RETRIES":     3,
		"DB_CONNECT_RETRY_DELAY": "2s",

		"REDIS_HOST":     "localhost",
		"REDIS_PORT":     6379,
		"REDIS_PASSWORD": "",
		"REDIS_DB":       0,

		"JWT_SECRET":               defaultJWTSecret,
		"JWT_ISSUER":               "mon-ecole",
		"JWT_EXPIRATION":           "15m",
		"REFRESH_TOKEN_EXPIRATION": "168h",

		"ALLOWED_ORIGINS": "",
		"LOG_LEVEL":       "info",
		"LOG_FORMAT":      "json",

		"ENABLE_MEMBERSHIP_CACHE": false,
		"MEMBERSHIP_CACHE_TTL":    "5m",

		"AUDIT_WORKERS":     2,
		"AUDIT_BUFFER":      64,
		"AUDIT_RETRIES":     3,
		"AUDIT_RETRY_DELAY": "1s",

		"IMPORT_MAX_FILE_SIZE": 2 * 1024 * 1024,
		"IMPORT_MAX_ROWS":      500,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// durationOr falls back when the key holds an unparsable duration instead of silently
// reading zero.
func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
