package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config aggregates runtime configuration for the saaskit API.
type Config struct {
	Environment        string        `env:"APP_ENV" envDefault:"development"`
	HTTPPort           int           `env:"PORT"`
	DatabaseURL        string
	DataStore          string        `env:"DATA_STORE"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
	SupabaseURL        string        `env:"SUPABASE_URL"`
	SupabaseAnonKey    string        `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	ProfileCacheTTL    time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	DBMaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns     int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`

	// Warnings collects non-fatal configuration problems for the caller to log.
	Warnings []string
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if cfg.HTTPPort == 0 {
		var port portOnly
		if err := env.Parse(&port); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		cfg.HTTPPort = port.HTTPPort
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.HTTPPort)
	}

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/saaskit_database_url")
	if err != nil {
		return Config{}, err
	}
	serviceKey, err := getEnvOrFile("SUPABASE_SERVICE_ROLE_KEY", "/run/secrets/saaskit_service_role_key")
	if err != nil {
		return Config{}, err
	}
	jwtSecret, err := getEnvOrFile("SUPABASE_JWT_SECRET", "/run/secrets/saaskit_jwt_secret")
	if err != nil {
		return Config{}, err
	}

	cfg.DatabaseURL = strings.TrimSpace(databaseURL)
	cfg.SupabaseServiceKey = strings.TrimSpace(serviceKey)
	cfg.SupabaseJWTSecret = strings.TrimSpace(jwtSecret)
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)

	cfg.DataStore = strings.ToLower(strings.TrimSpace(cfg.DataStore))
	switch cfg.DataStore {
	case "":
		if cfg.DatabaseURL != "" {
			cfg.DataStore = "postgres"
		} else {
			cfg.DataStore = "memory"
			cfg.Warnings = append(cfg.Warnings, "DATABASE_URL is not set; profiles are kept in memory")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			cfg.DataStore = "memory"
			cfg.Warnings = append(cfg.Warnings, "DATA_STORE is postgres but DATABASE_URL is not set; falling back to memory")
		}
	case "memory":
	default:
		return Config{}, fmt.Errorf("invalid DATA_STORE %q", cfg.DataStore)
	}
	if cfg.DBMaxOpenConns <= 0 {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %d", cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > cfg.DBMaxOpenConns {
		cfg.DBMaxIdleConns = cfg.DBMaxOpenConns
	}

	if !cfg.IsDevelopment() && !cfg.HasTokenVerification() {
		return Config{}, errors.New("SUPABASE_URL or SUPABASE_JWT_SECRET is required outside development")
	}
	if cfg.SupabaseServiceKey == "" {
		cfg.Warnings = append(cfg.Warnings, "SUPABASE_SERVICE_ROLE_KEY is not set; debug endpoints are disabled")
	}

	return cfg, nil
}

type portOnly struct {
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repository should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment reports whether the API runs in the development environment.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// HasTokenVerification reports whether bearer tokens can be verified.
func (c Config) HasTokenVerification() bool {
	return c.SupabaseJWTSecret != "" || c.SupabaseURL != ""
}

// ClientConfig configures the saasctl console.
type ClientConfig struct {
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	APIURL          string `env:"SAASKIT_API_URL" envDefault:"http://localhost:8080"`
	SessionFile     string `env:"SAASKIT_SESSION_FILE"`
	Locale          string `env:"SAASKIT_LOCALE" envDefault:"fr"`
	RedirectURL     string `env:"SAASKIT_REDIRECT_URL" envDefault:"http://localhost:8089/callback"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"warn"`
}

// LoadClient reads the console configuration.
func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config: %w", err)
	}

	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.SupabaseURL == "" || strings.TrimSpace(cfg.SupabaseAnonKey) == "" {
		return ClientConfig{}, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required")
	}

	if cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return ClientConfig{}, fmt.Errorf("config: resolve session directory: %w", err)
		}
		cfg.SessionFile = filepath.Join(dir, "saaskit", "session.json")
	}

	return cfg, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
