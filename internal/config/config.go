package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventease/internal/validation"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Server         ServerConfig
	Storage        StorageConfig
	Auth           AuthConfig
	Logging        LoggingConfig
	RateLimit      RateLimitConfig
	AdminBootstrap AdminBootstrapConfig
	Approvals      ApprovalsConfig
	Events         EventsConfig
	Tracing        TracingConfig
	Environment    string
}

type ServerConfig struct {
	Host            string
	Port            int
	BaseURL         string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// Addr is the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Backend        string
	DatabaseURL    string
	SQLitePath     string
	MaxConnections int
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	Issuer    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	PublicPerMinute   int
	UserPerMinute     int
	AdminPerMinute    int
	LoginPer15Minutes int
	TrustedProxyCIDRs []string
}

type AdminBootstrapConfig struct {
	Username string
	Password string
	Email    string
}

// Enabled reports whether an admin account should be ensured at startup.
func (a AdminBootstrapConfig) Enabled() bool {
	return a.Username != "" && a.Password != ""
}

type ApprovalsConfig struct {
	// MaxPendingAge is how long a request may stay pending before the
	// expiry job rejects it. Zero disables expiry.
	MaxPendingAge time.Duration
	ExpiryEvery   time.Duration
}

// TracingConfig controls OpenTelemetry span export. Exporter is one of
// "stdout", "otlp" or "none".
type TracingConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	ServiceName  string
	SampleRate   float64
}

type EventsConfig struct {
	TimeZone string
	Location *time.Location
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			BaseURL:         getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			MaxBodyBytes:    int64(getEnvInt("SERVER_MAX_BODY_BYTES", 1<<20)),
			ShutdownTimeout: time.Duration(getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),
			DatabaseURL:    getEnv("DATABASE_URL", ""),
			SQLitePath:     getEnv("SQLITE_PATH", "eventease.db"),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:    getEnv("JWT_ISSUER", "eventease"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:   getEnvInt("RATE_LIMIT_PUBLIC", 60),
			UserPerMinute:     getEnvInt("RATE_LIMIT_USER", 120),
			AdminPerMinute:    getEnvInt("RATE_LIMIT_ADMIN", 0),
			LoginPer15Minutes: getEnvInt("RATE_LIMIT_LOGIN", 10),
			TrustedProxyCIDRs: getEnvList("TRUSTED_PROXY_CIDRS"),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Email:    getEnv("ADMIN_EMAIL", ""),
		},
		Approvals: ApprovalsConfig{
			MaxPendingAge: time.Duration(getEnvInt("APPROVAL_MAX_PENDING_AGE_HOURS", 0)) * time.Hour,
			ExpiryEvery:   time.Duration(getEnvInt("APPROVAL_EXPIRY_INTERVAL_MINUTES", 15)) * time.Minute,
		},
		Events: EventsConfig{
			TimeZone: getEnv("EVENTS_TIMEZONE", "UTC"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     strings.ToLower(getEnv("TRACING_EXPORTER", "otlp")),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "eventease"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and resolves derived values. It is
// called by Load and again by commands after flags override fields.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendSQLite, c.Storage.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}
	if err := validation.BaseURL(c.Server.BaseURL, "SERVER_BASE_URL", c.Environment == "production"); err != nil {
		return err
	}
	if c.Approvals.MaxPendingAge < 0 {
		return fmt.Errorf("APPROVAL_MAX_PENDING_AGE_HOURS must not be negative")
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp", "none":
		default:
			return fmt.Errorf("TRACING_EXPORTER must be stdout, otlp or none, got %q", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1")
		}
	}

	loc, err := time.LoadLocation(c.Events.TimeZone)
	if err != nil {
		return fmt.Errorf("EVENTS_TIMEZONE: %w", err)
	}
	c.Events.Location = loc
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvList(key string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
