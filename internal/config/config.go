package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Issuer        IssuerConfig
	Database      DatabaseConfig
	Tokens        TokenConfig
	Keys          KeyConfig
	MFA           MFAConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// IssuerConfig identifies this authorization server
type IssuerConfig struct {
	// URL is the exact issuer string placed in every id_token and
	// published in discovery metadata.
	URL string
}

// DatabaseConfig holds database configuration. Only used when
// STORE_BACKEND=postgres; the default backend is in-memory.
type DatabaseConfig struct {
	Backend         string
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// TokenConfig holds credential lifetime and format configuration
type TokenConfig struct {
	// AccessTokenFormat is "opaque" or "jwt".
	AccessTokenFormat       string
	AccessTokenTTL          time.Duration
	RefreshTokenAbsoluteTTL time.Duration
	CodeTTL                 time.Duration
	IDTokenTTL              time.Duration
	SweepInterval           time.Duration
}

// KeyConfig holds signing key configuration
type KeyConfig struct {
	// SigningAlg is RS256 or ES256. HS256 is never accepted for id_tokens.
	SigningAlg     string
	RotationPeriod time.Duration
	OverlapWindow  time.Duration
}

// MFAConfig holds multi-factor authentication configuration
type MFAConfig struct {
	CodeTTL     time.Duration
	MaxAttempts int
	BackupCodes int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory         uint32
	Argon2Iterations     uint32
	Argon2Parallelism    uint8
	Argon2SaltLength     uint32
	Argon2KeyLength      uint32
	RequirePKCEForPublic bool
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Issuer: IssuerConfig{
			URL: getEnv("ISSUER_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Backend:         getEnv("STORE_BACKEND", "memory"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "trustgate"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "trustgate"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Tokens: TokenConfig{
			AccessTokenFormat:       getEnv("ACCESS_TOKEN_FORMAT", "opaque"),
			AccessTokenTTL:          parseDuration("ACCESS_TOKEN_TTL", "1h"),
			RefreshTokenAbsoluteTTL: parseDuration("REFRESH_TOKEN_ABSOLUTE_TTL", "720h"),
			CodeTTL:                 parseDuration("CODE_TTL", "5m"),
			IDTokenTTL:              parseDuration("ID_TOKEN_TTL", "5m"),
			SweepInterval:           parseDuration("SWEEP_INTERVAL", "1m"),
		},
		Keys: KeyConfig{
			SigningAlg:     getEnv("SIGNING_ALG", "RS256"),
			RotationPeriod: parseDuration("KEY_ROTATION_PERIOD", "2160h"),
			OverlapWindow:  parseDuration("KEY_OVERLAP_WINDOW", "48h"),
		},
		MFA: MFAConfig{
			CodeTTL:     parseDuration("MFA_CODE_TTL", "5m"),
			MaxAttempts: parseInt("MFA_MAX_ATTEMPTS", 3),
			BackupCodes: parseInt("MFA_BACKUP_CODES", 10),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "trustgate"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			Argon2Memory:         uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:     uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism:    uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:     uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:      uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
			RequirePKCEForPublic: parseBool("REQUIRE_PKCE_FOR_PUBLIC_CLIENTS", true),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Issuer.URL == "" {
		return fmt.Errorf("ISSUER_URL is required")
	}
	if c.Database.Backend == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required for the postgres backend")
	}
	if c.Keys.SigningAlg != "RS256" && c.Keys.SigningAlg != "ES256" {
		return fmt.Errorf("SIGNING_ALG must be RS256 or ES256")
	}
	if c.Tokens.AccessTokenFormat != "opaque" && c.Tokens.AccessTokenFormat != "jwt" {
		return fmt.Errorf("ACCESS_TOKEN_FORMAT must be opaque or jwt")
	}
	if c.Tokens.CodeTTL > 10*time.Minute {
		return fmt.Errorf("CODE_TTL must not exceed 10m")
	}
	if c.MFA.CodeTTL > 5*time.Minute {
		return fmt.Errorf("MFA_CODE_TTL must not exceed 5m")
	}
	if !c.Security.RequirePKCEForPublic {
		return fmt.Errorf("REQUIRE_PKCE_FOR_PUBLIC_CLIENTS cannot be disabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
