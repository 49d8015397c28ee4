package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	BaseURL     string
	DatabaseURL string
	AutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EncryptionKey []byte
	JWTSecret     []byte
	JWTIssuer     string

	AccessTokenTTL time.Duration
	AuthCodeTTL    time.Duration

	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	AllowedEmailDomains []string
	AllowedEmails       []string

	TrackerTimeout    time.Duration
	ReferenceCacheTTL time.Duration

	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	TelemetrySampleRatio float64
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

const (
	encryptionKeySize = 32
	minJWTSecretSize  = 32
)

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		BaseURL:              strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		AutoMigrate:          getBool("AUTO_MIGRATE", false),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		JWTIssuer:            getEnv("JWT_ISSUER", "mcp-redmine-auth-server"),
		AccessTokenTTL:       getDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		AuthCodeTTL:          getDuration("AUTH_CODE_TTL", 10*time.Minute),
		SessionTTL:           getDuration("SESSION_TTL", 30*time.Minute),
		SessionCookieName:    getEnv("SESSION_COOKIE_NAME", "mcp_gateway_session"),
		SessionCookieSecure:  getBool("SESSION_COOKIE_SECURE", true),
		GoogleClientID:       strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret:   strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GoogleRedirectURI:    strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_URI")),
		AllowedEmailDomains:  lower(getList("ALLOWED_EMAIL_DOMAINS", nil)),
		AllowedEmails:        lower(getList("ALLOWED_EMAILS", nil)),
		TrackerTimeout:       getDuration("TRACKER_TIMEOUT", 10*time.Second),
		ReferenceCacheTTL:    getDuration("REFERENCE_CACHE_TTL", 24*time.Hour),
		ServiceName:          getEnv("SERVICE_NAME", "redmine-mcp-gateway"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		TelemetrySampleRatio: getFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, fmt.Errorf("APP_BASE_URL must be an absolute URL")
		}
	}

	key, err := DecodeEncryptionKey(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		return Config{}, err
	}
	cfg.EncryptionKey = key

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < minJWTSecretSize {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretSize)
	}
	cfg.JWTSecret = []byte(secret)

	return cfg, nil
}

// DatabaseURLFromEnv returns DATABASE_URL without requiring the secrets Load
// insists on, for commands that only touch the schema.
func DatabaseURLFromEnv() (string, error) {
	_ = godotenv.Load()
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return dsn, nil
}

// Validate checks the settings required to serve the OAuth flow.
func (c Config) Validate() error {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if c.GoogleRedirectURI == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URI is required")
	}
	// Without a fixed base URL, discovery documents are built from
	// X-Forwarded-Host, which only a development setup may trust.
	if c.BaseURL == "" && c.Environment != "development" {
		return fmt.Errorf("APP_BASE_URL is required when APP_ENV=%s", c.Environment)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("APP_BASE_URL must be an absolute http(s) URL")
		}
	}
	return nil
}

// DecodeEncryptionKey parses the base64 encoded 32-byte encryption key.
func DecodeEncryptionKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be base64 encoded: %w", err)
	}
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to %d bytes, got %d", encryptionKeySize, len(key))
	}
	return key, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}

func lower(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToLower(v)
	}
	return values
}
