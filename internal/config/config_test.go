package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/gateway")
	t.Setenv("ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_EMAIL_DOMAINS", " Company.com , ,example.org")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "mcp-redmine-auth-server", cfg.JWTIssuer)
	require.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 10*time.Minute, cfg.AuthCodeTTL)
	require.Equal(t, []string{"company.com", "example.org"}, cfg.AllowedEmailDomains)
	require.Empty(t, cfg.AllowedEmails)
	require.Len(t, cfg.EncryptionKey, 32)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestDecodeEncryptionKey(t *testing.T) {
	_, err := DecodeEncryptionKey("")
	require.Error(t, err)

	_, err = DecodeEncryptionKey("not base64!")
	require.Error(t, err)

	_, err = DecodeEncryptionKey(base64.StdEncoding.EncodeToString(make([]byte, 16)))
	require.ErrorContains(t, err, "32 bytes")

	key, err := DecodeEncryptionKey(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	require.Len(t, key, 32)
}

func TestDatabaseURLFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", " postgres://localhost/gateway ")
	dsn, err := DatabaseURLFromEnv()
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/gateway", dsn)

	t.Setenv("DATABASE_URL", "")
	_, err = DatabaseURLFromEnv()
	require.Error(t, err)
}

func TestValidateRequiresBaseURLOutsideDevelopment(t *testing.T) {
	cfg := Config{
		Environment:        "production",
		GoogleClientID:     "cid",
		GoogleClientSecret: "secret",
		GoogleRedirectURI:  "https://gw.company.com/oauth/google-callback",
	}
	require.ErrorContains(t, cfg.Validate(), "APP_BASE_URL")

	cfg.BaseURL = "gw.company.com"
	require.ErrorContains(t, cfg.Validate(), "absolute")

	cfg.BaseURL = "https://gw.company.com"
	require.NoError(t, cfg.Validate())

	cfg.BaseURL = ""
	cfg.Environment = "development"
	require.NoError(t, cfg.Validate())
}
