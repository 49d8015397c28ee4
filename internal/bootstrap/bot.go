package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
)

// DefaultBotTokenTTL is the lifetime of a bot token unless overridden.
const DefaultBotTokenTTL = 365 * 24 * time.Hour

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	CreateToken(userID string, expiresIn time.Duration, extra map[string]any) (string, error)
}

// BotRequest describes an automation account to provision.
type BotRequest struct {
	Email       string
	EndpointURL string
	APIKey      string
	TokenTTL    time.Duration
}

// BotResult carries the long-lived token handed to the automation.
type BotResult struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// ProvisionBot stores an admin credential flagged as a bot and issues a token
// carrying the role and is_bot claims. Running it again for the same email
// replaces the credential and mints a fresh token.
func ProvisionBot(ctx context.Context, store repository.CredentialStore, tokens TokenIssuer, req BotRequest, logger *zap.Logger) (*BotResult, error) {
	if logger == nil {
		logger = zap.L()
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	endpoint := strings.TrimRight(strings.TrimSpace(req.EndpointURL), "/")
	apiKey := strings.TrimSpace(req.APIKey)

	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, domain.NewValidationError("email", "must be an email address")
	case endpoint == "":
		return nil, domain.NewValidationError("redmine-url", "is required")
	case apiKey == "":
		return nil, domain.NewValidationError("redmine-api-key", "is required")
	}
	if u, err := url.Parse(endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewValidationError("redmine-url", "must be an absolute http(s) URL")
	}

	ttl := req.TokenTTL
	if ttl <= 0 {
		ttl = DefaultBotTokenTTL
	}

	role := domain.RoleAdmin
	isBot := true
	cred := domain.Credential{
		UserID:      email,
		EndpointURL: endpoint,
		APIKey:      apiKey,
		CreatedAt:   time.Now().UTC(),
		Role:        role,
		IsBot:       isBot,
	}
	if err := store.Save(ctx, cred, domain.SaveOptions{Role: &role, IsBot: &isBot}); err != nil {
		return nil, fmt.Errorf("save bot credential: %w", err)
	}

	token, err := tokens.CreateToken(email, ttl, map[string]any{
		"role":   string(role),
		"is_bot": true,
	})
	if err != nil {
		return nil, fmt.Errorf("issue bot token: %w", err)
	}

	logger.Info("audit",
		zap.String("event", "bot.provisioned"),
		zap.String("user_id", email),
		zap.String("endpoint", endpoint),
		zap.Duration("token_ttl", ttl),
	)
	return &BotResult{UserID: email, Token: token, ExpiresAt: time.Now().Add(ttl)}, nil
}

// IsValidation reports whether err came from request validation.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}
