package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
)

// CredentialStore persists per-user tracker credentials, encrypted at rest.
type CredentialStore interface {
	FindByUserID(ctx context.Context, userID string) (domain.Credential, error)
	Save(ctx context.Context, credential domain.Credential, opts domain.SaveOptions) error
	Exists(ctx context.Context, userID string) (bool, error)
}

// ClientRepository stores dynamically registered OAuth clients.
type ClientRepository interface {
	Create(ctx context.Context, client domain.OAuthClient) (domain.OAuthClient, error)
	GetByClientID(ctx context.Context, clientID string) (domain.OAuthClient, error)
}

// AuthorizationCodeStore exchanges opaque codes for pending authorizations exactly once.
type AuthorizationCodeStore interface {
	Store(ctx context.Context, code string, data oauth.AuthorizationCodeData) error
	ConsumeOnce(ctx context.Context, code string) (*oauth.AuthorizationCodeData, error)
	Exists(ctx context.Context, code string) (bool, error)
}

// SessionStore keeps the browser session of an in-flight authorization.
type SessionStore interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// ReferenceCache caches read-mostly tracker reference data.
type ReferenceCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
