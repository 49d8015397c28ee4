package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/password"
)

const (
	clientIDPrefix    = "mcp-"
	clientIDBytes     = 16
	clientSecretBytes = 32
)

// ClientRegistrationRequest is the dynamic client registration body.
type ClientRegistrationRequest struct {
	RedirectURIs []string `json:"redirect_uris"`
	ClientName   string   `json:"client_name"`
}

// ClientRegistrationResponse echoes the registered client with its secret.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
}

// Register creates a client with a random id and secret. Only the secret's
// argon2id hash is persisted.
func (f *Flow) Register(ctx context.Context, req ClientRegistrationRequest) (*ClientRegistrationResponse, error) {
	ctx, span := f.startSpan(ctx, "Flow.Register")
	defer span.End()

	redirects := make([]string, 0, len(req.RedirectURIs))
	for _, raw := range req.RedirectURIs {
		uri := strings.TrimSpace(raw)
		if uri == "" {
			continue
		}
		if u, err := url.Parse(uri); err != nil || u.Scheme == "" {
			return nil, newOAuthError("invalid_redirect_uri", fmt.Sprintf("Invalid redirect URI: %s", uri), http.StatusBadRequest)
		}
		redirects = append(redirects, uri)
	}

	idSuffix, err := randomHex(clientIDBytes)
	if err != nil {
		return nil, err
	}
	secret, err := password.GenerateSecret(clientSecretBytes)
	if err != nil {
		return nil, err
	}
	hash, err := password.HashSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("hash client secret: %w", err)
	}

	client := domain.OAuthClient{
		ClientID:         clientIDPrefix + idSuffix,
		ClientSecretHash: hash,
		ClientName:       strings.TrimSpace(req.ClientName),
		RedirectURIs:     redirects,
		CreatedAt:        f.now().UTC(),
	}
	if f.snowflake != nil {
		client.ID = f.snowflake.Generate().Int64()
	}
	if f.clients != nil {
		created, err := f.clients.Create(ctx, client)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("persist oauth client: %w", err)
		}
		client = created
	}
	f.audit("oauth.client.registered", "client_id", client.ClientID)

	return &ClientRegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		ClientSecretExpiresAt:   0,
		RedirectURIs:            redirects,
		ClientName:              client.ClientName,
		TokenEndpointAuthMethod: "none",
		GrantTypes:              []string{"authorization_code"},
		ResponseTypes:           []string{"code"},
	}, nil
}

// authenticateClient verifies a client_secret_post secret when one is presented.
func (f *Flow) authenticateClient(ctx context.Context, clientID, secret string) error {
	unauthorized := newOAuthError("invalid_client", "Client authentication failed", http.StatusUnauthorized)
	if f.clients == nil || clientID == "" {
		return unauthorized
	}
	client, err := f.clients.GetByClientID(ctx, clientID)
	if err != nil {
		return unauthorized
	}
	ok, err := password.VerifySecret(secret, client.ClientSecretHash)
	if err != nil || !ok {
		return unauthorized
	}
	return nil
}
