package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	domainoauth "github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var defaultScopes = []string{"openid", "email", "profile"}

// IdentityProvider encapsulates the outbound calls to the external IdP.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*domainoauth.OAuthTokenResponse, error)
	FetchUserInfo(ctx context.Context, token *domainoauth.OAuthTokenResponse) (*domainoauth.OAuthUserInfo, error)
}

// GoogleClient implements IdentityProvider with golang.org/x/oauth2.
type GoogleClient struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

var _ IdentityProvider = (*GoogleClient)(nil)

// GoogleOption customizes a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithEndpoint points the client at a different authorization server.
func WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) GoogleOption {
	return func(c *GoogleClient) {
		c.config.Endpoint = endpoint
		if strings.TrimSpace(userInfoURL) != "" {
			c.userInfoURL = userInfoURL
		}
	}
}

// WithHTTPClient overrides the HTTP client used for token and userinfo calls.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(c *GoogleClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewGoogleClient constructs the Google IdP client.
func NewGoogleClient(cfg domainoauth.GoogleProviderConfig, opts ...GoogleOption) *GoogleClient {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	c := &GoogleClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		},
		userInfoURL: GoogleUserInfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthCodeURL builds the consent URL carrying state.
func (c *GoogleClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// ExchangeCode performs the OAuth token exchange.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*domainoauth.OAuthTokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("authorization code missing")
	}
	token, err := c.config.Exchange(c.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return &domainoauth.OAuthTokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Expiry:      token.Expiry,
	}, nil
}

// FetchUserInfo loads the userinfo endpoint profile.
func (c *GoogleClient) FetchUserInfo(ctx context.Context, token *domainoauth.OAuthTokenResponse) (*domainoauth.OAuthUserInfo, error) {
	if token == nil || strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("access token missing")
	}
	client := c.config.Client(c.withClient(ctx), &oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Expiry:      token.Expiry,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read userinfo: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("userinfo failed: status=%d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	return &domainoauth.OAuthUserInfo{
		Subject:       stringValue(coalesce(raw["sub"], raw["id"])),
		Email:         strings.ToLower(stringValue(raw["email"])),
		EmailVerified: boolValue(coalesce(raw["email_verified"], raw["verified_email"])),
		Name:          stringValue(coalesce(raw["name"], raw["given_name"])),
	}, nil
}

func (c *GoogleClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func boolValue(input any) bool {
	switch v := input.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func coalesce(values ...any) any {
	for _, v := range values {
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				return v
			}
		case nil:
			continue
		default:
			return v
		}
	}
	return nil
}
