package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	oauthadapter "github.com/smallbiznis/redmine-mcp-gateway/internal/adapter/oauth"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	domainoauth "github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
)

// Session keys of an in-flight authorization.
const (
	keyClientID        = "oauth_client_id"
	keyRedirectURI     = "oauth_redirect_uri"
	keyState           = "oauth_state"
	keyCodeChallenge   = "oauth_code_challenge"
	keyChallengeMethod = "oauth_code_challenge_method"
	keyGoogleState     = "google_oauth_state"
	keyUserEmail       = "google_user_email"
	keyUserName        = "google_user_name"
)

const (
	authorizationCodeBytes = 32
	defaultAccessTokenTTL  = 24 * time.Hour
	defaultSessionTTL      = 30 * time.Minute

	missingCredentialsMessage = "Please provide both Redmine URL and API key"
	invalidEndpointMessage    = "Redmine URL must be an absolute http(s) URL"
)

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	CreateToken(userID string, expiresIn time.Duration, extra map[string]any) (string, error)
}

// AuthorizeRequest carries the client's /oauth/authorize query.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// CallbackRequest carries the IdP redirect back to the gateway.
type CallbackRequest struct {
	Code  string
	State string
	Error string
}

// CredentialForm is the submitted tracker credential form.
type CredentialForm struct {
	EndpointURL string
	APIKey      string
}

// CredentialPrompt is what the credential form needs to render.
type CredentialPrompt struct {
	Email string
	Name  string
	Error string
}

// CallbackResult is either a redirect to the client or a credential prompt.
type CallbackResult struct {
	RedirectURL string
	Prompt      *CredentialPrompt
}

// TokenRequest carries the /oauth/token form.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
}

// TokenResponse is the OAuth token endpoint payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Flow orchestrates authorize, IdP callback, credential capture and code exchange.
type Flow struct {
	sessions    repository.SessionStore
	codes       repository.AuthorizationCodeStore
	credentials repository.CredentialStore
	clients     repository.ClientRepository
	idp         oauthadapter.IdentityProvider
	tokens      TokenIssuer
	allowlist   *Allowlist
	snowflake   *snowflake.Node
	cfg         config.Config
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewFlow wires dependencies.
func NewFlow(
	sessions repository.SessionStore,
	codes repository.AuthorizationCodeStore,
	credentials repository.CredentialStore,
	clients repository.ClientRepository,
	idp oauthadapter.IdentityProvider,
	tokens TokenIssuer,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) *Flow {
	return &Flow{
		sessions:    sessions,
		codes:       codes,
		credentials: credentials,
		clients:     clients,
		idp:         idp,
		tokens:      tokens,
		allowlist:   NewAllowlist(cfg.AllowedEmailDomains, cfg.AllowedEmails),
		snowflake:   node,
		cfg:         cfg,
		logger:      logger,
		tracer:      otel.Tracer("github.com/smallbiznis/redmine-mcp-gateway/internal/service/auth"),
		now:         time.Now,
	}
}

// Start records the client's request in the session and returns the IdP consent URL.
func (f *Flow) Start(ctx context.Context, sessionID string, req AuthorizeRequest) (string, error) {
	ctx, span := f.startSpan(ctx, "Flow.Start")
	defer span.End()

	clientID := strings.TrimSpace(req.ClientID)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if clientID == "" || redirectURI == "" {
		return "", invalidRequest("Missing client_id or redirect_uri")
	}
	if err := f.checkRegisteredRedirect(ctx, clientID, redirectURI); err != nil {
		return "", err
	}
	challenge, method, err := normalizeChallenge(req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return "", err
	}

	googleState, err := randomHex(32)
	if err != nil {
		return "", err
	}
	values := map[string]string{
		keyClientID:        clientID,
		keyRedirectURI:     redirectURI,
		keyState:           req.State,
		keyCodeChallenge:   challenge,
		keyChallengeMethod: method,
		keyGoogleState:     googleState,
	}
	if err := f.sessions.Save(ctx, sessionID, values, f.sessionTTL()); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("persist session: %w", err)
	}
	return f.idp.AuthCodeURL(googleState), nil
}

// HandleCallback verifies the IdP response and the allow-list, then either
// issues an authorization code or asks for tracker credentials.
func (f *Flow) HandleCallback(ctx context.Context, sessionID string, req CallbackRequest) (*CallbackResult, error) {
	ctx, span := f.startSpan(ctx, "Flow.HandleCallback")
	defer span.End()

	if strings.TrimSpace(req.Error) != "" || strings.TrimSpace(req.Code) == "" {
		return nil, newOAuthError("access_denied", "User denied access or Google error", http.StatusBadRequest)
	}

	session, err := f.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	expected := session[keyGoogleState]
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(req.State)) != 1 {
		return nil, invalidRequest("Invalid state parameter (CSRF protection)").withCause(domainoauth.ErrInvalidState)
	}

	token, err := f.idp.ExchangeCode(ctx, req.Code)
	if err != nil {
		span.RecordError(err)
		f.log().Warn("google code exchange failed", zap.Error(err))
		return nil, newOAuthError("server_error", "Failed to authenticate with Google", http.StatusBadGateway).withCause(err)
	}
	info, err := f.idp.FetchUserInfo(ctx, token)
	if err != nil {
		span.RecordError(err)
		f.log().Warn("google userinfo failed", zap.Error(err))
		return nil, newOAuthError("server_error", "Failed to load Google profile", http.StatusBadGateway).withCause(err)
	}
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		return nil, newOAuthError("server_error", "Google profile has no email", http.StatusBadGateway).withCause(domainoauth.ErrTokenInvalid)
	}
	if !info.EmailVerified {
		f.audit("oauth.email.unverified", "email", email, "google_sub", info.Subject)
		return nil, newOAuthError("access_denied", "Google account email is not verified", http.StatusForbidden)
	}

	if !f.allowlist.IsEmailAuthorized(email) {
		f.audit("oauth.allowlist.rejected", "email", email, "google_sub", info.Subject)
		return nil, newOAuthError("access_denied", fmt.Sprintf(
			"Email %q is not authorized to access this application. Please contact your administrator.", email,
		), http.StatusForbidden)
	}

	exists, err := f.credentials.Exists(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("credential lookup: %w", err)
	}
	if exists {
		return f.issueCode(ctx, sessionID, session, email)
	}

	session[keyUserEmail] = email
	session[keyUserName] = info.Name
	if err := f.sessions.Save(ctx, sessionID, session, f.sessionTTL()); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &CallbackResult{Prompt: &CredentialPrompt{Email: email, Name: info.Name}}, nil
}

// SubmitCredentials stores the first-time user's tracker credentials and
// completes the authorization.
func (f *Flow) SubmitCredentials(ctx context.Context, sessionID string, form CredentialForm) (*CallbackResult, error) {
	ctx, span := f.startSpan(ctx, "Flow.SubmitCredentials")
	defer span.End()

	session, err := f.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	email := session[keyUserEmail]
	if email == "" {
		return nil, sessionExpired()
	}

	prompt := &CredentialPrompt{Email: email, Name: session[keyUserName]}
	endpoint := strings.TrimRight(strings.TrimSpace(form.EndpointURL), "/")
	apiKey := strings.TrimSpace(form.APIKey)
	if endpoint == "" || apiKey == "" {
		prompt.Error = missingCredentialsMessage
		return &CallbackResult{Prompt: prompt}, nil
	}
	if !isAbsoluteHTTPURL(endpoint) {
		prompt.Error = invalidEndpointMessage
		return &CallbackResult{Prompt: prompt}, nil
	}

	cred := domain.Credential{
		UserID:      email,
		EndpointURL: endpoint,
		APIKey:      apiKey,
		CreatedAt:   f.now().UTC(),
	}
	if err := f.credentials.Save(ctx, cred, domain.SaveOptions{}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save credential: %w", err)
	}
	f.audit("credential.saved", "user_id", email)

	return f.issueCode(ctx, sessionID, session, email)
}

// ExchangeCode redeems an authorization code for a bearer token.
func (f *Flow) ExchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	ctx, span := f.startSpan(ctx, "Flow.ExchangeCode")
	defer span.End()

	if strings.TrimSpace(req.GrantType) != "authorization_code" {
		return nil, newOAuthError("unsupported_grant_type", "Only the authorization_code grant is supported", http.StatusBadRequest)
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, invalidRequest("Missing code parameter")
	}

	data, err := f.codes.ConsumeOnce(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, invalidGrant("Invalid or expired authorization code")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("consume authorization code: %w", err)
	}
	if data.RedirectURI != strings.TrimSpace(req.RedirectURI) {
		return nil, invalidGrant("Redirect URI mismatch")
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID != "" && data.ClientID != "" && clientID != data.ClientID {
		return nil, invalidGrant("Client ID mismatch")
	}
	if !verifyChallenge(data.CodeChallenge, data.CodeChallengeMethod, strings.TrimSpace(req.CodeVerifier)) {
		return nil, invalidGrant("PKCE verification failed")
	}
	if secret := strings.TrimSpace(req.ClientSecret); secret != "" {
		if err := f.authenticateClient(ctx, data.ClientID, secret); err != nil {
			return nil, err
		}
	}

	ttl := f.cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	accessToken, err := f.tokens.CreateToken(data.UserID, ttl, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create access token: %w", err)
	}
	f.audit("oauth.token.issued", "user_id", data.UserID, "client_id", data.ClientID)

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}

func (f *Flow) issueCode(ctx context.Context, sessionID string, session map[string]string, userID string) (*CallbackResult, error) {
	redirectURI := session[keyRedirectURI]
	if redirectURI == "" {
		return nil, sessionExpired()
	}
	target, err := url.Parse(redirectURI)
	if err != nil {
		return nil, invalidRequest("Invalid redirect_uri")
	}

	code, err := randomHex(authorizationCodeBytes)
	if err != nil {
		return nil, err
	}
	data := domainoauth.AuthorizationCodeData{
		UserID:              userID,
		ClientID:            session[keyClientID],
		RedirectURI:         redirectURI,
		CodeChallenge:       session[keyCodeChallenge],
		CodeChallengeMethod: session[keyChallengeMethod],
		CreatedAt:           f.now().UTC(),
	}
	if err := f.codes.Store(ctx, code, data); err != nil {
		return nil, fmt.Errorf("persist authorization code: %w", err)
	}
	if err := f.sessions.Delete(ctx, sessionID); err != nil {
		f.log().Warn("failed to clear oauth session", zap.Error(err))
	}

	query := target.Query()
	query.Set("code", code)
	if state := session[keyState]; state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	f.audit("oauth.code.issued", "user_id", userID, "client_id", data.ClientID)
	return &CallbackResult{RedirectURL: target.String()}, nil
}

// checkRegisteredRedirect rejects redirect URIs a registered client did not declare.
// Unregistered clients are accepted.
func (f *Flow) checkRegisteredRedirect(ctx context.Context, clientID, redirectURI string) error {
	if f.clients == nil {
		return nil
	}
	client, err := f.clients.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup oauth client: %w", err)
	}
	if !client.AllowsRedirect(redirectURI) {
		return invalidRequest("Redirect URI mismatch")
	}
	return nil
}

func (f *Flow) sessionTTL() time.Duration {
	if f.cfg.SessionTTL > 0 {
		return f.cfg.SessionTTL
	}
	return defaultSessionTTL
}

func (f *Flow) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if f == nil || f.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return f.tracer.Start(ctx, name)
}

func (f *Flow) audit(event string, attrs ...any) {
	logger := f.log()
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", f.now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (f *Flow) log() *zap.Logger {
	if f != nil && f.logger != nil {
		return f.logger
	}
	return zap.L()
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
