package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/jwt"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/service"
)

const (
	principalKey = "principal"
	authRealm    = "MCP Redmine"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

var _ TokenValidator = (*jwt.TokenService)(nil)

// Auth validates the Authorization header and attaches the caller's principal.
type Auth struct {
	tokens      TokenValidator
	credentials repository.CredentialStore
	discovery   *service.DiscoveryService
	logger      *zap.Logger
}

func NewAuth(tokens TokenValidator, credentials repository.CredentialStore, discovery *service.DiscoveryService, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.L()
	}
	return &Auth{tokens: tokens, credentials: credentials, discovery: discovery, logger: logger}
}

// RequireBearer rejects requests without a valid token for a user with stored
// tracker credentials. The principal's role comes from the stored credential.
func (m *Auth) RequireBearer(c *gin.Context) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		m.challenge(c, "Authorization header required.")
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		m.challenge(c, "Bearer token required.")
		return
	}

	claims, err := m.tokens.Validate(parts[1])
	if err != nil {
		m.logger.Debug("bearer token rejected", zap.Error(err))
		m.challenge(c, "Invalid access token.")
		return
	}

	cred, err := m.credentials.FindByUserID(c.Request.Context(), claims.Subject)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		m.challenge(c, "No Redmine credentials registered for this user.")
		return
	case err != nil:
		m.logger.Error("credential lookup failed", zap.String("user_id", claims.Subject), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
		return
	}

	principal := domain.Principal{
		UserID:     claims.Subject,
		Role:       cred.Role,
		IsBot:      cred.IsBot,
		Credential: cred,
	}
	c.Set(principalKey, principal)
	c.Request = c.Request.WithContext(domain.WithPrincipal(c.Request.Context(), principal))
	c.Next()
}

// GetPrincipal returns the principal attached by RequireBearer.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := value.(domain.Principal)
	return p, ok
}

func (m *Auth) challenge(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", resource_metadata="%s"`,
		authRealm, m.discovery.ResourceMetadataURL(c.Request)))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": description})
}
