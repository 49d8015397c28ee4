package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

// DefaultIssuer is embedded as "iss" in every issued token.
const DefaultIssuer = "mcp-redmine-auth-server"

const minSecretSize = 32

var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
}

// TokenService signs and validates HS256 bearer tokens.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option customizes a TokenService.
type Option func(*TokenService)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService constructs a TokenService. The secret must be at least 32 bytes.
func NewTokenService(secret []byte, issuer string, opts ...Option) (*TokenService, error) {
	if len(secret) < minSecretSize {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretSize)
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = DefaultIssuer
	}
	s := &TokenService{secret: secret, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Claims is the validated content of a bearer token.
type Claims struct {
	Subject   string
	Role      string
	IsBot     bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type extraClaims struct {
	Role  string `json:"role,omitempty"`
	IsBot bool   `json:"is_bot,omitempty"`
}

// CreateToken issues a token for userID valid for expiresIn. Extra claims
// (role, is_bot) are merged in; registered claim names are ignored.
func (s *TokenService) CreateToken(userID string, expiresIn time.Duration, extra map[string]any) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("jwt subject required")
	}
	if expiresIn <= 0 {
		return "", errors.New("jwt expiry must be positive")
	}

	signer, err := gojose.NewSigner(gojose.SigningKey{Algorithm: gojose.HS256, Key: s.secret}, (&gojose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := s.now().UTC()
	std := gojwt.Claims{
		Subject:  userID,
		Issuer:   s.issuer,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(expiresIn)),
	}

	custom := make(map[string]any, len(extra))
	for k, v := range extra {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		custom[k] = v
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// ValidateAndGetUserID verifies token and returns its subject.
func (s *TokenService) ValidateAndGetUserID(token string) (string, error) {
	claims, err := s.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Validate verifies signature, issuer, expiry and subject presence.
func (s *TokenService) Validate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &domain.InvalidTokenError{Reason: "empty token"}
	}
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, &domain.InvalidTokenError{Reason: "malformed", Err: err}
	}

	var (
		std    gojwt.Claims
		custom extraClaims
	)
	if err := parsed.Claims(s.secret, &std, &custom); err != nil {
		return nil, &domain.InvalidTokenError{Reason: "signature", Err: err}
	}
	if std.Expiry == nil {
		return nil, &domain.InvalidTokenError{Reason: "missing exp claim"}
	}
	if err := std.ValidateWithLeeway(gojwt.Expected{Issuer: s.issuer, Time: s.now()}, 0); err != nil {
		return nil, &domain.InvalidTokenError{Reason: "claims", Err: err}
	}
	if strings.TrimSpace(std.Subject) == "" {
		return nil, &domain.InvalidTokenError{Reason: "missing sub claim"}
	}

	claims := &Claims{
		Subject:   std.Subject,
		Role:      custom.Role,
		IsBot:     custom.IsBot,
		ExpiresAt: std.Expiry.Time(),
	}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}
	return claims, nil
}
