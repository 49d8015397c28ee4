package domain

import (
	"context"
	"strings"
	"time"
)

// Role is the authorization level attached to a credential.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes stored role values, defaulting to RoleUser.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Credential binds a gateway user to their tracker endpoint and API key.
type Credential struct {
	UserID      string
	EndpointURL string
	APIKey      string
	CreatedAt   time.Time
	Role        Role
	IsBot       bool
}

// IsAdmin reports whether the credential carries the admin role.
func (c Credential) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// SaveOptions controls which privileged fields a save may overwrite.
// Nil fields keep the stored value (or the column default on insert).
type SaveOptions struct {
	Role  *Role
	IsBot *bool
}

// Principal is the authenticated caller of an API or tool request.
type Principal struct {
	UserID     string
	Role       Role
	IsBot      bool
	Credential Credential
}

// IsAdmin reports whether the principal may act on other users' data.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalCtxKey struct{}

// WithPrincipal stores the principal inside ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}
