package auth

import (
	"fmt"
	"net/http"

	domainoauth "github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
)

// OAuthError standardizes OAuth compliant errors.
type OAuthError struct {
	Code        string
	Description string
	Status      int
	Err         error
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}

// Is matches the protocol-level sentinels by error code.
func (e *OAuthError) Is(target error) bool {
	switch target {
	case domainoauth.ErrInvalidRequest:
		return e.Code == "invalid_request"
	case domainoauth.ErrAccessDenied:
		return e.Code == "access_denied"
	}
	return false
}

func (e *OAuthError) withCause(err error) *OAuthError {
	e.Err = err
	return e
}

func newOAuthError(code, desc string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: desc, Status: status}
}

func invalidRequest(desc string) *OAuthError {
	return newOAuthError("invalid_request", desc, http.StatusBadRequest)
}

func invalidGrant(desc string) *OAuthError {
	return newOAuthError("invalid_grant", desc, http.StatusBadRequest)
}

func sessionExpired() *OAuthError {
	return invalidRequest("Session expired, please start authorization again").withCause(domainoauth.ErrSessionExpired)
}
