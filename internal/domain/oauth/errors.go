package oauth

import "errors"

var (
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("oauth: invalid request")
	// ErrInvalidState indicates the CSRF state returned by the IdP does not match the session.
	ErrInvalidState = errors.New("oauth: invalid state")
	// ErrAccessDenied indicates the IdP denied consent or returned no code.
	ErrAccessDenied = errors.New("oauth: access denied")
	// ErrTokenInvalid indicates the IdP token response could not be used.
	ErrTokenInvalid = errors.New("oauth: token invalid")
	// ErrSessionExpired indicates the pending authorization is no longer in the session.
	ErrSessionExpired = errors.New("oauth: session expired")
)
