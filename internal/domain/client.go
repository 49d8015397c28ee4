package domain

import "time"

// OAuthClient is a dynamically registered MCP client.
type OAuthClient struct {
	ID               int64
	ClientID         string
	ClientSecretHash string
	ClientName       string
	RedirectURIs     []string
	CreatedAt        time.Time
}

// AllowsRedirect reports whether redirectURI was registered for the client.
// Clients registered without redirect URIs accept any absolute URI.
func (c OAuthClient) AllowsRedirect(redirectURI string) bool {
	if len(c.RedirectURIs) == 0 {
		return true
	}
	for _, uri := range c.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}
