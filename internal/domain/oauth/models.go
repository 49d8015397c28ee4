package oauth

import "time"

// GoogleProviderConfig holds the client registration at the Google IdP.
type GoogleProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuthTokenResponse models the response from an external IdP token endpoint.
type OAuthTokenResponse struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

// OAuthUserInfo represents the normalized profile data returned by the IdP.
type OAuthUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
}

// AuthorizationCodeData is the pending authorization redeemed at the token endpoint.
type AuthorizationCodeData struct {
	UserID              string    `json:"user_id"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
