package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	domainoauth "github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
)

var testVerifier = strings.Repeat("v", 50)

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func queryParam(t *testing.T, raw, key string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get(key)
}

func TestNormalizeChallenge(t *testing.T) {
	c, m, err := normalizeChallenge("", "")
	require.NoError(t, err)
	require.Empty(t, c)
	require.Empty(t, m)

	c, m, err = normalizeChallenge(testVerifier, "")
	require.NoError(t, err)
	require.Equal(t, testVerifier, c)
	require.Equal(t, "plain", m)

	_, m, err = normalizeChallenge(s256(testVerifier), "S256")
	require.NoError(t, err)
	require.Equal(t, "S256", m)

	for _, tc := range []struct{ challenge, method string }{
		{"", "S256"},
		{testVerifier, "S512"},
		{"short", "plain"},
		{strings.Repeat("x", 129), "plain"},
	} {
		_, _, err := normalizeChallenge(tc.challenge, tc.method)
		require.ErrorIs(t, err, domainoauth.ErrInvalidRequest)
	}
}

func TestVerifyChallenge(t *testing.T) {
	require.True(t, verifyChallenge("", "", ""))
	require.True(t, verifyChallenge("", "", "anything"))
	require.True(t, verifyChallenge(testVerifier, "plain", testVerifier))
	require.True(t, verifyChallenge(s256(testVerifier), "S256", testVerifier))
	require.False(t, verifyChallenge(s256(testVerifier), "S256", ""))
	require.False(t, verifyChallenge(s256(testVerifier), "S256", testVerifier+"x"))
	require.False(t, verifyChallenge(testVerifier, "plain", s256(testVerifier)))
}

func TestFlow_PKCEBindsCodeToVerifier(t *testing.T) {
	h := newFlowHarness(t)
	h.credentials.items["alice@company.com"] = domain.Credential{UserID: "alice@company.com", EndpointURL: "https://r", APIKey: "k"}
	ctx := context.Background()

	issue := func() string {
		authURL, err := h.flow.Start(ctx, testSession, AuthorizeRequest{
			ClientID:            "mcp-client",
			RedirectURI:         testRedirect,
			CodeChallenge:       s256(testVerifier),
			CodeChallengeMethod: "S256",
		})
		require.NoError(t, err)
		state := queryParam(t, authURL, "state")
		result, err := h.flow.HandleCallback(ctx, testSession, CallbackRequest{Code: "google-code", State: state})
		require.NoError(t, err)
		code, _ := codeFromRedirect(t, result.RedirectURL)
		return code
	}

	_, err := h.flow.ExchangeCode(ctx, TokenRequest{GrantType: "authorization_code", Code: issue(), RedirectURI: testRedirect})
	oauthErr := requireOAuthError(t, err, "invalid_grant", http.StatusBadRequest)
	require.Equal(t, "PKCE verification failed", oauthErr.Description)

	_, err = h.flow.ExchangeCode(ctx, TokenRequest{GrantType: "authorization_code", Code: issue(), RedirectURI: testRedirect, CodeVerifier: "wrong-verifier"})
	requireOAuthError(t, err, "invalid_grant", http.StatusBadRequest)

	resp, err := h.flow.ExchangeCode(ctx, TokenRequest{GrantType: "authorization_code", Code: issue(), RedirectURI: testRedirect, CodeVerifier: testVerifier})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}
