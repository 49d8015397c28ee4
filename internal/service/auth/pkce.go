package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const (
	challengePlain = "plain"
	challengeS256  = "S256"
)

// normalizeChallenge validates the authorize-time PKCE parameters. A missing
// method defaults to plain (RFC 7636 §4.3).
func normalizeChallenge(challenge, method string) (string, string, error) {
	challenge = strings.TrimSpace(challenge)
	method = strings.TrimSpace(method)
	if challenge == "" {
		if method != "" {
			return "", "", invalidRequest("code_challenge_method without code_challenge")
		}
		return "", "", nil
	}
	switch method {
	case "":
		method = challengePlain
	case challengePlain, challengeS256:
	default:
		return "", "", invalidRequest("Unsupported code_challenge_method")
	}
	if n := len(challenge); n < 43 || n > 128 {
		return "", "", invalidRequest("code_challenge must be 43 to 128 characters")
	}
	return challenge, method, nil
}

// verifyChallenge reports whether verifier satisfies the stored challenge.
// Codes issued without a challenge accept any verifier.
func verifyChallenge(challenge, method, verifier string) bool {
	if challenge == "" {
		return true
	}
	if verifier == "" {
		return false
	}
	expected := verifier
	if method == challengeS256 {
		sum := sha256.Sum256([]byte(verifier))
		expected = base64.RawURLEncoding.EncodeToString(sum[:])
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
