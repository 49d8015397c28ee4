package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
)

// ResourcePath is where the MCP endpoint is mounted.
const ResourcePath = "/mcp"

// DiscoveryService builds responses for the well-known metadata endpoints.
type DiscoveryService struct {
	baseURL string
}

func NewDiscoveryService(cfg config.Config) *DiscoveryService {
	return &DiscoveryService{baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

// ProtectedResourceMetadata follows RFC 9728.
type ProtectedResourceMetadata struct {
	Resource                          string   `json:"resource"`
	AuthorizationServers              []string `json:"authorization_servers"`
	BearerMethodsSupported            []string `json:"bearer_methods_supported"`
	ResourceSigningAlgValuesSupported []string `json:"resource_signing_alg_values_supported"`
}

// AuthorizationServerMetadata follows RFC 8414.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// BaseURL prefers the configured public URL and otherwise derives one from
// the request, honoring X-Forwarded-Proto and X-Forwarded-Host.
func (s *DiscoveryService) BaseURL(r *http.Request) string {
	if s != nil && s.baseURL != "" {
		return s.baseURL
	}
	return fmt.Sprintf("%s://%s", schemeOnly(r), hostWithPort(r))
}

// ResourceMetadataURL is advertised in WWW-Authenticate challenges.
func (s *DiscoveryService) ResourceMetadataURL(r *http.Request) string {
	return s.BaseURL(r) + "/.well-known/oauth-protected-resource"
}

func (s *DiscoveryService) ProtectedResource(r *http.Request) ProtectedResourceMetadata {
	base := s.BaseURL(r)
	return ProtectedResourceMetadata{
		Resource:                          base + ResourcePath,
		AuthorizationServers:              []string{base},
		BearerMethodsSupported:            []string{"header"},
		ResourceSigningAlgValuesSupported: []string{"HS256"},
	}
}

func (s *DiscoveryService) AuthorizationServer(r *http.Request) AuthorizationServerMetadata {
	base := s.BaseURL(r)
	return AuthorizationServerMetadata{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/oauth/authorize",
		TokenEndpoint:                     base + "/oauth/token",
		RegistrationEndpoint:              base + "/oauth/register",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		TokenEndpointAuthMethodsSupported: []string{"none", "client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"plain", "S256"},
	}
}

func schemeOnly(r *http.Request) string {
	scheme := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0])
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme
}

func hostWithPort(r *http.Request) string {
	if fwd := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Host"), ",")[0]); fwd != "" {
		return fwd
	}
	return r.Host
}
