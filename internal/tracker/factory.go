package tracker

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
)

// DefaultTimeout bounds every outbound tracker call.
const DefaultTimeout = 10 * time.Second

// Factory builds per-user tracker clients. It performs no I/O.
type Factory struct {
	httpClient *http.Client
	cache      repository.ReferenceCache
	cacheTTL   time.Duration
	tracer     trace.Tracer
	logger     *zap.Logger
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(client *http.Client) FactoryOption {
	return func(f *Factory) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithReferenceCache enables caching of projects and activities.
func WithReferenceCache(cache repository.ReferenceCache, ttl time.Duration) FactoryOption {
	return func(f *Factory) {
		f.cache = cache
		f.cacheTTL = ttl
	}
}

func WithTracer(tracer trace.Tracer) FactoryOption {
	return func(f *Factory) {
		if tracer != nil {
			f.tracer = tracer
		}
	}
}

func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory constructs a Factory whose clients share one HTTP client.
func NewFactory(timeout time.Duration, opts ...FactoryOption) *Factory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Factory{
		httpClient: &http.Client{Timeout: timeout},
		tracer:     defaultTracer(),
		logger:     zap.L(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateForUser binds a client to the credential's endpoint and API key.
func (f *Factory) CreateForUser(cred domain.Credential) API {
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cred.EndpointURL), "/"),
		apiKey:     cred.APIKey,
		httpClient: f.httpClient,
		tracer:     f.tracer,
	}
	if f.cache == nil {
		return client
	}
	return &CachedClient{
		API:    client,
		cache:  f.cache,
		ttl:    f.cacheTTL,
		userID: cred.UserID,
		logger: f.logger,
	}
}
