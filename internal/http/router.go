package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/redmine-mcp-gateway/internal/http/middleware"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/mcpserver"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/middleware"
)

// RouterParams collects the router's dependencies.
type RouterParams struct {
	fx.In

	Config      config.Config
	Logger      *zap.Logger
	OAuth       *handler.OAuthHandler
	WellKnown   *handler.WellKnownHandler
	Health      *handler.HealthHandler
	Auth        *httpmiddleware.Auth
	MCP         *mcpserver.Server
	RateLimiter *middleware.RateLimiter `optional:"true"`
	Gatherer    prometheus.Gatherer
}

// NewRouter wires Gin routes and middleware.
func NewRouter(p RouterParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(p.Logger))
	r.Use(httpmiddleware.Metrics())
	r.Use(middleware.CORS(p.Config))
	r.Use(otelgin.Middleware(p.Config.ServiceName))
	r.SetHTMLTemplate(handler.Templates())

	r.GET("/health", p.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{})))

	limited := r.Group("/", p.RateLimiter.Handler())

	wellKnown := limited.Group("/.well-known")
	{
		wellKnown.GET("/oauth-protected-resource", p.WellKnown.ProtectedResource)
		wellKnown.GET("/oauth-authorization-server", p.WellKnown.AuthorizationServer)
	}

	oauth := limited.Group("/oauth")
	{
		oauth.POST("/register", p.OAuth.Register)
		oauth.GET("/authorize", p.OAuth.Authorize)
		oauth.GET("/google-callback", p.OAuth.GoogleCallback)
		oauth.POST("/google-callback", p.OAuth.SubmitCredentials)
		oauth.POST("/token", p.OAuth.Token)
	}

	mcpHandler := gin.WrapH(p.MCP.Handler())
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		limited.Handle(method, "/mcp", p.Auth.RequireBearer, mcpHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Route not found."})
	})

	return r
}
