package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/smallbiznis/redmine-mcp-gateway/internal/adapter/cache"
	oauthadapter "github.com/smallbiznis/redmine-mcp-gateway/internal/adapter/oauth"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/bootstrap"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/crypto"
	domainoauth "github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
	httptransport "github.com/smallbiznis/redmine-mcp-gateway/internal/http"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/redmine-mcp-gateway/internal/http/middleware"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/jwt"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/mcpserver"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/metrics"
	apimiddleware "github.com/smallbiznis/redmine-mcp-gateway/internal/middleware"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/server"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/service"
	authservice "github.com/smallbiznis/redmine-mcp-gateway/internal/service/auth"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/service/tools"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/telemetry"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/tracker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (OAuth endpoints and MCP transport)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newCipher,
			newCredentialStore,
			newClientRepository,
			newRedisClient,
			newSessionStore,
			newCodeStore,
			newReferenceCache,
			newTokenService,
			newTokenIssuer,
			newTokenValidator,
			newIdentityProvider,
			authservice.NewFlow,
			newTrackerFactory,
			newToolService,
			newMCPServer,
			service.NewDiscoveryService,
			handler.NewOAuthHandler,
			handler.NewWellKnownHandler,
			handler.NewHealthHandler,
			httpmiddleware.NewAuth,
			newRateLimiter,
			newMetricsRegistry,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.AutoMigrate, startHTTPServer),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newCipher(cfg config.Config) (crypto.Cipher, error) {
	return crypto.NewSecretBox(cfg.EncryptionKey)
}

func newCredentialStore(pool *pgxpool.Pool, cipher crypto.Cipher) repository.CredentialStore {
	return repository.NewPostgresCredentialStore(pool, cipher)
}

func newClientRepository(pool *pgxpool.Pool) repository.ClientRepository {
	return repository.NewPostgresClientRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newSessionStore(client redis.UniversalClient) repository.SessionStore {
	return cacheadapter.NewRedisSessionStore(client)
}

func newCodeStore(client redis.UniversalClient, cfg config.Config) repository.AuthorizationCodeStore {
	return cacheadapter.NewRedisCodeStore(client, cfg.AuthCodeTTL)
}

func newReferenceCache(client redis.UniversalClient) repository.ReferenceCache {
	return cacheadapter.NewRedisReferenceCache(client)
}

func newTokenService(cfg config.Config) (*jwt.TokenService, error) {
	return jwt.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
}

func newTokenIssuer(tokens *jwt.TokenService) authservice.TokenIssuer {
	return tokens
}

func newTokenValidator(tokens *jwt.TokenService) httpmiddleware.TokenValidator {
	return tokens
}

func newIdentityProvider(cfg config.Config) (oauthadapter.IdentityProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return oauthadapter.NewGoogleClient(domainoauth.GoogleProviderConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
	}), nil
}

func newTrackerFactory(cfg config.Config, cache repository.ReferenceCache, provider *telemetry.Provider, logger *zap.Logger) *tracker.Factory {
	return tracker.NewFactory(cfg.TrackerTimeout,
		tracker.WithReferenceCache(cache, cfg.ReferenceCacheTTL),
		tracker.WithTracer(provider.Tracer()),
		tracker.WithLogger(logger),
	)
}

func newToolService(factory *tracker.Factory, logger *zap.Logger) *tools.Service {
	return tools.NewService(factory, logger)
}

func newMCPServer(svc *tools.Service, logger *zap.Logger) *mcpserver.Server {
	return mcpserver.NewServer(svc, version, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter("http", cfg.RateLimitRPM)
}

func newMetricsRegistry() prometheus.Gatherer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.RegisterCollectors(reg)
	return reg
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				logger.Info("http server listening", zap.String("addr", addr))
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
