package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/metrics"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/service/tools"
)

const serverName = "redmine-mcp-gateway"

var errUnauthenticated = errors.New("authentication required")

type toolFunc func(ctx context.Context, principal domain.Principal, args map[string]any) (any, error)

// Server exposes the tracker tools over MCP.
type Server struct {
	mcp      *server.MCPServer
	tools    *tools.Service
	logger   *zap.Logger
	handlers map[string]server.ToolHandlerFunc
}

func NewServer(svc *tools.Service, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	s := &Server{
		mcp:      server.NewMCPServer(serverName, version, server.WithToolCapabilities(false), server.WithRecovery()),
		tools:    svc,
		logger:   logger,
		handlers: make(map[string]server.ToolHandlerFunc),
	}
	s.registerTools()
	return s
}

// Handler serves the streamable HTTP transport. The principal placed on the
// request context by the bearer middleware is carried into tool calls.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if p, ok := domain.PrincipalFromContext(r.Context()); ok {
				return domain.WithPrincipal(ctx, p)
			}
			return ctx
		}),
	)
}

func (s *Server) addTool(tool mcp.Tool, fn toolFunc) {
	h := s.wrap(tool.Name, fn)
	s.handlers[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

func (s *Server) wrap(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		principal, ok := domain.PrincipalFromContext(ctx)
		if !ok {
			return s.failure(name, errUnauthenticated, start), nil
		}

		result, err := fn(ctx, principal, request.GetArguments())
		if err != nil {
			return s.failure(name, err, start, zap.String("user_id", principal.UserID)), nil
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return s.failure(name, err, start, zap.String("user_id", principal.UserID)), nil
		}
		metrics.ToolCalls.WithLabelValues(name, "success").Inc()
		s.logger.Debug("tool call",
			zap.String("tool", name),
			zap.String("user_id", principal.UserID),
			zap.Duration("duration", time.Since(start)),
		)
		return mcp.NewToolResultText(string(payload)), nil
	}
}

func (s *Server) failure(name string, err error, start time.Time, fields ...zap.Field) *mcp.CallToolResult {
	outcome := "error"
	switch {
	case errors.Is(err, domain.ErrValidation):
		outcome = "invalid"
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, errUnauthenticated):
		outcome = "denied"
	}
	metrics.ToolCalls.WithLabelValues(name, outcome).Inc()

	fields = append(fields,
		zap.String("tool", name),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	if outcome == "error" {
		s.logger.Error("tool call failed", fields...)
	} else {
		s.logger.Info("tool call rejected", fields...)
	}

	payload, mErr := json.Marshal(tools.NewFailure(name, err))
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(payload))
}
