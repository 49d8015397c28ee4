package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/service/tools"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/tracker"
)

type stubAPI struct {
	tracker.API
	issues  tracker.IssueQuery
	created tracker.NewTimeEntry
}

func (s *stubAPI) CurrentUser(context.Context) (*tracker.User, error) {
	return &tracker.User{ID: 5, Login: "alice"}, nil
}

func (s *stubAPI) ListProjects(context.Context) ([]tracker.Project, error) {
	return []tracker.Project{{ID: 1, Name: "Ops"}}, nil
}

func (s *stubAPI) ListIssues(_ context.Context, q tracker.IssueQuery) ([]tracker.Issue, error) {
	s.issues = q
	return []tracker.Issue{{ID: 10, Subject: "Broken login"}}, nil
}

func (s *stubAPI) CreateTimeEntry(_ context.Context, e tracker.NewTimeEntry) (*tracker.TimeEntry, error) {
	s.created = e
	return &tracker.TimeEntry{ID: 3, Hours: e.Hours, SpentOn: e.SpentOn}, nil
}

type stubFactory struct{ api *stubAPI }

func (f stubFactory) CreateForUser(domain.Credential) tracker.API { return f.api }

func newTestServer(api *stubAPI) *Server {
	svc := tools.NewService(stubFactory{api: api}, zap.NewNop())
	return NewServer(svc, "test", zap.NewNop())
}

func call(t *testing.T, s *Server, ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	handler, ok := s.handlers[name]
	require.True(t, ok, "tool %s not registered", name)

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := handler(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	return res, body
}

func principalCtx(role domain.Role) context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{UserID: "alice@company.com", Role: role})
}

func TestRegisteredTools(t *testing.T) {
	s := newTestServer(&stubAPI{})
	for _, name := range []string{
		tools.ToolListProjects, tools.ToolListIssues, tools.ToolGetIssueDetails,
		tools.ToolListActivities, tools.ToolLogTime, tools.ToolListTimeEntries,
	} {
		require.Contains(t, s.handlers, name)
	}
}

func TestListProjectsSuccess(t *testing.T) {
	s := newTestServer(&stubAPI{})
	res, body := call(t, s, principalCtx(domain.RoleUser), tools.ToolListProjects, nil)
	require.False(t, res.IsError)
	require.Equal(t, true, body["success"])
	require.Len(t, body["projects"], 1)
}

func TestListIssuesArguments(t *testing.T) {
	api := &stubAPI{}
	s := newTestServer(api)
	res, _ := call(t, s, principalCtx(domain.RoleUser), tools.ToolListIssues, map[string]any{
		"project_id": float64(7),
		"limit":      "10",
	})
	require.False(t, res.IsError)
	require.Equal(t, 7, *api.issues.ProjectID)
	require.Equal(t, 10, api.issues.Limit)
	require.Equal(t, 5, api.issues.AssignedToID)
}

func TestValidationFailurePayload(t *testing.T) {
	api := &stubAPI{}
	s := newTestServer(api)
	res, body := call(t, s, principalCtx(domain.RoleUser), tools.ToolLogTime, map[string]any{
		"issue_id":    float64(1),
		"hours":       float64(30),
		"comment":     "work",
		"activity_id": float64(9),
	})
	require.True(t, res.IsError)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Failed to log time entry", body["message"])
	require.Contains(t, body["error"], "hours")
	require.Zero(t, api.created.IssueID)
}

func TestExplicitZeroLimitRejected(t *testing.T) {
	api := &stubAPI{}
	s := newTestServer(api)
	res, body := call(t, s, principalCtx(domain.RoleUser), tools.ToolListIssues, map[string]any{"limit": float64(0)})
	require.True(t, res.IsError)
	require.Equal(t, "Failed to list issues", body["message"])
	require.Contains(t, body["error"], "limit")
	require.Zero(t, api.issues.Limit)

	res, _ = call(t, s, principalCtx(domain.RoleUser), tools.ToolListIssues, map[string]any{})
	require.False(t, res.IsError)
	require.Equal(t, 25, api.issues.Limit)
}

func TestMissingRequiredArgument(t *testing.T) {
	s := newTestServer(&stubAPI{})
	res, body := call(t, s, principalCtx(domain.RoleUser), tools.ToolGetIssueDetails, map[string]any{})
	require.True(t, res.IsError)
	require.Equal(t, "Failed to get issue details", body["message"])
	require.Contains(t, body["error"], "issue_id")
}

func TestCrossUserDenied(t *testing.T) {
	s := newTestServer(&stubAPI{})
	res, body := call(t, s, principalCtx(domain.RoleUser), tools.ToolListIssues, map[string]any{"user_id": "9"})
	require.True(t, res.IsError)
	require.Equal(t, "Failed to list issues", body["message"])
	require.Equal(t, "Access denied: Only administrators can query other users' data", body["error"])
}

func TestAdminLogsTimeForAnotherUser(t *testing.T) {
	api := &stubAPI{}
	s := newTestServer(api)
	res, body := call(t, s, principalCtx(domain.RoleAdmin), tools.ToolLogTime, map[string]any{
		"issue_id":    float64(1),
		"hours":       float64(2),
		"comment":     "pairing",
		"activity_id": float64(9),
		"spent_on":    "2026-03-02",
		"user_id":     float64(42),
	})
	require.False(t, res.IsError)
	require.Equal(t, true, body["success"])
	require.Equal(t, 42, api.created.UserID)
}

func TestUnauthenticatedCall(t *testing.T) {
	s := newTestServer(&stubAPI{})
	res, body := call(t, s, context.Background(), tools.ToolListProjects, nil)
	require.True(t, res.IsError)
	require.Equal(t, "authentication required", body["error"])
}
