package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/service/tools"
)

var includeSections = []string{
	"children", "attachments", "relations", "changesets", "journals", "watchers", "allowed_statuses",
}

func userIDOption() mcp.ToolOption {
	return mcp.WithString("user_id",
		mcp.Description("Tracker user id to act for. Only administrators may name another user."),
	)
}

func (s *Server) registerTools() {
	s.addTool(mcp.NewTool(tools.ToolListProjects,
		mcp.WithDescription("List the Redmine projects the current user is a member of."),
		userIDOption(),
	), s.listProjects)

	s.addTool(mcp.NewTool(tools.ToolListIssues,
		mcp.WithDescription("List open Redmine issues assigned to the user, optionally limited to one project. Ask the user which project to use (see list_projects) rather than querying every project."),
		mcp.WithNumber("project_id", mcp.Description("Restrict to this project id")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of issues (1-100, default 25)"), mcp.Min(1), mcp.Max(100)),
		userIDOption(),
	), s.listIssues)

	s.addTool(mcp.NewTool(tools.ToolGetIssueDetails,
		mcp.WithDescription("Get the details of one Redmine issue, including description, status, priority, assignee and dates."),
		mcp.WithNumber("issue_id", mcp.Required(), mcp.Description("Issue id")),
		mcp.WithArray("include",
			mcp.Description("Extra sections to include"),
			mcp.Items(map[string]any{"type": "string", "enum": includeSections}),
		),
		userIDOption(),
	), s.getIssueDetails)

	s.addTool(mcp.NewTool(tools.ToolListActivities,
		mcp.WithDescription("List the time entry activities available when logging time."),
		userIDOption(),
	), s.listActivities)

	s.addTool(mcp.NewTool(tools.ToolLogTime,
		mcp.WithDescription("Log time spent on a Redmine issue. Ask the user for the hours, a comment describing the work and the activity (see list_activities)."),
		mcp.WithNumber("issue_id", mcp.Required(), mcp.Description("Issue id")),
		mcp.WithNumber("hours", mcp.Required(), mcp.Description("Hours spent (0.1-24)"), mcp.Min(0.1), mcp.Max(24)),
		mcp.WithString("comment", mcp.Required(), mcp.Description("Description of the work done"), mcp.MaxLength(1000)),
		mcp.WithNumber("activity_id", mcp.Required(), mcp.Description("Time entry activity id")),
		mcp.WithString("spent_on", mcp.Description("Date in YYYY-MM-DD format, defaults to today")),
		userIDOption(),
	), s.logTime)

	s.addTool(mcp.NewTool(tools.ToolListTimeEntries,
		mcp.WithDescription("List time entries with optional date filtering, plus totals per project, ISO week and day."),
		mcp.WithString("from", mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (1-100, default 100)"), mcp.Min(1), mcp.Max(100)),
		mcp.WithNumber("project_id", mcp.Description("Restrict to this project id")),
		userIDOption(),
	), s.listTimeEntries)
}

func (s *Server) listProjects(ctx context.Context, p domain.Principal, args map[string]any) (any, error) {
	userID, err := userIDArg(args)
	if err != nil {
		return nil, err
	}
	return s.tools.ListProjects(ctx, p, tools.ListProjectsRequest{UserID: userID})
}

func (s *Server) listIssues(ctx context.Context, p domain.Principal, args map[string]any) (any, error) {
	var req tools.ListIssuesRequest
	var err error
	if req.ProjectID, err = optionalInt(args, "project_id"); err != nil {
		return nil, err
	}
	if req.Limit, err = optionalInt(args, "limit"); err != nil {
		return nil, err
	}
	if req.UserID, err = userIDArg(args); err != nil {
		return nil, err
	}
	return s.tools.ListIssues(ctx, p, req)
}

func (s *Server) getIssueDetails(ctx context.Context, p domain.Principal, args map[string]any) (any, error) {
	var req tools.GetIssueDetailsRequest
	var err error
	if req.IssueID, err = requiredInt(args, "issue_id"); err != nil {
		return nil, err
	}
	if req.Include, err = stringList(args, "include"); err != nil {
		return nil, err
	}
	if req.UserID, err = userIDArg(args); err != nil {
		return nil, err
	}
	return s.tools.GetIssueDetails(ctx, p, req)
}

func (s *Server) listActivities(ctx context.Context, p domain.Principal, args map[string]any) (any, error) {
	userID, err := userIDArg(args)
	if err != nil {
		return nil, err
	}
	return s.tools.ListActivities(ctx, p, tools.ListActivitiesRequest{UserID: userID})
}

func (s *Server) logTime(ctx context.Context, p domain.Principal, args map[string]any) (any, error) {
	var req tools.LogTimeRequest
	var err error
	if req.IssueID, err = requiredInt(args, "issue_id"); err != nil {
		return nil, err
	}
	if req.Hours, err = requiredFloat(args, "hours"); err != nil {
		return nil, err
	}
	if req.Comment, err = stringArg(args, "comment"); err != nil {
		return nil, err
	}
	if req.ActivityID, err = requiredInt(args, "activity_id"); err != nil {
		return nil, err
	}
	if req.SpentOn, err = stringArg(args, "spent_on"); err != nil {
		return nil, err
	}
	if req.UserID, err = userIDArg(args); err != nil {
		return nil, err
	}
	return s.tools.LogTime(ctx, p, req)
}

func (s *Server) listTimeEntries(ctx context.Context, p domain.Principal, args map[string]any) (any, error) {
	var req tools.ListTimeEntriesRequest
	var err error
	if req.From, err = stringArg(args, "from"); err != nil {
		return nil, err
	}
	if req.To, err = stringArg(args, "to"); err != nil {
		return nil, err
	}
	if req.Limit, err = optionalInt(args, "limit"); err != nil {
		return nil, err
	}
	if req.ProjectID, err = optionalInt(args, "project_id"); err != nil {
		return nil, err
	}
	if req.UserID, err = userIDArg(args); err != nil {
		return nil, err
	}
	return s.tools.ListTimeEntries(ctx, p, req)
}
