package tools

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/policy"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/tracker"
)

// Tool names exposed to MCP clients.
const (
	ToolListProjects    = "list_projects"
	ToolListIssues      = "list_issues"
	ToolGetIssueDetails = "get_issue_details"
	ToolListActivities  = "list_activities"
	ToolLogTime         = "log_time"
	ToolListTimeEntries = "list_time_entries"
)

var failureMessages = map[string]string{
	ToolListProjects:    "Failed to list projects",
	ToolListIssues:      "Failed to list issues",
	ToolGetIssueDetails: "Failed to get issue details",
	ToolListActivities:  "Failed to fetch time entry activities",
	ToolLogTime:         "Failed to log time entry",
	ToolListTimeEntries: "Failed to retrieve time entries",
}

// TrackerFactory binds a tracker client to a stored credential.
type TrackerFactory interface {
	CreateForUser(cred domain.Credential) tracker.API
}

var _ TrackerFactory = (*tracker.Factory)(nil)

// Failure is the payload returned to MCP clients when a tool call fails.
type Failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewFailure describes err in the shape every tool uses for errors.
func NewFailure(tool string, err error) Failure {
	msg, ok := failureMessages[tool]
	if !ok {
		msg = "Tool execution failed"
	}
	cause := "unknown error"
	if err != nil {
		cause = err.Error()
	}
	return Failure{Success: false, Message: msg, Error: cause}
}

type ProjectsResult struct {
	Success  bool              `json:"success"`
	Projects []tracker.Project `json:"projects"`
}

type IssuesResult struct {
	Success bool            `json:"success"`
	Issues  []tracker.Issue `json:"issues"`
}

type IssueResult struct {
	Success bool                  `json:"success"`
	Issue   *tracker.IssueDetails `json:"issue"`
}

type ActivitiesResult struct {
	Success    bool               `json:"success"`
	Activities []tracker.Activity `json:"activities"`
}

type TimeEntryResult struct {
	Success   bool               `json:"success"`
	TimeEntry *tracker.TimeEntry `json:"time_entry"`
}

type TimeEntriesResult struct {
	Success     bool                `json:"success"`
	TimeEntries []tracker.TimeEntry `json:"time_entries"`
	Summary     Summary             `json:"summary"`
	Period      Period              `json:"period"`
}

// Period echoes the filters a time entry listing was computed for.
type Period struct {
	From          *string `json:"from"`
	To            *string `json:"to"`
	ProjectFilter *int    `json:"project_filter"`
}

// Service runs the tracker tools on behalf of an authenticated principal.
type Service struct {
	factory TrackerFactory
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(factory TrackerFactory, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		factory: factory,
		logger:  logger,
		tracer:  otel.Tracer("redmine-mcp-gateway/tools"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListProjects(ctx context.Context, principal domain.Principal, req ListProjectsRequest) (*ProjectsResult, error) {
	ctx, span := s.startSpan(ctx, ToolListProjects)
	defer span.End()

	api := s.factory.CreateForUser(principal.Credential)
	if _, err := s.resolveTarget(ctx, api, principal, req.UserID); err != nil {
		return nil, recordErr(span, err)
	}
	projects, err := api.ListProjects(ctx)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return &ProjectsResult{Success: true, Projects: projects}, nil
}

// ListIssues returns the open issues assigned to the target user.
func (s *Service) ListIssues(ctx context.Context, principal domain.Principal, req ListIssuesRequest) (*IssuesResult, error) {
	ctx, span := s.startSpan(ctx, ToolListIssues)
	defer span.End()

	if err := req.Normalize(); err != nil {
		return nil, recordErr(span, err)
	}
	api := s.factory.CreateForUser(principal.Credential)
	target, err := s.resolveTarget(ctx, api, principal, req.UserID)
	if err != nil {
		return nil, recordErr(span, err)
	}
	issues, err := api.ListIssues(ctx, tracker.IssueQuery{
		AssignedToID: target,
		ProjectID:    req.ProjectID,
		Limit:        *req.Limit,
	})
	if err != nil {
		return nil, recordErr(span, err)
	}
	return &IssuesResult{Success: true, Issues: issues}, nil
}

func (s *Service) GetIssueDetails(ctx context.Context, principal domain.Principal, req GetIssueDetailsRequest) (*IssueResult, error) {
	ctx, span := s.startSpan(ctx, ToolGetIssueDetails)
	defer span.End()

	if err := req.Normalize(); err != nil {
		return nil, recordErr(span, err)
	}
	span.SetAttributes(attribute.Int("issue.id", req.IssueID))
	api := s.factory.CreateForUser(principal.Credential)
	if _, err := s.resolveTarget(ctx, api, principal, req.UserID); err != nil {
		return nil, recordErr(span, err)
	}
	issue, err := api.GetIssue(ctx, req.IssueID, req.Include)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return &IssueResult{Success: true, Issue: issue}, nil
}

func (s *Service) ListActivities(ctx context.Context, principal domain.Principal, req ListActivitiesRequest) (*ActivitiesResult, error) {
	ctx, span := s.startSpan(ctx, ToolListActivities)
	defer span.End()

	api := s.factory.CreateForUser(principal.Credential)
	if _, err := s.resolveTarget(ctx, api, principal, req.UserID); err != nil {
		return nil, recordErr(span, err)
	}
	activities, err := api.ListActivities(ctx)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return &ActivitiesResult{Success: true, Activities: activities}, nil
}

// LogTime records hours against an issue. An admin naming another user logs
// the entry on that user's behalf.
func (s *Service) LogTime(ctx context.Context, principal domain.Principal, req LogTimeRequest) (*TimeEntryResult, error) {
	ctx, span := s.startSpan(ctx, ToolLogTime)
	defer span.End()

	if err := req.Normalize(s.now()); err != nil {
		return nil, recordErr(span, err)
	}
	api := s.factory.CreateForUser(principal.Credential)
	entry := tracker.NewTimeEntry{
		IssueID:    req.IssueID,
		Hours:      req.Hours,
		Comments:   req.Comment,
		ActivityID: req.ActivityID,
		SpentOn:    req.SpentOn,
	}
	if requested(req.UserID) {
		target, self, err := s.resolve(ctx, api, principal, req.UserID)
		if err != nil {
			return nil, recordErr(span, err)
		}
		if !self {
			entry.UserID = target
		}
	}

	created, err := api.CreateTimeEntry(ctx, entry)
	if err != nil {
		return nil, recordErr(span, err)
	}
	s.log().Info("time entry logged",
		zap.String("user_id", principal.UserID),
		zap.Int("issue_id", req.IssueID),
		zap.Float64("hours", req.Hours),
		zap.Int("on_behalf_of", entry.UserID),
	)
	return &TimeEntryResult{Success: true, TimeEntry: created}, nil
}

// ListTimeEntries returns the target user's entries with summary statistics.
func (s *Service) ListTimeEntries(ctx context.Context, principal domain.Principal, req ListTimeEntriesRequest) (*TimeEntriesResult, error) {
	ctx, span := s.startSpan(ctx, ToolListTimeEntries)
	defer span.End()

	if err := req.Normalize(); err != nil {
		return nil, recordErr(span, err)
	}
	api := s.factory.CreateForUser(principal.Credential)
	target, err := s.resolveTarget(ctx, api, principal, req.UserID)
	if err != nil {
		return nil, recordErr(span, err)
	}
	entries, err := api.ListTimeEntries(ctx, tracker.TimeEntryQuery{
		UserID:    target,
		From:      req.From,
		To:        req.To,
		ProjectID: req.ProjectID,
		Limit:     *req.Limit,
	})
	if err != nil {
		return nil, recordErr(span, err)
	}

	return &TimeEntriesResult{
		Success:     true,
		TimeEntries: entries,
		Summary:     Summarize(entries),
		Period: Period{
			From:          optionalString(req.From),
			To:            optionalString(req.To),
			ProjectFilter: req.ProjectID,
		},
	}, nil
}

// resolveTarget returns the tracker user id a call acts on.
func (s *Service) resolveTarget(ctx context.Context, api tracker.API, principal domain.Principal, userID *string) (int, error) {
	target, _, err := s.resolve(ctx, api, principal, userID)
	return target, err
}

func (s *Service) resolve(ctx context.Context, api tracker.API, principal domain.Principal, userID *string) (int, bool, error) {
	current, err := api.CurrentUser(ctx)
	if err != nil {
		return 0, false, err
	}
	if !requested(userID) {
		return current.ID, true, nil
	}

	raw := strings.TrimSpace(*userID)
	if raw == strconv.Itoa(current.ID) || raw == principal.UserID {
		return current.ID, true, nil
	}
	if err := policy.AssertCanQuery(principal, &raw); err != nil {
		s.log().Warn("cross-user query denied",
			zap.String("user_id", principal.UserID),
			zap.String("target", raw),
		)
		return 0, false, err
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false, domain.NewValidationError("user_id", "must be a tracker user id")
	}
	return id, false, nil
}

func (s *Service) startSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, "tools."+tool, trace.WithAttributes(attribute.String("mcp.tool", tool)))
}

func (s *Service) log() *zap.Logger {
	if s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func recordErr(span trace.Span, err error) error {
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func requested(userID *string) bool {
	return userID != nil && strings.TrimSpace(*userID) != ""
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
