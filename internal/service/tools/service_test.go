package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/policy"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/tracker"
)

type fakeAPI struct {
	current     tracker.User
	projects    []tracker.Project
	issues      []tracker.Issue
	activities  []tracker.Activity
	entries     []tracker.TimeEntry
	err         error
	issueQuery  tracker.IssueQuery
	entryQuery  tracker.TimeEntryQuery
	created     tracker.NewTimeEntry
	include     []string
	createCalls int
}

func (f *fakeAPI) EndpointURL() string { return "https://redmine.example.com" }

func (f *fakeAPI) CurrentUser(context.Context) (*tracker.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := f.current
	return &u, nil
}

func (f *fakeAPI) ListProjects(context.Context) ([]tracker.Project, error) {
	return f.projects, f.err
}

func (f *fakeAPI) ListIssues(_ context.Context, q tracker.IssueQuery) ([]tracker.Issue, error) {
	f.issueQuery = q
	return f.issues, f.err
}

func (f *fakeAPI) GetIssue(_ context.Context, id int, include []string) (*tracker.IssueDetails, error) {
	f.include = include
	if id == 404 {
		return nil, &domain.NotFoundError{Resource: "issue", ID: "404"}
	}
	return &tracker.IssueDetails{Issue: tracker.Issue{ID: id, Subject: "Broken login"}}, nil
}

func (f *fakeAPI) ListActivities(context.Context) ([]tracker.Activity, error) {
	return f.activities, f.err
}

func (f *fakeAPI) ListTimeEntries(_ context.Context, q tracker.TimeEntryQuery) ([]tracker.TimeEntry, error) {
	f.entryQuery = q
	return f.entries, f.err
}

func (f *fakeAPI) CreateTimeEntry(_ context.Context, e tracker.NewTimeEntry) (*tracker.TimeEntry, error) {
	f.createCalls++
	f.created = e
	return &tracker.TimeEntry{ID: 77, Hours: e.Hours, SpentOn: e.SpentOn, Comments: e.Comments}, nil
}

type fakeFactory struct {
	api *fakeAPI
}

func (f fakeFactory) CreateForUser(domain.Credential) tracker.API { return f.api }

var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newService(api *fakeAPI) *Service {
	return NewService(fakeFactory{api: api}, zap.NewNop(), WithClock(func() time.Time { return fixedNow }))
}

func userPrincipal() domain.Principal {
	return domain.Principal{UserID: "alice@company.com", Role: domain.RoleUser}
}

func adminPrincipal() domain.Principal {
	return domain.Principal{UserID: "bot@company.com", Role: domain.RoleAdmin, IsBot: true}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestListIssuesDefaultsToCaller(t *testing.T) {
	api := &fakeAPI{current: tracker.User{ID: 5}, issues: []tracker.Issue{{ID: 1, Subject: "A"}}}
	res, err := newService(api).ListIssues(context.Background(), userPrincipal(), ListIssuesRequest{ProjectID: intPtr(3)})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Issues, 1)
	require.Equal(t, 5, api.issueQuery.AssignedToID)
	require.Equal(t, 25, api.issueQuery.Limit)
	require.Equal(t, 3, *api.issueQuery.ProjectID)
}

func TestListIssuesValidation(t *testing.T) {
	svc := newService(&fakeAPI{current: tracker.User{ID: 5}})
	for _, req := range []ListIssuesRequest{
		{Limit: intPtr(101)},
		{Limit: intPtr(-1)},
		{Limit: intPtr(0)},
		{ProjectID: intPtr(0)},
	} {
		_, err := svc.ListIssues(context.Background(), userPrincipal(), req)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestCrossUserQueryRequiresAdmin(t *testing.T) {
	api := &fakeAPI{current: tracker.User{ID: 5}}
	svc := newService(api)

	_, err := svc.ListIssues(context.Background(), userPrincipal(), ListIssuesRequest{UserID: strPtr("9")})
	require.ErrorIs(t, err, domain.ErrAccessDenied)
	require.EqualError(t, err, policy.CrossUserDeniedMessage)

	_, err = svc.ListIssues(context.Background(), userPrincipal(), ListIssuesRequest{UserID: strPtr("5")})
	require.NoError(t, err)
	require.Equal(t, 5, api.issueQuery.AssignedToID)

	_, err = svc.ListIssues(context.Background(), userPrincipal(), ListIssuesRequest{UserID: strPtr("alice@company.com")})
	require.NoError(t, err)

	_, err = svc.ListTimeEntries(context.Background(), adminPrincipal(), ListTimeEntriesRequest{UserID: strPtr("9")})
	require.NoError(t, err)
	require.Equal(t, 9, api.entryQuery.UserID)

	_, err = svc.ListTimeEntries(context.Background(), adminPrincipal(), ListTimeEntriesRequest{UserID: strPtr("someone")})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetIssueDetailsInclude(t *testing.T) {
	api := &fakeAPI{current: tracker.User{ID: 5}}
	svc := newService(api)

	res, err := svc.GetIssueDetails(context.Background(), userPrincipal(), GetIssueDetailsRequest{
		IssueID: 12,
		Include: []string{"journals", " Attachments ", "journals"},
	})
	require.NoError(t, err)
	require.Equal(t, 12, res.Issue.ID)
	require.Equal(t, []string{"journals", "attachments"}, api.include)

	_, err = svc.GetIssueDetails(context.Background(), userPrincipal(), GetIssueDetailsRequest{IssueID: 12, Include: []string{"secrets"}})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.GetIssueDetails(context.Background(), userPrincipal(), GetIssueDetailsRequest{IssueID: 0})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.GetIssueDetails(context.Background(), userPrincipal(), GetIssueDetailsRequest{IssueID: 404})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLogTime(t *testing.T) {
	api := &fakeAPI{current: tracker.User{ID: 5}}
	svc := newService(api)

	res, err := svc.LogTime(context.Background(), userPrincipal(), LogTimeRequest{
		IssueID:    12,
		Hours:      1.5,
		Comment:    "  Fixed the login form  ",
		ActivityID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, 77, res.TimeEntry.ID)
	require.Equal(t, "2026-03-04", api.created.SpentOn)
	require.Equal(t, "Fixed the login form", api.created.Comments)
	require.Zero(t, api.created.UserID)

	_, err = svc.LogTime(context.Background(), adminPrincipal(), LogTimeRequest{
		IssueID: 12, Hours: 2, Comment: "pairing", ActivityID: 9, SpentOn: "2026-03-01", UserID: strPtr("42"),
	})
	require.NoError(t, err)
	require.Equal(t, 42, api.created.UserID)
	require.Equal(t, "2026-03-01", api.created.SpentOn)
}

func TestLogTimeValidation(t *testing.T) {
	api := &fakeAPI{current: tracker.User{ID: 5}}
	svc := newService(api)
	valid := LogTimeRequest{IssueID: 1, Hours: 1, Comment: "work", ActivityID: 1}

	cases := map[string]func(r *LogTimeRequest){
		"issue":       func(r *LogTimeRequest) { r.IssueID = 0 },
		"too few":     func(r *LogTimeRequest) { r.Hours = 0.05 },
		"too many":    func(r *LogTimeRequest) { r.Hours = 24.5 },
		"blank":       func(r *LogTimeRequest) { r.Comment = "   " },
		"long":        func(r *LogTimeRequest) { r.Comment = strings.Repeat("a", 1001) },
		"activity":    func(r *LogTimeRequest) { r.ActivityID = 0 },
		"bad date":    func(r *LogTimeRequest) { r.SpentOn = "04/03/2026" },
		"foreign use": func(r *LogTimeRequest) { r.UserID = strPtr("9") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := svc.LogTime(context.Background(), userPrincipal(), req)
			require.Error(t, err)
		})
	}
	require.Zero(t, api.createCalls)

	edge := valid
	edge.Hours = 24
	edge.Comment = strings.Repeat("a", 1000)
	_, err := svc.LogTime(context.Background(), userPrincipal(), edge)
	require.NoError(t, err)
}

func TestListTimeEntriesSummary(t *testing.T) {
	api := &fakeAPI{
		current: tracker.User{ID: 5},
		entries: []tracker.TimeEntry{
			{ID: 1, Hours: 2.333, SpentOn: "2026-03-02", Project: &tracker.Ref{ID: 1, Name: "Ops"}},
			{ID: 2, Hours: 1.111, SpentOn: "2026-03-02", Project: &tracker.Ref{ID: 2, Name: "Web"}},
			{ID: 3, Hours: 4, SpentOn: "2026-03-09", Project: &tracker.Ref{ID: 1, Name: "Ops"}},
		},
	}
	res, err := newService(api).ListTimeEntries(context.Background(), userPrincipal(), ListTimeEntriesRequest{
		From:      "2026-03-01",
		To:        "2026-03-31",
		ProjectID: intPtr(1),
	})
	require.NoError(t, err)
	require.Equal(t, 100, api.entryQuery.Limit)
	require.Equal(t, 5, api.entryQuery.UserID)

	s := res.Summary
	require.Equal(t, 7.44, s.TotalHours)
	require.Equal(t, 3, s.TotalEntries)
	require.Equal(t, 2, s.WorkingDays)
	require.Equal(t, 3.72, s.AverageHoursPerDay)
	require.Equal(t, map[string]float64{"Ops": 6.33, "Web": 1.11}, s.ProjectBreakdown)
	require.Equal(t, map[string]float64{"2026-W10": 3.44, "2026-W11": 4}, s.WeeklyBreakdown)
	require.Equal(t, map[string]float64{"2026-03-02": 3.44, "2026-03-09": 4}, s.DailyBreakdown)

	require.Equal(t, "2026-03-01", *res.Period.From)
	require.Equal(t, "2026-03-31", *res.Period.To)
	require.Equal(t, 1, *res.Period.ProjectFilter)
}

func TestListTimeEntriesValidation(t *testing.T) {
	svc := newService(&fakeAPI{current: tracker.User{ID: 5}})
	for _, req := range []ListTimeEntriesRequest{
		{From: "2026-03-10", To: "2026-03-01"},
		{From: "2026-13-01"},
		{Limit: intPtr(500)},
		{Limit: intPtr(0)},
	} {
		_, err := svc.ListTimeEntries(context.Background(), userPrincipal(), req)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	require.Zero(t, s.TotalHours)
	require.Zero(t, s.WorkingDays)
	require.Zero(t, s.AverageHoursPerDay)
	require.Empty(t, s.ProjectBreakdown)
}

func TestNewFailure(t *testing.T) {
	f := NewFailure(ToolLogTime, errors.New("issue is closed"))
	require.False(t, f.Success)
	require.Equal(t, "Failed to log time entry", f.Message)
	require.Equal(t, "issue is closed", f.Error)

	require.Equal(t, "Failed to fetch time entry activities", NewFailure(ToolListActivities, nil).Message)
}

func TestUpstreamErrorPropagates(t *testing.T) {
	api := &fakeAPI{err: &domain.UpstreamError{Op: "current_user", Status: 401}}
	_, err := newService(api).ListProjects(context.Background(), userPrincipal(), ListProjectsRequest{})
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, 401, upstream.Status)
}
