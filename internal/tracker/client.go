package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

const (
	apiKeyHeader    = "X-Redmine-API-Key"
	maxResponseSize = 4 << 20
)

// API is the subset of tracker operations used by the tool layer.
type API interface {
	CurrentUser(ctx context.Context) (*User, error)
	ListProjects(ctx context.Context) ([]Project, error)
	ListIssues(ctx context.Context, q IssueQuery) ([]Issue, error)
	GetIssue(ctx context.Context, id int, include []string) (*IssueDetails, error)
	ListActivities(ctx context.Context) ([]Activity, error)
	ListTimeEntries(ctx context.Context, q TimeEntryQuery) ([]TimeEntry, error)
	CreateTimeEntry(ctx context.Context, entry NewTimeEntry) (*TimeEntry, error)
	EndpointURL() string
}

// Client talks to one tracker endpoint with one user's API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

var _ API = (*Client)(nil)

// EndpointURL returns the tracker base URL the client is bound to.
func (c *Client) EndpointURL() string { return c.baseURL }

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, "current_user", http.MethodGet, "/users/current.json", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListProjects returns the projects the user is a member of.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out struct {
		Projects []Project `json:"projects"`
	}
	q := url.Values{"membership": {"true"}, "limit": {"100"}}
	if err := c.do(ctx, "list_projects", http.MethodGet, "/projects.json", q, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Projects), nil
}

// ListIssues returns open issues assigned to q.AssignedToID.
func (c *Client) ListIssues(ctx context.Context, q IssueQuery) ([]Issue, error) {
	params := url.Values{
		"assigned_to_id": {strconv.Itoa(q.AssignedToID)},
		"status_id":      {"open"},
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.ProjectID != nil {
		params.Set("project_id", strconv.Itoa(*q.ProjectID))
	}
	var out struct {
		Issues []Issue `json:"issues"`
	}
	if err := c.do(ctx, "list_issues", http.MethodGet, "/issues.json", params, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Issues), nil
}

func (c *Client) GetIssue(ctx context.Context, id int, include []string) (*IssueDetails, error) {
	var params url.Values
	if len(include) > 0 {
		params = url.Values{"include": {strings.Join(include, ",")}}
	}
	var out struct {
		Issue IssueDetails `json:"issue"`
	}
	err := c.do(ctx, "get_issue", http.MethodGet, fmt.Sprintf("/issues/%d.json", id), params, nil, &out)
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) && upstream.Status == http.StatusNotFound {
			return nil, &domain.NotFoundError{Resource: "issue", ID: strconv.Itoa(id)}
		}
		return nil, err
	}
	return &out.Issue, nil
}

func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	var out struct {
		Activities []Activity `json:"time_entry_activities"`
	}
	if err := c.do(ctx, "list_activities", http.MethodGet, "/enumerations/time_entry_activities.json", nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Activities), nil
}

func (c *Client) ListTimeEntries(ctx context.Context, q TimeEntryQuery) ([]TimeEntry, error) {
	params := url.Values{"user_id": {strconv.Itoa(q.UserID)}}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.ProjectID != nil {
		params.Set("project_id", strconv.Itoa(*q.ProjectID))
	}
	var out struct {
		TimeEntries []TimeEntry `json:"time_entries"`
	}
	if err := c.do(ctx, "list_time_entries", http.MethodGet, "/time_entries.json", params, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.TimeEntries), nil
}

// CreateTimeEntry logs time on an issue and returns the created entry.
func (c *Client) CreateTimeEntry(ctx context.Context, entry NewTimeEntry) (*TimeEntry, error) {
	payload := map[string]NewTimeEntry{"time_entry": entry}
	var out struct {
		TimeEntry *TimeEntry `json:"time_entry"`
	}
	if err := c.do(ctx, "create_time_entry", http.MethodPost, "/time_entries.json", nil, payload, &out); err != nil {
		return nil, err
	}
	if out.TimeEntry == nil {
		// Some tracker versions answer 201 with an empty body.
		return &TimeEntry{
			Hours:    entry.Hours,
			SpentOn:  entry.SpentOn,
			Comments: entry.Comments,
			Issue:    &Ref{ID: entry.IssueID},
			Activity: &Ref{ID: entry.ActivityID},
		}, nil
	}
	return out.TimeEntry, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, out any) error {
	ctx, span := c.tracer.Start(ctx, "tracker."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &domain.UpstreamError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return &domain.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &domain.UpstreamError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return &domain.UpstreamError{Op: op, Status: resp.StatusCode, Err: upstreamMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.UpstreamError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// upstreamMessage extracts the tracker's {"errors": [...]} list when present.
func upstreamMessage(raw []byte) error {
	var payload struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Errors) > 0 {
		return errors.New(strings.Join(payload.Errors, ", "))
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func defaultTracer() trace.Tracer {
	return otel.Tracer("github.com/smallbiznis/redmine-mcp-gateway/internal/tracker")
}
