package tools

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

const (
	dateLayout = "2006-01-02"

	defaultIssueLimit     = 25
	defaultTimeEntryLimit = 100
	maxLimit              = 100

	minHours         = 0.1
	maxHours         = 24.0
	maxCommentLength = 1000
)

var allowedIncludes = map[string]struct{}{
	"children":         {},
	"attachments":      {},
	"relations":        {},
	"changesets":       {},
	"journals":         {},
	"watchers":         {},
	"allowed_statuses": {},
}

// ListProjectsRequest carries the optional impersonation target.
type ListProjectsRequest struct {
	UserID *string
}

// ListIssuesRequest lists issues assigned to the caller or an impersonated user.
// A nil Limit takes the default; an explicit value must lie in 1..100.
type ListIssuesRequest struct {
	ProjectID *int
	Limit     *int
	UserID    *string
}

// Normalize applies defaults and validates bounds.
func (r *ListIssuesRequest) Normalize() error {
	if err := normalizeLimit(&r.Limit, defaultIssueLimit); err != nil {
		return err
	}
	if r.ProjectID != nil && *r.ProjectID <= 0 {
		return domain.NewValidationError("project_id", "must be a positive integer")
	}
	return nil
}

type GetIssueDetailsRequest struct {
	IssueID int
	Include []string
	UserID  *string
}

func (r *GetIssueDetailsRequest) Normalize() error {
	if r.IssueID <= 0 {
		return domain.NewValidationError("issue_id", "must be a positive integer")
	}
	seen := make(map[string]struct{}, len(r.Include))
	include := make([]string, 0, len(r.Include))
	for _, raw := range r.Include {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, ok := allowedIncludes[name]; !ok {
			return domain.NewValidationError("include", "unsupported section "+name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		include = append(include, name)
	}
	r.Include = include
	return nil
}

type ListActivitiesRequest struct {
	UserID *string
}

type LogTimeRequest struct {
	IssueID    int
	Hours      float64
	Comment    string
	ActivityID int
	SpentOn    string
	UserID     *string
}

// Normalize validates the entry and defaults SpentOn to today.
func (r *LogTimeRequest) Normalize(today time.Time) error {
	if r.IssueID <= 0 {
		return domain.NewValidationError("issue_id", "must be a positive integer")
	}
	if r.Hours < minHours || r.Hours > maxHours {
		return domain.NewValidationError("hours", "must be between 0.1 and 24")
	}
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Comment == "" {
		return domain.NewValidationError("comment", "must not be blank")
	}
	if utf8.RuneCountInString(r.Comment) > maxCommentLength {
		return domain.NewValidationError("comment", "must be at most 1000 characters")
	}
	if r.ActivityID <= 0 {
		return domain.NewValidationError("activity_id", "must be a positive integer")
	}
	r.SpentOn = strings.TrimSpace(r.SpentOn)
	if r.SpentOn == "" {
		r.SpentOn = today.Format(dateLayout)
	} else if _, err := parseDate("spent_on", r.SpentOn); err != nil {
		return err
	}
	return nil
}

type ListTimeEntriesRequest struct {
	From      string
	To        string
	Limit     *int
	ProjectID *int
	UserID    *string
}

func (r *ListTimeEntriesRequest) Normalize() error {
	if err := normalizeLimit(&r.Limit, defaultTimeEntryLimit); err != nil {
		return err
	}
	if r.ProjectID != nil && *r.ProjectID <= 0 {
		return domain.NewValidationError("project_id", "must be a positive integer")
	}

	r.From = strings.TrimSpace(r.From)
	r.To = strings.TrimSpace(r.To)
	var from, to time.Time
	var err error
	if r.From != "" {
		if from, err = parseDate("from", r.From); err != nil {
			return err
		}
	}
	if r.To != "" {
		if to, err = parseDate("to", r.To); err != nil {
			return err
		}
	}
	if r.From != "" && r.To != "" && from.After(to) {
		return domain.NewValidationError("from", "must not be after to")
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func normalizeLimit(limit **int, def int) error {
	if *limit == nil {
		v := def
		*limit = &v
		return nil
	}
	if n := **limit; n < 1 || n > maxLimit {
		return domain.NewValidationError("limit", "must be between 1 and 100")
	}
	return nil
}
