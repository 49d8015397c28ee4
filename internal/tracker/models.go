package tracker

import "encoding/json"

// Ref is the {id, name} pair the tracker embeds for related records.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// User is the account bound to an API key.
type User struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	Mail      string `json:"mail,omitempty"`
	Admin     bool   `json:"admin,omitempty"`
}

type Project struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Parent *Ref   `json:"parent,omitempty"`
}

type Issue struct {
	ID             int      `json:"id"`
	Subject        string   `json:"subject"`
	Project        *Ref     `json:"project,omitempty"`
	Status         Ref      `json:"status"`
	AssignedTo     *Ref     `json:"assigned_to"`
	DoneRatio      int      `json:"done_ratio"`
	EstimatedHours *float64 `json:"estimated_hours"`
	CreatedOn      string   `json:"created_on"`
	UpdatedOn      string   `json:"updated_on"`
}

// IssueDetails is a single issue with its optional include sections kept verbatim.
type IssueDetails struct {
	Issue
	Description     string          `json:"description,omitempty"`
	Tracker         *Ref            `json:"tracker,omitempty"`
	Priority        *Ref            `json:"priority,omitempty"`
	Author          *Ref            `json:"author,omitempty"`
	StartDate       string          `json:"start_date,omitempty"`
	DueDate         string          `json:"due_date,omitempty"`
	SpentHours      *float64        `json:"spent_hours,omitempty"`
	Children        json.RawMessage `json:"children,omitempty"`
	Attachments     json.RawMessage `json:"attachments,omitempty"`
	Relations       json.RawMessage `json:"relations,omitempty"`
	Changesets      json.RawMessage `json:"changesets,omitempty"`
	Journals        json.RawMessage `json:"journals,omitempty"`
	Watchers        json.RawMessage `json:"watchers,omitempty"`
	AllowedStatuses json.RawMessage `json:"allowed_statuses,omitempty"`
}

type Activity struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	Active    bool   `json:"active"`
}

type TimeEntry struct {
	ID        int     `json:"id"`
	Hours     float64 `json:"hours"`
	SpentOn   string  `json:"spent_on"`
	Comments  string  `json:"comments"`
	Project   *Ref    `json:"project,omitempty"`
	Issue     *Ref    `json:"issue,omitempty"`
	Activity  *Ref    `json:"activity,omitempty"`
	User      *Ref    `json:"user,omitempty"`
	CreatedOn string  `json:"created_on,omitempty"`
	UpdatedOn string  `json:"updated_on,omitempty"`
}

// IssueQuery filters the open issues assigned to one user.
type IssueQuery struct {
	AssignedToID int
	ProjectID    *int
	Limit        int
}

// TimeEntryQuery filters time entries of one user.
type TimeEntryQuery struct {
	UserID    int
	From      string
	To        string
	ProjectID *int
	Limit     int
}

// NewTimeEntry is the payload for logging time on an issue.
type NewTimeEntry struct {
	IssueID    int     `json:"issue_id"`
	Hours      float64 `json:"hours"`
	Comments   string  `json:"comments"`
	ActivityID int     `json:"activity_id"`
	SpentOn    string  `json:"spent_on"`
	UserID     int     `json:"user_id,omitempty"`
}
