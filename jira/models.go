package jira

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// TimeFormat is the standard Jira timestamp format.
const TimeFormat = "2006-01-02T15:04:05.000-0700"

// APIVersion represents the Jira REST API version.
type APIVersion string

// API versions supported by the Jira REST API.
const (
	APIVersionAuto APIVersion = "auto"
	APIVersionV2   APIVersion = "v2"
	APIVersionV3   APIVersion = "v3"
)

// searchFields are the issue fields requested from search.
var searchFields = []string{"summary", "description", "status", "updated", "issuetype", "labels"}

// Issue represents a Jira issue.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue used by the pipeline.
type IssueFields struct {
	Summary     string   `json:"summary"`
	Description any      `json:"description,omitempty"` // ADF (v3) or string (v2)
	Status      *Named   `json:"status,omitempty"`
	IssueType   *Named   `json:"issuetype,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Updated     string   `json:"updated,omitempty"`

	// Custom holds every customfield_* value by field id.
	Custom map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps custom fields raw.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type plain IssueFields
	if err := json.Unmarshal(data, (*plain)(f)); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if strings.HasPrefix(k, "customfield_") {
			if f.Custom == nil {
				f.Custom = make(map[string]json.RawMessage)
			}
			f.Custom[k] = v
		}
	}
	return nil
}

// Named is a status or issue type reference.
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UpdatedTime parses and returns the Updated timestamp.
func (f *IssueFields) UpdatedTime() (time.Time, error) {
	return ParseTime(f.Updated)
}

// Comment represents a Jira comment.
type Comment struct {
	ID      string `json:"id"`
	Self    string `json:"self,omitempty"`
	Body    any    `json:"body"` // ADF (v3) or string (v2)
	Created string `json:"created"`
}

// addCommentRequest is the body of a comment POST.
type addCommentRequest struct {
	Body any `json:"body"` // ADF or string
}

// searchResponse covers both search APIs: the legacy offset-paged
// /search and the token-paged /search/jql.
type searchResponse struct {
	StartAt       int     `json:"startAt"`
	MaxResults    int     `json:"maxResults"`
	Total         int     `json:"total"`
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	IsLast        *bool   `json:"isLast,omitempty"`
}

// issueKeyRegex validates Jira issue keys (e.g., PROJ-123).
var issueKeyRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)

// ValidateIssueKey validates a Jira issue key format.
func ValidateIssueKey(key string) bool {
	return issueKeyRegex.MatchString(key)
}

// ParseTime parses a Jira timestamp string.
// Jira uses ISO 8601 format with timezone offset.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	formats := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Value: s}
}

// FormatTime formats a time.Time as a Jira timestamp string.
func FormatTime(t time.Time) string {
	return t.Format(TimeFormat)
}
