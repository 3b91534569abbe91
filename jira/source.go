package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/proref"
	"github.com/randalmurphal/proref/ticket"
)

var _ proref.Source = (*Source)(nil)

// Source connects the pipeline to a Jira instance: it fetches issues as
// tickets and publishes generated content as issue comments.
type Source struct {
	client *Client
	logger *slog.Logger
}

// NewSource returns a Source over client.
func NewSource(client *Client) *Source {
	return &Source{client: client, logger: client.logger}
}

// Name returns "jira".
func (s *Source) Name() string { return "jira" }

// Fetch runs q.Expression, or the configured backlog query, and converts
// each issue to a ticket. q.IDs restricts the search to those issue keys.
func (s *Source) Fetch(ctx context.Context, q proref.Query) ([]ticket.Raw, error) {
	jql, err := s.jql(q)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.client.cfg.MaxResults
	}
	limit = max(limit, len(q.IDs))

	issues, err := s.client.Search(ctx, jql, limit)
	if err != nil {
		return nil, err
	}

	raws := make([]ticket.Raw, 0, len(issues))
	for i := range issues {
		raws = append(raws, s.toRaw(&issues[i]))
	}
	s.logger.Info("fetched jira issues", "jql", jql, "issues", len(raws))
	return raws, nil
}

// PublishComment posts markdown on the issue and returns the comment id.
func (s *Source) PublishComment(ctx context.Context, ticketID, markdown string) (string, error) {
	c, err := s.client.AddComment(ctx, ticketID, markdown)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *Source) jql(q proref.Query) (string, error) {
	base := strings.TrimSpace(q.Expression)
	if base == "" {
		base = s.client.cfg.BacklogJQL()
	}
	if len(q.IDs) == 0 {
		if base == "" {
			return "", ErrNoQuery
		}
		return base, nil
	}

	for _, id := range q.IDs {
		if !ValidateIssueKey(id) {
			return "", fmt.Errorf("%w: %q", ErrIssueKeyInvalid, id)
		}
	}
	keys := "key in (" + strings.Join(q.IDs, ", ") + ")"
	if strings.TrimSpace(q.Expression) == "" {
		return keys, nil
	}
	return "(" + q.Expression + ") AND " + keys, nil
}

// toRaw converts an issue. Unreadable rich text is logged and left empty
// rather than failing the whole fetch.
func (s *Source) toRaw(issue *Issue) ticket.Raw {
	f := &issue.Fields
	raw := ticket.Raw{
		ID:          issue.Key,
		Title:       f.Summary,
		Description: s.richText(issue.Key, "description", f.Description),
		URL:         s.client.BaseURL() + "/browse/" + issue.Key,
	}
	if f.Status != nil {
		raw.Status = f.Status.Name
	}
	if f.IssueType != nil {
		raw.IssueType = f.IssueType.Name
	}
	if t, err := f.UpdatedTime(); err == nil {
		raw.UpdatedAt = t
	}

	if id := s.client.cfg.AcceptanceCriteriaField; id != "" {
		if v, ok := f.Custom[id]; ok {
			var val any
			if err := json.Unmarshal(v, &val); err == nil {
				raw.AcceptanceCriteria = s.richText(issue.Key, id, val)
			}
		}
	}
	return raw
}

// richText returns a description-like field as text. Strings are Wiki
// Markup (API v2); objects are ADF (API v3).
func (s *Source) richText(key, field string, v any) string {
	if str, ok := v.(string); ok {
		return strings.TrimSpace(WikiToMarkdown(str))
	}
	text, err := ADFToText(v)
	if err != nil {
		s.logger.Warn("unreadable jira rich text", "ticket", key, "field", field, "error", err)
		return ""
	}
	return text
}
