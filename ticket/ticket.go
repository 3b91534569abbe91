package ticket

import (
	"strings"
	"time"

	"github.com/randalmurphal/proref/fingerprint"
)

// Raw is a ticket as returned by a source connector, before the pipeline
// has fingerprinted or stored it.
type Raw struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	AcceptanceCriteria string            `json:"acceptanceCriteria,omitempty"`
	Status             string            `json:"status,omitempty"`
	IssueType          string            `json:"issueType,omitempty"`
	URL                string            `json:"url,omitempty"`
	UpdatedAt          time.Time         `json:"updatedAt,omitempty"`
	Fields             map[string]string `json:"fields,omitempty"`
}

// Content returns the fingerprinted part of r.
func (r Raw) Content() fingerprint.Content {
	return fingerprint.Content{
		Title:              r.Title,
		Description:        r.Description,
		AcceptanceCriteria: r.AcceptanceCriteria,
		Fields:             r.Fields,
	}
}

// Ticket is a stored work item.
type Ticket struct {
	ID                 string            `json:"id"`
	Source             string            `json:"source,omitempty"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	AcceptanceCriteria string            `json:"acceptanceCriteria,omitempty"`
	Status             string            `json:"status,omitempty"`
	IssueType          string            `json:"issueType,omitempty"`
	URL                string            `json:"url,omitempty"`
	Fields             map[string]string `json:"fields,omitempty"`

	// Fingerprint is the hash of the current content.
	Fingerprint fingerprint.Value `json:"fingerprint"`

	// UpdatedAt is the source system's last-modified time, if known.
	UpdatedAt time.Time `json:"updatedAt,omitempty"`

	// FetchedAt is when the current content was first seen.
	FetchedAt time.Time `json:"fetchedAt"`

	// SyncedAt is the last time the ticket was seen at the source.
	SyncedAt time.Time `json:"syncedAt"`
}

// Content returns the fingerprinted part of t.
func (t *Ticket) Content() fingerprint.Content {
	return fingerprint.Content{
		Title:              t.Title,
		Description:        t.Description,
		AcceptanceCriteria: t.AcceptanceCriteria,
		Fields:             t.Fields,
	}
}

// Text returns the text used for embeddings and prompts: the title, the
// description and the acceptance criteria separated by blank lines.
func (t *Ticket) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Title, t.Description, t.AcceptanceCriteria} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Apply copies the content fields of r onto t.
func (t *Ticket) Apply(r Raw) {
	t.Title = r.Title
	t.Description = r.Description
	t.AcceptanceCriteria = r.AcceptanceCriteria
	t.Status = r.Status
	t.IssueType = r.IssueType
	t.URL = r.URL
	t.UpdatedAt = r.UpdatedAt
	t.Fields = cloneFields(r.Fields)
}

// Clone returns a deep copy of t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Fields = cloneFields(t.Fields)
	return &c
}

func cloneFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
