package ticket

import (
	"time"

	"github.com/randalmurphal/proref/fingerprint"
)

// Embedding is the vector representation of a ticket's text.
type Embedding struct {
	TicketID    string            `json:"ticketId"`
	Vector      []float32         `json:"vector"`
	Model       string            `json:"model"`
	Fingerprint fingerprint.Value `json:"fingerprint"`
	ComputedAt  time.Time         `json:"computedAt"`
}

// SourceFingerprint implements fingerprint.Stamped.
func (e *Embedding) SourceFingerprint() fingerprint.Value {
	return e.Fingerprint
}

// Clone returns a deep copy of e.
func (e *Embedding) Clone() *Embedding {
	if e == nil {
		return nil
	}
	c := *e
	c.Vector = append([]float32(nil), e.Vector...)
	return &c
}

// Category buckets quality scores.
type Category string

// Quality categories.
const (
	CategoryReady     Category = "Ready"
	CategoryNeedsWork Category = "Needs Work"
	CategoryNotReady  Category = "Not Ready"
)

// Categories lists every category from best to worst.
var Categories = []Category{CategoryReady, CategoryNeedsWork, CategoryNotReady}

// QualityScore is an assessment of how ready a ticket is for implementation.
type QualityScore struct {
	TicketID    string            `json:"ticketId"`
	Score       int               `json:"score"`
	Category    Category          `json:"category"`
	Rationale   string            `json:"rationale"`
	Issues      []string          `json:"issues,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Model       string            `json:"model,omitempty"`
	Fingerprint fingerprint.Value `json:"fingerprint"`
	ScoredAt    time.Time         `json:"scoredAt"`
}

// SourceFingerprint implements fingerprint.Stamped.
func (q *QualityScore) SourceFingerprint() fingerprint.Value {
	return q.Fingerprint
}

// Clone returns a deep copy of q.
func (q *QualityScore) Clone() *QualityScore {
	if q == nil {
		return nil
	}
	c := *q
	if q.Issues != nil {
		c.Issues = append([]string(nil), q.Issues...)
	}
	if q.Suggestions != nil {
		c.Suggestions = append([]string(nil), q.Suggestions...)
	}
	return &c
}

// RelatedLink records that two tickets are similar. Links are derived from
// embeddings and are recomputed rather than edited.
type RelatedLink struct {
	FromID     string    `json:"fromId"`
	ToID       string    `json:"toId"`
	Similarity float64   `json:"similarity"`
	Model      string    `json:"model"`
	ComputedAt time.Time `json:"computedAt"`
}

// Related is a neighbouring ticket handed to generators as context.
type Related struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}
