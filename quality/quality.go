// Package quality validates and categorizes ticket quality assessments.
//
// A provider returns an Assessment; Validate rejects scores outside
// [MinScore, MaxScore] rather than clamping them, and CategoryFor maps a
// valid score onto a fixed Category.
package quality

import (
	"context"
	"errors"
	"fmt"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/ticket"
)

// Score bounds and category thresholds.
const (
	MinScore = 1
	MaxScore = 10

	ReadyMin     = 8
	NeedsWorkMin = 5
)

// MaxListItems bounds the issues and suggestions kept from an assessment.
const MaxListItems = 5

// ErrScoreOutOfRange is returned for scores outside [MinScore, MaxScore].
// It is a validation failure.
var ErrScoreOutOfRange = fmt.Errorf("%w: quality score out of range", prerrors.ErrValidation)

// ErrNoScore is returned when a provider response carries no score.
var ErrNoScore = fmt.Errorf("%w: response has no score", prerrors.ErrValidation)

// Assessment is a raw quality judgement as produced by a scorer.
type Assessment struct {
	Score       int      `json:"score"`
	Rationale   string   `json:"rationale"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Scorer produces an assessment for a ticket.
type Scorer interface {
	Score(ctx context.Context, t *ticket.Ticket) (Assessment, error)
	Model() string
}

// Validate rejects out-of-range scores.
func Validate(a Assessment) error {
	if a.Score < MinScore || a.Score > MaxScore {
		return fmt.Errorf("score %d not in [%d,%d]: %w", a.Score, MinScore, MaxScore, ErrScoreOutOfRange)
	}
	return nil
}

// IsOutOfRange reports whether err is a rejected score.
func IsOutOfRange(err error) bool {
	return errors.Is(err, ErrScoreOutOfRange)
}

// CategoryFor maps a valid score onto its category.
func CategoryFor(score int) ticket.Category {
	switch {
	case score >= ReadyMin:
		return ticket.CategoryReady
	case score >= NeedsWorkMin:
		return ticket.CategoryNeedsWork
	default:
		return ticket.CategoryNotReady
	}
}

// Summary returns a one-line description of a score.
func Summary(score int) string {
	switch {
	case score >= 8:
		return "Well-defined ticket with clear requirements"
	case score >= 6:
		return "Adequate ticket, minor improvements possible"
	case score >= 4:
		return "Ticket needs more detail before implementation"
	default:
		return "Ticket requires significant refinement"
	}
}

// Breakdown counts current scores per category.
type Breakdown struct {
	Counts  map[ticket.Category]int `json:"counts"`
	Total   int                     `json:"total"`
	Average float64                 `json:"average"`

	// Unscored counts tickets with no score or a stale one.
	Unscored int `json:"unscored"`
}

// Add records one current score.
func (b *Breakdown) Add(score int) {
	if b.Counts == nil {
		b.Counts = make(map[ticket.Category]int, len(ticket.Categories))
	}
	b.Average = (b.Average*float64(b.Total) + float64(score)) / float64(b.Total+1)
	b.Total++
	b.Counts[CategoryFor(score)]++
}
