package quality

import (
	"context"
	"regexp"

	"github.com/randalmurphal/proref/ticket"
)

var (
	acceptancePatterns = regexp.MustCompile(`(?i)acceptance criteria|AC:|definition of done|DoD:|expected behavior|should be able to|given.*when.*then|\[\s*\]`)
	edgeCasePatterns   = regexp.MustCompile(`(?i)edge case|error|fail|invalid|empty|null|boundary|limit`)
)

// maxHeuristicItems bounds issues and suggestions from Heuristic.
const maxHeuristicItems = 3

// Heuristic scores a ticket from its shape alone: title and description
// length, acceptance criteria and mention of edge cases. It needs no
// provider and always returns a score in range.
func Heuristic(t *ticket.Ticket) Assessment {
	if t.Title == "" && t.Description == "" {
		return Assessment{
			Score:       MinScore,
			Rationale:   "Ticket has no content",
			Issues:      []string{"No title", "No description"},
			Suggestions: []string{"Add a descriptive title", "Add detailed description"},
		}
	}

	score := 5
	var issues, suggestions []string

	switch {
	case t.Title == "":
		score -= 2
		issues = append(issues, "Missing title")
		suggestions = append(suggestions, "Add a descriptive title")
	case len([]rune(t.Title)) < 10:
		score--
		issues = append(issues, "Title is too short")
		suggestions = append(suggestions, "Make title more descriptive")
	}

	desc := t.Description
	n := len([]rune(desc))
	switch {
	case n == 0:
		score -= 3
		issues = append(issues, "No description")
		suggestions = append(suggestions, "Add a detailed description")
	case n < 50:
		score -= 2
		issues = append(issues, "Description is very brief")
		suggestions = append(suggestions, "Expand the description with more details")
	case n < 150:
		score--
		issues = append(issues, "Description could be more detailed")
	}

	if t.AcceptanceCriteria == "" && !acceptancePatterns.MatchString(desc) {
		score--
		issues = append(issues, "No clear acceptance criteria")
		suggestions = append(suggestions, "Add acceptance criteria or definition of done")
	}

	if n > 100 && !edgeCasePatterns.MatchString(desc+"\n"+t.AcceptanceCriteria) {
		issues = append(issues, "No edge cases mentioned")
		suggestions = append(suggestions, "Consider documenting error scenarios")
	}

	score = max(MinScore, min(MaxScore, score))
	return Assessment{
		Score:       score,
		Rationale:   Summary(score),
		Issues:      head(issues, maxHeuristicItems),
		Suggestions: head(suggestions, maxHeuristicItems),
	}
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// HeuristicScorer is a Scorer backed by Heuristic.
type HeuristicScorer struct{}

// Score implements Scorer.
func (HeuristicScorer) Score(_ context.Context, t *ticket.Ticket) (Assessment, error) {
	return Heuristic(t), nil
}

// Model implements Scorer.
func (HeuristicScorer) Model() string { return "heuristic" }
