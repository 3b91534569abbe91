package quality

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/ticket"
)

func TestCategoryBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  ticket.Category
	}{
		{10, ticket.CategoryReady},
		{8, ticket.CategoryReady},
		{7, ticket.CategoryNeedsWork},
		{5, ticket.CategoryNeedsWork},
		{4, ticket.CategoryNotReady},
		{1, ticket.CategoryNotReady},
	}
	for _, tt := range tests {
		if got := CategoryFor(tt.score); got != tt.want {
			t.Errorf("CategoryFor(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	for _, score := range []int{0, 11, -3, 100} {
		err := Validate(Assessment{Score: score})
		require.Error(t, err, "score %d", score)
		assert.True(t, IsOutOfRange(err))
		assert.True(t, errors.Is(err, prerrors.ErrValidation))
		assert.Equal(t, prerrors.KindValidation, prerrors.Classify(err))
	}
	for _, score := range []int{1, 5, 10} {
		assert.NoError(t, Validate(Assessment{Score: score}))
	}
}

func TestParse(t *testing.T) {
	a, err := Parse(`SCORE: 7/10
SUMMARY: Good ticket with minor gaps
ISSUES:
- Missing edge cases
- No error handling mentioned
SUGGESTIONS:
* Add acceptance criteria
- Consider edge cases`)
	require.NoError(t, err)
	assert.Equal(t, 7, a.Score)
	assert.Equal(t, "Good ticket with minor gaps", a.Rationale)
	assert.Equal(t, []string{"Missing edge cases", "No error handling mentioned"}, a.Issues)
	assert.Equal(t, []string{"Add acceptance criteria", "Consider edge cases"}, a.Suggestions)
}

func TestParseKeepsOutOfRangeScore(t *testing.T) {
	a, err := Parse("**Score:** 11\nSUMMARY: great")
	require.NoError(t, err)
	assert.Equal(t, 11, a.Score)
	assert.True(t, IsOutOfRange(Validate(a)))
}

func TestParseCapsLists(t *testing.T) {
	text := "SCORE: 3\nISSUES:\n" + strings.Repeat("- issue\n", 8)
	a, err := Parse(text)
	require.NoError(t, err)
	assert.Len(t, a.Issues, MaxListItems)
}

func TestParseWithoutScore(t *testing.T) {
	_, err := Parse("SUMMARY: no number here")
	assert.ErrorIs(t, err, ErrNoScore)
	assert.Equal(t, prerrors.KindValidation, prerrors.Classify(err))
}

func TestHeuristic(t *testing.T) {
	empty := Heuristic(&ticket.Ticket{})
	assert.Equal(t, 1, empty.Score)
	assert.Contains(t, strings.ToLower(empty.Rationale), "no content")

	basic := Heuristic(&ticket.Ticket{Title: "Fix bug", Description: "There is a bug"})
	assert.Less(t, basic.Score, 5)
	assert.NotEmpty(t, basic.Issues)

	good := Heuristic(&ticket.Ticket{
		Title: "Implement user authentication flow with OAuth2",
		Description: `As a user, I want to be able to login using OAuth2.

Acceptance Criteria:
- User can click "Login with Google"
- User is redirected to Google OAuth
- After auth, user is redirected back

Edge cases:
- Handle invalid tokens
- Handle network errors`,
	})
	assert.GreaterOrEqual(t, good.Score, 5)
	assert.NoError(t, Validate(good))
}

func TestHeuristicScorer(t *testing.T) {
	var s Scorer = HeuristicScorer{}
	a, err := s.Score(context.Background(), &ticket.Ticket{Title: "x"})
	require.NoError(t, err)
	assert.NoError(t, Validate(a))
	assert.Equal(t, "heuristic", s.Model())
}

func TestBreakdown(t *testing.T) {
	var b Breakdown
	for _, s := range []int{9, 6, 3, 10} {
		b.Add(s)
	}
	assert.Equal(t, 4, b.Total)
	assert.InDelta(t, 7.0, b.Average, 1e-9)
	assert.Equal(t, 2, b.Counts[ticket.CategoryReady])
	assert.Equal(t, 1, b.Counts[ticket.CategoryNeedsWork])
	assert.Equal(t, 1, b.Counts[ticket.CategoryNotReady])
}
