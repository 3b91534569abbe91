package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/prompt"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/ticket"
)

func newText(t *testing.T, client llm.Client) *Text {
	t.Helper()
	return NewText(NewLLM(client, "claude-test"), prompt.NewLoader(t.TempDir()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func exportTicket() *ticket.Ticket {
	return &ticket.Ticket{
		ID:          "PROJ-4",
		Title:       "Export report as CSV",
		IssueType:   "Story",
		Description: "Admins export the monthly report.",
	}
}

func TestGenerateQuestions(t *testing.T) {
	var sent string
	mock := llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
			sent = req.Messages[0].Content
		}
		return &llm.CompletionResponse{Content: "\n- Which columns?\n- What about empty months?\n"}, nil
	})
	x := newText(t, mock)

	related := []ticket.Related{{ID: "PROJ-2", Title: "Export as PDF", Similarity: 0.91}}
	got, err := x.GenerateQuestions(t.Context(), exportTicket(), "saas", related)
	require.NoError(t, err)

	assert.Equal(t, "- Which columns?\n- What about empty months?", got)
	assert.Contains(t, sent, "Title: Export report as CSV")
	assert.Contains(t, sent, "PROJ-2: Export as PDF")
	assert.Equal(t, "claude-test", x.Model())
}

func TestGenerateTestCases(t *testing.T) {
	answer := "TC-1: Export works\nPRE: admin\nSTEPS:\n1. click export\nEXPECTED:\n- file downloads\n\n---"
	mock := llm.NewMockClient("").WithResponses(answer)
	x := newText(t, mock)

	got, err := x.GenerateTestCases(t.Context(), exportTicket(), "")
	require.NoError(t, err)
	assert.Equal(t, answer, got)
	assert.Equal(t, 1, mock.CallCount())
}

func TestScore(t *testing.T) {
	mock := llm.NewMockClient("").WithResponses(
		"SCORE: 6/10\nSUMMARY: Clear goal, thin detail.\nISSUES:\n- No acceptance criteria\nSUGGESTIONS:\n- List the columns",
	)
	x := newText(t, mock)

	a, err := x.Score(t.Context(), exportTicket())
	require.NoError(t, err)
	assert.Equal(t, 6, a.Score)
	assert.Equal(t, []string{"No acceptance criteria"}, a.Issues)
	assert.Equal(t, []string{"List the columns"}, a.Suggestions)
}

func TestScoreWithoutScoreLine(t *testing.T) {
	x := newText(t, llm.NewMockClient("").WithResponses("Looks fine to me."))

	_, err := x.Score(t.Context(), exportTicket())
	require.ErrorIs(t, err, quality.ErrNoScore)
	assert.Equal(t, prerrors.KindValidation, prerrors.Classify(err))
}

func TestEmptyAnswerIsTransient(t *testing.T) {
	x := newText(t, llm.NewMockClient("").WithResponses("   "))

	_, err := x.GenerateQuestions(t.Context(), exportTicket(), "", nil)
	require.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, prerrors.KindTransient, prerrors.Classify(err))
}

func TestClientErrorPassesThrough(t *testing.T) {
	boom := errors.New("cli exited 1")
	mock := llm.NewMockClient("").WithCompleteFunc(func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, boom
	})
	x := newText(t, mock)

	_, err := x.GenerateTestCases(t.Context(), exportTicket(), "")
	require.ErrorIs(t, err, boom)
}

func TestCanceledCall(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	mock := llm.NewMockClient("").WithCompleteFunc(func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		cancel()
		return nil, errors.New("interrupted")
	})
	x := newText(t, mock)

	_, err := x.GenerateQuestions(ctx, exportTicket(), "", nil)
	require.ErrorIs(t, err, context.Canceled)
}
