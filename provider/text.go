package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/proref/prompt"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/ticket"
)

// Text generates refinement content with a single model. It implements
// proref.QuestionGenerator, proref.TestCaseGenerator and quality.Scorer.
type Text struct {
	completer Completer
	prompts   *prompt.Loader
	logger    *slog.Logger
}

// TextOption configures a Text.
type TextOption func(*Text)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TextOption {
	return func(t *Text) { t.logger = l }
}

// NewText creates a Text that renders prompts from prompts and sends them
// to c.
func NewText(c Completer, prompts *prompt.Loader, opts ...TextOption) *Text {
	t := &Text{completer: c, prompts: prompts}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Model returns the model id of the underlying completer.
func (x *Text) Model() string { return x.completer.Model() }

// GenerateQuestions asks for clarifying questions. related tickets are
// listed in the prompt so the model does not ask what they answer.
func (x *Text) GenerateQuestions(ctx context.Context, t *ticket.Ticket, preset string, related []ticket.Related) (string, error) {
	p, err := x.prompts.QuestionsPrompt(t, preset, related)
	if err != nil {
		return "", err
	}
	return x.complete(ctx, "questions", t.ID, p)
}

// GenerateTestCases asks for structured test cases.
func (x *Text) GenerateTestCases(ctx context.Context, t *ticket.Ticket, preset string) (string, error) {
	p, err := x.prompts.TestCasesPrompt(t, preset)
	if err != nil {
		return "", err
	}
	return x.complete(ctx, "testcases", t.ID, p)
}

// Score asks the model to grade the ticket and parses its answer. An
// answer without a score is a validation failure.
func (x *Text) Score(ctx context.Context, t *ticket.Ticket) (quality.Assessment, error) {
	p, err := x.prompts.ScorePrompt(t)
	if err != nil {
		return quality.Assessment{}, err
	}
	text, err := x.complete(ctx, "score", t.ID, p)
	if err != nil {
		return quality.Assessment{}, err
	}
	a, err := quality.Parse(text)
	if err != nil {
		return quality.Assessment{}, fmt.Errorf("score %s: %w", t.ID, err)
	}
	return a, nil
}

func (x *Text) complete(ctx context.Context, op, ticketID, p string) (string, error) {
	c, err := x.completer.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	x.logger.Debug("model call",
		"op", op,
		"ticket", ticketID,
		"model", x.completer.Model(),
		"input_tokens", c.InputTokens,
		"output_tokens", c.OutputTokens,
	)
	return strings.TrimSpace(c.Text), nil
}
