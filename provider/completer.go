package provider

import (
	"context"
	"fmt"
	"strings"

	llm "github.com/randalmurphal/llmkit/claude"

	prhttp "github.com/randalmurphal/proref/http"
)

// ErrEmptyResponse is returned when a model answers with no text. It is
// treated as a server fault, so the call is retried.
var ErrEmptyResponse = fmt.Errorf("%w: model returned no text", prhttp.ErrServerError)

// Completion is one model answer.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Completer sends a single user prompt to a model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
	Model() string
}

// LLM adapts a flowgraph llm.Client to Completer.
type LLM struct {
	client llm.Client
	model  string
}

// NewLLM wraps client. model is reported by Model; the client itself
// decides which model it talks to.
func NewLLM(client llm.Client, model string) *LLM {
	return &LLM{client: client, model: model}
}

// NewClaudeCLI returns an LLM backed by the local Claude CLI.
func NewClaudeCLI(model, workdir string) *LLM {
	client := llm.NewClaudeCLI(
		llm.WithModel(model),
		llm.WithWorkdir(workdir),
		llm.WithDangerouslySkipPermissions(),
	)
	return NewLLM(client, model)
}

// Complete implements Completer.
func (l *LLM) Complete(ctx context.Context, prompt string) (Completion, error) {
	resp, err := l.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Completion{}, ctxErr
		}
		return Completion{}, fmt.Errorf("llm complete: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return Completion{}, ErrEmptyResponse
	}
	return Completion{
		Text:         resp.Content,
		InputTokens:  int64(resp.Usage.InputTokens),
		OutputTokens: int64(resp.Usage.OutputTokens),
	}, nil
}

// Model implements Completer.
func (l *LLM) Model() string { return l.model }
