package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/randalmurphal/llmkit/model"

	prerrors "github.com/randalmurphal/proref/errors"
	prhttp "github.com/randalmurphal/proref/http"
)

// DefaultMaxTokens caps a generated answer.
const DefaultMaxTokens = 2048

// anthropicModels maps llmkit tier models onto Messages API model ids.
var anthropicModels = map[model.ModelName]string{
	model.ModelOpus:   "claude-opus-4-20250514",
	model.ModelSonnet: "claude-sonnet-4-20250514",
	model.ModelHaiku:  "claude-3-5-haiku-20241022",
}

// AnthropicModelID returns the API model id for name. Names that are not
// tier models are taken to be ids already.
func AnthropicModelID(name model.ModelName) string {
	if id, ok := anthropicModels[name]; ok {
		return id
	}
	return string(name)
}

// ErrAPIKeyRequired is returned when no Anthropic API key is configured.
var ErrAPIKeyRequired = fmt.Errorf("%w: anthropic API key", prerrors.ErrNotConfigured)

// AnthropicConfig configures the Anthropic completer.
type AnthropicConfig struct {
	// APIKey falls back to ANTHROPIC_API_KEY.
	APIKey    string
	Model     string
	MaxTokens int64

	// BaseURL and HTTPClient are for proxies and tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Anthropic completes prompts through the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic completer. The SDK's own retries are
// disabled; the pipeline retries with its policy.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api_key", ErrAPIKeyRequired)
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(cfg.Model),
		maxTokens: maxTokens,
	}, nil
}

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (Completion, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Completion{}, normalizeAnthropic(ctx, err)
	}

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			return Completion{
				Text:         block.Text,
				InputTokens:  message.Usage.InputTokens,
				OutputTokens: message.Usage.OutputTokens,
			}, nil
		}
	}
	return Completion{}, ErrEmptyResponse
}

// Model implements Completer.
func (a *Anthropic) Model() string { return string(a.model) }

// normalizeAnthropic maps SDK failures onto the http sentinels.
func normalizeAnthropic(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var sentinel error
		switch code := apiErr.StatusCode; {
		case code == http.StatusTooManyRequests:
			return fmt.Errorf("anthropic: %w: %w", &prhttp.RateLimitError{Service: "anthropic"}, err)
		case code == http.StatusUnauthorized:
			sentinel = prhttp.ErrUnauthorized
		case code == http.StatusForbidden:
			sentinel = prhttp.ErrForbidden
		case code == http.StatusNotFound:
			sentinel = prhttp.ErrNotFound
		case code >= 500:
			// 529 overloaded lands here too.
			sentinel = prhttp.ErrServerError
		case code >= 400:
			sentinel = prhttp.ErrBadRequest
		default:
			return fmt.Errorf("anthropic: %w", err)
		}
		return fmt.Errorf("anthropic: %w: %w", sentinel, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("anthropic: %w: %w", prhttp.ErrConnection, err)
	}
	return fmt.Errorf("anthropic: %w", err)
}
