package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	prerrors "github.com/randalmurphal/proref/errors"
	prhttp "github.com/randalmurphal/proref/http"
)

const (
	// DefaultEmbeddingURL is the OpenAI API root.
	DefaultEmbeddingURL = "https://api.openai.com"

	// DefaultEmbeddingModel is used when no model is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultDimensions is the vector size of DefaultEmbeddingModel.
	DefaultDimensions = 1536

	// MaxEmbedRunes bounds the input, roughly 8000 tokens.
	MaxEmbedRunes = 30000
)

// ErrDimensionMismatch is returned when the service answers with a vector
// of unexpected size.
var ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", prerrors.ErrValidation)

// EmbeddingsConfig configures an OpenAI-compatible embedding client.
type EmbeddingsConfig struct {
	// BaseURL is the API root; /v1/embeddings is appended.
	BaseURL string

	// APIKey falls back to OPENAI_API_KEY. Local servers may need none.
	APIKey string

	Model string

	// Dimensions is the expected vector size. It also sizes the zero
	// vector returned for empty text.
	Dimensions int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Embeddings turns text into vectors through /v1/embeddings.
type Embeddings struct {
	client     *prhttp.Client
	model      string
	dimensions int
}

// NewEmbeddings creates an embedding client.
func NewEmbeddings(cfg EmbeddingsConfig) *Embeddings {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultEmbeddingURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	client := prhttp.NewClient(prhttp.ClientConfig{
		Client:      cfg.HTTPClient,
		BaseURL:     baseURL,
		ServiceName: "embeddings",
		Logger:      cfg.Logger,
		BeforeRequest: func(req *http.Request) {
			if apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+apiKey)
			}
		},
	})

	return &Embeddings{client: client, model: model, dimensions: dims}
}

// Model returns the embedding model id.
func (e *Embeddings) Model() string { return e.model }

// Dimensions returns the expected vector size.
func (e *Embeddings) Dimensions() int { return e.dimensions }

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for text. Blank text yields a zero vector
// without calling the service; text longer than MaxEmbedRunes is cut.
func (e *Embeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return make([]float32, e.dimensions), nil
	}
	text = truncateRunes(text, MaxEmbedRunes)

	var resp embeddingResponse
	err := e.client.Post(ctx, "/v1/embeddings", embeddingRequest{Model: e.model, Input: text}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings: %w", ErrEmptyResponse)
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), e.dimensions)
	}
	return vec, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
