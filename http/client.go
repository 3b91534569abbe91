package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/randalmurphal/proref/retry"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client provides common HTTP functionality for integration clients.
//
// A Client makes one attempt per call unless Retry is set. The pipeline
// engine wraps every collaborator call in its own retry policy, so
// connectors normally leave Retry nil.
type Client struct {
	client      *http.Client
	baseURL     string
	serviceName string
	retry       *retry.Policy
	logger      *slog.Logger

	// beforeRequest is called before each request (for auth headers, etc.)
	beforeRequest func(req *http.Request)
}

// ClientConfig holds configuration for Client.
type ClientConfig struct {
	Client        *http.Client
	BaseURL       string
	ServiceName   string
	Retry         *retry.Policy
	Logger        *slog.Logger
	BeforeRequest func(req *http.Request)
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		client:        cfg.Client,
		baseURL:       cfg.BaseURL,
		serviceName:   cfg.ServiceName,
		retry:         cfg.Retry,
		logger:        cfg.Logger,
		beforeRequest: cfg.BeforeRequest,
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: DefaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// ServiceName returns the name used in errors.
func (c *Client) ServiceName() string {
	return c.serviceName
}

// Do executes a JSON request and decodes a successful response into
// result. Non-2xx responses become *APIError or *RateLimitError.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = data
	}

	attempt := func(ctx context.Context) error {
		return c.once(ctx, method, path, payload, result)
	}
	if c.retry == nil {
		return attempt(ctx)
	}

	p := *c.retry
	if p.Logger == nil {
		p.Logger = c.logger.With("service", c.serviceName)
	}
	return retry.Do(ctx, p, IsRetryable, attempt)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, result any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Apply auth headers via callback
	if c.beforeRequest != nil {
		c.beforeRequest(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		return fmt.Errorf("%s request failed: %w: %w", c.serviceName, ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return c.handleResponse(resp, path, result)
}

// Get performs a GET request and decodes the response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request and decodes the response into result.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// handleResponse checks status and decodes the response body.
func (c *Client) handleResponse(resp *http.Response, path string, result any) error {
	if resp.StatusCode >= 400 {
		return c.parseError(resp, path)
	}

	if result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", c.serviceName, err)
	}

	return nil
}

// parseError turns an error response into a *RateLimitError, a
// *ValidationError when the body names rejected fields, or an *APIError.
func (c *Client) parseError(resp *http.Response, path string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Service: c.serviceName, RetryAfter: retryAfter(resp)}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if errors.Is(StatusSentinel(resp.StatusCode), ErrBadRequest) {
		if fields := FieldErrors(body); fields != nil {
			return &ValidationError{Service: c.serviceName, StatusCode: resp.StatusCode, Fields: fields}
		}
	}

	apiErr := &APIError{
		Service:    c.serviceName,
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  resp.Header.Get("X-Request-Id"),
		Message:    ErrorMessage(body),
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

// ErrorMessage extracts a message from common JSON error bodies:
// {"message": ...}, {"error": ...}, {"error": {"message": ...}} and
// Jira's {"errorMessages": [...]}.
func ErrorMessage(body []byte) string {
	var errResp struct {
		Message       string          `json:"message"`
		Error         json.RawMessage `json:"error"`
		ErrorMessages []string        `json:"errorMessages"`
	}
	if json.Unmarshal(body, &errResp) != nil {
		return ""
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	if len(errResp.Error) > 0 {
		var s string
		if json.Unmarshal(errResp.Error, &s) == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(errResp.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if len(errResp.ErrorMessages) > 0 {
		return errResp.ErrorMessages[0]
	}
	return ""
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
