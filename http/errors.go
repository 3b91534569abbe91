// Package http provides the JSON client shared by the pipeline's HTTP
// integrations and the sentinel errors their failures unwrap to.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Sentinels every integration's errors unwrap to, whatever the vendor.
// errors.Classify decides retryability from these alone.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("authentication failed")
	ErrForbidden    = errors.New("permission denied")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrBadRequest   = errors.New("bad request")
	ErrServerError  = errors.New("server error")

	// ErrConnection means the request never got a response.
	ErrConnection = errors.New("connection failed")
)

// StatusSentinel returns the sentinel for an HTTP status code, or nil for
// codes that have none.
func StatusSentinel(code int) error {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return ErrBadRequest
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500 && code < 600:
		return ErrServerError
	}
	return nil
}

// APIError is a non-2xx response from an integration.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Endpoint   string
	RequestID  string
}

func (e *APIError) Error() string {
	where := e.Endpoint
	if e.RequestID != "" {
		where += " [" + e.RequestID + "]"
	}
	return fmt.Sprintf("%s API error (%d) at %s: %s", e.Service, e.StatusCode, where, e.Message)
}

// Unwrap returns StatusSentinel(e.StatusCode).
func (e *APIError) Unwrap() error {
	return StatusSentinel(e.StatusCode)
}

// RateLimitError is a 429 response or a vendor rate-limit signal.
type RateLimitError struct {
	Service string

	// RetryAfter is the wait the service asked for, zero when unknown.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Service)
}

// Unwrap returns ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ValidationError is a rejected request that names the offending fields.
// The same request will never succeed, so it is classified as a validation
// failure rather than a plain bad request.
type ValidationError struct {
	Service    string
	StatusCode int

	// Fields maps each rejected field to the service's message.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, f := range names {
		parts[i] = f + ": " + e.Fields[f]
	}
	return fmt.Sprintf("%s rejected the request (%d): %s", e.Service, e.StatusCode, strings.Join(parts, "; "))
}

// Unwrap returns ErrBadRequest.
func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// FieldErrors extracts per-field messages from an error body of the form
// {"errors": {"field": "message"}}, as Jira and GitLab send them. It
// returns nil for any other shape.
func FieldErrors(body []byte) map[string]string {
	var resp struct {
		Errors map[string]json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &resp) != nil || len(resp.Errors) == 0 {
		return nil
	}
	fields := make(map[string]string, len(resp.Errors))
	for name, raw := range resp.Errors {
		var msg string
		if json.Unmarshal(raw, &msg) == nil {
			fields[name] = msg
			continue
		}
		var msgs []string
		if json.Unmarshal(raw, &msgs) == nil && len(msgs) > 0 {
			fields[name] = strings.Join(msgs, ", ")
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// IsRetryable reports whether err is worth another attempt: rate limits,
// 5xx responses and connection failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) || errors.Is(err, ErrConnection)
}
