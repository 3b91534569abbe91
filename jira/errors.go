package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	prerrors "github.com/randalmurphal/proref/errors"
	prhttp "github.com/randalmurphal/proref/http"
)

// Configuration errors.
var (
	ErrConfigURLRequired       = errors.New("jira url is required")
	ErrConfigAuthTypeRequired  = errors.New("jira auth type is required")
	ErrConfigAuthTypeInvalid   = errors.New("jira auth type must be api_token, oauth2, basic, or pat")
	ErrConfigAPITokenAuth      = errors.New("api_token auth requires email and token")
	ErrConfigBasicAuth         = errors.New("basic auth requires username and password")
	ErrConfigPATAuth           = errors.New("pat auth requires token")
	ErrConfigOAuth2Auth        = errors.New("oauth2 auth requires an access token or client_id, client_secret and refresh_token")
	ErrConfigAPIVersionInvalid = errors.New("api_version must be auto, v2, or v3")
	ErrConfigLimitInvalid      = errors.New("max_results and page_size must not be negative")
)

// Issue errors.
var (
	ErrIssueKeyInvalid = fmt.Errorf("%w: invalid jira issue key", prerrors.ErrValidation)
	ErrNoQuery         = fmt.Errorf("%w: no JQL query, set jira.jql or jira.project", prerrors.ErrValidation)
)

// ErrEndpointGone is returned for a search endpoint Jira has retired
// (410 Gone). The client moves on to the next endpoint.
var ErrEndpointGone = errors.New("jira endpoint retired")

// ADF errors.
var (
	ErrADFVersionOnly = errors.New("ADF version must be 1")
	ErrADFTypeInvalid = errors.New("ADF root type must be 'doc'")
)

// APIError represents an error response from the Jira API.
type APIError struct {
	StatusCode    int               `json:"-"`
	ErrorMessages []string          `json:"errorMessages,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	Endpoint      string            `json:"-"`
	RequestID     string            `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.ErrorMessages) > 0 {
		return fmt.Sprintf("jira api error (%d): %s", e.StatusCode, e.ErrorMessages[0])
	}
	if len(e.Errors) > 0 {
		fields := make([]string, 0, len(e.Errors))
		for f := range e.Errors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return fmt.Sprintf("jira api error (%d): %s: %s", e.StatusCode, fields[0], e.Errors[fields[0]])
	}
	if e.RequestID != "" {
		return fmt.Sprintf("jira api error (%d) at %s [%s]", e.StatusCode, e.Endpoint, e.RequestID)
	}
	return fmt.Sprintf("jira api error (%d) at %s", e.StatusCode, e.Endpoint)
}

// Unwrap returns the sentinel for the status code, so errors.Classify can
// tell transient failures from permanent ones.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusGone {
		return ErrEndpointGone
	}
	return prhttp.StatusSentinel(e.StatusCode)
}

// parseAPIError reads an error response. 429 responses become a
// *prhttp.RateLimitError carrying Retry-After, and rejected fields a
// *prhttp.ValidationError.
func parseAPIError(resp *http.Response, endpoint string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusTooManyRequests {
		rl := &prhttp.RateLimitError{Service: "jira"}
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			rl.RetryAfter = time.Duration(s) * time.Second
		}
		return rl
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}
	if json.Unmarshal(body, apiErr) != nil {
		apiErr.ErrorMessages = []string{http.StatusText(resp.StatusCode)}
	}
	// Field errors on a rejected request, e.g. a comment body over the size
	// limit, will not go away on retry.
	if len(apiErr.Errors) > 0 && errors.Is(apiErr, prhttp.ErrBadRequest) {
		return &prhttp.ValidationError{Service: "jira", StatusCode: resp.StatusCode, Fields: apiErr.Errors}
	}
	return apiErr
}
