package errors

import (
	"errors"
	"fmt"
	"strings"
)

// CLIError wraps an error with user-friendly context and suggestions.
type CLIError struct {
	// Err is the underlying error
	Err error

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// Messenger supplies the text shown for each class of failure.
type Messenger interface {
	AuthErrorMessage(service string) (message, suggestion string)
	PermissionDeniedMessage(service string) (message, suggestion string)
	ConnectionErrorMessage(service string) (message, suggestion string)
	StaleMessage() (message, suggestion string)
	NotGeneratedMessage() (message, suggestion string)
	AlreadyPublishedMessage() (message, suggestion string)
	NotConfiguredMessage() (message, suggestion string)
}

// DefaultMessenger provides default error messages.
type DefaultMessenger struct{}

func (DefaultMessenger) AuthErrorMessage(service string) (string, string) {
	return fmt.Sprintf("%s rejected the credentials.", service),
		"Check the API token in your config or environment."
}

func (DefaultMessenger) PermissionDeniedMessage(service string) (string, string) {
	return fmt.Sprintf("%s denied access.", service),
		"The configured account needs permission to read issues and add comments."
}

func (DefaultMessenger) ConnectionErrorMessage(service string) (string, string) {
	return fmt.Sprintf("Cannot reach %s.", service),
		"Check that:\n  - The URL is correct\n  - Your network connection is working\n  - The service is not rate limiting you"
}

func (DefaultMessenger) StaleMessage() (string, string) {
	return "The artifact was generated from older ticket content.",
		"Run 'proref generate' for the ticket, then publish again."
}

func (DefaultMessenger) NotGeneratedMessage() (string, string) {
	return "There is nothing to publish yet.", "Run 'proref generate' first."
}

func (DefaultMessenger) AlreadyPublishedMessage() (string, string) {
	return "The artifact is already published.", "Regenerate it to publish a new version."
}

func (DefaultMessenger) NotConfiguredMessage() (string, string) {
	return "A required setting is missing.", "Run 'proref config set <key> <value>' or set PROREF_<KEY>."
}

// Option configures Render.
type Option func(*renderConfig)

type renderConfig struct {
	messenger Messenger
	service   string
}

// WithMessenger sets a custom error messenger.
func WithMessenger(m Messenger) Option {
	return func(c *renderConfig) { c.messenger = m }
}

// WithService names the external service in connection and auth messages.
func WithService(name string) Option {
	return func(c *renderConfig) { c.service = name }
}

// Render converts err into a CLIError when it matches a known class.
// Other errors are returned unchanged.
func Render(err error, opts ...Option) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	cfg := renderConfig{messenger: DefaultMessenger{}, service: "the service"}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := cfg.messenger

	var msg, suggestion string
	switch {
	case errors.Is(err, ErrStale):
		msg, suggestion = m.StaleMessage()
	case errors.Is(err, ErrNotGenerated):
		msg, suggestion = m.NotGeneratedMessage()
	case errors.Is(err, ErrAlreadyPublished):
		msg, suggestion = m.AlreadyPublishedMessage()
	case errors.Is(err, ErrNotConfigured):
		msg, suggestion = m.NotConfiguredMessage()
	case IsAuthError(err):
		msg, suggestion = m.AuthErrorMessage(cfg.service)
	case IsPermissionError(err):
		msg, suggestion = m.PermissionDeniedMessage(cfg.service)
	case IsConnectionError(err):
		msg, suggestion = m.ConnectionErrorMessage(cfg.service)
	default:
		return err
	}
	return &CLIError{Err: err, Message: msg, Suggestion: suggestion, Details: err.Error()}
}
