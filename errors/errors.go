package errors

import "errors"

// Pipeline errors.
var (
	// ErrValidation marks input rejected at the boundary.
	ErrValidation = errors.New("validation failed")

	// ErrStale indicates an artifact was generated from older ticket content.
	ErrStale = errors.New("artifact is stale, regenerate first")

	// ErrNotGenerated indicates an artifact does not exist yet.
	ErrNotGenerated = errors.New("artifact not generated")

	// ErrAlreadyPublished indicates an artifact was already published.
	ErrAlreadyPublished = errors.New("artifact already published")

	// ErrContentChanged indicates the ticket changed while a derived value
	// was being computed, so the value was discarded.
	ErrContentChanged = errors.New("ticket content changed during the operation")

	// ErrTicketNotFound indicates the ticket is not in the store.
	ErrTicketNotFound = errors.New("ticket not found")
)

// CLI errors with actionable guidance.
var (
	// ErrNotAuthenticated indicates missing or rejected credentials.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrConnectionFailed indicates the server is unreachable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotConfigured indicates a required setting is missing.
	ErrNotConfigured = errors.New("not configured")
)

// Re-exported so callers need only one errors import.
var (
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
	Join   = errors.Join
	Unwrap = errors.Unwrap
)
