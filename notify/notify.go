package notify

import (
	"context"
	"time"
)

// EventType represents the type of pipeline event.
type EventType string

// Event type constants.
const (
	EventBatchCompleted EventType = "batch_completed"
	EventBatchPartial   EventType = "batch_partial"
	EventBatchFailed    EventType = "batch_failed"
	EventRunCompleted   EventType = "run_completed"
	EventRunFailed      EventType = "run_failed"
)

// Severity constants for notifications.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Failure is one ticket that failed during a batch.
type Failure struct {
	TicketID string `json:"ticket_id"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// Event describes a pipeline event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Counts    map[string]int `json:"counts,omitempty"`
	Failures  []Failure      `json:"failures,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notifier sends notifications about pipeline events.
type Notifier interface {
	// Notify sends a notification. Callers log failures and carry on.
	Notify(ctx context.Context, event Event) error
}
