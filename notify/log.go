package notify

import (
	"context"
	"log/slog"
)

// LogNotifier logs notifications using slog.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs to the given logger.
// If logger is nil, uses the default slog logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}

	attrs := []any{
		"type", event.Type,
		"run_id", event.RunID,
		"stage", event.Stage,
	}
	for k, v := range event.Counts {
		attrs = append(attrs, k, v)
	}
	for _, f := range event.Failures {
		attrs = append(attrs, slog.Group("failure", "ticket", f.TicketID, "kind", f.Kind, "error", f.Error))
	}
	n.Logger.Log(ctx, level, event.Message, attrs...)
	return nil
}
