// Package notify reports pipeline batch outcomes.
//
// Implementations:
//   - SlackNotifier: Slack incoming webhooks
//   - WebhookNotifier: generic JSON webhooks
//   - LogNotifier: slog
//   - MultiNotifier: fan-out to several notifiers
//   - NopNotifier: discards everything
//
// Example usage:
//
//	notifier := notify.NewSlackNotifier(webhookURL,
//	    notify.WithSlackChannel("#backlog"),
//	)
//	err := notifier.Notify(ctx, notify.Event{
//	    Type:    notify.EventBatchPartial,
//	    Stage:   "embed",
//	    Message: "embed: 40 ok, 2 failed",
//	})
package notify
