package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	prhttp "github.com/randalmurphal/proref/http"
)

// maxSlackFailures bounds the failures listed in one message.
const maxSlackFailures = 10

// SlackNotifier sends notifications to a Slack incoming webhook.
type SlackNotifier struct {
	Channel  string
	Username string
	client   *prhttp.Client
}

// SlackOption configures SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the channel to post to.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

// WithSlackUsername sets the bot username.
func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{
		Username: "proref",
		client:   newPoster(webhookURL, "slack", nil),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	payload := slackPayload{
		Username: n.Username,
		Channel:  n.Channel,
		Attachments: []slackAttachment{
			{
				Color:     colorForSeverity(event.Severity),
				Title:     fmt.Sprintf("%s %s", emojiForEvent(event.Type), event.Stage),
				Text:      slackText(event),
				Footer:    fmt.Sprintf("Run: %s", event.RunID),
				Timestamp: event.Timestamp.Unix(),
				Fields:    fieldsFromCounts(event.Counts),
			},
		},
	}
	return n.client.Post(ctx, "", payload, nil)
}

func slackText(event Event) string {
	if len(event.Failures) == 0 {
		return event.Message
	}
	var sb strings.Builder
	sb.WriteString(event.Message)
	for i, f := range event.Failures {
		if i == maxSlackFailures {
			fmt.Fprintf(&sb, "\n…and %d more", len(event.Failures)-maxSlackFailures)
			break
		}
		fmt.Fprintf(&sb, "\n• %s (%s): %s", f.TicketID, f.Kind, f.Error)
	}
	return sb.String()
}

func emojiForEvent(t EventType) string {
	switch t {
	case EventBatchCompleted, EventRunCompleted:
		return ":white_check_mark:"
	case EventBatchPartial:
		return ":warning:"
	case EventBatchFailed, EventRunFailed:
		return ":x:"
	default:
		return ":loudspeaker:"
	}
}

func colorForSeverity(severity string) string {
	switch severity {
	case SeverityError:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

func fieldsFromCounts(counts map[string]int) []slackField {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]slackField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slackField{Title: k, Value: fmt.Sprint(counts[k]), Short: true})
	}
	return fields
}

// Slack webhook payload types
type slackPayload struct {
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
