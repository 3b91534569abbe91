package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	n := NewLogNotifier(logger)
	event := Event{
		Type:      EventBatchPartial,
		RunID:     "run-123",
		Stage:     "embed",
		Message:   "embed finished with failures",
		Severity:  SeverityWarning,
		Timestamp: time.Now(),
		Counts:    map[string]int{"ok": 3, "failed": 1},
		Failures:  []Failure{{TicketID: "ABC-7", Kind: "transient", Error: "rate limited"}},
	}

	if err := n.Notify(context.Background(), event); err != nil {
		t.Errorf("LogNotifier.Notify() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{"embed finished with failures", "run-123", "level=WARN", "failed=1", "ABC-7"} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %q: %s", want, output)
		}
	}
}

func TestLogNotifier_Severity(t *testing.T) {
	tests := []struct {
		severity string
		wantLog  string
	}{
		{SeverityInfo, "level=INFO"},
		{SeverityWarning, "level=WARN"},
		{SeverityError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			var buf bytes.Buffer
			n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
			_ = n.Notify(context.Background(), Event{Severity: tt.severity, Message: "m"})
			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("log output = %q, want %q", buf.String(), tt.wantLog)
			}
		})
	}
}

func TestLogNotifier_NilLogger(t *testing.T) {
	n := NewLogNotifier(nil)
	if n.Logger == nil {
		t.Error("NewLogNotifier(nil) should use the default logger")
	}
}

func TestWebhookNotifier(t *testing.T) {
	var receivedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)
	event := Event{
		Type:      EventBatchCompleted,
		RunID:     "run-123",
		Stage:     "generate:questions",
		Message:   "Webhook test",
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
	}

	if err := n.Notify(context.Background(), event); err != nil {
		t.Errorf("WebhookNotifier.Notify() error = %v", err)
	}

	var parsed Event
	if err := json.Unmarshal(receivedBody, &parsed); err != nil {
		t.Errorf("Failed to parse received body: %v", err)
	}
	if parsed.RunID != "run-123" || parsed.Stage != "generate:questions" {
		t.Errorf("received %+v", parsed)
	}
}

func TestWebhookNotifier_CustomHeaders(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, map[string]string{"Authorization": "Bearer test-token"})
	if err := n.Notify(context.Background(), Event{Type: EventRunCompleted}); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
	if receivedAuth != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want 'Bearer test-token'", receivedAuth)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL, nil).Notify(context.Background(), Event{Type: EventRunFailed})
	if err == nil {
		t.Error("Notify() should return error for 500 status")
	}
}

func TestWebhookNotifier_NetworkError(t *testing.T) {
	n := NewWebhookNotifier("http://localhost:99999", nil) // Invalid port
	if err := n.Notify(context.Background(), Event{Type: EventRunFailed}); err == nil {
		t.Error("Notify() should return error for network failure")
	}
}

func TestSlackNotifier(t *testing.T) {
	var receivedPayload slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &receivedPayload)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL,
		WithSlackChannel("#backlog"),
		WithSlackUsername("testbot"),
	)

	failures := make([]Failure, 12)
	for i := range failures {
		failures[i] = Failure{TicketID: "ABC-1", Kind: "permanent", Error: "auth"}
	}
	event := Event{
		Type:      EventBatchPartial,
		RunID:     "run-123",
		Stage:     "publish:questions",
		Message:   "2 ok, 12 failed",
		Severity:  SeverityWarning,
		Timestamp: time.Now(),
		Counts:    map[string]int{"ok": 2, "failed": 12},
		Failures:  failures,
	}

	if err := n.Notify(context.Background(), event); err != nil {
		t.Fatalf("SlackNotifier.Notify() error = %v", err)
	}

	if receivedPayload.Channel != "#backlog" || receivedPayload.Username != "testbot" {
		t.Errorf("payload = %+v", receivedPayload)
	}
	if len(receivedPayload.Attachments) != 1 {
		t.Fatalf("Attachments = %d, want 1", len(receivedPayload.Attachments))
	}
	att := receivedPayload.Attachments[0]
	if att.Color != "warning" {
		t.Errorf("Color = %q, want warning", att.Color)
	}
	if !strings.Contains(att.Text, "and 2 more") {
		t.Errorf("Text should truncate failures: %q", att.Text)
	}
	if len(att.Fields) != 2 || att.Fields[0].Title != "failed" {
		t.Errorf("Fields = %+v, want sorted counts", att.Fields)
	}
}

func TestSlackNotifier_EmojiForEvent(t *testing.T) {
	tests := map[EventType]string{
		EventBatchCompleted: ":white_check_mark:",
		EventBatchPartial:   ":warning:",
		EventBatchFailed:    ":x:",
		EventType("other"):  ":loudspeaker:",
	}
	for typ, want := range tests {
		if got := emojiForEvent(typ); got != want {
			t.Errorf("emojiForEvent(%s) = %q, want %q", typ, got, want)
		}
	}
}

type errNotifier struct{ err error }

func (n errNotifier) Notify(context.Context, Event) error { return n.err }

type countNotifier struct{ n int }

func (c *countNotifier) Notify(context.Context, Event) error {
	c.n++
	return nil
}

func TestMultiNotifier(t *testing.T) {
	first, second := &countNotifier{}, &countNotifier{}
	m := NewMultiNotifier(first, NopNotifier{}, second)
	if err := m.Notify(context.Background(), Event{}); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
	if first.n != 1 || second.n != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", first.n, second.n)
	}
}

func TestMultiNotifier_ContinuesOnError(t *testing.T) {
	boom := errors.New("boom")
	after := &countNotifier{}
	m := NewMultiNotifier(errNotifier{boom}, after)
	m.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	err := m.Notify(context.Background(), Event{Type: EventRunFailed})
	if !errors.Is(err, boom) {
		t.Errorf("Notify() error = %v, want boom", err)
	}
	if after.n != 1 {
		t.Error("later notifiers should still be called")
	}
}
