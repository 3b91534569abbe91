package proref

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/proref/notify"
	"github.com/randalmurphal/proref/ticket"
)

// Selector chooses the tickets a batch works on.
type Selector struct {
	// IDs names the tickets to process. Empty means every eligible ticket.
	IDs []string

	// Force reprocesses tickets whose stage is already current.
	Force bool
}

// Outcome is the result of one ticket in a batch.
type Outcome string

// Ticket outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// TicketResult is what happened to one ticket.
type TicketResult struct {
	TicketID string  `json:"ticketId"`
	Outcome  Outcome `json:"outcome"`
	Detail   string  `json:"detail,omitempty"`
	Err      error   `json:"-"`
}

// BatchStatus summarizes a batch.
type BatchStatus string

// Batch statuses.
const (
	StatusSuccess BatchStatus = "success"
	StatusPartial BatchStatus = "partial"
	StatusFailure BatchStatus = "failure"
)

// ExitCode maps the status onto a process exit code.
func (s BatchStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 2
	default:
		return 1
	}
}

// BatchResult is the outcome of one stage over many tickets.
type BatchResult struct {
	RunID     string          `json:"runId"`
	Stage     ticket.StageKey `json:"stage"`
	Results   []TicketResult  `json:"results"`
	StartedAt time.Time       `json:"startedAt"`
	Duration  time.Duration   `json:"duration"`

	// Err is set when the batch could not run at all, e.g. the source
	// fetch failed or the stage's provider is not configured.
	Err error `json:"-"`
}

// Counts returns the number of tickets per outcome.
func (b *BatchResult) Counts() map[Outcome]int {
	c := map[Outcome]int{OutcomeOK: 0, OutcomeSkipped: 0, OutcomeFailed: 0}
	for _, r := range b.Results {
		c[r.Outcome]++
	}
	return c
}

// Failures returns the failed tickets.
func (b *BatchResult) Failures() []TicketResult {
	var out []TicketResult
	for _, r := range b.Results {
		if r.Outcome == OutcomeFailed {
			out = append(out, r)
		}
	}
	return out
}

// Status is failure when the batch could not run or every attempted ticket
// failed, partial when some failed, and success otherwise.
func (b *BatchResult) Status() BatchStatus {
	if b.Err != nil {
		return StatusFailure
	}
	c := b.Counts()
	switch {
	case c[OutcomeFailed] == 0:
		return StatusSuccess
	case c[OutcomeOK] == 0:
		return StatusFailure
	default:
		return StatusPartial
	}
}

// ExitCode is Status().ExitCode().
func (b *BatchResult) ExitCode() int {
	return b.Status().ExitCode()
}

// Summary returns a one-line description such as
// "embed: 3 ok, 1 skipped, 0 failed".
func (b *BatchResult) Summary() string {
	if b.Err != nil {
		return fmt.Sprintf("%s: %v", b.Stage, b.Err)
	}
	c := b.Counts()
	return fmt.Sprintf("%s: %d ok, %d skipped, %d failed", b.Stage, c[OutcomeOK], c[OutcomeSkipped], c[OutcomeFailed])
}

// =============================================================================
// Batch execution
// =============================================================================

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// runIDFrom returns the run id in ctx, or a fresh one.
func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return newRunID()
}

func newRunID() string {
	id, err := nanoid.New()
	if err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id
}

// itemFunc processes the i-th ticket of a batch.
type itemFunc func(ctx context.Context, i int) (Outcome, string, error)

// runBatch processes ids on up to Config.Workers goroutines. A failing
// ticket never stops the others. Cancellation is checked before each
// ticket starts; a ticket already in flight runs to completion and the
// tickets not yet started are skipped.
func (e *Engine) runBatch(ctx context.Context, stage ticket.StageKey, ids []string, fn itemFunc) *BatchResult {
	b := &BatchResult{
		RunID:     runIDFrom(ctx),
		Stage:     stage,
		Results:   make([]TicketResult, len(ids)),
		StartedAt: e.now(),
	}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			b.Results[i] = canceled(id, err)
			continue
		}
		g.Go(func() error {
			b.Results[i] = e.runItem(ctx, stage, id, i, fn)
			return nil
		})
	}
	_ = g.Wait()

	b.Duration = time.Since(start)
	e.finish(ctx, b)
	return b
}

func (e *Engine) runItem(ctx context.Context, stage ticket.StageKey, id string, i int, fn itemFunc) TicketResult {
	if err := ctx.Err(); err != nil {
		return canceled(id, err)
	}

	outcome, detail, err := fn(context.WithoutCancel(ctx), i)
	if err != nil {
		serr := newStageError(id, stage, err)
		e.logger.Warn("ticket failed", "stage", stage, "ticket", id, "kind", serr.Kind, "error", err)
		return TicketResult{TicketID: id, Outcome: OutcomeFailed, Detail: string(serr.Kind), Err: serr}
	}
	e.logger.Debug("ticket processed", "stage", stage, "ticket", id, "outcome", outcome, "detail", detail)
	return TicketResult{TicketID: id, Outcome: outcome, Detail: detail}
}

func canceled(id string, err error) TicketResult {
	return TicketResult{TicketID: id, Outcome: OutcomeSkipped, Detail: err.Error(), Err: err}
}

// failBatch reports a batch that could not run.
func (e *Engine) failBatch(ctx context.Context, stage ticket.StageKey, err error) *BatchResult {
	b := &BatchResult{
		RunID:     runIDFrom(ctx),
		Stage:     stage,
		StartedAt: e.now(),
		Err:       newStageError("", stage, err),
	}
	e.logger.Error("batch failed", "stage", stage, "error", err)
	e.finish(ctx, b)
	return b
}

// finish records metrics, logs the summary and notifies.
func (e *Engine) finish(ctx context.Context, b *BatchResult) {
	stage := string(b.Stage)
	for _, r := range b.Results {
		e.metrics.ticket(ctx, stage, r.Outcome)
	}
	status := b.Status()
	e.metrics.batch(ctx, stage, status, b.Duration)

	c := b.Counts()
	e.logger.Info("batch finished",
		"run", b.RunID,
		"stage", stage,
		"status", status,
		"ok", c[OutcomeOK],
		"skipped", c[OutcomeSkipped],
		"failed", c[OutcomeFailed],
		"duration", b.Duration,
	)

	e.notify(ctx, batchEvent(b, e.now()))
}

func (e *Engine) notify(ctx context.Context, ev notify.Event) {
	if err := e.notifier.Notify(context.WithoutCancel(ctx), ev); err != nil {
		e.logger.Warn("notification failed", "type", ev.Type, "error", err)
	}
}

func batchEvent(b *BatchResult, now time.Time) notify.Event {
	ev := notify.Event{
		RunID:     b.RunID,
		Stage:     string(b.Stage),
		Message:   b.Summary(),
		Timestamp: now,
		Counts:    make(map[string]int),
	}
	for o, n := range b.Counts() {
		ev.Counts[string(o)] = n
	}
	switch b.Status() {
	case StatusSuccess:
		ev.Type, ev.Severity = notify.EventBatchCompleted, notify.SeverityInfo
	case StatusPartial:
		ev.Type, ev.Severity = notify.EventBatchPartial, notify.SeverityWarning
	default:
		ev.Type, ev.Severity = notify.EventBatchFailed, notify.SeverityError
	}
	for _, f := range b.Failures() {
		ev.Failures = append(ev.Failures, notify.Failure{TicketID: f.TicketID, Kind: f.Detail, Error: errText(f.Err)})
	}
	return ev
}

// errText drops the "ticket X: stage failed (kind):" prefix already carried
// by the failure's other fields.
func errText(err error) string {
	if se, ok := err.(*StageError); ok {
		return se.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// selectIDs returns the explicit ids, or every stored ticket that is
// eligible (all of them when forced).
func (e *Engine) selectIDs(ctx context.Context, sel Selector, eligible func(ticket.Status) bool) ([]string, error) {
	if len(sel.IDs) > 0 {
		ids := make([]string, 0, len(sel.IDs))
		for _, id := range sel.IDs {
			if id = strings.TrimSpace(id); id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	recs, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range recs {
		if r.Ticket == nil {
			continue
		}
		if sel.Force || eligible(r.Status()) {
			ids = append(ids, r.Ticket.ID)
		}
	}
	return ids, nil
}
