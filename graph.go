package proref

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/proref/notify"
	"github.com/randalmurphal/proref/ticket"
)

// RunResult is the outcome of RunAll.
type RunResult struct {
	RunID   string         `json:"runId"`
	Batches []*BatchResult `json:"batches"`
}

// Status is the worst status of any batch.
func (r *RunResult) Status() BatchStatus {
	status := StatusSuccess
	for _, b := range r.Batches {
		switch b.Status() {
		case StatusFailure:
			return StatusFailure
		case StatusPartial:
			status = StatusPartial
		}
	}
	return status
}

// ExitCode is Status().ExitCode().
func (r *RunResult) ExitCode() int {
	return r.Status().ExitCode()
}

// runState flows through the stage graph.
type runState struct {
	Query    Query
	Selector Selector
	Batches  []*BatchResult
}

type step struct {
	name string
	run  func(ctx context.Context, s runState) *BatchResult
}

// steps lists the configured stages in pipeline order.
func (e *Engine) steps() []step {
	var steps []step
	if e.source != nil {
		steps = append(steps, step{"fetch", func(ctx context.Context, s runState) *BatchResult {
			return e.RunFetch(ctx, s.Query)
		}})
	}
	if e.embedder != nil {
		steps = append(steps, step{"embed", func(ctx context.Context, s runState) *BatchResult {
			return e.RunEmbed(ctx, s.Selector)
		}})
	}
	steps = append(steps, step{"score", func(ctx context.Context, s runState) *BatchResult {
		return e.RunScore(ctx, s.Selector)
	}})
	if e.questions != nil {
		steps = append(steps, step{"generate-questions", func(ctx context.Context, s runState) *BatchResult {
			return e.RunGenerate(ctx, ticket.KindQuestions, s.Selector)
		}})
	}
	if e.testCases != nil {
		steps = append(steps, step{"generate-test-cases", func(ctx context.Context, s runState) *BatchResult {
			return e.RunGenerate(ctx, ticket.KindTestCases, s.Selector)
		}})
	}
	if e.cfg.PublishOnRun && e.source != nil {
		if e.questions != nil {
			steps = append(steps, step{"publish-questions", func(ctx context.Context, s runState) *BatchResult {
				return e.RunPublish(ctx, ticket.KindQuestions, s.Selector)
			}})
		}
		if e.testCases != nil {
			steps = append(steps, step{"publish-test-cases", func(ctx context.Context, s runState) *BatchResult {
				return e.RunPublish(ctx, ticket.KindTestCases, s.Selector)
			}})
		}
	}
	return steps
}

// RunAll runs every configured stage in order: fetch, embed, score,
// generate questions, generate test cases and, with Config.PublishOnRun,
// publish both. A stage that cannot run at all stops the run; failures of
// individual tickets do not.
func (e *Engine) RunAll(ctx context.Context, q Query, sel Selector) (*RunResult, error) {
	res := &RunResult{RunID: newRunID()}
	ctx = withRunID(ctx, res.RunID)

	steps := e.steps()
	graph := flowgraph.NewGraph[runState]()
	for i, s := range steps {
		graph = graph.AddNode(s.name, e.node(s, res))
		if i > 0 {
			graph = graph.AddEdge(steps[i-1].name, s.name)
		}
	}
	graph = graph.AddEdge(steps[len(steps)-1].name, flowgraph.END).SetEntry(steps[0].name)

	compiled, err := graph.Compile()
	if err != nil {
		return res, fmt.Errorf("compile pipeline: %w", err)
	}

	e.logger.Info("run started", "run", res.RunID, "stages", len(steps))
	_, err = compiled.Run(flowgraph.NewContext(ctx), runState{Query: q, Selector: sel})
	e.notify(ctx, runEvent(res, err, e.now()))
	if err != nil {
		e.logger.Error("run stopped", "run", res.RunID, "error", err)
		return res, err
	}
	e.logger.Info("run finished", "run", res.RunID, "status", res.Status())
	return res, nil
}

// node wraps a stage as a graph node that records its batch.
func (e *Engine) node(s step, res *RunResult) flowgraph.NodeFunc[runState] {
	return func(ctx flowgraph.Context, state runState) (runState, error) {
		b := s.run(withRunID(ctx, res.RunID), state)
		state.Batches = append(state.Batches, b)
		res.Batches = append(res.Batches, b)
		if b.Err != nil {
			return state, b.Err
		}
		return state, nil
	}
}

func runEvent(res *RunResult, err error, now time.Time) notify.Event {
	ev := notify.Event{
		RunID:     res.RunID,
		Timestamp: now,
		Counts:    make(map[string]int),
		Metadata:  map[string]any{"stages": len(res.Batches)},
	}
	for _, b := range res.Batches {
		for o, n := range b.Counts() {
			ev.Counts[string(o)] += n
		}
		for _, f := range b.Failures() {
			ev.Failures = append(ev.Failures, notify.Failure{TicketID: f.TicketID, Kind: f.Detail, Error: errText(f.Err)})
		}
	}

	status := res.Status()
	switch {
	case err != nil:
		ev.Type, ev.Severity = notify.EventRunFailed, notify.SeverityError
		ev.Message = fmt.Sprintf("run stopped: %v", err)
	case status == StatusSuccess:
		ev.Type, ev.Severity = notify.EventRunCompleted, notify.SeverityInfo
		ev.Message = fmt.Sprintf("run finished: %d stages", len(res.Batches))
	default:
		ev.Type, ev.Severity = notify.EventRunCompleted, notify.SeverityWarning
		ev.Message = fmt.Sprintf("run finished with failures: %d stages, status %s", len(res.Batches), status)
	}
	return ev
}
