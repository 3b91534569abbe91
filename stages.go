package proref

import (
	"context"
	"errors"
	"fmt"
	"slices"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/ticket"
)

// RunFetch pulls tickets from the source and ingests each one. A failed
// fetch fails the whole batch.
func (e *Engine) RunFetch(ctx context.Context, q Query) *BatchResult {
	stage := ticket.Key(ticket.StageFetch, "")
	if e.source == nil {
		return e.failBatch(ctx, stage, notConfigured("ticket source"))
	}

	raws, err := call(ctx, e, "fetch", func(ctx context.Context) ([]ticket.Raw, error) {
		return e.source.Fetch(ctx, q)
	})
	if err != nil {
		return e.failBatch(ctx, stage, fmt.Errorf("%s: %w", e.source.Name(), err))
	}

	ids := make([]string, len(raws))
	for i, r := range raws {
		ids[i] = r.ID
	}
	return e.runBatch(ctx, stage, ids, func(ctx context.Context, i int) (Outcome, string, error) {
		outcome, err := e.Ingest(ctx, raws[i])
		if err != nil {
			return "", "", err
		}
		if outcome == IngestSkipped {
			return OutcomeSkipped, "issue type " + raws[i].IssueType, nil
		}
		return OutcomeOK, string(outcome), nil
	})
}

// stageWork processes one stored ticket and returns a short detail.
type stageWork func(ctx context.Context, rec *ticket.Record) (string, error)

// runStage selects tickets and runs work on each. Unless forced, tickets
// that are not eligible are skipped.
func (e *Engine) runStage(ctx context.Context, stage ticket.StageKey, sel Selector, eligible func(ticket.Status) bool, work stageWork) *BatchResult {
	ids, err := e.selectIDs(ctx, sel, eligible)
	if err != nil {
		return e.failBatch(ctx, stage, err)
	}

	return e.runBatch(ctx, stage, ids, func(ctx context.Context, i int) (Outcome, string, error) {
		rec, err := e.store.Get(ctx, ids[i])
		if err != nil {
			return "", "", err
		}
		if !sel.Force && !eligible(rec.Status()) {
			return OutcomeSkipped, "up to date", nil
		}
		detail, err := work(ctx, rec)
		if errors.Is(err, prerrors.ErrAlreadyPublished) {
			return OutcomeSkipped, "already published", nil
		}
		if err != nil {
			return "", "", err
		}
		return OutcomeOK, detail, nil
	})
}

// RunEmbed embeds tickets with no embedding or a stale one.
func (e *Engine) RunEmbed(ctx context.Context, sel Selector) *BatchResult {
	stage := ticket.Key(ticket.StageEmbed, "")
	if e.embedder == nil {
		return e.failBatch(ctx, stage, notConfigured("embedding provider"))
	}

	eligible := func(st ticket.Status) bool { return st.Embed != ticket.EmbedCurrent }
	return e.runStage(ctx, stage, sel, eligible, func(ctx context.Context, rec *ticket.Record) (string, error) {
		t := rec.Ticket
		vec, err := call(ctx, e, "embed", func(ctx context.Context) ([]float32, error) {
			return e.embedder.Embed(ctx, t.Text())
		})
		if err != nil {
			return "", err
		}
		if err := e.RecordEmbedding(ctx, t.ID, vec, t.Fingerprint, e.embedder.Model()); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d dimensions", len(vec)), nil
	})
}

// RunScore scores tickets with no score or a stale one.
func (e *Engine) RunScore(ctx context.Context, sel Selector) *BatchResult {
	stage := ticket.Key(ticket.StageScore, "")

	eligible := func(st ticket.Status) bool { return st.Score != ticket.ScoreCurrent }
	return e.runStage(ctx, stage, sel, eligible, func(ctx context.Context, rec *ticket.Record) (string, error) {
		t := rec.Ticket
		a, err := call(ctx, e, "score", func(ctx context.Context) (quality.Assessment, error) {
			return e.scorer.Score(ctx, t)
		})
		if err != nil {
			return "", err
		}
		s, err := e.RecordScore(ctx, t.ID, a, t.Fingerprint, e.scorer.Model())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d/%d %s", s.Score, quality.MaxScore, s.Category), nil
	})
}

// RunGenerate generates artifacts of kind for tickets with none or a stale
// one. Tickets whose current artifact is published are skipped even when
// forced. Question generation is given the ticket's related tickets when the
// ticket can be compared.
func (e *Engine) RunGenerate(ctx context.Context, kind ticket.Kind, sel Selector) *BatchResult {
	stage := ticket.Key(ticket.StageGenerate, kind)
	gen, model, err := e.generator(kind)
	if err != nil {
		return e.failBatch(ctx, stage, err)
	}

	eligible := func(st ticket.Status) bool { return st.Generate[kind] != ticket.GenerateGenerated }
	return e.runStage(ctx, stage, sel, eligible, func(ctx context.Context, rec *ticket.Record) (string, error) {
		t := rec.Ticket
		if rec.Status().Publish[kind] == ticket.PublishPublished {
			return "", prerrors.ErrAlreadyPublished
		}
		content, err := call(ctx, e, "generate", func(ctx context.Context) (string, error) {
			return gen(ctx, t)
		})
		if err != nil {
			return "", err
		}
		a, err := e.RecordArtifact(ctx, t.ID, kind, content, t.Fingerprint, model)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %s", len(a.Items), kind.Label()), nil
	})
}

func (e *Engine) generator(kind ticket.Kind) (func(context.Context, *ticket.Ticket) (string, error), string, error) {
	switch kind {
	case ticket.KindQuestions:
		if e.questions == nil {
			return nil, "", notConfigured("question generator")
		}
		return func(ctx context.Context, t *ticket.Ticket) (string, error) {
			return e.questions.GenerateQuestions(ctx, t, e.cfg.Preset, e.relatedContext(ctx, t.ID))
		}, e.questions.Model(), nil
	case ticket.KindTestCases:
		if e.testCases == nil {
			return nil, "", notConfigured("test case generator")
		}
		return func(ctx context.Context, t *ticket.Ticket) (string, error) {
			return e.testCases.GenerateTestCases(ctx, t, e.cfg.Preset)
		}, e.testCases.Model(), nil
	default:
		return nil, "", prerrors.Validation("unknown artifact kind %q", kind)
	}
}

// RunPublish publishes generated, unpublished artifacts of kind. Explicitly
// selected tickets are attempted regardless of state, so a stale or already
// published artifact is reported as a failure.
func (e *Engine) RunPublish(ctx context.Context, kind ticket.Kind, sel Selector) *BatchResult {
	stage := ticket.Key(ticket.StagePublish, kind)
	if !slices.Contains(ticket.Kinds, kind) {
		return e.failBatch(ctx, stage, prerrors.Validation("unknown artifact kind %q", kind))
	}
	if e.source == nil {
		return e.failBatch(ctx, stage, notConfigured("ticket source"))
	}

	// Forcing never republishes.
	sel.Force = false
	eligible := func(st ticket.Status) bool {
		return st.Generate[kind] == ticket.GenerateGenerated && st.Publish[kind] == ticket.PublishUnpublished
	}
	ids, err := e.selectIDs(ctx, sel, eligible)
	if err != nil {
		return e.failBatch(ctx, stage, err)
	}
	return e.runBatch(ctx, stage, ids, func(ctx context.Context, i int) (Outcome, string, error) {
		a, err := e.Publish(ctx, ids[i], kind)
		if err != nil {
			return "", "", err
		}
		return OutcomeOK, "comment " + a.RemoteCommentID, nil
	})
}
