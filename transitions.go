package proref

import (
	"context"
	"fmt"
	"slices"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/fingerprint"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/similarity"
	"github.com/randalmurphal/proref/ticket"
)

// IngestOutcome says what Ingest did with a ticket.
type IngestOutcome string

// Ingest outcomes.
const (
	IngestCreated   IngestOutcome = "created"
	IngestUpdated   IngestOutcome = "updated"
	IngestUnchanged IngestOutcome = "unchanged"
	IngestSkipped   IngestOutcome = "skipped"
)

// Ingest stores a ticket fetched from the source.
//
// A new ticket becomes fetched. A ticket whose content changed gets the new
// content and fingerprint, which makes every derived value stale; published
// artifacts become stale-published. Unchanged content only refreshes the
// sync time.
func (e *Engine) Ingest(ctx context.Context, raw ticket.Raw) (IngestOutcome, error) {
	raw.ID = strings.TrimSpace(raw.ID)
	if raw.ID == "" {
		return "", prerrors.Validation("ticket has no id")
	}
	if strings.TrimSpace(raw.Title) == "" {
		return "", prerrors.Validation("ticket %s has no title", raw.ID)
	}
	if e.skipped(raw.IssueType) {
		return IngestSkipped, nil
	}

	fp := fingerprint.Of(raw.Content())
	now := e.now()

	var outcome IngestOutcome
	err := e.store.Update(ctx, raw.ID, func(r *ticket.Record) error {
		switch {
		case r.Ticket == nil:
			r.Ticket = &ticket.Ticket{ID: raw.ID, Source: e.sourceName(), FetchedAt: now}
			outcome = IngestCreated
		case r.Ticket.Fingerprint == fp:
			outcome = IngestUnchanged
		default:
			r.Ticket.FetchedAt = now
			outcome = IngestUpdated
		}
		r.Ticket.Apply(raw)
		r.Ticket.Fingerprint = fp
		r.Ticket.SyncedAt = now
		markPublished(r, fp)
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome != IngestUnchanged {
		e.index.SetFingerprint(raw.ID, fp)
	}
	e.logger.Debug("ticket ingested", "ticket", raw.ID, "outcome", outcome)
	return outcome, nil
}

// markPublished flags published artifacts whose content moved on, and
// restores those whose ticket returned to the published content.
func markPublished(r *ticket.Record, current fingerprint.Value) {
	for _, a := range r.Artifacts {
		stale := fingerprint.IsStale(a, current)
		switch {
		case a.PublishStatus == ticket.Published && stale:
			a.PublishStatus = ticket.StalePublished
		case a.PublishStatus == ticket.StalePublished && !stale:
			a.PublishStatus = ticket.Published
		}
	}
}

// guard rejects a derived value computed from content other than the
// ticket's current content.
func guard(r *ticket.Record, id, what string, fp fingerprint.Value) error {
	if r.Ticket == nil {
		return notFound(id)
	}
	if fingerprint.Changed(fp, r.Ticket.Fingerprint) {
		return fmt.Errorf("%s %s: %w", what, id, prerrors.ErrContentChanged)
	}
	return nil
}

// RecordEmbedding stores the embedding computed from the ticket content
// with fingerprint fp.
func (e *Engine) RecordEmbedding(ctx context.Context, id string, vector []float32, fp fingerprint.Value, model string) error {
	if err := similarity.CheckVector(vector); err != nil {
		return prerrors.Validation("embedding for %s: %v", id, err)
	}

	emb := &ticket.Embedding{
		TicketID:    id,
		Vector:      slices.Clone(vector),
		Model:       model,
		Fingerprint: fp,
		ComputedAt:  e.now(),
	}
	err := e.store.Update(ctx, id, func(r *ticket.Record) error {
		if err := guard(r, id, "embed", fp); err != nil {
			return err
		}
		r.Embedding = emb
		return nil
	})
	if err != nil {
		return err
	}
	return e.index.Upsert(entryFor(emb))
}

// RecordArtifact stores generated content for the ticket content with
// fingerprint fp. The artifact starts unpublished, unless the same content
// was already generated for the same fingerprint, in which case the
// existing artifact and its publish state are kept. Different content for
// a fingerprint whose artifact is already published fails with
// errors.ErrAlreadyPublished.
func (e *Engine) RecordArtifact(ctx context.Context, id string, kind ticket.Kind, content string, fp fingerprint.Value, model string) (*ticket.Artifact, error) {
	if !slices.Contains(ticket.Kinds, kind) {
		return nil, prerrors.Validation("unknown artifact kind %q", kind)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, prerrors.Validation("generated %s for %s are empty", kind.Label(), id)
	}

	artifactID, err := nanoid.New()
	if err != nil {
		return nil, fmt.Errorf("artifact id: %w", err)
	}

	now := e.now()
	var out *ticket.Artifact
	err = e.store.Update(ctx, id, func(r *ticket.Record) error {
		if err := guard(r, id, "generate", fp); err != nil {
			return err
		}
		if prev := r.Artifact(kind); prev != nil && prev.Fingerprint == fp {
			if prev.Content == content {
				prev.GeneratedAt = now
				out = prev.Clone()
				return nil
			}
			// A published artifact is only replaced once the ticket changes.
			if prev.PublishStatus == ticket.Published {
				return fmt.Errorf("generate %s %s: %w", kind.Label(), id, prerrors.ErrAlreadyPublished)
			}
		}
		a := &ticket.Artifact{
			ID:            artifactID,
			TicketID:      id,
			Kind:          kind,
			Content:       content,
			Items:         ParseItems(kind, content),
			Model:         model,
			Fingerprint:   fp,
			GeneratedAt:   now,
			PublishStatus: ticket.Unpublished,
		}
		r.SetArtifact(a)
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordScore validates a quality assessment and stores it for the ticket
// content with fingerprint fp. Out-of-range scores are rejected.
func (e *Engine) RecordScore(ctx context.Context, id string, a quality.Assessment, fp fingerprint.Value, model string) (*ticket.QualityScore, error) {
	if err := quality.Validate(a); err != nil {
		return nil, fmt.Errorf("score %s: %w", id, err)
	}

	score := &ticket.QualityScore{
		TicketID:    id,
		Score:       a.Score,
		Category:    quality.CategoryFor(a.Score),
		Rationale:   a.Rationale,
		Issues:      slices.Clone(a.Issues),
		Suggestions: slices.Clone(a.Suggestions),
		Model:       model,
		Fingerprint: fp,
		ScoredAt:    e.now(),
	}
	err := e.store.Update(ctx, id, func(r *ticket.Record) error {
		if err := guard(r, id, "score", fp); err != nil {
			return err
		}
		r.Score = score
		return nil
	})
	if err != nil {
		return nil, err
	}
	return score.Clone(), nil
}

// Publish posts the ticket's artifact of the given kind to the source and
// marks it published.
//
// Publishing fails with errors.ErrNotGenerated when there is no artifact,
// errors.ErrStale when the artifact was generated from older content and
// errors.ErrAlreadyPublished when it is already published.
func (e *Engine) Publish(ctx context.Context, id string, kind ticket.Kind) (*ticket.Artifact, error) {
	if e.source == nil {
		return nil, notConfigured("ticket source")
	}

	// One publisher per artifact, so a comment is never posted twice.
	unlock := e.publishing.lock(id + "/" + string(kind))
	defer unlock()

	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := publishable(rec, kind)
	if err != nil {
		return nil, fmt.Errorf("publish %s %s: %w", kind.Label(), id, err)
	}

	markdown := FormatComment(a)
	remoteID, err := call(ctx, e, "publish", func(ctx context.Context) (string, error) {
		return e.source.PublishComment(ctx, id, markdown)
	})
	if err != nil {
		return nil, err
	}

	now := e.now()
	var out *ticket.Artifact
	err = e.store.Update(ctx, id, func(r *ticket.Record) error {
		if r.Ticket == nil {
			return notFound(id)
		}
		cur := r.Artifact(kind)
		if cur == nil || cur.ID != a.ID {
			return fmt.Errorf("publish %s %s: %w", kind.Label(), id, prerrors.ErrContentChanged)
		}
		cur.PublishStatus = ticket.Published
		if fingerprint.IsStale(cur, r.Ticket.Fingerprint) {
			cur.PublishStatus = ticket.StalePublished
		}
		cur.PublishedAt = now
		cur.RemoteCommentID = remoteID
		out = cur.Clone()
		return nil
	})
	if err != nil {
		// The comment exists remotely but is not recorded against any artifact.
		e.logger.Error("published comment not recorded", "ticket", id, "kind", kind, "comment", remoteID, "error", err)
		return nil, fmt.Errorf("comment %s posted but not recorded: %w", remoteID, err)
	}

	e.logger.Info("artifact published", "ticket", id, "kind", kind, "comment", remoteID)
	return out, nil
}

func publishable(rec *ticket.Record, kind ticket.Kind) (*ticket.Artifact, error) {
	a := rec.Artifact(kind)
	if a == nil {
		return nil, prerrors.ErrNotGenerated
	}
	st := rec.Status()
	switch {
	case st.Publish[kind] == ticket.PublishStale, st.Generate[kind] == ticket.GenerateStale:
		return nil, prerrors.ErrStale
	case st.Publish[kind] == ticket.PublishPublished:
		return nil, prerrors.ErrAlreadyPublished
	}
	return a, nil
}
