package proref

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/fingerprint"
	"github.com/randalmurphal/proref/quality"
	"github.com/randalmurphal/proref/similarity"
	"github.com/randalmurphal/proref/ticket"
)

// Status returns the per-stage state of a ticket. An unknown ticket is
// reported as absent, not as an error.
func (e *Engine) Status(ctx context.Context, id string) (ticket.Status, error) {
	rec, err := e.store.Get(ctx, id)
	if errors.Is(err, prerrors.ErrTicketNotFound) {
		st := (*ticket.Record)(nil).Status()
		st.TicketID = id
		return st, nil
	}
	if err != nil {
		return ticket.Status{}, err
	}
	return rec.Status(), nil
}

// Statuses returns the status of every stored ticket, ordered by id.
func (e *Engine) Statuses(ctx context.Context) ([]ticket.Status, error) {
	recs, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ticket.Status, 0, len(recs))
	for _, r := range recs {
		if r.Ticket != nil {
			out = append(out, r.Status())
		}
	}
	return out, nil
}

// Counts returns how many tickets are in each state of each stage.
func (e *Engine) Counts(ctx context.Context) (ticket.Counts, error) {
	sts, err := e.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	c := make(ticket.Counts)
	for _, st := range sts {
		c.Add(st)
	}
	return c, nil
}

// TicketsIn lists the tickets whose stage is in state. kind selects the
// artifact for the generate and publish stages.
func (e *Engine) TicketsIn(ctx context.Context, stage ticket.Stage, kind ticket.Kind, state string) ([]string, error) {
	sts, err := e.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, st := range sts {
		if st.State(stage, kind) == state {
			ids = append(ids, st.TicketID)
		}
	}
	return ids, nil
}

// CurrentScore returns the ticket's quality score, or nil when it has none
// or the score predates the current content.
func (e *Engine) CurrentScore(ctx context.Context, id string) (*ticket.QualityScore, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Score == nil || fingerprint.IsStale(rec.Score, rec.Ticket.Fingerprint) {
		return nil, nil
	}
	return rec.Score, nil
}

// QualityBreakdown aggregates current scores per category.
func (e *Engine) QualityBreakdown(ctx context.Context) (quality.Breakdown, error) {
	var b quality.Breakdown
	recs, err := e.store.List(ctx)
	if err != nil {
		return b, err
	}
	for _, r := range recs {
		if r.Ticket == nil {
			continue
		}
		if r.Score == nil || fingerprint.IsStale(r.Score, r.Ticket.Fingerprint) {
			b.Unscored++
			continue
		}
		b.Add(r.Score.Score)
	}
	return b, nil
}

// Related returns up to k tickets similar to id with similarity of at least
// minSimilarity. Tickets that cannot be compared, including those never
// embedded, are listed in Unindexed.
func (e *Engine) Related(ctx context.Context, id string, k int, minSimilarity float64) (similarity.Result, error) {
	recs, err := e.store.List(ctx)
	if err != nil {
		return similarity.Result{}, err
	}
	known := false
	var never []string
	for _, r := range recs {
		if r.Ticket == nil {
			continue
		}
		if r.Ticket.ID == id {
			known = true
			continue
		}
		if r.Embedding == nil {
			never = append(never, r.Ticket.ID)
		}
	}
	if !known {
		return similarity.Result{}, notFound(id)
	}

	res, err := e.index.Nearest(id, k, minSimilarity)
	if err != nil {
		return res, err
	}
	if len(never) > 0 {
		res.Unindexed = append(res.Unindexed, never...)
		sort.Strings(res.Unindexed)
		res.Unindexed = slices.Compact(res.Unindexed)
	}
	return res, nil
}

// TextMatch is the answer to Match.
type TextMatch struct {
	Matches []ticket.Related `json:"matches"`

	// Unindexed lists tickets that cannot be compared with the text: never
	// embedded, stale, or embedded by another model.
	Unindexed []string `json:"unindexed,omitempty"`
}

// Match embeds free text and returns up to k tickets whose similarity to
// it is at least minSimilarity, best first.
func (e *Engine) Match(ctx context.Context, text string, k int, minSimilarity float64) (TextMatch, error) {
	if e.embedder == nil {
		return TextMatch{}, notConfigured("embedding provider")
	}
	if strings.TrimSpace(text) == "" {
		return TextMatch{}, prerrors.Validation("nothing to match: text is empty")
	}

	vec, err := call(ctx, e, "embed", func(ctx context.Context) ([]float32, error) {
		return e.embedder.Embed(ctx, text)
	})
	if err != nil {
		return TextMatch{}, err
	}
	res, err := e.index.NearestVector(vec, e.embedder.Model(), k, minSimilarity)
	if err != nil {
		return TextMatch{}, prerrors.Validation("match text embedding: %v", err)
	}

	recs, err := e.store.List(ctx)
	if err != nil {
		return TextMatch{}, err
	}
	titles := make(map[string]string, len(recs))
	out := TextMatch{Unindexed: res.Unindexed}
	for _, r := range recs {
		if r.Ticket == nil {
			continue
		}
		titles[r.Ticket.ID] = r.Ticket.Title
		if r.Embedding == nil {
			out.Unindexed = append(out.Unindexed, r.Ticket.ID)
		}
	}
	sort.Strings(out.Unindexed)
	out.Unindexed = slices.Compact(out.Unindexed)

	out.Matches = make([]ticket.Related, 0, len(res.Matches))
	for _, m := range res.Matches {
		out.Matches = append(out.Matches, ticket.Related{ID: m.TicketID, Title: titles[m.TicketID], Similarity: m.Similarity})
	}
	e.logger.Debug("text matched", "matches", len(out.Matches), "unindexed", len(out.Unindexed))
	return out, nil
}

// relatedContext returns the neighbours handed to the question generator.
// A ticket that cannot be compared yet simply gets none.
func (e *Engine) relatedContext(ctx context.Context, id string) []ticket.Related {
	res, err := e.index.Nearest(id, e.cfg.RelatedK, e.cfg.RelatedMin)
	if err != nil {
		e.logger.Debug("no related tickets", "ticket", id, "error", err)
		return nil
	}
	related := make([]ticket.Related, 0, len(res.Matches))
	for _, m := range res.Matches {
		rec, err := e.store.Get(ctx, m.TicketID)
		if err != nil {
			continue
		}
		related = append(related, ticket.Related{ID: m.TicketID, Title: rec.Ticket.Title, Similarity: m.Similarity})
	}
	return related
}

// RefreshLinks recomputes and stores the related-ticket links of id.
func (e *Engine) RefreshLinks(ctx context.Context, id string) ([]ticket.RelatedLink, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Embedding == nil {
		return nil, fmt.Errorf("%s: %w", id, similarity.ErrNotIndexed)
	}

	res, err := e.index.Nearest(id, e.cfg.RelatedK, e.cfg.RelatedMin)
	if err != nil {
		return nil, err
	}
	now := e.now()
	links := make([]ticket.RelatedLink, 0, len(res.Matches))
	for _, m := range res.Matches {
		links = append(links, ticket.RelatedLink{
			FromID:     id,
			ToID:       m.TicketID,
			Similarity: m.Similarity,
			Model:      rec.Embedding.Model,
			ComputedAt: now,
		})
	}
	if err := e.store.ReplaceLinks(ctx, id, links); err != nil {
		return nil, err
	}
	return links, nil
}

// Links returns the stored related-ticket links of id, best first.
func (e *Engine) Links(ctx context.Context, id string) ([]ticket.RelatedLink, error) {
	return e.store.Links(ctx, id)
}
