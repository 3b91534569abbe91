// Package similarity answers nearest-neighbour queries over ticket
// embeddings.
//
// Only current embeddings take part in a query. An embedding is current
// when its fingerprint matches the ticket's current fingerprint and it was
// computed by the same model, with the same dimension, as the query
// ticket's embedding. Tickets that have an embedding which is not current
// are reported in Result.Unindexed instead of being dropped silently.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/randalmurphal/proref/fingerprint"
)

var (
	// ErrNotIndexed is returned when the query ticket has no current embedding.
	ErrNotIndexed = errors.New("ticket has no current embedding")

	// ErrInvalidVector is returned for empty vectors and vectors holding
	// NaN or infinite components.
	ErrInvalidVector = errors.New("invalid embedding vector")
)

// Entry is one ticket's embedding as held by an index.
type Entry struct {
	TicketID    string
	Vector      []float32
	Model       string
	Fingerprint fingerprint.Value
}

// SourceFingerprint implements fingerprint.Stamped.
func (e Entry) SourceFingerprint() fingerprint.Value {
	return e.Fingerprint
}

// Match is one neighbour of a query ticket.
type Match struct {
	TicketID   string  `json:"ticketId"`
	Similarity float64 `json:"similarity"`
}

// Result is the answer to a Nearest query.
type Result struct {
	Matches []Match `json:"matches"`

	// Unindexed lists tickets skipped because their embedding is stale or
	// incompatible with the query's, sorted by id.
	Unindexed []string `json:"unindexed,omitempty"`
}

// Index stores at most one embedding per ticket.
//
// Implementations must be safe for concurrent use and must never expose a
// partially written vector to a query.
type Index interface {
	// Upsert replaces any prior entry for e.TicketID.
	Upsert(e Entry) error

	// SetFingerprint records the ticket's current content fingerprint. An
	// entry whose fingerprint differs is stale until it is replaced.
	SetFingerprint(ticketID string, current fingerprint.Value)

	// Remove deletes the ticket's entry and its recorded fingerprint.
	Remove(ticketID string)

	// Nearest returns up to k tickets whose similarity to ticketID is at
	// least minSimilarity, best first. k <= 0 means no limit.
	Nearest(ticketID string, k int, minSimilarity float64) (Result, error)

	// NearestVector ranks current entries computed by model against an
	// arbitrary vector, with the same k and minSimilarity rules as Nearest.
	NearestVector(vector []float32, model string, k int, minSimilarity float64) (Result, error)

	// Len reports the number of entries, stale or not.
	Len() int
}

type entry struct {
	Entry
	norm  float64
	stale bool
}

// LinearIndex is an Index that scans every entry on each query.
type LinearIndex struct {
	mu      sync.RWMutex
	entries map[string]*entry
	current map[string]fingerprint.Value
}

// NewLinearIndex returns an empty LinearIndex.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{
		entries: make(map[string]*entry),
		current: make(map[string]fingerprint.Value),
	}
}

// Upsert implements Index. The vector is copied. The entry's fingerprint
// becomes the ticket's current fingerprint only when none was recorded.
func (x *LinearIndex) Upsert(e Entry) error {
	if e.TicketID == "" {
		return errors.New("similarity: empty ticket id")
	}
	if err := CheckVector(e.Vector); err != nil {
		return fmt.Errorf("similarity: %s: %w", e.TicketID, err)
	}
	e.Vector = append([]float32(nil), e.Vector...)
	ent := &entry{Entry: e, norm: norm(e.Vector)}

	x.mu.Lock()
	defer x.mu.Unlock()
	cur, ok := x.current[e.TicketID]
	if !ok {
		cur = e.Fingerprint
		x.current[e.TicketID] = cur
	}
	ent.stale = fingerprint.IsStale(e, cur)
	x.entries[e.TicketID] = ent
	return nil
}

// SetFingerprint implements Index.
func (x *LinearIndex) SetFingerprint(ticketID string, current fingerprint.Value) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.current[ticketID] = current
	old, ok := x.entries[ticketID]
	if !ok {
		return
	}
	stale := fingerprint.IsStale(old.Entry, current)
	if stale == old.stale {
		return
	}
	// Entries are replaced, never mutated, so concurrent readers holding the
	// old pointer are unaffected.
	next := *old
	next.stale = stale
	x.entries[ticketID] = &next
}

// Remove implements Index.
func (x *LinearIndex) Remove(ticketID string) {
	x.mu.Lock()
	delete(x.entries, ticketID)
	delete(x.current, ticketID)
	x.mu.Unlock()
}

// Len implements Index.
func (x *LinearIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Nearest implements Index.
func (x *LinearIndex) Nearest(ticketID string, k int, minSimilarity float64) (Result, error) {
	x.mu.RLock()
	snapshot := make([]*entry, 0, len(x.entries))
	for _, e := range x.entries {
		snapshot = append(snapshot, e)
	}
	query := x.entries[ticketID]
	x.mu.RUnlock()

	return nearest(snapshot, query, ticketID, k, minSimilarity)
}

// NearestVector implements Index. Entries that are stale or were computed
// by another model or dimension are listed in Result.Unindexed.
func (x *LinearIndex) NearestVector(vector []float32, model string, k int, minSimilarity float64) (Result, error) {
	if err := CheckVector(vector); err != nil {
		return Result{}, err
	}
	query := &entry{Entry: Entry{Vector: vector, Model: model}, norm: norm(vector)}

	x.mu.RLock()
	snapshot := make([]*entry, 0, len(x.entries))
	for _, e := range x.entries {
		snapshot = append(snapshot, e)
	}
	x.mu.RUnlock()

	return Result{
		Matches:   rank(snapshot, query, "", k, minSimilarity),
		Unindexed: unindexed(snapshot, query, ""),
	}, nil
}

// CheckVector rejects empty vectors and vectors with NaN or infinite
// components.
func CheckVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidVector)
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidVector, i, f)
		}
	}
	return nil
}

func nearest(all []*entry, query *entry, ticketID string, k int, minSimilarity float64) (Result, error) {
	var res Result

	queryOK := query != nil && !query.stale
	current := 0
	for _, e := range all {
		if e.stale {
			continue
		}
		if queryOK && !compatible(query, e) {
			continue
		}
		current++
	}
	if current < 2 {
		res.Unindexed = unindexed(all, query, ticketID)
		return res, nil
	}
	if !queryOK {
		return res, fmt.Errorf("%s: %w", ticketID, ErrNotIndexed)
	}

	res.Matches = rank(all, query, ticketID, k, minSimilarity)
	res.Unindexed = unindexed(all, query, ticketID)
	return res, nil
}

// rank scores every current entry compatible with query except exclude,
// best first.
func rank(all []*entry, query *entry, exclude string, k int, minSimilarity float64) []Match {
	var matches []Match
	for _, e := range all {
		if e.TicketID == exclude || e.stale || !compatible(query, e) {
			continue
		}
		sim := cosine(query, e)
		if !(sim >= minSimilarity) {
			continue
		}
		matches = append(matches, Match{TicketID: e.TicketID, Similarity: sim})
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.TicketID < b.TicketID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// unindexed lists entries other than the query that cannot be compared
// with it.
func unindexed(all []*entry, query *entry, ticketID string) []string {
	var ids []string
	for _, e := range all {
		if e.TicketID == ticketID {
			continue
		}
		if e.stale || (query != nil && !query.stale && !compatible(query, e)) {
			ids = append(ids, e.TicketID)
		}
	}
	sort.Strings(ids)
	return ids
}

func compatible(a, b *entry) bool {
	return a.Model == b.Model && len(a.Vector) == len(b.Vector)
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity of a and b, or 0 when either has a
// zero norm or the result is not a number.
func cosine(a, b *entry) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for i := range a.Vector {
		dot += float64(a.Vector[i]) * float64(b.Vector[i])
	}
	sim := dot / (a.norm * b.norm)
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

// Cosine returns the cosine similarity of two vectors of equal length. It
// returns 0 for zero-norm vectors or mismatched lengths.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return cosine(&entry{Entry: Entry{Vector: a}, norm: norm(a)}, &entry{Entry: Entry{Vector: b}, norm: norm(b)})
}
