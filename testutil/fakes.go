package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/randalmurphal/proref"
	"github.com/randalmurphal/proref/ticket"
)

var (
	_ proref.Source            = (*FakeSource)(nil)
	_ proref.Embedder          = (*FakeEmbedder)(nil)
	_ proref.QuestionGenerator = (*FakeGenerator)(nil)
	_ proref.TestCaseGenerator = (*FakeGenerator)(nil)
)

// FakeSource is an in-memory ticket source.
type FakeSource struct {
	mu       sync.Mutex
	tickets  map[string]ticket.Raw
	order    []string
	comments map[string][]string
	fetchErr error
	pubErr   error
	fetches  int
}

// NewFakeSource returns a source holding raws.
func NewFakeSource(raws ...ticket.Raw) *FakeSource {
	s := &FakeSource{
		tickets:  make(map[string]ticket.Raw),
		comments: make(map[string][]string),
	}
	for _, r := range raws {
		s.Put(r)
	}
	return s
}

// Name returns "fake".
func (s *FakeSource) Name() string { return "fake" }

// Put adds or edits a ticket.
func (s *FakeSource) Put(r ticket.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.tickets[r.ID] = r
}

// Edit changes the description of a ticket.
func (s *FakeSource) Edit(id, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.tickets[id]
	r.Description = description
	s.tickets[id] = r
}

// FailFetch makes every fetch return err until cleared with nil.
func (s *FakeSource) FailFetch(err error) {
	s.mu.Lock()
	s.fetchErr = err
	s.mu.Unlock()
}

// FailPublish makes every publish return err until cleared with nil.
func (s *FakeSource) FailPublish(err error) {
	s.mu.Lock()
	s.pubErr = err
	s.mu.Unlock()
}

// Fetch returns the tickets in insertion order, limited to q.IDs when
// given.
func (s *FakeSource) Fetch(_ context.Context, q proref.Query) ([]ticket.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []ticket.Raw
	for _, id := range s.order {
		if len(q.IDs) > 0 && !contains(q.IDs, id) {
			continue
		}
		out = append(out, s.tickets[id])
	}
	return out, nil
}

// PublishComment records the comment and returns its id.
func (s *FakeSource) PublishComment(_ context.Context, id, markdown string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubErr != nil {
		return "", s.pubErr
	}
	s.comments[id] = append(s.comments[id], markdown)
	return fmt.Sprintf("%s-c%d", id, len(s.comments[id])), nil
}

// Comments returns the comments posted on id.
func (s *FakeSource) Comments(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.comments[id]...)
}

// Fetches returns the number of fetch calls.
func (s *FakeSource) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// FakeEmbedder returns fixed vectors per ticket text, or a deterministic
// vector derived from the words of the text.
type FakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	errs    []error
	calls   int
	model   string
}

// NewFakeEmbedder returns an embedder reporting model.
func NewFakeEmbedder(model string) *FakeEmbedder {
	return &FakeEmbedder{vectors: make(map[string][]float32), model: model}
}

// Model implements proref.Embedder.
func (f *FakeEmbedder) Model() string { return f.model }

// Set fixes the vector returned for texts containing marker.
func (f *FakeEmbedder) Set(marker string, v ...float32) *FakeEmbedder {
	f.mu.Lock()
	f.vectors[marker] = v
	f.mu.Unlock()
	return f
}

// FailNext makes the next calls fail with errs, one per call.
func (f *FakeEmbedder) FailNext(errs ...error) {
	f.mu.Lock()
	f.errs = append(f.errs, errs...)
	f.mu.Unlock()
}

// Calls returns the number of Embed calls.
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Embed implements proref.Embedder.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	for _, marker := range slices.Sorted(maps.Keys(f.vectors)) {
		if strings.Contains(text, marker) {
			return slices.Clone(f.vectors[marker]), nil
		}
	}
	return wordVector(text), nil
}

// wordVector hashes each word into one of eight buckets.
func wordVector(text string) []float32 {
	v := make([]float32, 8)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%8]++
	}
	return v
}

// FakeGenerator answers both question and test case requests with canned
// output that names the ticket, so regenerated content differs when the
// ticket changes.
type FakeGenerator struct {
	mu      sync.Mutex
	calls   int
	related map[string][]ticket.Related
	errs    []error
}

// NewFakeGenerator returns a generator.
func NewFakeGenerator() *FakeGenerator {
	return &FakeGenerator{related: make(map[string][]ticket.Related)}
}

// Model implements proref.QuestionGenerator and proref.TestCaseGenerator.
func (g *FakeGenerator) Model() string { return "fake-gen" }

// FailNext makes the next calls fail with errs, one per call.
func (g *FakeGenerator) FailNext(errs ...error) {
	g.mu.Lock()
	g.errs = append(g.errs, errs...)
	g.mu.Unlock()
}

// Calls returns the number of generation calls.
func (g *FakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Related returns the related tickets passed for id on the last question
// request.
func (g *FakeGenerator) Related(id string) []ticket.Related {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.related[id]
}

func (g *FakeGenerator) begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return err
	}
	return nil
}

// GenerateQuestions implements proref.QuestionGenerator.
func (g *FakeGenerator) GenerateQuestions(_ context.Context, t *ticket.Ticket, _ string, related []ticket.Related) (string, error) {
	if err := g.begin(); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.related[t.ID] = related
	g.mu.Unlock()
	return fmt.Sprintf("1. What does %q mean for users?\n2. How is %s verified?\n", t.Title, t.Description), nil
}

// GenerateTestCases implements proref.TestCaseGenerator.
func (g *FakeGenerator) GenerateTestCases(_ context.Context, t *ticket.Ticket, _ string) (string, error) {
	if err := g.begin(); err != nil {
		return "", err
	}
	return fmt.Sprintf("TC-1: %s works\n\nPRE: user logged in\n\nEXPECTED:\n- %s\n\n---\n\nTC-2: %s rejects bad input\n\nEXPECTED:\n- error shown\n",
		t.Title, t.Description, t.Title), nil
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
