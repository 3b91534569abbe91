package store

import (
	"context"
	"sort"
	"sync"

	"github.com/randalmurphal/proref/ticket"
)

// MemStore keeps records in memory. It is safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*ticket.Record
	locks   map[string]*sync.Mutex
	links   map[string][]ticket.RelatedLink
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*ticket.Record),
		locks:   make(map[string]*sync.Mutex),
		links:   make(map[string][]ticket.RelatedLink),
	}
}

// lockFor returns the mutex guarding one ticket's record.
func (s *MemStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, id string) (*ticket.Record, error) {
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return r.Clone(), nil
}

// Update implements Store.
func (s *MemStore) Update(ctx context.Context, id string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	cur := s.records[id]
	s.mu.RUnlock()

	work := cur.Clone()
	if work == nil {
		work = &ticket.Record{}
	}
	if err := fn(work); err != nil {
		return err
	}
	if work.Ticket == nil {
		return nil
	}

	s.mu.Lock()
	s.records[id] = work
	s.mu.Unlock()
	return nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context) ([]*ticket.Record, error) {
	s.mu.RLock()
	out := make([]*ticket.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticket.ID < out[j].Ticket.ID })
	return out, nil
}

// ReplaceLinks implements Store.
func (s *MemStore) ReplaceLinks(_ context.Context, fromID string, links []ticket.RelatedLink) error {
	cp := append([]ticket.RelatedLink(nil), links...)
	sortLinks(cp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cp) == 0 {
		delete(s.links, fromID)
		return nil
	}
	s.links[fromID] = cp
	return nil
}

// Links implements Store.
func (s *MemStore) Links(_ context.Context, fromID string) ([]ticket.RelatedLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ticket.RelatedLink(nil), s.links[fromID]...), nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

func sortLinks(links []ticket.RelatedLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].Similarity != links[j].Similarity {
			return links[i].Similarity > links[j].Similarity
		}
		return links[i].ToID < links[j].ToID
	})
}
