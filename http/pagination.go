package http

import "context"

// PageFetcher fetches one page of items, starting at page 0, and reports
// whether more pages follow.
type PageFetcher[T any] func(ctx context.Context, page int) (items []T, hasMore bool, err error)

// PageIterator walks paginated API results, fetching pages lazily.
type PageIterator[T any] struct {
	fetch    PageFetcher[T]
	page     int
	buffer   []T
	done     bool
	err      error
	fetched  int
	maxPages int
}

// NewPageIterator creates an iterator over fetch. maxPages bounds the
// number of pages requested; zero means unbounded.
func NewPageIterator[T any](fetch PageFetcher[T], maxPages int) *PageIterator[T] {
	return &PageIterator[T]{fetch: fetch, maxPages: maxPages}
}

// Next returns the next item. When iteration is complete it returns
// (zero, false, nil).
func (p *PageIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	if p.err != nil {
		return zero, false, p.err
	}

	for len(p.buffer) == 0 && !p.done {
		if p.maxPages > 0 && p.page >= p.maxPages {
			p.done = true
			break
		}
		items, hasMore, err := p.fetch(ctx, p.page)
		if err != nil {
			p.err = err
			return zero, false, err
		}
		p.buffer = items
		p.done = !hasMore
		p.page++
	}

	if len(p.buffer) == 0 {
		return zero, false, nil
	}

	item := p.buffer[0]
	p.buffer = p.buffer[1:]
	p.fetched++

	return item, true, nil
}

// All collects every remaining item.
func (p *PageIterator[T]) All(ctx context.Context) ([]T, error) {
	var all []T
	for {
		item, ok, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, item)
	}
}

// Fetched returns the number of items returned so far.
func (p *PageIterator[T]) Fetched() int {
	return p.fetched
}

// Pages returns the number of pages requested so far.
func (p *PageIterator[T]) Pages() int {
	return p.page
}
