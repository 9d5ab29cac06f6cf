package api

import (
	"context"
	"iter"
)

// Page is one response of a cursor-paginated listing. An empty Continuation
// marks the last page.
type Page[T any] struct {
	Items        []T
	Continuation string
}

// PageFunc fetches the page that starts at continuation ("" for the first).
type PageFunc[T any] func(ctx context.Context, continuation string) (Page[T], error)

// Pager lazily walks a paginated listing, holding only the current page and
// the next cursor. It is single use: to start over, create a new Pager.
type Pager[T any] struct {
	fetch  PageFunc[T]
	buf    []T
	cursor string
	done   bool
}

// NewPager returns a Pager that has not fetched anything yet.
func NewPager[T any](fetch PageFunc[T]) *Pager[T] {
	return &Pager[T]{fetch: fetch}
}

// Next returns the next item. ok is false once the listing is exhausted.
// A page with no items but a cursor is skipped; an error ends the listing.
func (p *Pager[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	for len(p.buf) == 0 {
		if p.done {
			return item, false, nil
		}

		page, fetchErr := p.fetch(ctx, p.cursor)
		if fetchErr != nil {
			p.done = true

			return item, false, fetchErr
		}

		p.buf = page.Items
		p.cursor = page.Continuation
		p.done = p.cursor == ""
	}

	item = p.buf[0]
	p.buf = p.buf[1:]

	return item, true, nil
}

// All adapts the pager to a range-over-func sequence. Iteration stops after
// the first error is yielded.
func (p *Pager[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, ok, err := p.Next(ctx)
			if err != nil {
				yield(item, err)

				return
			}

			if !ok || !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains p into a slice.
func Collect[T any](ctx context.Context, p *Pager[T]) ([]T, error) {
	var out []T

	for item, err := range p.All(ctx) {
		if err != nil {
			return out, err
		}

		out = append(out, item)
	}

	return out, nil
}
