package concurrency

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ParallelMap applies fn to each element of items on at most workers goroutines,
// returning results in input order. The first error cancels the remaining work.
func ParallelMap[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, items[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Ring is a bounded most-recent-first log. When full, the oldest entry is evicted.
// Writers are serialised; readers get an immutable snapshot without locking.
type Ring[T any] struct {
	mu   sync.Mutex
	cap  int
	view atomic.Pointer[[]T]
}

// NewRing creates a ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{cap: capacity}
	empty := make([]T, 0)
	r.view.Store(&empty)
	return r
}

// Push prepends item, evicting the oldest entry when full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.view.Load()
	n := len(cur) + 1
	if n > r.cap {
		n = r.cap
	}
	next := make([]T, n)
	next[0] = item
	copy(next[1:], cur)
	r.view.Store(&next)
}

// Update replaces the first entry for which match returns true with fn's result.
func (r *Ring[T]) Update(match func(T) bool, fn func(T) T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.view.Load()
	for i, v := range cur {
		if match(v) {
			next := append([]T(nil), cur...)
			next[i] = fn(v)
			r.view.Store(&next)
			return true
		}
	}
	return false
}

// Snapshot returns the entries, most recent first. Callers must not modify it.
func (r *Ring[T]) Snapshot() []T {
	return *r.view.Load()
}

// Len returns the current number of entries.
func (r *Ring[T]) Len() int {
	return len(*r.view.Load())
}

// Cap returns the maximum number of entries.
func (r *Ring[T]) Cap() int {
	return r.cap
}
