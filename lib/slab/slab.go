// Package slab implements a per-worker arena for short-lived fixed-size
// objects (dirents, extents), avoiding general-purpose allocator
// contention on the hot path.
//
// Grounded on original_source/src/vfs/demofs/slab_allocator.h for the
// free-list-of-fixed-records idea, and API-shape-grounded on the
// teacher's lib/pool (New(timeout, size, limit, useMmap), Get/Put/
// InUse/InPool/Alloced) adapted from byte-buffer pooling to a typed
// fixed-record pool via generics — this package is worker-local (no
// locking), where lib/pool is shared and hence mutex-guarded.
package slab

// Arena is a per-worker free-list pool of *T values. Not safe for
// concurrent use — callers must confine an Arena to a single worker, per
// the spec's "per-worker state is thread-exclusive" scheduling model.
type Arena[T any] struct {
	new     func() *T
	reset   func(*T)
	free    []*T
	limit   int
	inUse   int
	alloced int
}

// New creates an arena. newFn constructs a fresh *T on a pool miss; reset
// (optional) zeroes a returned value before it re-enters the free list.
// limit caps how many freed values the arena retains (0 means unbounded).
func New[T any](newFn func() *T, reset func(*T), limit int) *Arena[T] {
	return &Arena[T]{new: newFn, reset: reset, limit: limit}
}

// Get returns a *T, reusing a freed value if the pool has one.
func (a *Arena[T]) Get() *T {
	n := len(a.free)
	if n == 0 {
		a.inUse++
		a.alloced++
		return a.new()
	}
	v := a.free[n-1]
	a.free = a.free[:n-1]
	a.inUse++
	return v
}

// Put returns v to the arena for reuse.
func (a *Arena[T]) Put(v *T) {
	a.inUse--
	if a.reset != nil {
		a.reset(v)
	}
	if a.limit > 0 && len(a.free) >= a.limit {
		return
	}
	a.free = append(a.free, v)
}

// InUse returns the number of values currently checked out.
func (a *Arena[T]) InUse() int { return a.inUse }

// InPool returns the number of values currently held for reuse.
func (a *Arena[T]) InPool() int { return len(a.free) }

// Alloced returns the total number of values ever constructed by newFn.
func (a *Arena[T]) Alloced() int { return a.alloced }
