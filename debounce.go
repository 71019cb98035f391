package collect

import (
	"context"
	"sync"
	"time"
)

// Debouncer delays initiation of its child scope's collection by a fixed
// quiescence interval, coalescing bursts of triggers. A Collect call made
// before the previous timer fires restarts the window; only the newest
// timer ever forwards. Superseded collections never settle, so callers
// bound their waits through the context passed to Await.
type Debouncer[T any] struct {
	mu    sync.Mutex
	child *Scope[T]
	delay time.Duration
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a debouncer over child with the given quiescence
// interval.
func NewDebouncer[T any](child *Scope[T], delay time.Duration) *Debouncer[T] {
	if child == nil {
		panic(&ProtocolError{Op: "debounce.new", Reason: "nil child scope"})
	}
	return &Debouncer[T]{
		child: child,
		delay: delay,
	}
}

// Collect starts (or restarts) the debounce window and returns the
// collection that will adopt the child's result once the window elapses
// undisturbed.
func (d *Debouncer[T]) Collect(ctx context.Context) *Collection[T] {
	col := newCollection[T]()

	d.mu.Lock()
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// Only the most recent timer may resolve; an overlapping window
		// started after this one supersedes it.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.forward(ctx, col)
	})
	d.mu.Unlock()

	return col
}

// forward runs in a continuation after the timer fires, so a synchronous
// panic from the child (for example an unregistered source) becomes a
// rejection instead of escaping.
func (d *Debouncer[T]) forward(ctx context.Context, col *Collection[T]) {
	defer func() {
		if r := recover(); r != nil {
			col.reject(asError(r))
		}
	}()

	v, err := d.child.Collect(ctx).Await(ctx)
	col.settle(v, err)
}

// Pending reports whether a debounce window is currently open.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
