package collect

import (
	"context"
	"runtime/debug"
)

// Collection is a one-shot future: the in-flight (or settled) result of a
// single collect invocation. Decorators compare *Collection pointers to
// detect stale settlements, so each invocation yields a distinct instance.
type Collection[T any] struct {
	done  chan struct{}
	value T
	err   error
	stack []byte
}

func newCollection[T any]() *Collection[T] {
	return &Collection[T]{done: make(chan struct{})}
}

// Resolved returns an already-settled collection carrying v.
func Resolved[T any](v T) *Collection[T] {
	c := newCollection[T]()
	c.value = v
	close(c.done)
	return c
}

// Rejected returns an already-settled collection carrying err.
func Rejected[T any](err error) *Collection[T] {
	c := newCollection[T]()
	c.err = err
	close(c.done)
	return c
}

// Go spawns fn and returns the collection it will settle. A panic in fn
// surfaces as a rejection, with the stack retained for diagnostics.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Collection[T] {
	c := newCollection[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.stack = debug.Stack()
				var zero T
				c.settle(zero, asError(r))
			}
		}()
		v, err := fn(ctx)
		c.settle(v, err)
	}()
	return c
}

// settle records the outcome and releases waiters. Each collection has
// exactly one settler; settling twice is a bug in this package.
func (c *Collection[T]) settle(v T, err error) {
	c.value = v
	c.err = err
	close(c.done)
}

func (c *Collection[T]) reject(err error) {
	var zero T
	c.settle(zero, err)
}

// Await blocks until the collection settles or ctx is done. Abandoning a
// wait never aborts the underlying work.
func (c *Collection[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the collection settles.
func (c *Collection[T]) Done() <-chan struct{} {
	return c.done
}

// Settled reports the outcome without blocking. The bool is false while
// the collection is still in flight.
func (c *Collection[T]) Settled() (T, error, bool) {
	select {
	case <-c.done:
		return c.value, c.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// PanicStack returns the stack of the recovered panic that rejected this
// collection, or nil.
func (c *Collection[T]) PanicStack() []byte {
	select {
	case <-c.done:
		return c.stack
	default:
		return nil
	}
}
