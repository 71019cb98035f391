package collect

import (
	"context"
	"sync"
)

// Preview exposes a secondary observation path over a child scope:
// Collect passes through untouched, while Preview runs a collection whose
// rejection may be converted by a fallback transform, retaining the last
// successful value for observers regardless of later failures.
type Preview[T any] struct {
	mu       sync.Mutex
	child    *Scope[T]
	fallback func(error) (T, error)
	last     T
	hasLast  bool
}

// PreviewOption is a modifier for previews
type PreviewOption[T any] func(*Preview[T])

// WithFallback sets the transform applied to a rejected preview attempt.
// Returning a nil error converts the rejection into a preview value; the
// returned error, if any, propagates unchanged.
func WithFallback[T any](fn func(error) (T, error)) PreviewOption[T] {
	return func(p *Preview[T]) {
		p.fallback = fn
	}
}

// NewPreview creates a preview over child.
func NewPreview[T any](child *Scope[T], opts ...PreviewOption[T]) *Preview[T] {
	if child == nil {
		panic(&ProtocolError{Op: "preview.new", Reason: "nil child scope"})
	}

	p := &Preview[T]{child: child}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Collect is a transparent pass-through to the child scope, so the
// preview can sit anywhere in the tree without changing the protocol.
func (p *Preview[T]) Collect(ctx context.Context) *Collection[T] {
	return p.child.Collect(ctx)
}

// Preview runs a child collection for observation. A rejection goes
// through the fallback when one is configured; with no fallback it
// re-raises. Successful values, direct or fallback-produced, become the
// retained last-known-good value. An abandoned wait propagates the
// context error without consulting the fallback: only a settled
// rejection is a candidate for conversion.
func (p *Preview[T]) Preview(ctx context.Context) *Collection[T] {
	inner := p.child.Collect(ctx)
	out := newCollection[T]()

	go func() {
		select {
		case <-inner.Done():
		case <-ctx.Done():
			out.reject(ctx.Err())
			return
		}

		v, err, _ := inner.Settled()
		if err != nil && p.fallback != nil {
			v, err = p.applyFallback(err)
		}
		if err == nil {
			p.mu.Lock()
			p.last = v
			p.hasLast = true
			p.mu.Unlock()
		}
		out.settle(v, err)
	}()

	return out
}

// applyFallback runs the caller-supplied fallback, converting a panic
// into a rejection while keeping error values unchanged.
func (p *Preview[T]) applyFallback(rejection error) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, asError(r)
		}
	}()
	return p.fallback(rejection)
}

// Last returns the last successfully previewed value, if any.
func (p *Preview[T]) Last() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasLast
}
