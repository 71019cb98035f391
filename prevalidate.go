package collect

import (
	"context"
	"sync"
)

// Prevalidator caches its child scope's collection keyed by an
// externally supplied identity token, so an unchanged value is never
// re-collected, and tracks a validity flag with transition callbacks.
//
// Identity tokens must be comparable values. A nil token always forces
// re-collection.
type Prevalidator[T any] struct {
	mu       sync.Mutex
	child    *Scope[T]
	token    any
	hasToken bool
	current  *Collection[T]
	valid    bool
	gen      uint64

	onValid   func()
	onInvalid func()
}

// PrevalidatorOption is a modifier for prevalidators
type PrevalidatorOption[T any] func(*Prevalidator[T])

// OnValid sets the callback fired when the latest collection settles
// successfully.
func OnValid[T any](fn func()) PrevalidatorOption[T] {
	return func(p *Prevalidator[T]) {
		p.onValid = fn
	}
}

// OnInvalid sets the callback fired when a previously valid value is
// invalidated by an update.
func OnInvalid[T any](fn func()) PrevalidatorOption[T] {
	return func(p *Prevalidator[T]) {
		p.onInvalid = fn
	}
}

// NewPrevalidator creates a prevalidating cache over child. Until the
// first Update, Collect returns a placeholder rejected with
// ErrNoCollection: callers are expected to push at least one update
// before pulling.
func NewPrevalidator[T any](child *Scope[T], opts ...PrevalidatorOption[T]) *Prevalidator[T] {
	if child == nil {
		panic(&ProtocolError{Op: "prevalidate.new", Reason: "nil child scope"})
	}

	p := &Prevalidator[T]{
		child:   child,
		current: Rejected[T](ErrNoCollection),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Update notifies the cache that the underlying value may have changed.
// It is a no-op when token is non-nil and equal to the last-seen token.
// Otherwise the cache invalidates, starts a fresh child collection and
// stores it as current; when that collection settles, the validity flag
// is raised only if it is still the current one and it succeeded.
func (p *Prevalidator[T]) Update(ctx context.Context, token any) {
	p.mu.Lock()
	if token != nil && p.hasToken && token == p.token {
		p.mu.Unlock()
		return
	}
	p.gen++
	gen := p.gen
	p.token = token
	p.hasToken = token != nil
	wasValid := p.valid
	p.valid = false
	invalidCb := p.onInvalid
	p.mu.Unlock()

	if wasValid && invalidCb != nil {
		invalidCb()
	}

	p.mu.Lock()
	if p.gen != gen {
		// A newer update raced in while the callback ran.
		p.mu.Unlock()
		return
	}
	col := p.child.Collect(ctx)
	p.current = col
	p.mu.Unlock()

	go func() {
		<-col.Done()
		_, err, _ := col.Settled()

		var validCb func()
		p.mu.Lock()
		if p.current != col {
			// A newer collection superseded this one; its late
			// settlement must not flip validity.
			p.mu.Unlock()
			return
		}
		if err == nil {
			p.valid = true
			validCb = p.onValid
		}
		p.mu.Unlock()

		if validCb != nil {
			validCb()
		}
	}()
}

// Collect returns the most recently stored collection. Repeated calls
// with an unchanged token return the same *Collection instance.
func (p *Prevalidator[T]) Collect(ctx context.Context) *Collection[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Valid reports whether the latest initiated collection settled
// successfully.
func (p *Prevalidator[T]) Valid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valid
}
