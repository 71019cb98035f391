package collect

import (
	"context"
	"sync"
)

// Input is the terminal adapter: it holds a primitive value pushed by the
// host (a field's current text, say) and turns it into the unit of
// collection by passing it through a filter function.
type Input[V comparable, T any] struct {
	mu     sync.Mutex
	value  V
	filter func(V) (T, error)
}

// NewInput creates an input whose collections pass the current value
// through filter. A nil filter is a programming error.
func NewInput[V comparable, T any](filter func(V) (T, error)) *Input[V, T] {
	if filter == nil {
		panic(&ProtocolError{Op: "input.new", Reason: "nil filter"})
	}
	return &Input[V, T]{filter: filter}
}

// Set stores the current primitive value.
func (i *Input[V, T]) Set(v V) {
	i.mu.Lock()
	i.value = v
	i.mu.Unlock()
}

// Value returns the current primitive value.
func (i *Input[V, T]) Value() V {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

// Token returns the current value as an identity token, suitable for
// Prevalidator.Update.
func (i *Input[V, T]) Token() any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

// Collect filters the value captured at invocation time. A filter error
// rejects the collection unchanged.
func (i *Input[V, T]) Collect(ctx context.Context) *Collection[T] {
	i.mu.Lock()
	v := i.value
	i.mu.Unlock()

	return Go(ctx, func(context.Context) (T, error) {
		return i.filter(v)
	})
}
