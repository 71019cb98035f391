package collect

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Map is the aggregator: a dynamic named set of child scopes collected
// together into one keyed result or one structured multi-error.
//
// The name set changes as children attach and detach; a collection
// operates on the snapshot taken at initiation. Children are dispatched
// in attach order and settle in any order; no child failure short-circuits
// the others, because partial results are part of the error contract.
type Map[T any, R any] struct {
	mu      sync.Mutex
	entries map[string]*Scope[T]
	order   []string
	filter  func(map[string]T) (R, error)
	limit   int
}

// MapOption is a modifier for maps
type MapOption[T any, R any] func(*Map[T, R])

// WithCollectLimit bounds how many children are collected concurrently.
// Zero or negative means no bound.
func WithCollectLimit[T any, R any](n int) MapOption[T, R] {
	return func(m *Map[T, R]) {
		m.limit = n
	}
}

// NewMap creates an aggregator whose successful collections pass the
// keyed value map through filter. A nil filter is a programming error;
// use Identity for a pass-through.
func NewMap[T any, R any](filter func(map[string]T) (R, error), opts ...MapOption[T, R]) *Map[T, R] {
	if filter == nil {
		panic(&ProtocolError{Op: "map.new", Reason: "nil filter; use Identity for a pass-through"})
	}

	m := &Map[T, R]{
		entries: make(map[string]*Scope[T]),
		filter:  filter,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Identity is the pass-through filter: the aggregated value map itself.
func Identity[T any]() func(map[string]T) (map[string]T, error) {
	return func(values map[string]T) (map[string]T, error) {
		return values, nil
	}
}

// Attach adds a named child scope. Attaching a name that is already live
// is a programming error and panics with *ProtocolError.
func (m *Map[T, R]) Attach(name string, child *Scope[T]) {
	if child == nil {
		panic(&ProtocolError{Op: "map.attach", Reason: "nil child scope"})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; ok {
		panic(&ProtocolError{Op: "map.attach", Reason: fmt.Sprintf("entry %q is already attached", name)})
	}
	m.entries[name] = child
	m.order = append(m.order, name)
}

// Detach removes the named entry, but only if child is still the scope on
// record for that name. A stale detach during a host re-render is a no-op.
func (m *Map[T, R]) Detach(name string, child *Scope[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entries[name]
	if !ok || current != child {
		return
	}
	delete(m.entries, name)
	m.order = removeName(m.order, name)
}

// Names returns the currently attached entry names in attach order.
func (m *Map[T, R]) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

type outcome[T any] struct {
	value T
	err   error
}

// Collect snapshots the entry set, collects every child concurrently,
// and settles once all branches have.
func (m *Map[T, R]) Collect(ctx context.Context) *Collection[R] {
	m.mu.Lock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	scopes := make([]*Scope[T], len(names))
	for i, name := range names {
		scopes[i] = m.entries[name]
	}
	limit := m.limit
	m.mu.Unlock()

	col := newCollection[R]()

	go func() {
		outcomes := make([]outcome[T], len(names))

		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		for i, child := range scopes {
			i, child := i, child
			g.Go(func() error {
				v, err := child.Collect(ctx).Await(ctx)
				outcomes[i] = outcome[T]{value: v, err: err}
				return nil
			})
		}
		_ = g.Wait()

		values := make(map[string]T)
		failures := make(map[string]error)
		for i, name := range names {
			if outcomes[i].err != nil {
				failures[name] = outcomes[i].err
			} else {
				values[name] = outcomes[i].value
			}
		}

		if len(failures) > 0 {
			col.reject(&AggregateError[T]{Values: values, Errors: failures})
			return
		}

		result, err := applyFilter(m.filter, values)
		if err != nil {
			col.reject(err)
			return
		}
		col.settle(result, nil)
	}()

	return col
}

// applyFilter runs the caller-supplied filter, converting a panic into a
// rejection while keeping error values unchanged.
func applyFilter[T any, R any](filter func(map[string]T) (R, error), values map[string]T) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = asError(r)
		}
	}()
	return filter(values)
}

func removeName(names []string, name string) []string {
	for i, existing := range names {
		if existing == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
