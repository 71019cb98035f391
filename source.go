package collect

import (
	"context"
	"reflect"
)

// Source is the capability a scope binds: a zero-argument async value
// accessor. A source performs no transformation of its own result; it is
// owned by exactly one scope at a time.
type Source[T any] interface {
	Collect(ctx context.Context) *Collection[T]
}

type funcSource[T any] struct {
	fn func(context.Context) (T, error)
}

// NewSource adapts fn into a Source. The returned value is comparable,
// so it can later be passed to Unregister.
func NewSource[T any](fn func(context.Context) (T, error)) Source[T] {
	if fn == nil {
		panic(&ProtocolError{Op: "source.new", Reason: "nil collect function"})
	}
	return &funcSource[T]{fn: fn}
}

func (s *funcSource[T]) Collect(ctx context.Context) *Collection[T] {
	return Go(ctx, s.fn)
}

// sameSource reports whether two source interface values identify the
// same registration. Sources backed by func types are not comparable
// with ==, so those fall back to code-pointer identity.
func sameSource[T any](a, b Source[T]) bool {
	if a == nil || b == nil {
		return a == b
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	if !ra.Type().Comparable() {
		if ra.Kind() == reflect.Func {
			return ra.Pointer() == rb.Pointer()
		}
		return false
	}
	return a == b
}
