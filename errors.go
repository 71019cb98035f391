package collect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidInput is the generic sentinel for "one or more leaf values
// failed validation". AggregateError matches it through errors.Is, so
// callers that do not care which entries failed can still branch on it.
var ErrInvalidInput = errors.New("one or more inputs failed validation")

// ErrNoCollection rejects the placeholder collection a Prevalidator
// returns before its first Update.
var ErrNoCollection = errors.New("no collection has been started; call Update first")

// ProtocolError signals a programming error in the use of the collection
// protocol: double registration, collecting from an empty scope,
// attaching a duplicate aggregator entry, or missing required
// configuration. It is delivered by panic and is never retried.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("collect: protocol violation in %s: %s", e.Op, e.Reason)
}

// AggregateError is the structured partial-failure report of a Map
// collection: the values of the entries that succeeded and the errors of
// the entries that did not, keyed by entry name. Both maps reflect the
// entry snapshot taken when the collection was initiated.
type AggregateError[T any] struct {
	Values map[string]T
	Errors map[string]error
}

func (e *AggregateError[T]) Error() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	total := len(e.Errors) + len(e.Values)
	return fmt.Sprintf("collect: %d of %d entries failed: %s", len(e.Errors), total, strings.Join(names, ", "))
}

// Is reports a match against ErrInvalidInput so that detail-carrying and
// detail-suppressing callers share one failure contract.
func (e *AggregateError[T]) Is(target error) bool {
	return target == ErrInvalidInput
}

// Unwrap exposes the child errors in name order.
func (e *AggregateError[T]) Unwrap() []error {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, e.Errors[name])
	}
	return errs
}

// SafeTypeAssertion performs safe type assertion with proper error
func SafeTypeAssertion[T any](value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("type assertion error: expected %T, got %T (value: %v)", zero, value, value)
	}

	return typed, nil
}

// asError converts a recovered panic value into an error, keeping error
// values unchanged.
func asError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return err
	}
	return fmt.Errorf("panic in collection: %v", recovered)
}
