package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intScope(t *testing.T, fn func(ctx context.Context) (int, error)) *Scope[int] {
	t.Helper()
	s := NewScope[int]()
	s.Register(NewSource(fn))
	return s
}

func staticScope(t *testing.T, v int) *Scope[int] {
	t.Helper()
	return intScope(t, func(ctx context.Context) (int, error) { return v, nil })
}

func failingScope(t *testing.T, err error) *Scope[int] {
	t.Helper()
	return intScope(t, func(ctx context.Context) (int, error) { return 0, err })
}

func TestMapCollectAll(t *testing.T) {
	m := NewMap[int, map[string]int](Identity[int]())
	m.Attach("a", staticScope(t, 1))
	m.Attach("b", staticScope(t, 2))

	values, err := m.Collect(context.Background()).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, values)
}

func TestMapPartialFailure(t *testing.T) {
	childErr := errors.New("bad value")

	m := NewMap[int, map[string]int](Identity[int]())
	m.Attach("a", staticScope(t, 1))
	m.Attach("b", failingScope(t, childErr))

	_, err := m.Collect(context.Background()).Await(context.Background())
	require.Error(t, err)

	var agg *AggregateError[int]
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, map[string]int{"a": 1}, agg.Values)
	require.Len(t, agg.Errors, 1)
	assert.ErrorIs(t, agg.Errors["b"], childErr)

	_, inValues := agg.Values["b"]
	assert.False(t, inValues, "a failed entry must never appear in the value map")

	// The structured error still matches the generic sentinel.
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMapFilterErrorUnwrapped(t *testing.T) {
	filterErr := errors.New("filter says no")

	m := NewMap[int, int](func(values map[string]int) (int, error) {
		return 0, filterErr
	})
	m.Attach("a", staticScope(t, 1))

	_, err := m.Collect(context.Background()).Await(context.Background())
	require.Same(t, filterErr, err, "a filter error must propagate unchanged")
}

func TestMapFilterPanicWithError(t *testing.T) {
	filterErr := errors.New("filter panicked")

	m := NewMap[int, int](func(values map[string]int) (int, error) {
		panic(filterErr)
	})
	m.Attach("a", staticScope(t, 1))

	_, err := m.Collect(context.Background()).Await(context.Background())
	require.Same(t, filterErr, err)
}

func TestMapFilterNotCalledOnFailure(t *testing.T) {
	filterCalls := 0

	m := NewMap[int, int](func(values map[string]int) (int, error) {
		filterCalls++
		return 0, nil
	})
	m.Attach("a", failingScope(t, errors.New("boom")))

	_, err := m.Collect(context.Background()).Await(context.Background())
	require.Error(t, err)
	assert.Zero(t, filterCalls)
}

func TestMapFilterSum(t *testing.T) {
	m := NewMap[int, int](func(values map[string]int) (int, error) {
		sum := 0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	})
	m.Attach("a", staticScope(t, 1))
	m.Attach("b", staticScope(t, 2))
	m.Attach("c", staticScope(t, 3))

	sum, err := m.Collect(context.Background()).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, sum)
}

func TestMapDuplicateAttachPanics(t *testing.T) {
	m := NewMap[int, map[string]int](Identity[int]())
	m.Attach("a", staticScope(t, 1))

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic on duplicate attach")
		var perr *ProtocolError
		err, ok := r.(error)
		require.True(t, ok)
		require.ErrorAs(t, err, &perr)
		assert.True(t, strings.Contains(perr.Reason, `"a"`))
	}()
	m.Attach("a", staticScope(t, 2))
}

func TestMapDetachStale(t *testing.T) {
	m := NewMap[int, map[string]int](Identity[int]())
	current := staticScope(t, 1)
	stale := staticScope(t, 2)
	m.Attach("a", current)

	// Detaching with a scope that is not on record must not remove the
	// entry (guards re-render races).
	m.Detach("a", stale)
	assert.Equal(t, []string{"a"}, m.Names())

	m.Detach("a", current)
	assert.Empty(t, m.Names())

	// Once detached, the name may be attached again.
	m.Attach("a", stale)
	assert.Equal(t, []string{"a"}, m.Names())
}

func TestMapSnapshotExcludesMidFlightAttach(t *testing.T) {
	release := make(chan struct{})

	m := NewMap[int, map[string]int](Identity[int]())
	m.Attach("a", intScope(t, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	}))

	col := m.Collect(context.Background())

	// Attach a new entry while the collection is in flight; the snapshot
	// taken at initiation must not include it.
	m.Attach("b", staticScope(t, 2))
	close(release)

	values, err := col.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, values)
}

func TestMapSnapshotIncludesMidFlightDetach(t *testing.T) {
	release := make(chan struct{})

	m := NewMap[int, map[string]int](Identity[int]())
	m.Attach("a", staticScope(t, 1))
	slow := intScope(t, func(ctx context.Context) (int, error) {
		<-release
		return 2, nil
	})
	m.Attach("b", slow)

	col := m.Collect(context.Background())

	m.Detach("b", slow)
	close(release)

	values, err := col.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, values)
}

func TestMapNoFailFast(t *testing.T) {
	release := make(chan struct{})
	slowDone := make(chan struct{})

	m := NewMap[int, map[string]int](Identity[int]())
	m.Attach("fast", failingScope(t, errors.New("immediate failure")))
	m.Attach("slow", intScope(t, func(ctx context.Context) (int, error) {
		<-release
		close(slowDone)
		return 2, nil
	}))

	col := m.Collect(context.Background())

	// The fast failure must not settle the aggregate before the slow
	// branch finishes.
	time.Sleep(20 * time.Millisecond)
	_, _, settled := col.Settled()
	assert.False(t, settled)

	close(release)
	_, err := col.Await(context.Background())
	require.Error(t, err)

	select {
	case <-slowDone:
	default:
		t.Fatal("the slow branch never ran to completion")
	}

	var agg *AggregateError[int]
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, map[string]int{"slow": 2}, agg.Values)
}

func TestMapCollectLimit(t *testing.T) {
	const entries = 8

	m := NewMap[int, map[string]int](Identity[int](), WithCollectLimit[int, map[string]int](1))
	for i := 0; i < entries; i++ {
		i := i
		m.Attach(fmt.Sprintf("n%d", i), staticScope(t, i))
	}

	values, err := m.Collect(context.Background()).Await(context.Background())
	require.NoError(t, err)
	require.Len(t, values, entries)
}

func TestMapNilFilterPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic on nil filter")
	}()
	NewMap[int, int](nil)
}

func TestMapEmptyCollect(t *testing.T) {
	m := NewMap[int, map[string]int](Identity[int]())

	values, err := m.Collect(context.Background()).Await(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestMapAggregateErrorMessage(t *testing.T) {
	m := NewMap[int, map[string]int](Identity[int]())
	m.Attach("a", staticScope(t, 1))
	m.Attach("b", failingScope(t, errors.New("first")))
	m.Attach("c", failingScope(t, errors.New("second")))

	_, err := m.Collect(context.Background()).Await(context.Background())
	require.Error(t, err)
	assert.Equal(t, "collect: 2 of 3 entries failed: b, c", err.Error())
}
