package collect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScopeCollectForwards(t *testing.T) {
	scope := NewScope[int]()

	src := NewSource(func(ctx context.Context) (int, error) {
		return 42, nil
	})
	scope.Register(src)

	val, err := scope.Collect(context.Background()).Await(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

type fixedSource[T any] struct {
	col *Collection[T]
}

func (s *fixedSource[T]) Collect(ctx context.Context) *Collection[T] {
	return s.col
}

func TestScopeCollectPassesCollectionThrough(t *testing.T) {
	scope := NewScope[string]()

	col := Resolved("hello")
	scope.Register(&fixedSource[string]{col: col})

	got := scope.Collect(context.Background())
	if got != col {
		t.Error("expected the source's collection to pass through unchanged")
	}
}

func TestScopeDoubleRegisterPanics(t *testing.T) {
	scope := NewScope[int]()
	first := NewSource(func(ctx context.Context) (int, error) { return 1, nil })
	second := NewSource(func(ctx context.Context) (int, error) { return 2, nil })

	scope.Register(first)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on double registration")
		}
		var perr *ProtocolError
		if err, ok := r.(error); !ok || !errors.As(err, &perr) {
			t.Fatalf("expected *ProtocolError, got %v", r)
		}
	}()
	scope.Register(second)
}

func TestScopeCollectWithoutSourcePanics(t *testing.T) {
	scope := NewScope[int]()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on collect without a source")
		}
		var perr *ProtocolError
		if err, ok := r.(error); !ok || !errors.As(err, &perr) {
			t.Fatalf("expected *ProtocolError, got %v", r)
		}
	}()
	scope.Collect(context.Background())
}

func TestScopeUnregisterStale(t *testing.T) {
	scope := NewScope[int]()
	current := NewSource(func(ctx context.Context) (int, error) { return 1, nil })
	stale := NewSource(func(ctx context.Context) (int, error) { return 2, nil })

	scope.Register(current)

	// A stale unregister (out-of-order detach) must not clear the slot.
	scope.Unregister(stale)
	if !scope.Registered() {
		t.Fatal("stale unregister cleared the registered source")
	}

	scope.Unregister(current)
	if scope.Registered() {
		t.Fatal("expected the slot to be empty after unregister")
	}
}

func TestScopeReRegisterAfterUnregister(t *testing.T) {
	scope := NewScope[int]()
	first := NewSource(func(ctx context.Context) (int, error) { return 1, nil })
	second := NewSource(func(ctx context.Context) (int, error) { return 2, nil })

	scope.Register(first)
	scope.Unregister(first)
	scope.Register(second)

	val, err := scope.Collect(context.Background()).Await(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 2 {
		t.Errorf("expected 2, got %d", val)
	}
}

func TestScopeTags(t *testing.T) {
	versionTag := NewTag[string]("version")

	scope := NewScope[int](
		WithName[int]("counter"),
		WithScopeTag[int](versionTag, "1.0.0"),
	)

	name, ok := ScopeName().Get(scope)
	if !ok || name != "counter" {
		t.Errorf("expected name counter, got %q (ok=%v)", name, ok)
	}

	version, ok := versionTag.Get(scope)
	if !ok {
		t.Fatal("expected version tag to be set")
	}
	if version != "1.0.0" {
		t.Errorf("expected 1.0.0, got %s", version)
	}
}

type recordingExtension struct {
	BaseExtension
	order  int
	events *[]string
	label  string
	veto   error
}

func (e *recordingExtension) Order() int {
	return e.order
}

func (e *recordingExtension) OnRegister(op *Operation) {
	*e.events = append(*e.events, e.label+":register")
}

func (e *recordingExtension) OnCollectStart(ctx context.Context, op *Operation) error {
	*e.events = append(*e.events, e.label+":start")
	return e.veto
}

func TestScopeExtensionOrdering(t *testing.T) {
	var events []string

	scope := NewScope[int](
		WithExtension[int](&recordingExtension{BaseExtension: NewBaseExtension("b"), order: 200, events: &events, label: "b"}),
		WithExtension[int](&recordingExtension{BaseExtension: NewBaseExtension("a"), order: 100, events: &events, label: "a"}),
	)

	scope.Register(NewSource(func(ctx context.Context) (int, error) { return 1, nil }))

	if _, err := scope.Collect(context.Background()).Await(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []string{"a:register", "b:register", "a:start", "b:start"}
	if len(events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, events)
		}
	}
}

func TestScopeExtensionVeto(t *testing.T) {
	var events []string
	vetoErr := errors.New("not now")
	var calls atomic.Int32

	scope := NewScope[int](
		WithExtension[int](&recordingExtension{BaseExtension: NewBaseExtension("veto"), order: 100, events: &events, label: "veto", veto: vetoErr}),
	)
	scope.Register(NewSource(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}))

	_, err := scope.Collect(context.Background()).Await(context.Background())
	if !errors.Is(err, vetoErr) {
		t.Fatalf("expected the veto error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("expected the source not to run after a veto")
	}
}

func TestScopeFuncSourceUnregister(t *testing.T) {
	scope := NewScope[int]()
	src := NewSource(func(ctx context.Context) (int, error) { return 1, nil })

	scope.Register(src)
	scope.Unregister(src)

	if scope.Registered() {
		t.Fatal("expected the func-backed source to unregister")
	}
}

func TestScopeCollectRespectsContext(t *testing.T) {
	scope := NewScope[int]()
	scope.Register(NewSource(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := scope.Collect(ctx).Await(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
