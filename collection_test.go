package collect

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCollectionResolved(t *testing.T) {
	col := Resolved(7)

	val, err, ok := col.Settled()
	if !ok {
		t.Fatal("expected a resolved collection to be settled")
	}
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 7 {
		t.Errorf("expected 7, got %d", val)
	}
}

func TestCollectionRejected(t *testing.T) {
	boom := errors.New("boom")
	col := Rejected[int](boom)

	_, err := col.Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestCollectionGo(t *testing.T) {
	col := Go(context.Background(), func(ctx context.Context) (string, error) {
		return "done", nil
	})

	val, err := col.Await(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != "done" {
		t.Errorf("expected done, got %q", val)
	}
}

func TestCollectionGoRecoversPanic(t *testing.T) {
	col := Go(context.Background(), func(ctx context.Context) (int, error) {
		panic("exploded")
	})

	_, err := col.Await(context.Background())
	if err == nil {
		t.Fatal("expected a rejection from the recovered panic")
	}
	if col.PanicStack() == nil {
		t.Error("expected the panic stack to be retained")
	}
}

func TestCollectionAwaitContext(t *testing.T) {
	col := newCollection[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := col.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	// The collection itself is still unsettled; abandoning a wait never
	// aborts the work.
	if _, _, ok := col.Settled(); ok {
		t.Error("expected the collection to remain in flight")
	}
}

func TestCollectionSettledWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	col := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	if _, _, ok := col.Settled(); ok {
		t.Fatal("expected the collection to be in flight")
	}

	close(release)
	if _, err := col.Await(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
