package collect

import (
	"context"
	"sync"
)

// StatusTracker observes a child scope's pending/settled lifecycle
// without altering the collected value, for presentation. Only the most
// recently started collection may update the observed state: a newer
// collection settling first, or an older one settling late, is discarded
// by pointer comparison.
type StatusTracker[T any] struct {
	mu      sync.Mutex
	child   *Scope[T]
	current *Collection[T]
	err     error
	pending bool

	subs   []subscription
	nextID int
}

type subscription struct {
	id int
	fn func(err error, pending bool)
}

// NewStatusTracker creates a tracker over child.
func NewStatusTracker[T any](child *Scope[T]) *StatusTracker[T] {
	if child == nil {
		panic(&ProtocolError{Op: "status.new", Reason: "nil child scope"})
	}
	return &StatusTracker[T]{child: child}
}

// Collect forwards to the child scope, returning its collection
// unchanged, and flips the observed state to pending until that same
// collection settles.
func (s *StatusTracker[T]) Collect(ctx context.Context) *Collection[T] {
	col := s.child.Collect(ctx)

	s.mu.Lock()
	s.current = col
	s.pending = true
	s.err = nil
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, nil, true)

	go func() {
		<-col.Done()
		_, err, _ := col.Settled()

		s.mu.Lock()
		if s.current != col {
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.err = err
		subs := s.snapshotSubs()
		s.mu.Unlock()

		notify(subs, err, false)
	}()

	return col
}

// Status returns the current (error, pending) pair. The error is nil
// while pending and after a success.
func (s *StatusTracker[T]) Status() (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err, s.pending
}

// Subscribe registers an observer for status transitions and returns its
// cancel function.
func (s *StatusTracker[T]) Subscribe(fn func(err error, pending bool)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *StatusTracker[T]) snapshotSubs() []subscription {
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	return subs
}

func notify(subs []subscription, err error, pending bool) {
	for _, sub := range subs {
		sub.fn(err, pending)
	}
}
