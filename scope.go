package collect

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scope is a tree-positioned binding point for exactly one source. The
// host creates a scope for each node position, descendants register their
// source into it, and the nearest ancestor pulls through Collect.
type Scope[T any] struct {
	mu         sync.Mutex
	source     Source[T]
	extensions []Extension
	tags       TagCache
	trace      *CollectionTrace
}

// ScopeOption is a modifier for scopes
type ScopeOption[T any] func(*Scope[T])

// WithExtension returns an option that registers an extension to a scope
func WithExtension[T any](ext Extension) ScopeOption[T] {
	return func(s *Scope[T]) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithTrace returns an option that records this scope's settled
// collections into tr.
func WithTrace[T any](tr *CollectionTrace) ScopeOption[T] {
	return func(s *Scope[T]) {
		s.trace = tr
	}
}

// WithName returns an option that sets the scope's display name, used by
// traces and logging extensions.
func WithName[T any](name string) ScopeOption[T] {
	return func(s *Scope[T]) {
		scopeNameTag.Set(s, name)
	}
}

// WithScopeTag returns an option that sets a tag on a scope
func WithScopeTag[T any, V any](tag Tag[V], val V) ScopeOption[T] {
	return func(s *Scope[T]) {
		tag.Set(s, val)
	}
}

// NewScope creates a new scope with optional configuration
func NewScope[T any](opts ...ScopeOption[T]) *Scope[T] {
	s := &Scope[T]{}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register binds src as the scope's source. Registering while another
// source is bound is a programming error and panics with *ProtocolError.
func (s *Scope[T]) Register(src Source[T]) {
	if src == nil {
		panic(&ProtocolError{Op: "scope.register", Reason: "nil source"})
	}

	s.mu.Lock()
	if s.source != nil {
		s.mu.Unlock()
		panic(&ProtocolError{Op: "scope.register", Reason: "a source is already registered"})
	}
	s.source = src
	exts := s.extensions
	s.mu.Unlock()

	op := &Operation{Kind: OpRegister, Scope: s}
	for _, ext := range exts {
		ext.OnRegister(op)
	}
}

// Unregister clears the slot if src is the source on record; any other
// call is a no-op. This keeps out-of-order detach during host re-renders
// harmless, and allows a later re-registration.
func (s *Scope[T]) Unregister(src Source[T]) {
	s.mu.Lock()
	if !sameSource(s.source, src) {
		s.mu.Unlock()
		return
	}
	s.source = nil
	exts := s.extensions
	s.mu.Unlock()

	op := &Operation{Kind: OpUnregister, Scope: s}
	for _, ext := range exts {
		ext.OnUnregister(op)
	}
}

// Collect forwards to the registered source and returns its collection
// unchanged. Collecting from an empty scope is a programming error and
// panics with *ProtocolError.
func (s *Scope[T]) Collect(ctx context.Context) *Collection[T] {
	s.mu.Lock()
	src := s.source
	exts := s.extensions
	tr := s.trace
	s.mu.Unlock()

	if src == nil {
		panic(&ProtocolError{Op: "scope.collect", Reason: "no source registered"})
	}

	op := &Operation{Kind: OpCollect, Scope: s}
	for _, ext := range exts {
		if err := ext.OnCollectStart(ctx, op); err != nil {
			rejected := Rejected[T](err)
			for _, e := range exts {
				e.OnError(err, op)
			}
			return rejected
		}
	}

	sourceCtx := ctx
	nodeID := ""
	start := time.Now()
	if tr != nil {
		nodeID = uuid.NewString()
		sourceCtx = withParentNode(ctx, nodeID)
	}

	col := src.Collect(sourceCtx)

	if tr != nil || len(exts) > 0 {
		go s.observe(ctx, col, exts, tr, op, nodeID, start)
	}

	return col
}

// observe watches a collection settle on behalf of extensions and the
// trace, without wrapping the collection handed to the caller.
func (s *Scope[T]) observe(ctx context.Context, col *Collection[T], exts []Extension, tr *CollectionTrace, op *Operation, nodeID string, start time.Time) {
	<-col.Done()
	val, err, _ := col.Settled()

	var result any
	if err == nil {
		result = val
	}
	for i := len(exts) - 1; i >= 0; i-- {
		exts[i].OnCollectEnd(ctx, op, result, err)
	}
	if err != nil {
		for _, ext := range exts {
			ext.OnError(err, op)
		}
	}

	if tr != nil {
		tags := acquireTagMap()
		if name, ok := scopeNameTag.Get(s); ok {
			tags[scopeNameTag] = name
		}
		tags[startTimeTag] = start
		tags[endTimeTag] = time.Now()
		tags[statusTag] = statusOf(err)
		if err != nil {
			tags[errorTag] = err
		} else {
			tags[outputTag] = result
		}
		if stack := col.PanicStack(); stack != nil {
			tags[panicStackTag] = stack
		}
		tr.addNode(&TraceNode{
			ID:       nodeID,
			ParentID: parentNodeID(ctx),
			Tags:     tags,
		})
	}
}

func statusOf(err error) CollectionStatus {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Registered reports whether a source currently occupies the slot.
func (s *Scope[T]) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != nil
}

// UseExtension registers an extension to the scope
func (s *Scope[T]) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()

	return ext.Init(s)
}

// Dispose disposes the scope's extensions.
func (s *Scope[T]) Dispose() error {
	s.mu.Lock()
	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	s.mu.Unlock()

	var errs []error
	for _, ext := range exts {
		if err := ext.Dispose(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetTag retrieves a tag value from the scope
func (s *Scope[T]) GetTag(tag any) (any, bool) {
	return s.tags.Load(tag)
}

// SetTag stores a tag value on the scope
func (s *Scope[T]) SetTag(tag any, val any) {
	s.tags.Store(tag, val)
}
