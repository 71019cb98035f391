// Package collect implements a tree-scoped asynchronous value collection
// protocol for Go.
//
// # Overview
//
// Collect organizes code around three core concepts:
//
//  1. Scopes: single-slot binding points, each owning at most one source
//  2. Sources: adapters exposing an async value accessor to their scope
//  3. Collections: one-shot futures produced by every collect operation
//
// A tree of independently owned nodes cooperates to produce one validated,
// asynchronously computed value on demand (for example, submitting a form
// assembled from many isolated fields), without any node holding a direct
// reference to any other. The tree structure itself is supplied by the
// host: descendants register sources into scopes the host hands them, and
// an ancestor pulls the combined value by calling Collect on the root.
//
// # Basic Usage
//
// Bind a source to a scope, then collect:
//
//	scope := collect.NewScope[string]()
//
//	src := collect.NewSource(func(ctx context.Context) (string, error) {
//	    return "hello", nil
//	})
//
//	scope.Register(src)
//	defer scope.Unregister(src)
//
//	val, err := scope.Collect(ctx).Await(ctx)
//
// A scope holds at most one source at a time. Registering a second source
// without unregistering the first, or collecting from an empty scope, is a
// programming error and panics with *ProtocolError.
//
// # Aggregation
//
// A Map gathers named child scopes into one keyed result:
//
//	form := collect.NewMap[any, map[string]any](collect.Identity[any]())
//
//	form.Attach("name", nameScope)
//	form.Attach("email", emailScope)
//
//	values, err := form.Collect(ctx).Await(ctx)
//
// Children are collected concurrently and every branch is always allowed
// to settle. When one or more children fail, the Map rejects with an
// *AggregateError carrying both the values that succeeded and the errors
// that did not, keyed by entry name. The entry set is snapshotted when
// collection starts: attaches and detaches that happen mid-flight do not
// change an in-flight result.
//
// # Decorators
//
// Decorator nodes compose over the protocol without changing its contract:
//
//	// Coalesce bursts of triggers into one collection.
//	deb := collect.NewDebouncer(child, 200*time.Millisecond)
//
//	// Skip re-collection while the underlying value is unchanged.
//	pre := collect.NewPrevalidator(child,
//	    collect.OnValid[string](func() { markFieldGood() }),
//	    collect.OnInvalid[string](func() { markFieldPending() }),
//	)
//	pre.Update(ctx, input.Token())
//
//	// Observe pending/settled transitions for presentation.
//	status := collect.NewStatusTracker(child)
//	cancel := status.Subscribe(func(err error, pending bool) { render(err, pending) })
//	defer cancel()
//
//	// Retain the last good value across failed attempts.
//	prev := collect.NewPreview(child, collect.WithFallback[string](recoverDraft))
//
// Every decorator implements Source for its value type, so decorators
// nest by registering into the next scope up the tree.
//
// # Staleness
//
// Nothing is ever forcibly cancelled. Each decorator that reacts to
// supersession remembers the *Collection it most recently started and
// compares pointers when a collection settles; a superseded settlement is
// discarded. Callers bound their own waits through the context passed to
// Await.
//
// # Extensions
//
// Extensions hook scope lifecycle for cross-cutting concerns:
//
//	type timingExtension struct {
//	    collect.BaseExtension
//	}
//
//	func (e *timingExtension) OnCollectEnd(ctx context.Context, op *collect.Operation, result any, err error) {
//	    log.Printf("%s finished: err=%v", op.Kind, err)
//	}
//
//	scope := collect.NewScope[string](
//	    collect.WithExtension[string](&timingExtension{
//	        BaseExtension: collect.NewBaseExtension("timing"),
//	    }),
//	)
//
// # Tracing
//
// A CollectionTrace records every settled collection of the scopes it is
// attached to, with parent links derived from context propagation:
//
//	trace := collect.NewCollectionTrace(1000)
//	scope := collect.NewScope[string](
//	    collect.WithName[string]("email"),
//	    collect.WithTrace[string](trace),
//	)
//
//	for _, root := range trace.GetRoots() {
//	    status, _ := collect.StatusOf().Get(root)
//	    fmt.Println(root.ID, status)
//	}
//
// # Thread Safety
//
// All exported operations are safe for concurrent use. The protocol
// itself assumes a cooperating host: attach/detach of a given scope is
// driven by the lifecycle of its direct child, and the single-slot
// invariant substitutes for heavier coordination.
package collect
