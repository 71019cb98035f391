package collect

import "context"

// Extension provides hooks into the scope lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a scope
	Init(scope AnyScope) error

	// OnCollectStart is called before the source runs. A non-nil error
	// vetoes the collection, which rejects with that error.
	OnCollectStart(ctx context.Context, op *Operation) error

	// OnCollectEnd is called after the collection settles, in reverse
	// registration order. result is nil when err is non-nil.
	OnCollectEnd(ctx context.Context, op *Operation, result any, err error)

	// OnError handles failed collections
	OnError(err error, op *Operation)

	// Source lifecycle hooks
	OnRegister(op *Operation)
	OnUnregister(op *Operation)

	// Dispose is called when the scope is disposed
	Dispose(scope AnyScope) error
}

// AnyScope is a type-erased scope, as extensions see it.
type AnyScope interface {
	Taggable

	// Registered reports whether a source currently occupies the slot.
	Registered() bool
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(scope AnyScope) error {
	return nil
}

func (e *BaseExtension) OnCollectStart(ctx context.Context, op *Operation) error {
	return nil
}

func (e *BaseExtension) OnCollectEnd(ctx context.Context, op *Operation, result any, err error) {
}

func (e *BaseExtension) OnError(err error, op *Operation) {
}

func (e *BaseExtension) OnRegister(op *Operation) {
}

func (e *BaseExtension) OnUnregister(op *Operation) {
}

func (e *BaseExtension) Dispose(scope AnyScope) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind  OperationKind
	Scope AnyScope
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpCollect indicates a collection being pulled through a scope
	OpCollect OperationKind = "collect"
	// OpRegister indicates a source attaching to a scope
	OpRegister OperationKind = "register"
	// OpUnregister indicates a source detaching from a scope
	OpUnregister OperationKind = "unregister"
)
