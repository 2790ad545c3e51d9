package pumped

import "context"

// Extension provides hooks into the resolve/update/flow lifecycle. It is
// the single seam used for cross-cutting concerns (logging, metrics,
// graph visualization) so the core engine never needs to know about any
// of them directly.
type Extension interface {
	// Name returns the extension's name.
	Name() string

	// Order determines extension execution order (lower = earlier,
	// outermost in the Wrap chain).
	Order() int

	// Init is called when the extension is registered to a scope.
	Init(s *Scope) error

	// InitPod is called when the extension is active (inherited or
	// explicitly added) on a newly created pod.
	InitPod(p *Pod) error

	// Wrap intercepts a resolve or update operation. Implementations
	// must call next() exactly once to continue the chain.
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnError is notified after an operation fails, once the full Wrap
	// chain has unwound.
	OnError(err error, op *Operation, host Host)

	// OnCleanupError handles a cleanup callback's error. Returning true
	// marks it handled; false passes it to the next extension. An error no
	// extension handles is dropped, and the remaining cleanups still run.
	OnCleanupError(err *CleanupError) bool

	// Flow execution hooks.
	OnFlowStart(execCtx *ExecutionCtx, flow AnyFlow) error
	OnFlowEnd(execCtx *ExecutionCtx, result any, err error) error
	OnFlowPanic(execCtx *ExecutionCtx, recovered any, stack []byte) error

	// Dispose is called when the owning scope is disposed.
	Dispose(s *Scope) error
}

// Operation describes an in-flight resolve or update for extensions.
type Operation struct {
	Kind     OperationKind
	Executor AnyExecutor
}

// OperationKind is the kind of operation an extension is wrapping.
type OperationKind string

const (
	OpResolve OperationKind = "resolve"
	OpUpdate  OperationKind = "update"
)

// BaseExtension provides no-op defaults for every Extension method so
// concrete extensions only need to override the hooks they care about.
type BaseExtension struct {
	name  string
	order int
}

// NewBaseExtension creates a base extension with the given name and the
// default order (100).
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name, order: 100}
}

// NewBaseExtensionOrdered is NewBaseExtension with an explicit order.
func NewBaseExtensionOrdered(name string, order int) BaseExtension {
	return BaseExtension{name: name, order: order}
}

func (e *BaseExtension) Name() string { return e.name }
func (e *BaseExtension) Order() int   { return e.order }

func (e *BaseExtension) Init(s *Scope) error    { return nil }
func (e *BaseExtension) InitPod(p *Pod) error   { return nil }
func (e *BaseExtension) Dispose(s *Scope) error { return nil }

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, host Host)  {}
func (e *BaseExtension) OnCleanupError(err *CleanupError) bool             { return false }
func (e *BaseExtension) OnFlowStart(execCtx *ExecutionCtx, flow AnyFlow) error {
	return nil
}
func (e *BaseExtension) OnFlowEnd(execCtx *ExecutionCtx, result any, err error) error {
	return nil
}
func (e *BaseExtension) OnFlowPanic(execCtx *ExecutionCtx, recovered any, stack []byte) error {
	return nil
}

// sortExtensionsByOrder returns exts sorted ascending by Order(), stable
// for equal orders so registration order is preserved among ties.
func sortExtensionsByOrder(exts []Extension) []Extension {
	out := make([]Extension, len(exts))
	copy(out, exts)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Order() > out[j].Order(); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
