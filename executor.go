package pumped

import "fmt"

// DependencyMode controls how the resolution engine delivers a dependency
// to a dependent's factory. It corresponds to the four executor kinds of
// the spec: a bare executor used as a dependency is Main; e.Reactive(),
// e.Lazy() and e.Static() produce the other three.
type DependencyMode string

const (
	// ModeMain resolves the dependency eagerly, ahead of the dependent's
	// factory, and delivers its value. This is the default for a bare
	// *Executor[T] used directly as a dependency.
	ModeMain DependencyMode = "main"
	// ModeReactive resolves the dependency eagerly like ModeMain, and
	// additionally installs a reactive edge so the dependent is
	// invalidated and re-resolved whenever the dependency updates.
	ModeReactive DependencyMode = "reactive"
	// ModeLazy does not resolve the dependency ahead of time; the
	// dependent's factory receives a Controller and resolution happens
	// only if the factory calls Get on it.
	ModeLazy DependencyMode = "lazy"
	// ModeStatic behaves like ModeLazy for delivery purposes (the
	// dependent receives a Controller, not a forced resolution) but
	// signals intent: the dependent wants read/update/subscribe access to
	// the dependency itself, not merely its current value.
	ModeStatic DependencyMode = "static"
)

// Dependency is a reference to a base executor together with the mode the
// engine should use to resolve and deliver it. *Executor[T] itself
// implements Dependency with ModeMain; Reactive/Lazy/Static wrap it.
type Dependency interface {
	baseExecutor() AnyExecutor
	mode() DependencyMode
}

type dependencyVariant struct {
	base AnyExecutor
	m    DependencyMode
}

func (d *dependencyVariant) baseExecutor() AnyExecutor { return d.base }
func (d *dependencyVariant) mode() DependencyMode      { return d.m }

// AnyExecutor is the type-erased interface every *Executor[T] satisfies.
// It is the identity used as a cache key throughout scopes and pods:
// pointer equality between two AnyExecutor values holding the same
// *Executor[T] is guaranteed by Go, which is exactly the stable,
// comparable identity the engine needs.
type AnyExecutor interface {
	taggable
	name() string
	getDeps() []Dependency
	invokeAny(rc *ResolveCtx) (any, error)
}

var execNameMeta = NewMeta[string]("executor.name")

// Executor is an immutable graph node: a factory function together with
// its dependency declaration and attached metadata. Create one with
// Provide (no dependencies) or DeriveN/DeriveSeq/DeriveMap (with
// dependencies).
type Executor[T any] struct {
	factory func(*ResolveCtx) (T, error)
	deps    []Dependency
	tags    map[any]any
}

func (e *Executor[T]) getTag(key any) (any, bool) {
	v, ok := e.tags[key]
	return v, ok
}

func (e *Executor[T]) setTag(key any, val any) {
	e.tags[key] = val
}

func (e *Executor[T]) getDeps() []Dependency { return e.deps }

func (e *Executor[T]) invokeAny(rc *ResolveCtx) (any, error) {
	return e.factory(rc)
}

func (e *Executor[T]) name() string {
	if n, ok := execNameMeta.Get(e); ok {
		return n
	}
	var zero T
	return fmt.Sprintf("executor<%T>@%p", zero, e)
}

func (e *Executor[T]) baseExecutor() AnyExecutor { return e }
func (e *Executor[T]) mode() DependencyMode      { return ModeMain }

// Reactive returns a dependency reference that, when resolved as part of a
// derived executor's dependency declaration, registers a reactive edge:
// updates to e cause the dependent to be invalidated and re-resolved.
func (e *Executor[T]) Reactive() Dependency {
	return &dependencyVariant{base: e, m: ModeReactive}
}

// Lazy returns a dependency reference whose resolution is deferred until
// the dependent's factory explicitly calls Get on the delivered
// Controller.
func (e *Executor[T]) Lazy() Dependency {
	return &dependencyVariant{base: e, m: ModeLazy}
}

// Static returns a dependency reference delivering a Controller for
// read/update/subscribe access, without forcing resolution.
func (e *Executor[T]) Static() Dependency {
	return &dependencyVariant{base: e, m: ModeStatic}
}

func applyTags(target taggable, tags []Tagged) {
	for _, t := range tags {
		target.setTag(t.key, t.value)
	}
}

// WithName attaches a debug name used in error contexts and the graph
// debug extension.
func WithName(name string) Tagged {
	return execNameMeta.With(name)
}

// ExecutorName returns exec's debug name (see WithName), falling back to
// a type-and-pointer label when none was attached. It exists so packages
// outside pumped (extensions, in particular) can label executors without
// reaching into the unexported AnyExecutor.name method.
func ExecutorName(exec AnyExecutor) string {
	return exec.name()
}

// Provide creates an executor with no dependencies.
func Provide[T any](factory func(*ResolveCtx) (T, error), tags ...Tagged) *Executor[T] {
	e := &Executor[T]{
		factory: factory,
		tags:    make(map[any]any),
	}
	applyTags(e, tags)
	return e
}
