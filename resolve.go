package pumped

import "context"

// resolveTrace is the per-call resolution stack used for cycle detection
// (spec §4.5 step 4). It is threaded explicitly through the recursive
// dependency walk rather than carried on a goroutine, because Go has no
// goroutine-local storage; a fresh trace is created at every public entry
// point (Resolve, Update, a pod's top-level resolve) and reused for the
// duration of that one resolution tree.
type resolveTrace struct {
	stack   []AnyExecutor
	inStack map[AnyExecutor]bool
}

func newResolveTrace() *resolveTrace {
	return &resolveTrace{inStack: make(map[AnyExecutor]bool)}
}

func (t *resolveTrace) push(e AnyExecutor) error {
	if t.inStack[e] {
		return circularDependency(t.chainWith(e))
	}
	t.inStack[e] = true
	t.stack = append(t.stack, e)
	return nil
}

// contains reports whether e is already an ancestor in this resolution
// call's stack — i.e. a call to resolve e is already in progress somewhere
// up this same trace, as opposed to a concurrent, unrelated resolution
// sharing the accessor.
func (t *resolveTrace) contains(e AnyExecutor) bool {
	return t.inStack[e]
}

// chainWith renders the current stack plus e, for a CIRCULAR_DEPENDENCY
// error's dependency chain.
func (t *resolveTrace) chainWith(e AnyExecutor) []string {
	chain := make([]string, 0, len(t.stack)+1)
	for _, x := range t.stack {
		chain = append(chain, x.name())
	}
	chain = append(chain, e.name())
	return chain
}

func (t *resolveTrace) pop() {
	if len(t.stack) == 0 {
		return
	}
	last := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	delete(t.inStack, last)
}

// runFactory invokes exec's factory through host's extension pipeline,
// recovering from panics as FACTORY_THREW_ERROR per spec §7.
func runFactory(ctx context.Context, host Host, exec AnyExecutor) (result any, cleanups []cleanupEntry, err error) {
	rc := &ResolveCtx{ctx: ctx, host: host, executor: exec}

	op := &Operation{Kind: OpResolve, Executor: exec}
	exts := host.extensionsSnapshot()

	next := func() (any, error) {
		return invokeRecovering(exec, rc)
	}
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		inner := next
		next = func() (any, error) {
			return ext.Wrap(rc.Context(), inner, op)
		}
	}

	result, err = next()
	if err != nil {
		for _, ext := range exts {
			ext.OnError(err, op, host)
		}
		return nil, nil, wrapFactoryError(exec, err)
	}
	return result, rc.cleanups, nil
}

func invokeRecovering(exec AnyExecutor, rc *ResolveCtx) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = factoryThrew(exec.name(), r)
		}
	}()
	return exec.invokeAny(rc)
}

func wrapFactoryError(exec AnyExecutor, err error) error {
	if _, ok := err.(*Error); ok {
		return err
	}
	return factoryFailed(exec.name(), err)
}

// resolveDependencies walks exec's declared dependencies in order,
// delivering the value/edge per the wrapper's mode (spec §4.5's "variant
// delivery"). Reactive dependencies are registered through
// registerReactive into the scope's reactive graph; a pod passes nil
// (pods never own edges), and a Reactive dependency then fails with
// REACTIVE_EXECUTOR_IN_POD.
func resolveDependencies(ctx context.Context, host Host, registerReactive func(dependency AnyExecutor, dependent AnyExecutor), exec AnyExecutor, trace *resolveTrace) error {
	for _, dep := range exec.getDeps() {
		switch dep.mode() {
		case ModeLazy, ModeStatic:
			continue
		case ModeReactive:
			if registerReactive == nil {
				return reactiveExecutorInPod(dep.baseExecutor().name())
			}
			registerReactive(dep.baseExecutor(), exec)
			fallthrough
		default:
			if _, err := host.resolve(ctx, dep.baseExecutor(), trace); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveMain implements the common shape of §4.5 steps 2-7 for a single
// executor within one container (scope or pod), given an already
// allocated accessor. Preset handling, dependency resolution, and factory
// invocation are identical between Scope and Pod; what differs is how the
// container decides whether to even get here (a pod consults its parent
// first; see pod.resolve).
func resolveMain(ctx context.Context, host Host, exec AnyExecutor, acc *accessor, p *preset, registerReactive func(AnyExecutor, AnyExecutor), trace *resolveTrace) (any, error) {
	shouldRun, waitCh, state, value, err := acc.beginResolve()
	if !shouldRun {
		if waitCh != nil {
			// A pending resolution for exec is already in this very call
			// stack (not just sharing the accessor with some unrelated
			// concurrent resolution): waiting on waitCh would block forever
			// since only the goroutine we're currently running in could
			// ever close it. Raise CIRCULAR_DEPENDENCY instead of hanging.
			if trace.contains(exec) {
				return nil, circularDependency(trace.chainWith(exec))
			}
			<-waitCh
			return resolveMain(ctx, host, exec, acc, p, registerReactive, trace)
		}
		if state == stateRejected {
			return nil, err
		}
		return value, nil
	}

	if p != nil {
		if p.isValue {
			acc.completeResolve(p.value, nil, nil)
			return p.value, nil
		}
		val, rerr := host.resolve(ctx, p.executor, trace)
		acc.completeResolve(val, rerr, nil)
		return val, rerr
	}

	if err := trace.push(exec); err != nil {
		acc.completeResolve(nil, err, nil)
		return nil, err
	}
	defer trace.pop()

	if err := resolveDependencies(ctx, host, registerReactive, exec, trace); err != nil {
		acc.completeResolve(nil, err, nil)
		return nil, err
	}

	val, cleanups, ferr := runFactory(ctx, host, exec)
	acc.completeResolve(val, ferr, cleanups)
	return val, ferr
}

// Resolve resolves exec's value within scope, resolving dependencies,
// applying presets and reactive edges, and caching the result.
func Resolve[T any](s *Scope, exec *Executor[T]) (T, error) {
	return ResolveContext(context.Background(), s, exec)
}

// ResolveContext is Resolve with an explicit context.Context threaded to
// the factory.
func ResolveContext[T any](ctx context.Context, s *Scope, exec *Executor[T]) (T, error) {
	v, err := s.resolve(ctx, exec, newResolveTrace())
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Update replaces exec's cached value in scope and propagates the change
// to reactive dependents.
func Update[T any](s *Scope, exec *Executor[T], newVal T) error {
	return s.updateExecutor(exec, newVal)
}

// Accessor returns a Controller bound to scope for direct lifecycle
// control (get/peek/update/release/subscribe) over exec's value.
func Accessor[T any](s *Scope, exec *Executor[T]) *Controller[T] {
	return newController[T](s, exec)
}

// PodAccessor is the pod-scoped equivalent of Accessor.
func PodAccessor[T any](p *Pod, exec *Executor[T]) *Controller[T] {
	return newController[T](p, exec)
}

// ResolveInPod resolves exec's value within pod, following the
// parent-delegation priority order of spec §4.7.
func ResolveInPod[T any](p *Pod, exec *Executor[T]) (T, error) {
	v, err := p.resolve(context.Background(), exec, newResolveTrace())
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
