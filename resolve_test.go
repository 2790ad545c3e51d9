package pumped

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestResolveTraceDetectsCycle(t *testing.T) {
	trace := newResolveTrace()

	a := Provide(func(ctx *ResolveCtx) (int, error) { return 1, nil }, WithName("A"))
	b := Provide(func(ctx *ResolveCtx) (int, error) { return 2, nil }, WithName("B"))

	if err := trace.push(a); err != nil {
		t.Fatalf("unexpected error pushing a: %v", err)
	}
	if err := trace.push(b); err != nil {
		t.Fatalf("unexpected error pushing b: %v", err)
	}
	err := trace.push(a)
	if err == nil {
		t.Fatal("expected circular dependency error re-pushing a")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Code != CircularDependency {
		t.Errorf("expected CIRCULAR_DEPENDENCY, got %s", perr.Code)
	}

	trace.pop()
	trace.pop()
	if len(trace.stack) != 0 {
		t.Errorf("expected empty stack after popping, got %d entries", len(trace.stack))
	}
}

// TestLiveTwoNodeCycleRaisesCircularDependency builds an actual structural
// Main-mode cycle (a declares b as a dependency, b declares a) by patching
// each executor's deps slice directly after construction — Derive1 needs a
// real *Executor[D1] at call time, so a placeholder stands in until both
// nodes exist, then the deps are rewired into the cycle a factory could
// never legitimately construct on its own. This exercises the real
// resolveDependencies walk, not just resolveTrace in isolation, and must
// return CIRCULAR_DEPENDENCY rather than hang.
func TestLiveTwoNodeCycleRaisesCircularDependency(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	placeholder := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil })
	a := Derive1(placeholder, func(ctx *ResolveCtx, c *Controller[int]) (int, error) {
		return c.Get()
	}, WithName("A"))
	b := Derive1(placeholder, func(ctx *ResolveCtx, c *Controller[int]) (int, error) {
		return c.Get()
	}, WithName("B"))
	a.deps = []Dependency{b}
	b.deps = []Dependency{a}

	done := make(chan struct{})
	var err error
	go func() {
		_, err = Resolve(scope, a)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resolving a live two-node cycle hung instead of raising CIRCULAR_DEPENDENCY")
	}

	if err == nil {
		t.Fatal("expected a circular dependency error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Code != CircularDependency {
		t.Errorf("expected CIRCULAR_DEPENDENCY, got %s", perr.Code)
	}
}

// TestLiveSelfCycleRaisesCircularDependency is the direct-self-dependency
// variant of the above: an executor declaring itself as its own dependency.
func TestLiveSelfCycleRaisesCircularDependency(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	placeholder := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil })
	self := Derive1(placeholder, func(ctx *ResolveCtx, c *Controller[int]) (int, error) {
		return c.Get()
	}, WithName("Self"))
	self.deps = []Dependency{self}

	done := make(chan struct{})
	var err error
	go func() {
		_, err = Resolve(scope, self)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resolving a direct self-cycle hung instead of raising CIRCULAR_DEPENDENCY")
	}

	if err == nil {
		t.Fatal("expected a circular dependency error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Code != CircularDependency {
		t.Errorf("expected CIRCULAR_DEPENDENCY, got %s", perr.Code)
	}
}

func TestResolveContextThreadsContext(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	type ctxKey struct{}
	var observed context.Context

	exec := Provide(func(ctx *ResolveCtx) (string, error) {
		observed = ctx.Context()
		return "ok", nil
	})

	wantCtx := context.WithValue(context.Background(), ctxKey{}, "marker")
	_, err := ResolveContext(wantCtx, scope, exec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if observed.Value(ctxKey{}) != "marker" {
		t.Error("expected factory to observe the context passed to ResolveContext")
	}
}

func TestDependencyNotFoundSurfaces(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	failing := Provide(func(ctx *ResolveCtx) (int, error) {
		return 0, dependencyNotFound("missing-dep")
	})

	_, err := Resolve(scope, failing)
	if err == nil {
		t.Fatal("expected error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Code != DependencyNotFound {
		t.Errorf("expected DEPENDENCY_NOT_FOUND, got %s", perr.Code)
	}
}

func TestUpdatePropagatesCleanupAndListeners(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	cleanupCalls := 0
	base := Provide(func(ctx *ResolveCtx) (int, error) { return 1, nil })
	derived := Derive1(
		base.Reactive(),
		func(ctx *ResolveCtx, baseCtrl *Controller[int]) (int, error) {
			ctx.OnCleanup(func() error {
				cleanupCalls++
				return nil
			})
			v, _ := baseCtrl.Get()
			return v * 10, nil
		},
	)

	derivedCtrl := Accessor(scope, derived)
	val, _ := derivedCtrl.Get()
	if val != 10 {
		t.Fatalf("expected 10, got %d", val)
	}

	var observedUpdates []int
	baseCtrl := Accessor(scope, base)
	unsub := derivedCtrl.Subscribe(func(v int) {
		observedUpdates = append(observedUpdates, v)
	})
	defer unsub()

	if err := baseCtrl.Update(2); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if cleanupCalls != 1 {
		t.Errorf("expected derived's cleanup to run once on invalidation, got %d", cleanupCalls)
	}

	val, _ = derivedCtrl.Get()
	if val != 20 {
		t.Errorf("expected 20 after update, got %d", val)
	}
	if len(observedUpdates) != 1 || observedUpdates[0] != 20 {
		t.Errorf("expected subscriber to observe [20], got %v", observedUpdates)
	}
}

func TestUpdateOnUnresolvedExecutorPresets(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	calls := 0
	exec := Provide(func(ctx *ResolveCtx) (int, error) {
		calls++
		return 1, nil
	})

	if err := Update(scope, exec, 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	val, err := Resolve(scope, exec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 99 {
		t.Errorf("expected 99, got %d", val)
	}
	if calls != 0 {
		t.Errorf("expected factory not to run after a pre-resolve update, got %d calls", calls)
	}
}

func TestFactoryPanicRecovered(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	exec := Provide(func(ctx *ResolveCtx) (int, error) {
		panic("boom")
	})

	_, err := Resolve(scope, exec)
	if err == nil {
		t.Fatal("expected error from panicking factory")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Code != FactoryThrewError {
		t.Errorf("expected FACTORY_THREW_ERROR, got %s", perr.Code)
	}
}

func TestFactoryErrorWrapped(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	cause := fmt.Errorf("boom")
	exec := Provide(func(ctx *ResolveCtx) (int, error) {
		return 0, cause
	})

	_, err := Resolve(scope, exec)
	if err == nil {
		t.Fatal("expected error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Code != FactoryExecutionFailed {
		t.Errorf("expected FACTORY_EXECUTION_FAILED, got %s", perr.Code)
	}
	if perr.Cause != cause {
		t.Errorf("expected wrapped cause to be preserved, got %v", perr.Cause)
	}
}

func TestScopeDisposedRejectsResolve(t *testing.T) {
	scope := NewScope()
	exec := Provide(func(ctx *ResolveCtx) (int, error) { return 1, nil })

	if err := scope.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}

	_, err := Resolve(scope, exec)
	if err == nil {
		t.Fatal("expected error resolving against a disposed scope")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Code != ScopeDisposed {
		t.Errorf("expected SCOPE_DISPOSED, got %s", perr.Code)
	}
}
