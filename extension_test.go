package pumped

import (
	"context"
	"testing"
)

type namedTestExtension struct {
	BaseExtension
}

func newNamedTestExtension(name string, order int) *namedTestExtension {
	return &namedTestExtension{BaseExtension: NewBaseExtensionOrdered(name, order)}
}

func TestBaseExtensionDefaultsAreNoOps(t *testing.T) {
	ext := newNamedTestExtension("noop", 100)

	if err := ext.Init(nil); err != nil {
		t.Errorf("expected Init to be a no-op, got %v", err)
	}
	if err := ext.InitPod(nil); err != nil {
		t.Errorf("expected InitPod to be a no-op, got %v", err)
	}
	if err := ext.Dispose(nil); err != nil {
		t.Errorf("expected Dispose to be a no-op, got %v", err)
	}
	if ext.OnCleanupError(&CleanupError{}) {
		t.Error("expected OnCleanupError to report unhandled by default")
	}

	called := false
	result, err := ext.Wrap(context.Background(), func() (any, error) {
		called = true
		return "value", nil
	}, &Operation{Kind: OpResolve})
	if err != nil || result != "value" {
		t.Errorf("expected Wrap to pass through next(), got (%v, %v)", result, err)
	}
	if !called {
		t.Error("expected Wrap's default implementation to call next()")
	}
}

func TestNewBaseExtensionDefaultOrder(t *testing.T) {
	ext := NewBaseExtension("plain")
	if ext.Order() != 100 {
		t.Errorf("expected default order 100, got %d", ext.Order())
	}
	if ext.Name() != "plain" {
		t.Errorf("expected name 'plain', got %s", ext.Name())
	}
}

func TestSortExtensionsByOrderAscending(t *testing.T) {
	a := newNamedTestExtension("a", 30)
	b := newNamedTestExtension("b", 10)
	c := newNamedTestExtension("c", 20)

	sorted := sortExtensionsByOrder([]Extension{a, b, c})
	if len(sorted) != 3 {
		t.Fatalf("expected 3 extensions, got %d", len(sorted))
	}
	if sorted[0].Name() != "b" || sorted[1].Name() != "c" || sorted[2].Name() != "a" {
		t.Errorf("expected order [b c a], got [%s %s %s]", sorted[0].Name(), sorted[1].Name(), sorted[2].Name())
	}
}

func TestSortExtensionsByOrderStableForTies(t *testing.T) {
	first := newNamedTestExtension("first", 50)
	second := newNamedTestExtension("second", 50)
	third := newNamedTestExtension("third", 50)

	sorted := sortExtensionsByOrder([]Extension{first, second, third})
	if sorted[0].Name() != "first" || sorted[1].Name() != "second" || sorted[2].Name() != "third" {
		t.Errorf("expected registration order preserved for ties, got [%s %s %s]", sorted[0].Name(), sorted[1].Name(), sorted[2].Name())
	}
}

func TestExtensionRegisteredOnScopeReceivesInitAndDispose(t *testing.T) {
	scope := NewScope()

	initCalled := false
	disposeCalled := false
	ext := &initDisposeTrackingExtension{
		BaseExtension: NewBaseExtension("tracker"),
		onInit:        func() { initCalled = true },
		onDispose:     func() { disposeCalled = true },
	}

	scope2 := NewScope(WithExtension(ext))
	_ = scope2

	if !initCalled {
		t.Error("expected Init to be called when the extension is registered")
	}

	if err := scope2.Dispose(); err != nil {
		t.Fatalf("unexpected error disposing scope: %v", err)
	}
	if !disposeCalled {
		t.Error("expected Dispose to be called when the owning scope is disposed")
	}

	_ = scope.Dispose()
}

type initDisposeTrackingExtension struct {
	BaseExtension
	onInit    func()
	onDispose func()
}

func (e *initDisposeTrackingExtension) Init(s *Scope) error {
	e.onInit()
	return nil
}

func (e *initDisposeTrackingExtension) Dispose(s *Scope) error {
	e.onDispose()
	return nil
}
