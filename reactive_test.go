package pumped

import "testing"

func TestReactiveGraphTransitiveDependentsBFSOrder(t *testing.T) {
	g := newReactiveGraph()

	root := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil }, WithName("root"))
	mid1 := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil }, WithName("mid1"))
	mid2 := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil }, WithName("mid2"))
	leaf := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil }, WithName("leaf"))

	g.addEdge(root, mid1)
	g.addEdge(root, mid2)
	g.addEdge(mid1, leaf)
	g.addEdge(mid2, leaf)

	order := g.transitiveDependents(root)
	if len(order) != 3 {
		t.Fatalf("expected 3 dependents, got %d: %v", len(order), order)
	}

	leafIdx, mid1Idx, mid2Idx := -1, -1, -1
	for i, e := range order {
		switch e {
		case mid1:
			mid1Idx = i
		case mid2:
			mid2Idx = i
		case leaf:
			leafIdx = i
		}
	}
	if mid1Idx == -1 || mid2Idx == -1 || leafIdx == -1 {
		t.Fatalf("expected all three nodes present, got %v", order)
	}
	if leafIdx < mid1Idx || leafIdx < mid2Idx {
		t.Errorf("expected leaf to come after both mid nodes (BFS order), got %v", order)
	}
}

func TestReactiveGraphDirectDependents(t *testing.T) {
	g := newReactiveGraph()

	a := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil })
	b := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil })
	c := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil })

	g.addEdge(a, b)
	g.addEdge(a, c)

	deps := g.directDependents(a)
	if len(deps) != 2 {
		t.Fatalf("expected 2 direct dependents, got %d", len(deps))
	}
}

func TestReactiveGraphAddEdgeDeduplicates(t *testing.T) {
	g := newReactiveGraph()

	a := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil })
	b := Provide(func(ctx *ResolveCtx) (int, error) { return 0, nil })

	g.addEdge(a, b)
	g.addEdge(a, b)

	deps := g.directDependents(a)
	if len(deps) != 1 {
		t.Errorf("expected addEdge to dedupe repeated edges, got %d", len(deps))
	}
}

func TestExportDependencyGraph(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	config := Provide(func(ctx *ResolveCtx) (string, error) { return "config", nil }, WithName("Config"))
	storage := Provide(func(ctx *ResolveCtx) (string, error) { return "storage", nil }, WithName("Storage"))

	service := Derive2(
		config.Reactive(),
		storage.Reactive(),
		func(ctx *ResolveCtx, c *Controller[string], s *Controller[string]) (string, error) {
			cfg, _ := c.Get()
			store, _ := s.Get()
			return cfg + "-" + store, nil
		},
		WithName("Service"),
	)

	if _, err := Resolve(scope, service); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	graph := scope.ExportDependencyGraph()
	for _, base := range []AnyExecutor{config, storage} {
		deps, ok := graph[base]
		if !ok {
			t.Errorf("expected %s in dependency graph", ExecutorName(base))
			continue
		}
		found := false
		for _, dep := range deps {
			if dep == service {
				found = true
			}
		}
		if !found {
			t.Errorf("expected service to be a dependent of %s", ExecutorName(base))
		}
	}
}
