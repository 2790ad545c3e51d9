package pumped

//go:generate go run ./codegen -w

// Derive1 creates an executor depending on one other executor. The
// factory receives a Controller for each declared dependency; whether
// that Controller is already resolved (Main/Reactive) or resolves lazily
// on first Get (Lazy/Static) is determined by the dependency's mode, not
// by DeriveN's arity.
func Derive1[T any, D1 any](
	d1 Dependency,
	factory func(*ResolveCtx, *Controller[D1]) (T, error),
	tags ...Tagged,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1},
		tags: make(map[any]any),
	}
	exec.factory = func(rc *ResolveCtx) (T, error) {
		c1 := newController[D1](rc.host, d1.baseExecutor().(*Executor[D1]))
		return factory(rc, c1)
	}
	applyTags(exec, tags)
	return exec
}

func Derive2[T any, D1, D2 any](
	d1, d2 Dependency,
	factory func(*ResolveCtx, *Controller[D1], *Controller[D2]) (T, error),
	tags ...Tagged,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1, d2},
		tags: make(map[any]any),
	}
	exec.factory = func(rc *ResolveCtx) (T, error) {
		c1 := newController[D1](rc.host, d1.baseExecutor().(*Executor[D1]))
		c2 := newController[D2](rc.host, d2.baseExecutor().(*Executor[D2]))
		return factory(rc, c1, c2)
	}
	applyTags(exec, tags)
	return exec
}

func Derive3[T any, D1, D2, D3 any](
	d1, d2, d3 Dependency,
	factory func(*ResolveCtx, *Controller[D1], *Controller[D2], *Controller[D3]) (T, error),
	tags ...Tagged,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1, d2, d3},
		tags: make(map[any]any),
	}
	exec.factory = func(rc *ResolveCtx) (T, error) {
		c1 := newController[D1](rc.host, d1.baseExecutor().(*Executor[D1]))
		c2 := newController[D2](rc.host, d2.baseExecutor().(*Executor[D2]))
		c3 := newController[D3](rc.host, d3.baseExecutor().(*Executor[D3]))
		return factory(rc, c1, c2, c3)
	}
	applyTags(exec, tags)
	return exec
}

func Derive4[T any, D1, D2, D3, D4 any](
	d1, d2, d3, d4 Dependency,
	factory func(*ResolveCtx, *Controller[D1], *Controller[D2], *Controller[D3], *Controller[D4]) (T, error),
	tags ...Tagged,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1, d2, d3, d4},
		tags: make(map[any]any),
	}
	exec.factory = func(rc *ResolveCtx) (T, error) {
		c1 := newController[D1](rc.host, d1.baseExecutor().(*Executor[D1]))
		c2 := newController[D2](rc.host, d2.baseExecutor().(*Executor[D2]))
		c3 := newController[D3](rc.host, d3.baseExecutor().(*Executor[D3]))
		c4 := newController[D4](rc.host, d4.baseExecutor().(*Executor[D4]))
		return factory(rc, c1, c2, c3, c4)
	}
	applyTags(exec, tags)
	return exec
}

func Derive5[T any, D1, D2, D3, D4, D5 any](
	d1, d2, d3, d4, d5 Dependency,
	factory func(*ResolveCtx, *Controller[D1], *Controller[D2], *Controller[D3], *Controller[D4], *Controller[D5]) (T, error),
	tags ...Tagged,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1, d2, d3, d4, d5},
		tags: make(map[any]any),
	}
	exec.factory = func(rc *ResolveCtx) (T, error) {
		c1 := newController[D1](rc.host, d1.baseExecutor().(*Executor[D1]))
		c2 := newController[D2](rc.host, d2.baseExecutor().(*Executor[D2]))
		c3 := newController[D3](rc.host, d3.baseExecutor().(*Executor[D3]))
		c4 := newController[D4](rc.host, d4.baseExecutor().(*Executor[D4]))
		c5 := newController[D5](rc.host, d5.baseExecutor().(*Executor[D5]))
		return factory(rc, c1, c2, c3, c4, c5)
	}
	applyTags(exec, tags)
	return exec
}

// DeriveSeq creates an executor depending on a dynamically-sized,
// ordered list of other executors. Unlike DeriveN, the factory receives
// already-resolved values directly rather than Controllers: dynamic
// arity makes a typed deferred-resolution Controller impossible to
// express in Go's generics, so DeriveSeq only supports Main/Reactive
// dependency modes (Lazy/Static deps should use one of the DeriveN forms
// instead, where Go's type system can still express the Controller).
func DeriveSeq[T any](deps []Dependency, factory func(*ResolveCtx, []any) (T, error), tags ...Tagged) *Executor[T] {
	exec := &Executor[T]{
		deps: deps,
		tags: make(map[any]any),
	}
	exec.factory = func(rc *ResolveCtx) (T, error) {
		values := make([]any, len(deps))
		for i, d := range deps {
			v, err := rc.resolveChild(d.baseExecutor())
			if err != nil {
				var zero T
				return zero, err
			}
			values[i] = v
		}
		return factory(rc, values)
	}
	applyTags(exec, tags)
	return exec
}

// DeriveMap is DeriveSeq's named-dependency counterpart: the factory
// receives a map keyed by the same names used to declare deps.
func DeriveMap[T any](deps map[string]Dependency, factory func(*ResolveCtx, map[string]any) (T, error), tags ...Tagged) *Executor[T] {
	ordered := make([]Dependency, 0, len(deps))
	names := make([]string, 0, len(deps))
	for name, d := range deps {
		ordered = append(ordered, d)
		names = append(names, name)
	}
	exec := &Executor[T]{
		deps: ordered,
		tags: make(map[any]any),
	}
	exec.factory = func(rc *ResolveCtx) (T, error) {
		values := make(map[string]any, len(ordered))
		for i, d := range ordered {
			v, err := rc.resolveChild(d.baseExecutor())
			if err != nil {
				var zero T
				return zero, err
			}
			values[names[i]] = v
		}
		return factory(rc, values)
	}
	applyTags(exec, tags)
	return exec
}
