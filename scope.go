package pumped

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Scope owns the cache of resolved executor values, the reactive
// dependency graph, the registered extensions, and any per-scope tags.
// It is the root container; pods (see pod.go) delegate to one.
type Scope struct {
	mu         sync.RWMutex
	id         string
	accessors  map[AnyExecutor]*accessor
	reactive   *reactiveGraph
	extensions []Extension
	presets    map[AnyExecutor]preset
	tags       *simpleTagStore
	execTree   *ExecutionTree
	disposed   bool

	// order records the sequence accessors first entered stateResolved
	// in, so Dispose can run cleanups in reverse-topological (most
	// recently resolved first) order instead of map iteration order.
	order []AnyExecutor
}

// ScopeOption configures a Scope at construction time.
type ScopeOption func(*Scope)

// WithScopeTag sets a tag's value on the scope at construction time.
func WithScopeTag[T any](tag Tag[T], val T) ScopeOption {
	return func(s *Scope) {
		if err := tag.Set(s.tags, val); err != nil {
			panic(err)
		}
	}
}

// WithExtension registers an extension with the scope.
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithPreset replaces original's factory with either a fixed value or a
// replacement executor, for the lifetime of the scope.
func WithPreset[T any](original *Executor[T], replacement any) ScopeOption {
	return func(s *Scope) {
		s.presets[original] = presetFor(original, replacement)
	}
}

func presetFor[T any](original *Executor[T], replacement any) preset {
	switch r := replacement.(type) {
	case *Executor[T]:
		return preset{executor: r}
	case T:
		return preset{isValue: true, value: r}
	default:
		panic(fmt.Sprintf("preset for %s must be a value of type %T or *Executor[%T]", original.name(), *new(T), *new(T)))
	}
}

// NewScope creates a new root container.
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		id:        uuid.NewString(),
		accessors: make(map[AnyExecutor]*accessor),
		reactive:  newReactiveGraph(),
		presets:   make(map[AnyExecutor]preset),
		tags:      newSimpleTagStore(),
		execTree:  newExecutionTree(1000),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scope) containerID() string { return s.id }

func (s *Scope) isDisposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

func (s *Scope) extensionsSnapshot() []Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Extension, len(s.extensions))
	copy(out, s.extensions)
	return out
}

func (s *Scope) getAccessorOrCreate(exec AnyExecutor) *accessor {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accessors[exec]
	if !ok {
		acc = newAccessor(exec)
		s.accessors[exec] = acc
	}
	return acc
}

func (s *Scope) peekAccessor(exec AnyExecutor) (*accessor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accessors[exec]
	return acc, ok
}

func (s *Scope) recordOrder(exec AnyExecutor) {
	s.mu.Lock()
	s.order = append(s.order, exec)
	s.mu.Unlock()
}

func (s *Scope) resolve(ctx context.Context, exec AnyExecutor, trace *resolveTrace) (any, error) {
	if s.isDisposed() {
		return nil, scopeDisposed("resolve").withExecutor(exec.name()).withScope(s.id)
	}

	acc := s.getAccessorOrCreate(exec)

	s.mu.RLock()
	p, hasPreset := s.presets[exec]
	s.mu.RUnlock()

	var pp *preset
	if hasPreset {
		pp = &p
	}

	registerReactive := func(dependency, dependent AnyExecutor) {
		s.reactive.addEdge(dependency, dependent)
	}

	st, _, _ := acc.lookup()
	wasResolved := st == stateResolved

	val, err := resolveMain(ctx, s, exec, acc, pp, registerReactive, trace)
	if err == nil && !wasResolved {
		s.recordOrder(exec)
	}
	return val, err
}

// updateExecutor replaces exec's cached value, running extensions, and
// propagates invalidation to reactive dependents in BFS order (§4.6).
func (s *Scope) updateExecutor(exec AnyExecutor, newVal any) error {
	if s.isDisposed() {
		return scopeDisposed("update").withExecutor(exec.name()).withScope(s.id)
	}

	op := &Operation{Kind: OpUpdate, Executor: exec}
	exts := s.extensionsSnapshot()

	next := func() (any, error) {
		return nil, s.doUpdate(exec, newVal)
	}
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		inner := next
		next = func() (any, error) {
			return ext.Wrap(context.Background(), inner, op)
		}
	}

	_, err := next()
	if err != nil {
		for _, ext := range exts {
			ext.OnError(err, op, s)
		}
	}
	return err
}

func (s *Scope) doUpdate(exec AnyExecutor, newVal any) error {
	acc, ok := s.peekAccessor(exec)
	if !ok {
		acc = s.getAccessorOrCreate(exec)
		acc.setPreset(newVal)
		return nil
	}

	dependents := s.reactive.transitiveDependents(exec)

	for _, dep := range dependents {
		if depAcc, ok := s.peekAccessor(dep); ok {
			entries := depAcc.drainCleanups()
			s.runCleanups(entries, dep, "reactive")
			depAcc.markAbsent()
		}
	}

	listeners, err := acc.update(newVal)
	if err != nil {
		acc.setPreset(newVal)
		listeners = nil
	}

	for _, dep := range dependents {
		if depAcc, ok := s.peekAccessor(dep); ok {
			if _, rerr := s.resolve(context.Background(), dep, newResolveTrace()); rerr != nil {
				continue
			}
			if v, ok := depAcc.peek(); ok {
				for _, fn := range depAcc.listenersSnapshot() {
					if fn != nil {
						fn(v)
					}
				}
			}
		}
	}

	for _, fn := range listeners {
		if fn != nil {
			fn(newVal)
		}
	}
	return nil
}

func (s *Scope) releaseExecutor(exec AnyExecutor, hard bool) error {
	acc, ok := s.peekAccessor(exec)
	if !ok {
		return nil
	}
	if hard {
		for _, dep := range s.reactive.transitiveDependents(exec) {
			if depAcc, ok := s.peekAccessor(dep); ok {
				s.runCleanups(depAcc.drainCleanups(), dep, "release")
				depAcc.markAbsent()
			}
		}
	}
	entries := acc.drainCleanups()
	s.runCleanups(entries, exec, "release")
	if hard {
		acc.hardReset()
	} else {
		acc.markAbsent()
	}
	return nil
}

func (s *Scope) runCleanups(entries []cleanupEntry, exec AnyExecutor, cleanupCtx string) {
	exts := s.extensionsSnapshot()
	for _, entry := range entries {
		if err := entry.fn(); err != nil {
			cerr := &CleanupError{ExecutorName: exec.name(), Err: err, Context: cleanupCtx}
			handled := false
			for _, ext := range exts {
				if ext.OnCleanupError(cerr) {
					handled = true
					break
				}
			}
			_ = handled
		}
	}
}

// UseExtension registers ext with the scope, keeping the extension list
// sorted ascending by Order, and calls its Init hook.
func (s *Scope) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	s.extensions = sortExtensionsByOrder(s.extensions)
	s.mu.Unlock()
	return ext.Init(s)
}

// GetTag retrieves a scope-level tag value.
func (s *Scope) GetTag(key any) (any, bool) {
	return s.tags.getTag(key)
}

// SetTag stores a scope-level tag value.
func (s *Scope) SetTag(key any, val any) {
	s.tags.setTag(key, val)
}

// ExportDependencyGraph returns a snapshot of the reactive dependency ->
// dependents adjacency used by the graph-debug extension to visualize
// why a resolution failed.
func (s *Scope) ExportDependencyGraph() map[AnyExecutor][]AnyExecutor {
	s.reactive.mu.RLock()
	defer s.reactive.mu.RUnlock()
	out := make(map[AnyExecutor][]AnyExecutor, len(s.reactive.downstream))
	for k, v := range s.reactive.downstream {
		cp := make([]AnyExecutor, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// GetExecutionTree returns the scope's execution tree for observability
// queries over past flow runs.
func (s *Scope) GetExecutionTree() *ExecutionTree {
	return s.execTree
}

// Dispose runs every cached executor's cleanups in reverse resolution
// order (last resolved, first cleaned up) and disposes every extension.
// Unlike a bare map walk, this guarantees a dependent's cleanup always
// runs before the dependency it closed over.
func (s *Scope) Dispose() error {
	s.mu.Lock()
	s.disposed = true
	order := s.order
	s.order = nil
	s.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		exec := order[i]
		acc, ok := s.peekAccessor(exec)
		if !ok {
			continue
		}
		entries := acc.drainCleanups()
		s.runCleanups(entries, exec, "dispose")
	}

	for _, ext := range s.extensionsSnapshot() {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}
	return nil
}

func (a *accessor) listenersSnapshot() []func(any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]func(any), 0, len(a.subFns)+len(a.updateFns))
	out = append(out, a.subFns...)
	out = append(out, a.updateFns...)
	return out
}
