package pumped

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Pod is a short-lived child container used for per-request or
// per-execution isolation (flow execution in particular). It delegates
// resolution to its parent scope whenever the parent already holds a
// cached value and nothing in the pod overrides it, and never installs
// reactive edges of its own (§4.7).
type Pod struct {
	mu         sync.RWMutex
	id         string
	parent     *Scope
	accessors  map[AnyExecutor]*accessor
	extensions []Extension
	presets    map[AnyExecutor]preset
	tags       *simpleTagStore
	disposed   bool
	order      []AnyExecutor
}

// PodOption configures a Pod at construction time.
type PodOption func(*Pod)

// WithPodPreset replaces original's factory with a fixed value or a
// replacement executor for the lifetime of the pod only.
func WithPodPreset[T any](original *Executor[T], replacement any) PodOption {
	return func(p *Pod) {
		p.presets[original] = presetFor(original, replacement)
	}
}

// WithPodExtension adds an extension active only within this pod, in
// addition to whatever the parent scope already carries.
func WithPodExtension(ext Extension) PodOption {
	return func(p *Pod) {
		if err := ext.InitPod(p); err != nil {
			panic(err)
		}
		p.extensions = append(p.extensions, ext)
	}
}

// CreatePod creates a child container of s.
func (s *Scope) CreatePod(opts ...PodOption) *Pod {
	p := &Pod{
		id:        uuid.NewString(),
		parent:    s,
		accessors: make(map[AnyExecutor]*accessor),
		presets:   make(map[AnyExecutor]preset),
		tags:      newSimpleTagStore(),
	}
	for _, ext := range s.extensionsSnapshot() {
		if err := ext.InitPod(p); err != nil {
			panic(err)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pod) containerID() string { return p.id }

func (p *Pod) isDisposed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.disposed || p.parent.isDisposed()
}

func (p *Pod) extensionsSnapshot() []Extension {
	p.mu.RLock()
	own := make([]Extension, len(p.extensions))
	copy(own, p.extensions)
	p.mu.RUnlock()
	return append(p.parent.extensionsSnapshot(), own...)
}

func (p *Pod) getAccessorOrCreate(exec AnyExecutor) *accessor {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accessors[exec]
	if !ok {
		acc = newAccessor(exec)
		p.accessors[exec] = acc
	}
	return acc
}

func (p *Pod) peekAccessor(exec AnyExecutor) (*accessor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc, ok := p.accessors[exec]
	return acc, ok
}

func (p *Pod) podPreset(exec AnyExecutor) (preset, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pr, ok := p.presets[exec]
	return pr, ok
}

// hasTransitivePresetInPod reports whether exec or any of its transitive
// dependencies has a preset installed directly in the pod (not merely
// inherited), which is the condition that forces re-resolution inside
// the pod instead of delegating to the parent's cache (§4.7 step 2).
func (p *Pod) hasTransitivePresetInPod(exec AnyExecutor) bool {
	visited := map[AnyExecutor]bool{}
	var walk func(AnyExecutor) bool
	walk = func(e AnyExecutor) bool {
		if visited[e] {
			return false
		}
		visited[e] = true
		if _, ok := p.podPreset(e); ok {
			return true
		}
		for _, dep := range e.getDeps() {
			if walk(dep.baseExecutor()) {
				return true
			}
		}
		return false
	}
	return walk(exec)
}

// resolve implements the pod's 3-step priority algorithm (§4.7):
//  1. a preset installed directly in the pod for exec wins outright.
//  2. else, if the parent scope already has exec resolved and no
//     transitive dependency of exec carries a pod preset, delegate to
//     the parent's cached value without running the factory again.
//  3. else, resolve inside the pod, recursively applying this same
//     algorithm to exec's own dependencies against the parent.
func (p *Pod) resolve(ctx context.Context, exec AnyExecutor, trace *resolveTrace) (any, error) {
	if p.isDisposed() {
		return nil, scopeDisposed("pod-resolve").withExecutor(exec.name()).withScope(p.id)
	}

	acc := p.getAccessorOrCreate(exec)
	st, _, _ := acc.lookup()
	wasResolved := st == stateResolved

	if pr, ok := p.podPreset(exec); ok {
		val, err := resolveMain(ctx, p, exec, acc, &pr, nil, trace)
		if err == nil && !wasResolved {
			p.recordOrder(exec)
		}
		return val, err
	}

	if parentAcc, ok := p.parent.peekAccessor(exec); ok {
		if pst, val, _ := parentAcc.lookup(); pst == stateResolved {
			if !p.hasTransitivePresetInPod(exec) {
				acc.setPreset(val)
				if !wasResolved {
					p.recordOrder(exec)
				}
				return val, nil
			}
		}
	}

	val, err := resolveMain(ctx, p, exec, acc, nil, nil, trace)
	if err == nil && !wasResolved {
		p.recordOrder(exec)
	}
	return val, err
}

func (p *Pod) recordOrder(exec AnyExecutor) {
	p.mu.Lock()
	p.order = append(p.order, exec)
	p.mu.Unlock()
}

func (p *Pod) updateExecutor(exec AnyExecutor, newVal any) error {
	acc := p.getAccessorOrCreate(exec)
	acc.setPreset(newVal)
	return nil
}

func (p *Pod) releaseExecutor(exec AnyExecutor, hard bool) error {
	acc, ok := p.peekAccessor(exec)
	if !ok {
		return nil
	}
	entries := acc.drainCleanups()
	p.runCleanups(entries, exec, "release")
	if hard {
		acc.hardReset()
	} else {
		acc.markAbsent()
	}
	return nil
}

func (p *Pod) runCleanups(entries []cleanupEntry, exec AnyExecutor, cleanupCtx string) {
	exts := p.extensionsSnapshot()
	for _, entry := range entries {
		if err := entry.fn(); err != nil {
			cerr := &CleanupError{ExecutorName: exec.name(), Err: err, Context: cleanupCtx}
			for _, ext := range exts {
				if ext.OnCleanupError(cerr) {
					break
				}
			}
		}
	}
}

// GetTag retrieves a pod-level tag value.
func (p *Pod) GetTag(key any) (any, bool) { return p.tags.getTag(key) }

// SetTag stores a pod-level tag value.
func (p *Pod) SetTag(key any, val any) { p.tags.setTag(key, val) }

// Parent returns the scope this pod was created from.
func (p *Pod) Parent() *Scope { return p.parent }

func (p *Pod) execTree() *ExecutionTree { return p.parent.execTree }

// Dispose runs the pod's own cleanups (LIFO by resolution order) without
// ever touching the parent scope.
func (p *Pod) Dispose() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	order := p.order
	p.order = nil
	p.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		exec := order[i]
		acc, ok := p.peekAccessor(exec)
		if !ok {
			continue
		}
		entries := acc.drainCleanups()
		p.runCleanups(entries, exec, "dispose")
	}
	return nil
}
