package pumped

import "context"

// Host is implemented by both *Scope and *Pod. It is the resolution host
// a Controller and a ResolveCtx talk to, so factories and callers can
// work uniformly whether they were resolved through a scope or a pod.
// Its methods are unexported on purpose: external packages (extensions,
// in particular) receive a Host value and type-assert it to *Scope or
// *Pod rather than implementing the interface themselves.
type Host interface {
	resolve(ctx context.Context, exec AnyExecutor, trace *resolveTrace) (any, error)
	getAccessorOrCreate(exec AnyExecutor) *accessor
	peekAccessor(exec AnyExecutor) (*accessor, bool)
	updateExecutor(exec AnyExecutor, newVal any) error
	releaseExecutor(exec AnyExecutor, hard bool) error
	isDisposed() bool
	extensionsSnapshot() []Extension
	containerID() string
}

// preset short-circuits an executor's factory with either a precomputed
// value or a replacement executor to resolve instead.
type preset struct {
	isValue  bool
	value    any
	executor AnyExecutor
}

// ResolveCtx is passed to every factory function. It lets the factory
// register cleanup callbacks and reach back into its owning container for
// ad-hoc resolution.
type ResolveCtx struct {
	ctx      context.Context
	host     Host
	executor AnyExecutor
	cleanups []cleanupEntry
}

// Context returns the context.Context this resolution is running under,
// defaulting to context.Background() when the caller resolved without
// one (e.g. via Resolve/Get rather than ResolveContext).
func (rc *ResolveCtx) Context() context.Context {
	if rc.ctx == nil {
		return context.Background()
	}
	return rc.ctx
}

// OnCleanup registers a callback to run, in LIFO order with other
// cleanups of the same accessor, when the value leaves the cache (via
// reactive invalidation, release, or scope/pod disposal).
func (rc *ResolveCtx) OnCleanup(fn func() error) {
	rc.cleanups = append(rc.cleanups, cleanupEntry{fn: fn})
}

// Release self-invalidates the executor currently being resolved. It is
// rarely needed directly; Controller.Release is the usual entry point for
// invalidating a different executor's cached value.
func (rc *ResolveCtx) Release() error {
	return rc.host.releaseExecutor(rc.executor, true)
}

// resolveChild resolves another executor through the same host and
// context, for ad-hoc resolution from inside a factory body.
func (rc *ResolveCtx) resolveChild(exec AnyExecutor) (any, error) {
	return rc.host.resolve(rc.Context(), exec, newResolveTrace())
}

// Host returns the container (scope or pod) this resolution is running
// in, for constructing ad-hoc Controllers within a factory.
func (rc *ResolveCtx) Host() Host { return rc.host }

// Controller provides lifecycle control over one executor's value within
// one container: get/peek/update/release/subscribe, per spec §4.4 and the
// public Accessor surface of §6.
type Controller[T any] struct {
	host Host
	exec *Executor[T]
}

func newController[T any](host Host, exec *Executor[T]) *Controller[T] {
	return &Controller[T]{host: host, exec: exec}
}

// Get resolves (if necessary) and returns the current value.
func (c *Controller[T]) Get() (T, error) {
	v, err := c.host.resolve(context.Background(), c.exec, newResolveTrace())
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// GetContext is Get with an explicit context.Context, propagated to the
// factory (and any nested resolutions it triggers) as ResolveCtx.Context.
func (c *Controller[T]) GetContext(ctx context.Context) (T, error) {
	v, err := c.host.resolve(ctx, c.exec, newResolveTrace())
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Peek returns the cached value without triggering resolution.
func (c *Controller[T]) Peek() (T, bool) {
	acc, ok := c.host.peekAccessor(c.exec)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := acc.peek()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Update sets a new value and propagates to reactive dependents (when the
// host is a Scope; pods never hold reactive edges).
func (c *Controller[T]) Update(newVal T) error {
	return c.host.updateExecutor(c.exec, newVal)
}

// Set is an alias for Update, matching common accessor-style naming.
func (c *Controller[T]) Set(newVal T) error { return c.Update(newVal) }

// Release invalidates the cached value (hard release: drops subscribers
// too). In a Scope, the executor's reactive dependents are invalidated as
// well, their cleanups running first.
func (c *Controller[T]) Release() error {
	return c.host.releaseExecutor(c.exec, true)
}

// Reload releases and immediately re-resolves.
func (c *Controller[T]) Reload() (T, error) {
	if err := c.Release(); err != nil {
		var zero T
		return zero, err
	}
	return c.Get()
}

// IsCached reports whether the value is currently resolved.
func (c *Controller[T]) IsCached() bool {
	acc, ok := c.host.peekAccessor(c.exec)
	if !ok {
		return false
	}
	st, _, _ := acc.lookup()
	return st == stateResolved
}

// Subscribe registers fn to be called, with the new value, on every
// subsequent Update. Returns an unsubscribe function.
func (c *Controller[T]) Subscribe(fn func(T)) func() {
	acc := c.host.getAccessorOrCreate(c.exec)
	return acc.addSubscriber(func(v any) { fn(v.(T)) })
}

// OnUpdate is an alias for Subscribe, matching spec §4.4 naming.
func (c *Controller[T]) OnUpdate(fn func(T)) func() {
	acc := c.host.getAccessorOrCreate(c.exec)
	return acc.addUpdateListener(func(v any) { fn(v.(T)) })
}
