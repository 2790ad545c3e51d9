package pumped

import "sync"

// resolutionState is one of the four states an accessor's value can be in,
// per the spec's accessor model.
type resolutionState int

const (
	stateAbsent resolutionState = iota
	statePending
	stateResolved
	stateRejected
)

type cleanupEntry struct {
	fn func() error
}

// accessor is the per-container, per-executor resolution record: it owns
// the cached value (or error), the in-flight pending promise, the
// cleanups registered by the factory, and the listeners that want to know
// about updates. It is the unit of locking: concurrent callers resolving
// the same executor share one accessor and therefore one in-flight
// factory invocation.
type accessor struct {
	mu        sync.Mutex
	exec      AnyExecutor
	state     resolutionState
	value     any
	err       error
	epoch     uint64
	pending   chan struct{}
	cleanups  []cleanupEntry
	updateFns []func(any)
	subFns    []func(any)
}

func newAccessor(exec AnyExecutor) *accessor {
	return &accessor{exec: exec, state: stateAbsent}
}

// lookup returns the current state without any side effects.
func (a *accessor) lookup() (resolutionState, any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, a.value, a.err
}

// peek returns the cached value, if resolved.
func (a *accessor) peek() (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateResolved {
		return nil, false
	}
	return a.value, true
}

// beginResolve transitions absent -> pending and returns true when the
// caller must now run the factory. If another goroutine is already
// resolving (pending), the caller should wait on the returned channel and
// retry. If already resolved/rejected, the cached outcome is returned
// directly.
func (a *accessor) beginResolve() (shouldRun bool, waitCh chan struct{}, state resolutionState, value any, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateResolved:
		return false, nil, stateResolved, a.value, nil
	case stateRejected:
		return false, nil, stateRejected, nil, a.err
	case statePending:
		return false, a.pending, statePending, nil, nil
	default: // stateAbsent
		a.state = statePending
		a.pending = make(chan struct{})
		return true, nil, stateAbsent, nil, nil
	}
}

// completeResolve records the factory's outcome and wakes any waiters.
func (a *accessor) completeResolve(value any, err error, cleanups []cleanupEntry) {
	a.mu.Lock()
	ch := a.pending
	if err != nil {
		a.state = stateRejected
		a.err = err
		a.value = nil
	} else {
		a.state = stateResolved
		a.value = value
		a.err = nil
		a.epoch++
		a.cleanups = cleanups
	}
	a.pending = nil
	a.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// setPreset transitions directly to resolved with a given value, short
// circuiting the factory. Used for presets and for pod-level cache
// delegation.
func (a *accessor) setPreset(value any) {
	a.mu.Lock()
	a.state = stateResolved
	a.value = value
	a.err = nil
	a.epoch++
	a.mu.Unlock()
}

// update replaces a resolved accessor's value, bumps the epoch, and
// returns the listeners to fire (the caller is responsible for invoking
// them after reactive propagation per spec §4.6).
func (a *accessor) update(newVal any) ([]func(any), error) {
	a.mu.Lock()
	if a.state != stateResolved {
		a.mu.Unlock()
		return nil, newError(FactoryReturnedInvalid, CategoryFactory, "update", nil).withExtra("reason", "update on non-resolved accessor")
	}
	a.value = newVal
	a.epoch++
	fns := append([]func(any){}, a.updateFns...)
	subs := append([]func(any){}, a.subFns...)
	a.mu.Unlock()
	all := append(subs, fns...)
	return all, nil
}

// drainCleanups removes and returns the registered cleanups in LIFO
// order, ready to run.
func (a *accessor) drainCleanups() []cleanupEntry {
	a.mu.Lock()
	entries := a.cleanups
	a.cleanups = nil
	a.mu.Unlock()
	reversed := make([]cleanupEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}
	return reversed
}

// markAbsent resets the accessor to absent, e.g. after a soft release or
// reactive invalidation, without touching subscribers.
func (a *accessor) markAbsent() {
	a.mu.Lock()
	a.state = stateAbsent
	a.value = nil
	a.err = nil
	a.mu.Unlock()
}

// hardReset resets the accessor to absent and drops all listeners.
func (a *accessor) hardReset() {
	a.mu.Lock()
	a.state = stateAbsent
	a.value = nil
	a.err = nil
	a.updateFns = nil
	a.subFns = nil
	a.mu.Unlock()
}

func (a *accessor) addSubscriber(fn func(any)) func() {
	a.mu.Lock()
	a.subFns = append(a.subFns, fn)
	idx := len(a.subFns) - 1
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		if idx < len(a.subFns) {
			a.subFns[idx] = nil
		}
		a.mu.Unlock()
	}
}

func (a *accessor) addUpdateListener(fn func(any)) func() {
	a.mu.Lock()
	a.updateFns = append(a.updateFns, fn)
	idx := len(a.updateFns) - 1
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		if idx < len(a.updateFns) {
			a.updateFns[idx] = nil
		}
		a.mu.Unlock()
	}
}
