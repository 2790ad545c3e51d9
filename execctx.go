package pumped

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the terminal (or current) state of a flow execution.
type ExecutionStatus int

const (
	ExecutionStatusRunning ExecutionStatus = iota
	ExecutionStatusSuccess
	ExecutionStatusFailed
	ExecutionStatusCancelled
)

var (
	flowNameTag  = NewTag[string]("flow.name")
	flowDepthTag = NewTag[int]("flow.depth")
	flowParTag   = NewTag[bool]("flow.is_parallel")
	startTimeTag = NewTag[time.Time]("exec.start_time")
	endTimeTag   = NewTag[time.Time]("exec.end_time")
	statusTag    = NewTag[ExecutionStatus]("exec.status")
	errorTag     = NewTag[error]("exec.error")
)

// FlowName, FlowDepth, FlowIsParallel and Status are the built-in tags
// every execution context is pre-populated with (§4.9 step 3).
func FlowName() Tag[string]        { return flowNameTag }
func FlowDepth() Tag[int]          { return flowDepthTag }
func FlowIsParallel() Tag[bool]    { return flowParTag }
func Status() Tag[ExecutionStatus] { return statusTag }

// journalEntry is one recorded ctx.Run outcome, keyed by the caller's
// journal key. Its presence is what lets Run reject a second use of the
// same key with JOURNAL_KEY_DUPLICATE; the recorded value is not replayed.
type journalEntry struct {
	value any
	err   error
}

// ExecutionCtx is the per-flow-execution data store: built-in and
// user tags, a parent link for sub-flow tag inheritance, and a journal
// of ctx.Run outcomes for this one execution (§4.9).
type ExecutionCtx struct {
	id       string
	parent   *ExecutionCtx
	pod      *Pod
	data     *simpleTagStore
	ctx      context.Context
	journal  map[string]journalEntry
	subCalls int
}

func newExecutionCtx(ctx context.Context, pod *Pod, parent *ExecutionCtx, flowName string, depth int, isParallel bool) *ExecutionCtx {
	e := &ExecutionCtx{
		id:      uuid.NewString(),
		parent:  parent,
		pod:     pod,
		data:    newSimpleTagStore(),
		ctx:     ctx,
		journal: make(map[string]journalEntry),
	}
	flowNameTag.Set(e.data, flowName)
	flowDepthTag.Set(e.data, depth)
	flowParTag.Set(e.data, isParallel)
	if parent != nil {
		for k, v := range parent.data.data {
			if _, exists := e.data.data[k]; !exists {
				e.data.data[k] = v
			}
		}
	}
	return e
}

// Get retrieves a value from this context's own store, which also holds
// the parent context's tags copied in when this context was created.
func (e *ExecutionCtx) Get(key any) (any, bool) { return e.data.getTag(key) }

// Set stores a value on this context's own data store.
func (e *ExecutionCtx) Set(key any, value any) { e.data.setTag(key, value) }

// Find walks this context, then its parents, then the pod's own tags.
func (e *ExecutionCtx) Find(key any) (any, bool) {
	if v, ok := e.data.getTag(key); ok {
		return v, true
	}
	for p := e.parent; p != nil; p = p.parent {
		if v, ok := p.data.getTag(key); ok {
			return v, true
		}
	}
	return e.pod.GetTag(key)
}

// Context returns the context.Context this execution is bound to.
func (e *ExecutionCtx) Context() context.Context { return e.ctx }

// Pod returns the pod this execution is running in.
func (e *ExecutionCtx) Pod() *Pod { return e.pod }

func (e *ExecutionCtx) nextSubCallOrdinal() int {
	e.subCalls++
	return e.subCalls
}

func (e *ExecutionCtx) depth() int {
	d, _ := flowDepthTag.Get(e.data)
	return d
}

func (e *ExecutionCtx) name() string {
	n, _ := flowNameTag.Get(e.data)
	return n
}

// GetTyped retrieves a tag value with Tag's type assertion and default
// handling, looking only at this context's own store.
func GetTyped[T any](e *ExecutionCtx, tag Tag[T]) (T, error) {
	return tag.Get(e.data)
}

// SetTyped validates and stores a tag value on this context's own store.
func SetTyped[T any](e *ExecutionCtx, tag Tag[T], val T) error {
	return tag.Set(e.data, val)
}

// Run records fn's outcome in the journal under key. A second call with
// the same key during the same execution raises JOURNAL_KEY_DUPLICATE
// instead of invoking fn again (§4.9, invariant 9).
func Run[T any](e *ExecutionCtx, key string, fn func() (T, error)) (T, error) {
	if e.pod.isDisposed() {
		var zero T
		return zero, scopeDisposed("journal-run").withScope(e.pod.id)
	}
	if _, ok := e.journal[key]; ok {
		var zero T
		return zero, journalKeyDuplicate(key)
	}
	val, err := fn()
	e.journal[key] = journalEntry{value: val, err: err}
	return val, err
}

// ResolveInFlow resolves exec through the execution's pod, raising
// SCOPE_DISPOSED if the pod has since been disposed mid-execution
// (§4.9 "Cancellation").
func ResolveInFlow[T any](e *ExecutionCtx, exec *Executor[T]) (T, error) {
	if e.pod.isDisposed() {
		var zero T
		return zero, scopeDisposed("flow-resolve").withScope(e.pod.id)
	}
	return ResolveInPod(e.pod, exec)
}

// Settled is one item's outcome from ParallelSettled.
type Settled[T any] struct {
	Ok    bool
	Value T
	Err   error
}

// Parallel runs every thunk concurrently and awaits all of them,
// returning the first error encountered (fail-fast per §4.9): the
// remaining items still run to completion, but their results are
// discarded once the first rejection is observed.
func Parallel[T any](e *ExecutionCtx, thunks []func() (T, error)) ([]T, error) {
	if e.pod.isDisposed() {
		return nil, scopeDisposed("parallel").withScope(e.pod.id)
	}
	type outcome struct {
		idx int
		val T
		err error
	}
	results := make([]T, len(thunks))
	ch := make(chan outcome, len(thunks))
	for i, fn := range thunks {
		go func(i int, fn func() (T, error)) {
			v, err := fn()
			ch <- outcome{idx: i, val: v, err: err}
		}(i, fn)
	}
	var firstErr error
	for range thunks {
		o := <-ch
		if o.err != nil && firstErr == nil {
			firstErr = o.err
		}
		results[o.idx] = o.val
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// ParallelSettled runs every thunk concurrently and returns a per-item
// ok/ko outcome once all have completed.
func ParallelSettled[T any](e *ExecutionCtx, thunks []func() (T, error)) []Settled[T] {
	type outcome struct {
		idx int
		s   Settled[T]
	}
	ch := make(chan outcome, len(thunks))
	for i, fn := range thunks {
		go func(i int, fn func() (T, error)) {
			v, err := fn()
			ch <- outcome{idx: i, s: Settled[T]{Ok: err == nil, Value: v, Err: err}}
		}(i, fn)
	}
	out := make([]Settled[T], len(thunks))
	for range thunks {
		o := <-ch
		out[o.idx] = o.s
	}
	return out
}
