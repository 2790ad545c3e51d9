package pumped

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// AnyFlow is the type-erased interface every *Flow[In, Out] satisfies,
// used by extensions that only need to observe a flow's declared name
// and dependencies without its concrete input/output types.
type AnyFlow interface {
	taggable
	getDeps() []Dependency
	flowName() string
}

// Flow is a typed, schema-validated unit of work executed inside a pod
// (§4.9). Build one with Define; run it with ExecuteOnScope or ExecuteOnPod.
type Flow[In, Out any] struct {
	deps       []Dependency
	handler    func(*ExecutionCtx, *ResolveCtx, In) (Out, error)
	inSchema   Schema
	okSchema   Schema
	errSchema  Schema
	tags       map[any]any
}

func (f *Flow[In, Out]) getTag(key any) (any, bool) {
	v, ok := f.tags[key]
	return v, ok
}
func (f *Flow[In, Out]) setTag(key any, val any)    { f.tags[key] = val }
func (f *Flow[In, Out]) getDeps() []Dependency      { return f.deps }

func (f *Flow[In, Out]) flowName() string {
	if n, ok := execNameMeta.Get(f); ok {
		return n
	}
	return fmt.Sprintf("flow<%T,%T>", *new(In), *new(Out))
}

// FlowOption configures a Flow at construction time.
type FlowOption func(*flowConfig)

type flowConfig struct {
	deps      []Dependency
	inSchema  Schema
	okSchema  Schema
	errSchema Schema
	tags      []Tagged
}

// WithFlowDeps declares the executors this flow resolves through its
// pod before the handler runs. Main deps are resolved up front; a
// Reactive dep fails the execution with REACTIVE_EXECUTOR_IN_POD; Lazy
// and Static deps are skipped. No resolved value or Controller is passed
// to the handler, which reaches dependencies through ResolveInFlow.
func WithFlowDeps(deps ...Dependency) FlowOption {
	return func(c *flowConfig) { c.deps = append(c.deps, deps...) }
}

// WithInputSchema validates the input given to ExecuteOnScope or
// ExecuteOnPod before the handler
// runs; a failure never invokes the handler (§4.9 step 2, E6).
func WithInputSchema(s Schema) FlowOption {
	return func(c *flowConfig) { c.inSchema = s }
}

// WithSuccessSchema validates ctx.Ok's payload at the flow boundary.
func WithSuccessSchema(s Schema) FlowOption {
	return func(c *flowConfig) { c.okSchema = s }
}

// WithErrorSchema validates ctx.Ko's payload at the flow boundary.
func WithErrorSchema(s Schema) FlowOption {
	return func(c *flowConfig) { c.errSchema = s }
}

// WithFlowTag attaches a tag to the flow definition, inheritable by
// every execution's context (§4.9 step 3).
func WithFlowTag(t Tagged) FlowOption {
	return func(c *flowConfig) { c.tags = append(c.tags, t) }
}

// Define creates a flow from a handler and options. The handler receives
// the execution context, a ResolveCtx for ad-hoc dependency access, and
// the validated input, and returns either Ok(value) or Ko(err) — in
// idiomatic Go terms, a (Out, error) pair; Ko is just error != nil.
func Define[In, Out any](handler func(*ExecutionCtx, *ResolveCtx, In) (Out, error), opts ...FlowOption) *Flow[In, Out] {
	cfg := &flowConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	f := &Flow[In, Out]{
		deps:      cfg.deps,
		handler:   handler,
		inSchema:  cfg.inSchema,
		okSchema:  cfg.okSchema,
		errSchema: cfg.errSchema,
		tags:      make(map[any]any),
	}
	applyTags(f, cfg.tags)
	return f
}

// Ok constructs a successful handler result. It exists purely for
// readability at call sites that want to mirror ctx.ok(data) from the
// spec; returning (value, nil) directly works identically.
func Ok[Out any](value Out) (Out, error) { return value, nil }

// Ko constructs a failed handler result, mirroring ctx.ko(error).
func Ko[Out any](err error) (Out, error) {
	var zero Out
	return zero, err
}

// ExecuteOption configures a single ExecuteOnScope or ExecuteOnPod call.
type ExecuteOption func(*executeConfig)

type executeConfig struct {
	tags []Tagged
}

// WithExecuteTag attaches a tag to this one execution's context, ahead
// of the flow definition's own tags.
func WithExecuteTag(t Tagged) ExecuteOption {
	return func(c *executeConfig) { c.tags = append(c.tags, t) }
}

// ExecuteOnScope validates input, creates an implicit pod from s, and
// runs flow inside it. The pod is disposed when the returned Promised is
// awaited, unless the caller adopts it via Promised.GetPod first.
func ExecuteOnScope[In, Out any](s *Scope, flow *Flow[In, Out], input In, opts ...ExecuteOption) *Promised[Out] {
	pod := s.CreatePod()
	return execute(context.Background(), pod, true, flow, input, nil, 0, opts...)
}

// ExecuteOnPod runs flow inside an existing pod. The pod is never
// disposed by this call; the caller owns its lifetime.
func ExecuteOnPod[In, Out any](pod *Pod, flow *Flow[In, Out], input In, opts ...ExecuteOption) *Promised[Out] {
	return execute(context.Background(), pod, false, flow, input, nil, 0, opts...)
}

// ExecSub runs sub inside the same pod as parent, inheriting its context
// store and incrementing the depth, recording the call in parent's
// journal under an auto-generated key (§4.9 "Sub-flows").
func ExecSub[In, Out any](parent *ExecutionCtx, sub *Flow[In, Out], input In) (Out, error) {
	ordinal := parent.nextSubCallOrdinal()
	key := fmt.Sprintf("%s/%d/%d", parent.name(), parent.depth(), ordinal)
	return Run(parent, key, func() (Out, error) {
		p := execute(parent.ctx, parent.pod, false, sub, input, parent, parent.depth()+1)
		return p.Await()
	})
}

func execute[In, Out any](ctx context.Context, pod *Pod, ownsPod bool, flow *Flow[In, Out], input In, parent *ExecutionCtx, depth int, opts ...ExecuteOption) *Promised[Out] {
	cfg := &executeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var zero Out

	if flow.inSchema != nil {
		if _, err := validate(flow.inSchema, input); err != nil {
			return &Promised[Out]{err: schemaValidationFailed("flow-input", err), pod: pod, ownsPod: ownsPod}
		}
	}

	isParallel := false
	if parent != nil {
		isParallel, _ = flowParTag.Find(parent.data)
	}
	execCtx := newExecutionCtx(ctx, pod, parent, flow.flowName(), depth, isParallel)
	for _, t := range cfg.tags {
		execCtx.Set(t.key, t.value)
	}
	for k, v := range flow.tags {
		if _, exists := execCtx.data.data[k]; !exists {
			execCtx.data.data[k] = v
		}
	}

	execCtx.Set(startTimeTag, time.Now())
	execCtx.Set(statusTag, ExecutionStatusRunning)

	exts := pod.extensionsSnapshot()
	for _, ext := range exts {
		if err := ext.OnFlowStart(execCtx, flow); err != nil {
			execCtx.Set(statusTag, ExecutionStatusFailed)
			execCtx.Set(errorTag, err)
			return &Promised[Out]{err: err, execCtx: execCtx, pod: pod, ownsPod: ownsPod}
		}
	}

	if pod.isDisposed() {
		err := scopeDisposed("flow-execute").withScope(pod.id)
		execCtx.Set(statusTag, ExecutionStatusCancelled)
		execCtx.Set(errorTag, err)
		return &Promised[Out]{err: err, execCtx: execCtx, pod: pod, ownsPod: ownsPod}
	}

	if err := resolveFlowDeps(ctx, pod, flow.deps); err != nil {
		execCtx.Set(statusTag, ExecutionStatusFailed)
		execCtx.Set(errorTag, err)
		return &Promised[Out]{err: err, execCtx: execCtx, pod: pod, ownsPod: ownsPod}
	}

	result, err := runHandler(pod, execCtx, flow, input)

	execCtx.Set(endTimeTag, time.Now())
	if err != nil {
		execCtx.Set(statusTag, ExecutionStatusFailed)
		execCtx.Set(errorTag, err)
	} else {
		if flow.okSchema != nil {
			if _, serr := validate(flow.okSchema, result); serr != nil {
				err = schemaValidationFailed("flow-output", serr)
				result = zero
				execCtx.Set(statusTag, ExecutionStatusFailed)
				execCtx.Set(errorTag, err)
			}
		}
		if err == nil {
			execCtx.Set(statusTag, ExecutionStatusSuccess)
		}
	}
	if err != nil && flow.errSchema != nil {
		if _, serr := validate(flow.errSchema, err.Error()); serr != nil {
			err = schemaValidationFailed("flow-error", serr)
		}
	}

	for i := len(exts) - 1; i >= 0; i-- {
		if extErr := exts[i].OnFlowEnd(execCtx, result, err); extErr != nil && err == nil {
			err = extErr
		}
	}

	pod.execTree().addNode(execCtx.finalize())

	return &Promised[Out]{value: result, err: err, execCtx: execCtx, pod: pod, ownsPod: ownsPod}
}

func resolveFlowDeps(ctx context.Context, pod *Pod, deps []Dependency) error {
	for _, dep := range deps {
		if dep.mode() == ModeLazy || dep.mode() == ModeStatic {
			continue
		}
		if dep.mode() == ModeReactive {
			return reactiveExecutorInPod(dep.baseExecutor().name())
		}
		if _, err := pod.resolve(ctx, dep.baseExecutor(), newResolveTrace()); err != nil {
			return err
		}
	}
	return nil
}

func runHandler[In, Out any](pod *Pod, execCtx *ExecutionCtx, flow *Flow[In, Out], input In) (result Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = flowExecutionFailed(flow.flowName(), fmt.Errorf("panic: %v", r))
			exts := pod.extensionsSnapshot()
			for _, ext := range exts {
				_ = ext.OnFlowPanic(execCtx, r, stack)
			}
		}
	}()

	rc := &ResolveCtx{ctx: execCtx.ctx, host: pod}
	return flow.handler(execCtx, rc, input)
}
