package pumped

// Promised wraps the outcome of a flow execution (§4.11). Because this
// engine runs flow handlers synchronously rather than on a cooperative
// scheduler, a Promised is constructed already settled; Await, Map, and
// the static combinators exist to keep the public shape the spec
// describes (await/map/switch/race/all) without forcing callers to know
// that resolution already happened by construction time.
type Promised[T any] struct {
	value   T
	err     error
	execCtx *ExecutionCtx
	pod     *Pod
	ownsPod bool
	adopted bool
}

// Await yields the success value or the execution's error. If the
// Promised owns an implicit pod (created by ExecuteOnScope) and the pod
// hasn't been adopted via GetPod, the pod is disposed here.
func (p *Promised[T]) Await() (T, error) {
	if p.ownsPod && !p.adopted && p.pod != nil {
		_ = p.pod.Dispose()
	}
	return p.value, p.err
}

// GetPod hands the underlying pod to the caller, who then owns its
// disposal; Await no longer disposes it implicitly.
func (p *Promised[T]) GetPod() *Pod {
	p.adopted = true
	return p.pod
}

// PromisedDetails is the structured form returned by InDetails.
type PromisedDetails[T any] struct {
	Success bool
	Result  T
	Error   error
	Ctx     *ExecutionCtx
}

// InDetails returns the full outcome without disposing the pod.
func (p *Promised[T]) InDetails() PromisedDetails[T] {
	return PromisedDetails[T]{
		Success: p.err == nil,
		Result:  p.value,
		Error:   p.err,
		Ctx:     p.execCtx,
	}
}

// Map transforms a successful value; errors pass through unchanged.
func Map[T, U any](p *Promised[T], fn func(T) U) *Promised[U] {
	if p.err != nil {
		return &Promised[U]{err: p.err, execCtx: p.execCtx, pod: p.pod, ownsPod: p.ownsPod}
	}
	return &Promised[U]{value: fn(p.value), execCtx: p.execCtx, pod: p.pod, ownsPod: p.ownsPod}
}

// Switch transforms a successful value into a new Promised, flattening
// the result (a monadic bind).
func Switch[T, U any](p *Promised[T], fn func(T) *Promised[U]) *Promised[U] {
	if p.err != nil {
		return &Promised[U]{err: p.err, execCtx: p.execCtx, pod: p.pod, ownsPod: p.ownsPod}
	}
	return fn(p.value)
}

// MapError transforms a failure's error; successes pass through
// unchanged.
func MapError[T any](p *Promised[T], fn func(error) error) *Promised[T] {
	if p.err == nil {
		return p
	}
	return &Promised[T]{err: fn(p.err), execCtx: p.execCtx, pod: p.pod, ownsPod: p.ownsPod}
}

// SwitchError transforms a failure into a new Promised (error recovery).
func SwitchError[T any](p *Promised[T], fn func(error) *Promised[T]) *Promised[T] {
	if p.err == nil {
		return p
	}
	return fn(p.err)
}

// All awaits the Promised values in order and returns their values, or
// stops at the first error and returns it; entries after the failing one
// are not awaited.
func All[T any](ps []*Promised[T]) *Promised[[]T] {
	out := make([]T, 0, len(ps))
	for _, p := range ps {
		v, err := p.Await()
		if err != nil {
			return &Promised[[]T]{err: err}
		}
		out = append(out, v)
	}
	return &Promised[[]T]{value: out}
}

// Race returns the first Promised in ps to have an outcome. Since this
// engine settles Promised values at construction time rather than on a
// scheduler, "first" is simply the first element of ps.
func Race[T any](ps []*Promised[T]) *Promised[T] {
	if len(ps) == 0 {
		var zero T
		return &Promised[T]{value: zero}
	}
	return ps[0]
}

// AllSettled awaits every Promised and returns a per-item outcome.
func AllSettled[T any](ps []*Promised[T]) *Promised[[]Settled[T]] {
	out := make([]Settled[T], 0, len(ps))
	for _, p := range ps {
		v, err := p.Await()
		out = append(out, Settled[T]{Ok: err == nil, Value: v, Err: err})
	}
	return &Promised[[]Settled[T]]{value: out}
}

// Try runs fn inside pod, wrapping its outcome as a Promised rather
// than a raw (T, error) pair, for composing with Map/Switch/All.
func Try[T any](pod *Pod, fn func(*Pod) (T, error)) *Promised[T] {
	v, err := fn(pod)
	return &Promised[T]{value: v, err: err, pod: pod}
}
