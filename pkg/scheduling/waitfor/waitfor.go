package waitfor

import (
	"errors"

	"github.com/vnykmshr/goloop/pkg/eventloop"
	"github.com/vnykmshr/goloop/pkg/metrics"
)

// Result is the outcome of one member of a Group.
type Result struct {
	Value any
	Err   error
}

// Option configures WaitFor.
type Option func(*options)

type options struct {
	raiseFirst     bool
	cancelOnFinish bool
	metrics        metrics.Config
}

// RaiseFirst makes the group fail with the first member error observed on
// the loop, without waiting for the others. Enabled by default.
func RaiseFirst(enabled bool) Option {
	return func(o *options) { o.raiseFirst = enabled }
}

// CancelOnFinish cancels every member still running once the group
// completes, whether it is awaited through Group.Await or through its
// Future. Group.Await also cancels them when the caller is cancelled.
// Enabled by default.
func CancelOnFinish(enabled bool) Option {
	return func(o *options) { o.cancelOnFinish = enabled }
}

// WithMetrics records group outcomes into the given metrics configuration.
func WithMetrics(config metrics.Config) Option {
	return func(o *options) { o.metrics = config }
}

const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

// Group runs a fixed set of coroutines concurrently on one loop.
// All of its bookkeeping happens in loop callbacks.
type Group struct {
	loop    *eventloop.Loop
	opts    options
	metrics *metrics.Registry

	tasks     []*eventloop.Task
	results   []Result
	remaining int
	result    *eventloop.Future
}

// WaitFor spawns every coroutine on loop right away and returns the Group
// tracking them. Call it from the loop goroutine or before the loop runs.
func WaitFor(loop *eventloop.Loop, coros []eventloop.Coroutine, opts ...Option) *Group {
	o := options{raiseFirst: true, cancelOnFinish: true}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Group{
		loop:      loop,
		opts:      o,
		metrics:   o.metrics.Resolve(),
		tasks:     make([]*eventloop.Task, len(coros)),
		results:   make([]Result, len(coros)),
		remaining: len(coros),
		result:    loop.CreateFuture(),
	}
	if g.metrics != nil {
		g.metrics.WaitGroups.WithLabelValues(loop.Name()).Inc()
	}

	if o.cancelOnFinish {
		g.result.AddDoneCallback(func(*eventloop.Future) { g.cancelPending() })
	}

	if len(coros) == 0 {
		g.finish(outcomeOK, func() { g.result.SetResult(g.results) })
		return g
	}

	for i, coro := range coros {
		t := loop.Spawn(coro)
		g.tasks[i] = t
		t.AddDoneCallback(func(f *eventloop.Future) { g.onDone(i, f) })
	}
	return g
}

// Wait is shorthand for WaitFor(t.Loop(), coros, opts...).Await(t).
func Wait(t *eventloop.Task, coros []eventloop.Coroutine, opts ...Option) ([]Result, error) {
	return WaitFor(t.Loop(), coros, opts...).Await(t)
}

// Await suspends t until the group completes.
//
// It returns the member results in submission order, or, with RaiseFirst,
// the first member error unwrapped. With RaiseFirst disabled, failures sit in
// the matching Result.Err. A member cancelled from outside counts as done:
// its Result.Err is eventloop.ErrCancelled and it never fails the group.
//
// If t itself is cancelled, the group is cancelled and Await returns
// eventloop.ErrCancelled.
func (g *Group) Await(t *eventloop.Task) ([]Result, error) {
	if g.opts.cancelOnFinish {
		defer g.cancelPending()
	}

	v, err := t.Await(g.result)
	if err != nil {
		if errors.Is(err, eventloop.ErrCancelled) && !g.result.Done() {
			g.finish(outcomeCancelled, func() { g.result.Cancel() })
		}
		return nil, err
	}
	return v.([]Result), nil
}

// Future returns the future resolved with the group outcome.
func (g *Group) Future() *eventloop.Future {
	return g.result
}

// Tasks returns the member tasks in submission order.
func (g *Group) Tasks() []*eventloop.Task {
	return g.tasks
}

func (g *Group) onDone(i int, f *eventloop.Future) {
	if g.result.Done() {
		return
	}

	v, err := f.Result()
	g.results[i] = Result{Value: v, Err: err}
	g.remaining--

	if err != nil && !f.Cancelled() && g.opts.raiseFirst {
		g.finish(outcomeError, func() { g.result.SetError(err) })
		return
	}
	if g.remaining == 0 {
		g.finish(outcomeOK, func() { g.result.SetResult(g.results) })
	}
}

func (g *Group) finish(outcome string, resolve func()) {
	resolve()
	if g.metrics != nil {
		g.metrics.WaitGroupOutcomes.WithLabelValues(g.loop.Name(), outcome).Inc()
	}
}

func (g *Group) cancelPending() {
	for _, t := range g.tasks {
		if t != nil && !t.Done() {
			t.Cancel()
		}
	}
}
