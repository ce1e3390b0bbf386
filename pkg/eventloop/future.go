package eventloop

import (
	"context"
	"sync"
)

// State is the lifecycle state of a Future.
type State int32

const (
	// Pending futures have not been resolved yet.
	Pending State = iota
	// Fulfilled futures carry a value.
	Fulfilled
	// Failed futures carry an error.
	Failed
	// Cancelled futures were cancelled before resolving.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Future is a single-assignment result cell bound to a Loop.
//
// Resolution is guarded by a mutex, so SetResult, SetError and Cancel may be
// called from any goroutine; the first call wins and later calls are no-ops
// that return false. Done callbacks always run on the loop.
type Future struct {
	loop *Loop

	mu        sync.Mutex
	state     State
	value     any
	err       error
	callbacks []func(*Future)
	done      chan struct{}
}

func newFuture(l *Loop) *Future {
	return &Future{
		loop: l,
		done: make(chan struct{}),
	}
}

// Loop returns the loop the future is bound to.
func (f *Future) Loop() *Loop {
	return f.loop
}

// State returns the current state.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done reports whether the future has left the Pending state.
func (f *Future) Done() bool {
	return f.State() != Pending
}

// Cancelled reports whether the future was cancelled.
func (f *Future) Cancelled() bool {
	return f.State() == Cancelled
}

// SetResult fulfils the future with v.
func (f *Future) SetResult(v any) bool {
	return f.resolve(Fulfilled, v, nil)
}

// SetError fails the future with err. A nil err fulfils it with nil.
func (f *Future) SetError(err error) bool {
	if err == nil {
		return f.SetResult(nil)
	}
	return f.resolve(Failed, nil, err)
}

// Cancel cancels a pending future.
func (f *Future) Cancel() bool {
	return f.resolve(Cancelled, nil, ErrCancelled)
}

// Result returns the value or the error of a resolved future. It does not
// block: a pending future yields ErrNotDone, a cancelled one ErrCancelled.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case Pending:
		return nil, ErrNotDone
	case Fulfilled:
		return f.value, nil
	default:
		return nil, f.err
	}
}

// Err returns the failure of a resolved future, ErrCancelled if it was
// cancelled, and nil otherwise.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Failed || f.state == Cancelled {
		return f.err
	}
	return nil
}

// AddDoneCallback registers cb to run on the loop once the future resolves.
// If it is already resolved, cb is scheduled right away. Callbacks are
// dropped when the loop is closed.
func (f *Future) AddDoneCallback(cb func(*Future)) {
	f.mu.Lock()
	if f.state == Pending {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	f.schedule(cb)
}

// DoneChan returns a channel closed on resolution, for goroutines outside
// the loop that need to select on the future.
func (f *Future) DoneChan() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is done. It must not be
// called on the loop goroutine; tasks use Task.Await instead.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(state State, v any, err error) bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}
	f.state = state
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		f.schedule(cb)
	}
	return true
}

func (f *Future) schedule(cb func(*Future)) {
	_ = f.loop.CallSoon(func() { cb(f) })
}
