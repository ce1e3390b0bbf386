package eventloop

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

// Coroutine is the body of a Task. It runs on its own goroutine but only
// while the loop has handed it control; every Await is a suspension point.
type Coroutine func(t *Task) (any, error)

// errDetached is returned from Await once the loop has been closed under a
// suspended or running task.
var errDetached = fmt.Errorf("%w: %w", ErrCancelled, ErrLoopClosed)

// Task drives a Coroutine on a Loop.
//
// Control is passed like a baton: the loop goroutine resumes the coroutine
// and blocks until the coroutine either suspends in Await or returns, so at
// most one of them runs at any time and loop-owned state needs no locking.
type Task struct {
	loop *Loop
	fut  *Future
	coro Coroutine

	resume chan struct{}
	yield  chan struct{}
	exited chan struct{}

	// loop goroutine only
	started   bool
	suspended bool

	// coroutine goroutine only
	detached bool

	waiting         atomic.Pointer[Future]
	cancelRequested atomic.Bool
}

func newTask(l *Loop, coro Coroutine) *Task {
	return &Task{
		loop:   l,
		fut:    newFuture(l),
		coro:   coro,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Loop returns the loop the task runs on.
func (t *Task) Loop() *Loop { return t.loop }

// Future returns the future that resolves with the task's outcome.
func (t *Task) Future() *Future { return t.fut }

// Done reports whether the task has finished.
func (t *Task) Done() bool { return t.fut.Done() }

// State returns the state of the task's future.
func (t *Task) State() State { return t.fut.State() }

// Cancelled reports whether the task ended cancelled.
func (t *Task) Cancelled() bool { return t.fut.Cancelled() }

// Result returns the task's outcome; see Future.Result.
func (t *Task) Result() (any, error) { return t.fut.Result() }

// Err returns the task's failure, if any.
func (t *Task) Err() error { return t.fut.Err() }

// AddDoneCallback runs cb on the loop once the task finishes.
func (t *Task) AddDoneCallback(cb func(*Future)) { t.fut.AddDoneCallback(cb) }

// DoneChan returns a channel closed when the task finishes.
func (t *Task) DoneChan() <-chan struct{} { return t.fut.DoneChan() }

// Cancel requests cancellation. The coroutine observes it as ErrCancelled
// from its current or next Await; a task that has not started yet never
// runs. Cancel returns false if the task has already finished.
func (t *Task) Cancel() bool {
	if t.fut.Done() {
		return false
	}
	t.cancelRequested.Store(true)
	_ = t.loop.CallSoon(t.step)
	return true
}

// Await suspends the coroutine until f resolves and returns its outcome.
// It must only be called from the task's own coroutine.
//
// If the task is cancelled meanwhile, Await returns ErrCancelled and leaves
// f untouched. If the loop is closed, Await returns an error matching both
// ErrCancelled and ErrLoopClosed, and every later Await does the same.
func (t *Task) Await(f *Future) (any, error) {
	if t.detached || t.loop.IsClosed() {
		t.detached = true
		return nil, errDetached
	}
	if t.cancelRequested.CompareAndSwap(true, false) {
		return nil, ErrCancelled
	}
	if f.Done() {
		return f.Result()
	}

	t.waiting.Store(f)
	f.AddDoneCallback(func(*Future) {
		if t.waiting.Load() == f {
			t.step()
		}
	})

	select {
	case t.yield <- struct{}{}:
	case <-t.loop.closing:
		return t.detach()
	}
	select {
	case <-t.resume:
	case <-t.loop.closing:
		return t.detach()
	}

	t.waiting.Store(nil)
	if t.cancelRequested.CompareAndSwap(true, false) {
		return nil, ErrCancelled
	}
	return f.Result()
}

// Sleep suspends the coroutine for d.
func (t *Task) Sleep(d time.Duration) error {
	f := t.loop.CreateFuture()
	h := t.loop.CallLater(d, func() { f.SetResult(nil) })
	if _, err := t.Await(f); err != nil {
		h.Cancel()
		return err
	}
	return nil
}

// Yield lets every other ready callback run before the coroutine continues.
func (t *Task) Yield() error {
	f := t.loop.CreateFuture()
	if err := t.loop.CallSoon(func() { f.SetResult(nil) }); err != nil {
		t.detached = true
		return errDetached
	}
	_, err := t.Await(f)
	return err
}

func (t *Task) detach() (any, error) {
	t.waiting.Store(nil)
	t.detached = true
	return nil, errDetached
}

// step advances the task by one slice. It runs on the loop goroutine only.
func (t *Task) step() {
	if t.fut.Done() {
		return
	}

	if !t.started {
		t.started = true
		if t.cancelRequested.Load() {
			t.fut.Cancel()
			return
		}
		go t.run()
	} else {
		if !t.suspended {
			return
		}
		w := t.waiting.Load()
		if !t.cancelRequested.Load() && (w == nil || !w.Done()) {
			return
		}
		t.suspended = false
		select {
		case t.resume <- struct{}{}:
		case <-t.loop.closing:
			return
		}
	}

	select {
	case <-t.yield:
		t.suspended = true
	case <-t.exited:
	case <-t.loop.closing:
	}
}

func (t *Task) run() {
	defer close(t.exited)

	var (
		value any
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &gferrors.PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		value, err = t.coro(t)
	}()

	switch {
	case err == nil && t.cancelRequested.Load():
		t.fut.Cancel()
	case err == nil:
		t.fut.SetResult(value)
	case errors.Is(err, ErrCancelled):
		t.fut.Cancel()
	default:
		t.fut.SetError(err)
	}
}
