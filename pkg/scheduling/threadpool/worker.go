package threadpool

import (
	"log/slog"
	"runtime/debug"
	"time"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

// worker is a long-lived goroutine draining the pool queue.
type worker struct {
	id   int
	pool *Pool
}

// run is the main loop for a worker.
func (w *worker) run() {
	p := w.pool
	defer p.workerWg.Done()

	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}
	if p.config.OnWorkerStop != nil {
		defer p.config.OnWorkerStop(w.id)
	}

	for {
		j, ok := p.queue.pop()
		if !ok {
			return
		}
		if !w.execute(j) {
			return
		}
	}
}

// execute runs one job and posts its outcome to the scheduler. It returns
// false when the worker should exit because the scheduler is gone.
func (w *worker) execute(j job) bool {
	p := w.pool

	// cancelled or failed by shutdown while queued
	if j.fut.Done() {
		return true
	}
	if p.sched.IsClosed() {
		w.abandon(j)
		return false
	}

	p.activeWorkers.Add(1)
	p.recordDequeue(time.Since(j.enqueued))
	start := time.Now()

	value, err := w.call(j.fn)

	p.activeWorkers.Add(-1)
	p.totalCompleted.Add(1)
	p.recordDone(time.Since(start), err)

	fut := j.fut
	deliver := func() {
		if err != nil {
			fut.SetError(err)
			return
		}
		fut.SetResult(value)
	}
	if perr := p.sched.CallSoon(deliver); perr != nil {
		w.abandon(j)
		return false
	}
	return true
}

// call invokes fn, converting a panic into a *errors.PanicError.
func (w *worker) call(fn Callable) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &gferrors.PanicError{Value: r, Stack: debug.Stack()}
			w.pool.logger.Error("job panicked",
				slog.Int("worker", w.id),
				slog.Any("panic", r),
			)
		}
	}()

	return fn()
}

// abandon discards a job whose outcome cannot reach the closed scheduler
// and fails its future with ErrSchedulerClosed.
func (w *worker) abandon(j job) {
	w.pool.logger.Warn("result abandoned, scheduler closed",
		slog.Int("worker", w.id),
		slog.Duration("queued", time.Since(j.enqueued)),
	)
	w.pool.recordAbandoned()
	w.pool.drop(j.fut)
}
