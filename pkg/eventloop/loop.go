package eventloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
	"github.com/vnykmshr/goloop/pkg/metrics"
)

var (
	// ErrCancelled is returned from Task.Await when the awaiting task was
	// cancelled, and from Future.Result for a cancelled future.
	ErrCancelled = errors.New("eventloop: cancelled")

	// ErrLoopClosed is returned when posting to a closed loop.
	ErrLoopClosed = fmt.Errorf("eventloop: %w", gferrors.ErrClosed)

	// ErrLoopRunning is returned by Run when the loop is already running.
	ErrLoopRunning = errors.New("eventloop: loop is already running")

	// ErrNotDone is returned by Future.Result while the future is pending.
	ErrNotDone = errors.New("eventloop: future is not done")

	// ErrStopped is returned by RunUntilComplete when the loop stopped
	// before the task finished.
	ErrStopped = errors.New("eventloop: loop stopped before task completed")
)

const (
	stateIdle int32 = iota
	stateRunning
	stateClosed
)

// Config holds configuration for an event loop.
type Config struct {
	// Name identifies the loop in logs and metrics. Defaults to "loop-<id>".
	Name string

	// Logger receives panics recovered from callbacks and lifecycle events.
	// If nil, logging is discarded.
	Logger *slog.Logger

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

// DefaultConfig returns a default loop configuration.
func DefaultConfig() Config {
	return Config{}
}

// Loop is a single-goroutine cooperative scheduler. Callbacks posted with
// CallSoon, timers and task steps all execute on the goroutine that calls
// Run, one at a time.
type Loop struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Registry

	state         atomic.Int32
	stopRequested atomic.Bool

	mu     sync.Mutex
	ready  []func()
	timers timerHeap
	seq    uint64

	wake      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates an idle loop with the default configuration.
func New() *Loop {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an idle loop with the specified configuration.
func NewWithConfig(config Config) *Loop {
	name := config.Name
	if name == "" {
		name = "loop-" + uuid.NewString()[:8]
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Loop{
		name:    name,
		logger:  logger.With(slog.String("loop", name)),
		metrics: config.Metrics.Resolve(),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
	}
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Logger returns the loop's logger so components bound to it log alike.
func (l *Loop) Logger() *slog.Logger {
	return l.logger
}

// CallSoon schedules fn to run on the loop goroutine. It is the only way
// other goroutines may touch loop-owned state, and it never blocks.
func (l *Loop) CallSoon(fn func()) error {
	l.mu.Lock()
	if l.state.Load() == stateClosed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.ready = append(l.ready, fn)
	l.mu.Unlock()

	l.notify()
	return nil
}

// CreateFuture returns a pending future bound to this loop.
func (l *Loop) CreateFuture() *Future {
	return newFuture(l)
}

// Spawn wraps coro in a Task and schedules its first step. On a closed
// loop the returned task has already failed with ErrLoopClosed.
func (l *Loop) Spawn(coro Coroutine) *Task {
	t := newTask(l, coro)
	if err := l.CallSoon(t.step); err != nil {
		t.fut.SetError(err)
		return t
	}
	if l.metrics != nil {
		l.metrics.LoopTasksSpawned.WithLabelValues(l.name).Inc()
	}
	return t
}

// IsClosed reports whether Close has been called.
func (l *Loop) IsClosed() bool {
	return l.state.Load() == stateClosed
}

// IsRunning reports whether a goroutine is currently inside Run.
func (l *Loop) IsRunning() bool {
	return l.state.Load() == stateRunning
}

// Closed returns a channel that is closed when the loop is closed.
func (l *Loop) Closed() <-chan struct{} {
	return l.closing
}

// Run drains callbacks and timers on the calling goroutine until Stop or
// Close is called, or ctx is done. ctx is checked between batches, so a
// steady stream of callbacks cannot keep the loop running past it.
// A stopped loop may be run again.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(stateIdle, stateRunning) {
		if l.IsClosed() {
			return ErrLoopClosed
		}
		return ErrLoopRunning
	}
	defer l.state.CompareAndSwap(stateRunning, stateIdle)

	for {
		if l.stopRequested.Swap(false) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, next := l.collect(time.Now())
		for _, fn := range batch {
			if l.IsClosed() {
				return nil
			}
			l.invoke(fn)
		}
		if len(batch) > 0 {
			continue
		}

		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if !next.IsZero() {
			timer = time.NewTimer(time.Until(next))
			timerC = timer.C
		}

		select {
		case <-l.wake:
		case <-timerC:
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case <-l.closing:
			stopTimer(timer)
			return nil
		}
		stopTimer(timer)
	}
}

// RunUntilComplete spawns coro, runs the loop until the task finishes and
// returns the task's outcome. The loop is left idle, not closed.
func (l *Loop) RunUntilComplete(ctx context.Context, coro Coroutine) (any, error) {
	t := l.Spawn(coro)
	t.AddDoneCallback(func(*Future) { l.Stop() })

	if err := l.Run(ctx); err != nil {
		return nil, err
	}
	if !t.Done() {
		return nil, ErrStopped
	}
	return t.Result()
}

// Stop makes Run return after the current batch of callbacks.
func (l *Loop) Stop() {
	l.stopRequested.Store(true)
	l.notify()
}

// Close stops the loop for good. Pending callbacks and timers are dropped,
// later CallSoon calls fail with ErrLoopClosed, and tasks suspended in Await
// are released with ErrCancelled.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.state.Store(stateClosed)
		dropped := len(l.ready)
		l.ready = nil
		l.timers = nil
		l.mu.Unlock()

		close(l.closing)
		l.logger.Debug("loop closed", slog.Int("dropped_callbacks", dropped))
	})
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// collect takes every ready callback plus the timers due at now, and
// returns the deadline of the earliest remaining timer.
func (l *Loop) collect(now time.Time) ([]func(), time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.ready
	l.ready = nil

	for len(l.timers) > 0 {
		h := l.timers[0]
		if h.cancelled.Load() {
			l.timers.popMin()
			continue
		}
		if h.when.After(now) {
			return batch, h.when
		}
		l.timers.popMin()
		batch = append(batch, h.fn)
	}
	return batch, time.Time{}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("callback panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			if l.metrics != nil {
				l.metrics.LoopCallbackPanic.WithLabelValues(l.name).Inc()
			}
		}
	}()

	if l.metrics != nil {
		l.metrics.LoopCallbacks.WithLabelValues(l.name).Inc()
	}
	fn()
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
