package threadpool

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
	"github.com/vnykmshr/goloop/pkg/common/validation"
	"github.com/vnykmshr/goloop/pkg/eventloop"
	"github.com/vnykmshr/goloop/pkg/metrics"
)

// ErrSchedulerClosed fails futures whose jobs can no longer report back
// because the scheduler was closed first.
var ErrSchedulerClosed = fmt.Errorf("threadpool: result not delivered: %w", eventloop.ErrLoopClosed)

// Scheduler is the part of an event loop the pool depends on.
// *eventloop.Loop satisfies it.
type Scheduler interface {
	// CreateFuture returns a pending future bound to the scheduler.
	CreateFuture() *eventloop.Future

	// CallSoon posts fn to the scheduler goroutine. It must not block.
	CallSoon(fn func()) error

	// IsClosed reports whether the scheduler has been closed.
	IsClosed() bool

	// Closed returns a channel that is closed with the scheduler.
	Closed() <-chan struct{}
}

// Callable is a blocking unit of work executed on a worker goroutine.
type Callable func() (any, error)

// Config holds configuration options for creating a thread pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// Name identifies the pool in logs and metrics. Defaults to "pool-<id>".
	Name string

	// Logger receives worker panics and abandoned results.
	// If nil, logging is discarded.
	Logger *slog.Logger

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config

	// OnWorkerStart is called on the worker goroutine when it starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called on the worker goroutine before it exits.
	OnWorkerStop func(workerID int)
}

// DefaultWorkerCount returns the number of CPUs, but never less than two.
func DefaultWorkerCount() int {
	return max(runtime.NumCPU(), 2)
}

// DefaultConfig returns a configuration with DefaultWorkerCount workers.
func DefaultConfig() Config {
	return Config{WorkerCount: DefaultWorkerCount()}
}

// Pool runs blocking callables on a fixed set of worker goroutines and
// delivers their results to a Scheduler.
type Pool struct {
	sched   Scheduler
	config  Config
	name    string
	logger  *slog.Logger
	metrics *metrics.Registry

	queue *queue

	mu          sync.Mutex
	running     bool
	started     bool
	outstanding map[*eventloop.Future]struct{}

	activeWorkers  atomic.Int32
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	workerWg     sync.WaitGroup
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	done         chan struct{}
}

// New creates a pool with workerCount workers bound to sched.
// It panics if the arguments are invalid; use NewWithConfig to get an error.
func New(sched Scheduler, workerCount int) *Pool {
	config := DefaultConfig()
	config.WorkerCount = workerCount

	p, err := NewWithConfig(sched, config)
	if err != nil {
		panic(err)
	}
	return p
}

// NewWithConfig creates a pool with the specified configuration.
//
// Workers are started by a callback posted to sched, so they begin pulling
// jobs once the scheduler runs. Submit may be called before that.
func NewWithConfig(sched Scheduler, config Config) (*Pool, error) {
	if err := validation.ValidateNotNil("threadpool", "scheduler", sched); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("threadpool", "WorkerCount", config.WorkerCount); err != nil {
		return nil, err
	}

	name := config.Name
	if name == "" {
		name = "pool-" + uuid.NewString()[:8]
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &Pool{
		sched:       sched,
		config:      config,
		name:        name,
		logger:      logger.With(slog.String("pool", name)),
		metrics:     config.Metrics.Resolve(),
		queue:       newQueue(),
		running:     true,
		outstanding: make(map[*eventloop.Future]struct{}),
		shutdownCh:  make(chan struct{}),
		done:        make(chan struct{}),
	}

	if err := sched.CallSoon(p.start); err != nil {
		return nil, gferrors.NewOperationError("threadpool", "New", err).
			WithContext("scheduler is closed")
	}
	go p.watch()

	p.recordSize()
	return p, nil
}

// Submit queues fn and returns a future for its outcome. It never blocks.
//
// The future resolves on the scheduler with fn's value or error; a panic in
// fn becomes a *errors.PanicError. After Shutdown the returned future has
// already failed with errors.ErrPoolClosed; once the scheduler is closed it
// has failed with ErrSchedulerClosed.
func (p *Pool) Submit(fn Callable) *eventloop.Future {
	fut := p.sched.CreateFuture()
	if err := validation.ValidateNotNil("threadpool", "callable", fn); err != nil {
		fut.SetError(err)
		return fut
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		fut.SetError(gferrors.ErrPoolClosed)
		return fut
	}
	p.outstanding[fut] = struct{}{}
	p.mu.Unlock()

	fut.AddDoneCallback(p.forget)
	if !p.queue.push(job{fn: fn, fut: fut, enqueued: time.Now()}) {
		p.drop(fut)
		return fut
	}

	p.totalSubmitted.Add(1)
	p.recordSubmit()
	return fut
}

// Shutdown stops the pool. Every outstanding future fails with
// errors.ErrPoolClosed before Shutdown returns; callables already running
// are not interrupted and their results are discarded. The returned channel
// is closed once every worker has exited. Shutdown is idempotent.
func (p *Pool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.running = false
		pending := make([]*eventloop.Future, 0, len(p.outstanding))
		for fut := range p.outstanding {
			pending = append(pending, fut)
		}
		p.mu.Unlock()

		close(p.shutdownCh)
		for _, j := range p.queue.close() {
			pending = append(pending, j.fut)
		}

		failed := 0
		for _, fut := range pending {
			if fut.SetError(gferrors.ErrPoolClosed) {
				failed++
			}
		}
		p.logger.Debug("pool shut down", slog.Int("failed_futures", failed))

		go func() {
			p.workerWg.Wait()
			close(p.done)
		}()
	})

	return p.done
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Scheduler returns the scheduler the pool delivers results to.
func (p *Pool) Scheduler() Scheduler {
	return p.sched
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the number of jobs waiting for a worker.
func (p *Pool) QueueSize() int {
	return p.queue.len()
}

// ActiveWorkers returns the number of workers currently running a job.
func (p *Pool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// Outstanding returns the number of submitted futures not yet resolved.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// TotalSubmitted returns the total number of jobs accepted by the pool.
func (p *Pool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of jobs that ran to completion,
// successfully or not.
func (p *Pool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// IsShutdown reports whether Shutdown has been called.
func (p *Pool) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.running
}

// start launches the workers. It runs on the scheduler.
func (p *Pool) start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.started {
		return
	}
	p.started = true

	for i := 0; i < p.config.WorkerCount; i++ {
		w := &worker{id: i, pool: p}
		p.workerWg.Add(1)
		go w.run()
	}
	p.logger.Debug("workers started", slog.Int("workers", p.config.WorkerCount))
}

// watch releases idle workers once the scheduler closes and fails the jobs
// they will never run.
func (p *Pool) watch() {
	select {
	case <-p.sched.Closed():
		for _, j := range p.queue.close() {
			p.drop(j.fut)
		}
	case <-p.shutdownCh:
	}
}

func (p *Pool) forget(fut *eventloop.Future) {
	p.mu.Lock()
	delete(p.outstanding, fut)
	n := len(p.outstanding)
	p.mu.Unlock()

	p.recordOutstanding(n)
}

// drop fails fut after the scheduler has closed. Its done callbacks can no
// longer run there, so fut leaves the outstanding set here.
func (p *Pool) drop(fut *eventloop.Future) {
	p.mu.Lock()
	delete(p.outstanding, fut)
	n := len(p.outstanding)
	p.mu.Unlock()

	p.recordOutstanding(n)
	fut.SetError(ErrSchedulerClosed)
}
