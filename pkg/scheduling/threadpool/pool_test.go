package threadpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/goloop/internal/testutil"
	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
	"github.com/vnykmshr/goloop/pkg/eventloop"
	"github.com/vnykmshr/goloop/pkg/metrics"
)

// runLoop runs a loop in the background until the test ends.
func runLoop(t *testing.T) *eventloop.Loop {
	t.Helper()

	l := eventloop.NewWithConfig(eventloop.Config{Name: t.Name()})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(context.Background())
	}()

	t.Cleanup(func() {
		l.Close()
		<-done
	})
	return l
}

// newPool creates a pool that is shut down, and waited for, when the test ends.
func newPool(t *testing.T, sched Scheduler, config Config) *Pool {
	t.Helper()

	p, err := NewWithConfig(sched, config)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-p.Shutdown() })
	return p
}

func wait(t *testing.T, fut *eventloop.Future) (any, error) {
	t.Helper()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	return fut.Wait(ctx)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		workerCount int
		expectPanic bool
	}{
		{"single worker", 1, false},
		{"several workers", 4, false},
		{"zero workers", 0, true},
		{"negative workers", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := eventloop.New()
			defer l.Close()

			if tt.expectPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Error("expected panic")
					}
				}()
			}

			pool := New(l, tt.workerCount)
			testutil.AssertEqual(t, pool.Size(), tt.workerCount)
			testutil.AssertTrue(t, strings.HasPrefix(pool.Name(), "pool-"), "default name should start with pool-")
			<-pool.Shutdown()
		})
	}
}

func TestNewWithConfigErrors(t *testing.T) {
	t.Run("nil scheduler", func(t *testing.T) {
		var l *eventloop.Loop
		_, err := NewWithConfig(l, DefaultConfig())
		testutil.AssertTrue(t, gferrors.IsValidationError(err), "nil scheduler should be a validation error")
	})

	t.Run("closed scheduler", func(t *testing.T) {
		l := eventloop.New()
		l.Close()

		_, err := NewWithConfig(l, DefaultConfig())
		testutil.AssertTrue(t, gferrors.IsClosed(err), "closed scheduler should be reported")

		var opErr *gferrors.OperationError
		testutil.AssertTrue(t, errors.As(err, &opErr), "expected an OperationError")
		testutil.AssertEqual(t, opErr.Operation, "New")
	})
}

func TestDefaultWorkerCount(t *testing.T) {
	testutil.AssertTrue(t, DefaultWorkerCount() >= 2, "default worker count is at least two")
	testutil.AssertEqual(t, DefaultConfig().WorkerCount, DefaultWorkerCount())
}

func TestSubmit(t *testing.T) {
	l := runLoop(t)
	pool := newPool(t, l, Config{WorkerCount: 2})

	t.Run("value", func(t *testing.T) {
		v, err := wait(t, pool.Submit(func() (any, error) { return "ok", nil }))
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, v, any("ok"))
	})

	t.Run("error is returned unmodified", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := wait(t, pool.Submit(func() (any, error) { return nil, boom }))
		testutil.AssertTrue(t, err == boom, "error should not be wrapped")
	})

	t.Run("panic", func(t *testing.T) {
		_, err := wait(t, pool.Submit(func() (any, error) { panic("test panic") }))
		testutil.AssertTrue(t, gferrors.IsPanic(err), "panic should become a PanicError")
		testutil.AssertTrue(t, strings.Contains(err.Error(), "test panic"), "panic value should be kept")
	})

	t.Run("nil callable", func(t *testing.T) {
		_, err := wait(t, pool.Submit(nil))
		testutil.AssertTrue(t, gferrors.IsValidationError(err), "nil callable should be rejected")
	})
}

func TestEveryFutureResolvesOnce(t *testing.T) {
	l := runLoop(t)
	pool := newPool(t, l, Config{WorkerCount: 4})

	const numJobs = 100
	futures := make([]*eventloop.Future, numJobs)
	for i := range futures {
		i := i
		futures[i] = pool.Submit(func() (any, error) { return i, nil })
	}

	for i, fut := range futures {
		v, err := wait(t, fut)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, v, any(i))
		testutil.AssertTrue(t, !fut.SetResult(-1), "resolved future must not be overwritten")
	}

	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(numJobs))
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(numJobs))
	testutil.AssertEventually(t, func() bool { return pool.Outstanding() == 0 })
}

func TestSingleWorkerIsFIFO(t *testing.T) {
	l := runLoop(t)
	pool := newPool(t, l, Config{WorkerCount: 1})

	var rec testutil.Recorder
	var last *eventloop.Future
	for i := 0; i < 10; i++ {
		name := fmt.Sprint(i)
		last = pool.Submit(func() (any, error) {
			rec.Record(name)
			return nil, nil
		})
	}
	_, err := wait(t, last)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, strings.Join(rec.Events(), ""), "0123456789")
}

func TestWorkersStartWithLoop(t *testing.T) {
	l := eventloop.New()
	pool, err := NewWithConfig(l, Config{WorkerCount: 1})
	testutil.AssertNoError(t, err)

	var ran atomic.Bool
	fut := pool.Submit(func() (any, error) {
		ran.Store(true)
		return nil, nil
	})

	time.Sleep(20 * time.Millisecond)
	testutil.AssertTrue(t, !ran.Load(), "jobs must not run before the loop does")
	testutil.AssertEqual(t, pool.QueueSize(), 1)

	fut.AddDoneCallback(func(*eventloop.Future) { l.Stop() })
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, l.Run(ctx))
	testutil.AssertTrue(t, ran.Load(), "job should have run")

	<-pool.Shutdown()
	l.Close()
}

func TestShutdownFailsOutstanding(t *testing.T) {
	l := runLoop(t)
	pool, err := NewWithConfig(l, Config{WorkerCount: 1})
	testutil.AssertNoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	blocked := pool.Submit(func() (any, error) {
		close(started)
		<-release
		return "late", nil
	})
	<-started

	queued := []*eventloop.Future{
		pool.Submit(func() (any, error) { return nil, nil }),
		pool.Submit(func() (any, error) { return nil, nil }),
	}

	done := pool.Shutdown()

	// failed synchronously, before the worker finishes
	for _, fut := range append(queued, blocked) {
		testutil.AssertTrue(t, fut.Done(), "outstanding future should be resolved by Shutdown")
		testutil.AssertErrorIs(t, fut.Err(), gferrors.ErrPoolClosed)
	}

	testutil.AssertTrue(t, pool.Shutdown() == done, "Shutdown should be idempotent")
	testutil.AssertTrue(t, pool.IsShutdown(), "pool should report shutdown")

	close(release)
	select {
	case <-done:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("workers did not exit")
	}

	// the late result does not overwrite the shutdown error
	testutil.AssertErrorIs(t, blocked.Err(), gferrors.ErrPoolClosed)
}

func TestSubmitAfterShutdown(t *testing.T) {
	l := runLoop(t)
	pool, err := NewWithConfig(l, Config{WorkerCount: 1})
	testutil.AssertNoError(t, err)
	<-pool.Shutdown()

	fut := pool.Submit(func() (any, error) { return nil, nil })
	testutil.AssertTrue(t, fut.Done(), "future should already be failed")
	testutil.AssertErrorIs(t, fut.Err(), gferrors.ErrPoolClosed)
	testutil.AssertTrue(t, gferrors.IsClosed(fut.Err()), "ErrPoolClosed should match ErrClosed")
}

func TestCancelledJobIsSkipped(t *testing.T) {
	l := runLoop(t)
	pool := newPool(t, l, Config{WorkerCount: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	first := pool.Submit(func() (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	tracker := testutil.NewCallbackTracker()
	skipped := pool.Submit(func() (any, error) {
		tracker.Mark()
		return nil, nil
	})
	testutil.AssertTrue(t, skipped.Cancel(), "pending job should be cancellable")

	close(release)
	_, err := wait(t, first)
	testutil.AssertNoError(t, err)
	_, err = wait(t, pool.Submit(func() (any, error) { return nil, nil }))
	testutil.AssertNoError(t, err)

	tracker.AssertNotCalled(t)
	testutil.AssertEventually(t, func() bool { return pool.Outstanding() == 0 })
}

func TestLoopClosedAbandonsResults(t *testing.T) {
	sink := testutil.NewMockWriter()
	l := eventloop.New()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = l.Run(context.Background())
	}()

	pool, err := NewWithConfig(l, Config{
		WorkerCount: 1,
		Logger:      slog.New(slog.NewTextHandler(sink, nil)),
	})
	testutil.AssertNoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	fut := pool.Submit(func() (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started
	queued := pool.Submit(func() (any, error) { return "never", nil })

	l.Close()
	<-loopDone
	close(release)

	testutil.AssertEventually(t, func() bool {
		return strings.Contains(sink.String(), "result abandoned")
	})
	for _, f := range []*eventloop.Future{fut, queued} {
		_, err := wait(t, f)
		testutil.AssertErrorIs(t, err, ErrSchedulerClosed)
		testutil.AssertErrorIs(t, err, eventloop.ErrLoopClosed)
	}
	testutil.AssertEqual(t, pool.Outstanding(), 0)

	select {
	case <-pool.Shutdown():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("workers did not exit")
	}
}

func TestSubmitAfterLoopClose(t *testing.T) {
	l := eventloop.New()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = l.Run(context.Background())
	}()

	pool, err := NewWithConfig(l, Config{WorkerCount: 2})
	testutil.AssertNoError(t, err)
	defer func() { <-pool.Shutdown() }()

	l.Close()
	<-loopDone

	tracker := testutil.NewCallbackTracker()
	futures := make([]*eventloop.Future, 5)
	for i := range futures {
		futures[i] = pool.Submit(func() (any, error) {
			tracker.Mark()
			return nil, nil
		})
	}

	for _, fut := range futures {
		_, err := wait(t, fut)
		testutil.AssertErrorIs(t, err, ErrSchedulerClosed)
		testutil.AssertTrue(t, gferrors.IsClosed(err), "should match ErrClosed")
	}
	testutil.AssertEventually(t, func() bool { return pool.Outstanding() == 0 })
	testutil.AssertTrue(t, !pool.IsShutdown(), "closing the loop does not shut the pool down")
	tracker.AssertNotCalled(t)
}

func TestWorkerHooks(t *testing.T) {
	l := runLoop(t)

	starts := testutil.NewCallbackTracker()
	stops := testutil.NewCallbackTracker()
	pool, err := NewWithConfig(l, Config{
		WorkerCount:   3,
		OnWorkerStart: func(id int) { starts.Mark(id) },
		OnWorkerStop:  func(id int) { stops.Mark(id) },
	})
	testutil.AssertNoError(t, err)

	testutil.AssertEventually(t, func() bool { return starts.CallCount() == 3 })
	<-pool.Shutdown()
	stops.AssertCallCount(t, 3)
}

func TestPoolMetrics(t *testing.T) {
	l := runLoop(t)
	reg := prometheus.NewRegistry()
	pool := newPool(t, l, Config{
		WorkerCount: 2,
		Name:        "metered",
		Metrics:     metrics.Config{Enabled: true, Registry: reg},
	})

	_, err := wait(t, pool.Submit(func() (any, error) { return nil, nil }))
	testutil.AssertNoError(t, err)
	_, err = wait(t, pool.Submit(func() (any, error) { return nil, errors.New("boom") }))
	testutil.AssertError(t, err)

	r := metrics.For(reg)
	testutil.AssertEqual(t, promtest.ToFloat64(r.PoolSize.WithLabelValues("metered")), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.JobsSubmitted.WithLabelValues("metered")), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.JobsCompleted.WithLabelValues("metered")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.JobsFailed.WithLabelValues("metered")), 1.0)
}
