package eventloop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vnykmshr/goloop/internal/testutil"
	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

func TestTaskReturnsValue(t *testing.T) {
	l := New()
	defer l.Close()

	v, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
		return 42, nil
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, any(42))
}

func TestTaskReturnsError(t *testing.T) {
	l := New()
	defer l.Close()

	boom := errors.New("boom")
	_, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
		return nil, boom
	})
	testutil.AssertErrorIs(t, err, boom)
}

func TestTaskAwaitsFutureResolvedElsewhere(t *testing.T) {
	l := New()
	defer l.Close()

	v, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
		f := task.Loop().CreateFuture()
		go func() {
			time.Sleep(5 * time.Millisecond)
			f.SetResult("from goroutine")
		}()
		return task.Await(f)
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, any("from goroutine"))
}

func TestTaskAwaitsOtherTask(t *testing.T) {
	l := New()
	defer l.Close()

	v, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
		child := task.Loop().Spawn(func(child *Task) (any, error) {
			if err := child.Sleep(time.Millisecond); err != nil {
				return nil, err
			}
			return "child", nil
		})
		return task.Await(child.Future())
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, any("child"))
}

func TestTasksInterleaveAtSuspensionPoints(t *testing.T) {
	l := New()
	defer l.Close()

	var rec testutil.Recorder
	worker := func(name string) Coroutine {
		return func(task *Task) (any, error) {
			for i := 0; i < 2; i++ {
				rec.Record(name)
				if err := task.Yield(); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}
	}

	_, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
		a := task.Loop().Spawn(worker("a"))
		b := task.Loop().Spawn(worker("b"))
		if _, err := task.Await(a.Future()); err != nil {
			return nil, err
		}
		return task.Await(b.Future())
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, strings.Join(rec.Events(), ","), "a,b,a,b")
}

func TestTaskCancel(t *testing.T) {
	t.Run("while suspended", func(t *testing.T) {
		l := New()
		defer l.Close()

		var victim *Task
		_, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
			victim = task.Loop().Spawn(func(v *Task) (any, error) {
				return v.Await(v.Loop().CreateFuture())
			})
			if err := task.Yield(); err != nil {
				return nil, err
			}
			if !victim.Cancel() {
				return nil, errors.New("cancel refused")
			}
			_, err := task.Await(victim.Future())
			return nil, err
		})
		testutil.AssertErrorIs(t, err, ErrCancelled)
		testutil.AssertTrue(t, victim.Cancelled(), "victim should end cancelled")
		testutil.AssertTrue(t, !victim.Cancel(), "Cancel on a finished task should fail")
	})

	t.Run("before start", func(t *testing.T) {
		l := New()
		defer l.Close()

		tracker := testutil.NewCallbackTracker()
		_, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
			never := task.Loop().Spawn(func(*Task) (any, error) {
				tracker.Mark()
				return nil, nil
			})
			never.Cancel()
			return task.Await(never.Future())
		})
		testutil.AssertErrorIs(t, err, ErrCancelled)
		tracker.AssertNotCalled(t)
	})

	t.Run("coroutine absorbs cancellation", func(t *testing.T) {
		l := New()
		defer l.Close()

		v, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
			stubborn := task.Loop().Spawn(func(s *Task) (any, error) {
				if _, err := s.Await(s.Loop().CreateFuture()); !errors.Is(err, ErrCancelled) {
					return nil, err
				}
				return "cleaned up", nil
			})
			if err := task.Yield(); err != nil {
				return nil, err
			}
			stubborn.Cancel()
			return task.Await(stubborn.Future())
		})
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, v, any("cleaned up"))
	})

	t.Run("awaited future is left pending", func(t *testing.T) {
		l := New()
		defer l.Close()

		var inner *Future
		_, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
			inner = task.Loop().CreateFuture()
			child := task.Loop().Spawn(func(c *Task) (any, error) {
				return c.Await(inner)
			})
			if err := task.Yield(); err != nil {
				return nil, err
			}
			child.Cancel()
			_, err := task.Await(child.Future())
			return nil, err
		})
		testutil.AssertErrorIs(t, err, ErrCancelled)
		testutil.AssertEqual(t, inner.State(), Pending)
	})
}

func TestTaskPanicBecomesError(t *testing.T) {
	l := New()
	defer l.Close()

	_, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
		panic("kaboom")
	})
	testutil.AssertTrue(t, gferrors.IsPanic(err), "panic should surface as PanicError")
	testutil.AssertTrue(t, strings.Contains(err.Error(), "kaboom"), "error should carry the panic value")
}

func TestTaskSleep(t *testing.T) {
	l := New()
	defer l.Close()

	start := time.Now()
	_, err := l.RunUntilComplete(context.Background(), func(task *Task) (any, error) {
		return nil, task.Sleep(20 * time.Millisecond)
	})
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, time.Since(start) >= 20*time.Millisecond, "sleep returned early")
}

func TestCloseReleasesSuspendedTasks(t *testing.T) {
	l := startLoop(t)

	suspended := make(chan struct{})
	task := l.Spawn(func(c *Task) (any, error) {
		close(suspended)
		_, err := c.Await(c.Loop().CreateFuture())
		// every later await fails the same way
		_, again := c.Await(c.Loop().CreateFuture())
		if !errors.Is(again, ErrLoopClosed) {
			return nil, errors.New("second await should fail too")
		}
		return nil, err
	})

	<-suspended
	l.Close()

	select {
	case <-task.DoneChan():
	case <-time.After(testutil.TestTimeout):
		t.Fatal("task was not released")
	}
	testutil.AssertTrue(t, task.Cancelled(), "released task should end cancelled")
}

func TestSpawnOnClosedLoop(t *testing.T) {
	l := New()
	l.Close()

	task := l.Spawn(func(*Task) (any, error) { return nil, nil })
	testutil.AssertTrue(t, task.Done(), "task on a closed loop should be done")
	testutil.AssertErrorIs(t, task.Err(), ErrLoopClosed)
}
