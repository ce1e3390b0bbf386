package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vnykmshr/goloop/internal/testutil"
)

func TestFutureResolution(t *testing.T) {
	l := New()
	defer l.Close()

	t.Run("first resolution wins", func(t *testing.T) {
		f := l.CreateFuture()
		testutil.AssertEqual(t, f.State(), Pending)

		testutil.AssertTrue(t, f.SetResult(1), "first SetResult should succeed")
		testutil.AssertTrue(t, !f.SetResult(2), "second SetResult should be ignored")
		testutil.AssertTrue(t, !f.SetError(errors.New("late")), "SetError after result should be ignored")
		testutil.AssertTrue(t, !f.Cancel(), "Cancel after result should be ignored")

		v, err := f.Result()
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, v, any(1))
		testutil.AssertEqual(t, f.State(), Fulfilled)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		f := l.CreateFuture()
		f.SetError(boom)

		_, err := f.Result()
		testutil.AssertErrorIs(t, err, boom)
		testutil.AssertErrorIs(t, f.Err(), boom)
		testutil.AssertEqual(t, f.State(), Failed)
	})

	t.Run("nil error fulfils", func(t *testing.T) {
		f := l.CreateFuture()
		f.SetError(nil)
		testutil.AssertEqual(t, f.State(), Fulfilled)
		testutil.AssertNoError(t, f.Err())
	})

	t.Run("cancel", func(t *testing.T) {
		f := l.CreateFuture()
		testutil.AssertTrue(t, f.Cancel(), "Cancel on a pending future should succeed")
		testutil.AssertTrue(t, f.Cancelled(), "future should report cancellation")

		_, err := f.Result()
		testutil.AssertErrorIs(t, err, ErrCancelled)
	})

	t.Run("pending result", func(t *testing.T) {
		_, err := l.CreateFuture().Result()
		testutil.AssertErrorIs(t, err, ErrNotDone)
	})
}

func TestFutureStateString(t *testing.T) {
	testutil.AssertEqual(t, Pending.String(), "pending")
	testutil.AssertEqual(t, Fulfilled.String(), "fulfilled")
	testutil.AssertEqual(t, Failed.String(), "failed")
	testutil.AssertEqual(t, Cancelled.String(), "cancelled")
	testutil.AssertEqual(t, State(42).String(), "unknown")
}

func TestFutureDoneCallbacksRunOnLoop(t *testing.T) {
	l := New()
	defer l.Close()

	f := l.CreateFuture()
	var rec testutil.Recorder

	f.AddDoneCallback(func(f *Future) {
		v, _ := f.Result()
		rec.Record("before:" + v.(string))
	})

	// resolved off-loop; the callback must not run until the loop does
	go f.SetResult("x")
	<-f.DoneChan()
	testutil.AssertEqual(t, rec.Len(), 0)

	f.AddDoneCallback(func(*Future) {
		rec.Record("after")
		l.Stop()
	})

	testutil.AssertNoError(t, l.Run(context.Background()))
	events := rec.Events()
	testutil.AssertEqual(t, len(events), 2)
	testutil.AssertEqual(t, events[0], "before:x")
	testutil.AssertEqual(t, events[1], "after")
}

func TestFutureWait(t *testing.T) {
	l := New()
	defer l.Close()

	f := l.CreateFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.SetResult(7)
	}()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	v, err := f.Wait(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, any(7))

	short, cancelShort := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancelShort()
	_, err = l.CreateFuture().Wait(short)
	testutil.AssertErrorIs(t, err, context.DeadlineExceeded)
}
