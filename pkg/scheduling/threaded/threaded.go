package threaded

import (
	"errors"

	"github.com/vnykmshr/goloop/pkg/eventloop"
	"github.com/vnykmshr/goloop/pkg/scheduling/threadpool"
)

// Call runs fn on pool and suspends t until it returns. The value and error
// of fn come back unmodified.
//
// If t is cancelled while suspended, the pending job is cancelled too and
// Call returns eventloop.ErrCancelled. A worker already running fn is not
// interrupted; its result is discarded.
func Call[T any](t *eventloop.Task, pool *threadpool.Pool, fn func() (T, error)) (T, error) {
	var zero T

	fut := pool.Submit(func() (any, error) {
		v, err := fn()
		return v, err
	})

	v, err := t.Await(fut)
	if err != nil {
		if errors.Is(err, eventloop.ErrCancelled) && !fut.Done() {
			fut.Cancel()
		}
		return zero, err
	}

	// a nil interface or pointer comes back as an untyped nil
	tv, _ := v.(T)
	return tv, nil
}

// Threaded adapts a blocking function into one that a task can call without
// stalling the loop. Every call goes through Call.
func Threaded[A, T any](pool *threadpool.Pool, fn func(A) (T, error)) func(*eventloop.Task, A) (T, error) {
	return func(t *eventloop.Task, arg A) (T, error) {
		return Call(t, pool, func() (T, error) {
			return fn(arg)
		})
	}
}
