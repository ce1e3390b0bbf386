/*
Package eventloop provides a single-goroutine cooperative scheduler.

A Loop owns a FIFO of ready callbacks and a heap of timers. Whatever
goroutine calls Run executes them one at a time, so state touched only from
loop callbacks needs no locking. Other goroutines hand work to the loop with
CallSoon, which never blocks.

Futures and tasks:

A Future is a single-assignment result cell bound to a loop. A Task drives a
Coroutine, a plain function that suspends itself with Task.Await:

	loop := eventloop.New()
	defer loop.Close()

	v, err := loop.RunUntilComplete(ctx, func(t *eventloop.Task) (any, error) {
		fut := t.Loop().CreateFuture()
		go func() { fut.SetResult(compute()) }()
		return t.Await(fut)
	})

Each coroutine runs on its own goroutine, but only while the loop has handed
it control. The loop blocks until the coroutine suspends or returns, which
keeps the single-threaded guarantee for coroutine code as well.

Cancellation:

Task.Cancel is cooperative. The coroutine sees ErrCancelled from its current
or next Await and decides how to unwind; returning the error (or any error
wrapping it) leaves the task Cancelled. Closing the loop releases every
suspended coroutine with an error matching ErrCancelled and ErrLoopClosed.
*/
package eventloop
