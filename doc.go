/*
Package goloop provides a single-goroutine cooperative event loop for Go,
together with a bounded thread pool that lets loop tasks call blocking code.

Event Loop (pkg/eventloop):
  - Loop: callbacks, timers and tasks run one at a time on one goroutine
  - Future: single-assignment result cell resolved from any goroutine
  - Task: a coroutine that suspends at Await and is cancelled cooperatively

Scheduling (pkg/scheduling):
  - threadpool: fixed set of workers, results delivered back to the loop
  - threaded: blocking functions and generators callable from tasks
  - waitfor: concurrent tasks with first-error and cancel-on-finish semantics
  - periodic: interval and cron entries on the loop

Support:
  - aio: environment-driven runtime owning a loop and a pool
  - netutil: listening sockets with SO_REUSEADDR/SO_REUSEPORT
  - common/chunk: fixed-size batching of sequences
  - metrics: Prometheus collectors shared by all components

Example usage:

	import (
		"github.com/vnykmshr/goloop/pkg/aio"
		"github.com/vnykmshr/goloop/pkg/eventloop"
		"github.com/vnykmshr/goloop/pkg/scheduling/threaded"
	)

	rt, _ := aio.New(aio.DefaultConfig())
	defer rt.Close()

	read := threaded.Threaded(rt.Pool(), os.ReadFile)
	data, err := rt.Run(ctx, func(t *eventloop.Task) (any, error) {
		return read(t, "input.txt")
	})
*/
package goloop
