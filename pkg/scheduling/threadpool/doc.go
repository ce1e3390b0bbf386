/*
Package threadpool runs blocking callables off the event loop goroutine.

A Pool owns a fixed number of worker goroutines that drain one shared FIFO
queue. Each submission returns an eventloop.Future; the worker posts the
outcome back through the loop's CallSoon, so done callbacks and awaiting
tasks always observe it on the loop.

Basic usage:

	loop := eventloop.New()
	pool := threadpool.New(loop, threadpool.DefaultWorkerCount())
	defer loop.Close()
	defer pool.Shutdown()

	v, err := loop.RunUntilComplete(ctx, func(t *eventloop.Task) (any, error) {
		return t.Await(pool.Submit(func() (any, error) {
			return os.ReadFile("config.yaml")
		}))
	})

Lifecycle:

Workers start once the loop runs; Submit never blocks and may be called
earlier. Shutdown fails every unresolved future with errors.ErrPoolClosed
before it returns, and the channel it returns closes when all workers have
exited. Callables already running are never interrupted; their results are
dropped. If the loop is closed first, workers abandon their results and
exit.

Cancelling a future whose job is still queued makes the worker skip it.

Configuration Options:

	config := threadpool.Config{
		WorkerCount:   8,
		Name:          "io",
		Logger:        slog.Default(),
		Metrics:       metrics.Config{Enabled: true},
		OnWorkerStart: func(id int) { log.Printf("worker %d up", id) },
	}
	pool, err := threadpool.NewWithConfig(loop, config)
*/
package threadpool
