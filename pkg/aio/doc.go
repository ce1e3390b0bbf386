/*
Package aio wires an event loop and a thread pool into one runtime.

Configuration comes from the environment:

	GOLOOP_LOOP_NAME         loop name (default "main")
	GOLOOP_POOL_SIZE         worker count, 0 for max(NumCPU, 2)
	GOLOOP_POOL_NAME         pool name (default "default")
	GOLOOP_LOG_LEVEL         DEBUG, INFO, WARN or ERROR
	GOLOOP_METRICS_ENABLED   record Prometheus metrics
	GOLOOP_SHUTDOWN_TIMEOUT  how long Close waits for busy workers

Typical use:

	cfg, err := aio.LoadConfig(".env")
	if err != nil {
		log.Fatal(err)
	}
	rt, err := aio.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	readFile := threaded.Threaded(rt.Pool(), os.ReadFile)
	data, err := rt.Run(ctx, func(t *eventloop.Task) (any, error) {
		return readFile(t, "config.yaml")
	})
*/
package aio
