/*
Package scheduling groups the components that move work between an event
loop and the rest of the program.

  - threadpool: bounded worker pool delivering results to a loop as futures
  - threaded: call blocking functions and generators from tasks
  - waitfor: run coroutines concurrently and collect their results
  - periodic: interval and cron driven callbacks on a loop

Thread Pool:

	pool := threadpool.New(loop, 4)
	defer func() { <-pool.Shutdown() }()

	fut := pool.Submit(func() (any, error) {
		return os.ReadFile("config.yaml")
	})

Threaded Calls:

	read := threaded.Threaded(pool, os.ReadFile)

	loop.Spawn(func(t *eventloop.Task) (any, error) {
		return read(t, "config.yaml")
	})

Waiting For Several Tasks:

	results, err := waitfor.Wait(t, []eventloop.Coroutine{fetchUsers, fetchOrders})

The first failure is returned and the remaining tasks are cancelled unless
RaiseFirst(false) or CancelOnFinish(false) is passed.

Periodic Callbacks:

	sched := periodic.New(loop)
	defer sched.Stop()

	sched.ScheduleRepeating("heartbeat", beat, 10*time.Second)
	sched.ScheduleCron("report", "0 9 * * MON-FRI", report)

Every component resolves futures and runs callbacks on the loop goroutine,
so coroutines never need their own locking.
*/
package scheduling
