/*
Package periodic runs coroutines on an event loop at fixed intervals or on
cron schedules.

Each run is a new task spawned on the loop. When a tick arrives while the
previous run of the same entry is still in flight, the tick is skipped and
logged instead of piling up runs:

	s := periodic.New(loop)
	defer s.Stop()

	_ = s.ScheduleRepeating("refresh", refresh, 30*time.Second)
	_ = s.ScheduleCron("report", "0 9 * * 1-5", report, periodic.Options{
		OnError: func(id string, err error) { log.Printf("%s: %v", id, err) },
	})

Cron expressions are parsed with github.com/robfig/cron/v3 and accept five
fields, six fields with leading seconds, and descriptors such as "@daily".
*/
package periodic
