// Package metrics provides Prometheus instrumentation for goloop components.
//
// # Overview
//
// The event loop, the thread pool and the wait-for combinator accept a
// metrics.Config. When Enabled is set they record into the Registry bound to
// Config.Registry (prometheus.DefaultRegisterer when nil):
//
//	reg := prometheus.NewRegistry()
//	loop := eventloop.NewWithConfig(eventloop.Config{
//		Name:    "main",
//		Metrics: metrics.Config{Enabled: true, Registry: reg},
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
// Event loop (label loop_name):
//
//   - goloop_eventloop_callbacks_total
//   - goloop_eventloop_callback_panics_total
//   - goloop_eventloop_tasks_spawned_total
//
// Thread pool (label pool_name):
//
//   - goloop_threadpool_size
//   - goloop_threadpool_active_workers
//   - goloop_threadpool_queued_jobs
//   - goloop_threadpool_outstanding_futures
//   - goloop_threadpool_jobs_submitted_total
//   - goloop_threadpool_jobs_completed_total
//   - goloop_threadpool_jobs_failed_total
//   - goloop_threadpool_jobs_abandoned_total
//   - goloop_threadpool_job_queue_duration_seconds
//   - goloop_threadpool_job_duration_seconds
//
// Wait-for combinator (labels loop_name, outcome):
//
//   - goloop_waitfor_groups_total
//   - goloop_waitfor_outcomes_total (outcome is "ok", "error" or "cancelled")
//
// Components sharing one registerer share one Registry, obtained through For.
package metrics
