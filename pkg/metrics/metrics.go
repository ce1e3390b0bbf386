// Package metrics provides Prometheus instrumentation for goloop components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "goloop"

// Registry holds all metric instances for goloop components.
type Registry struct {
	// Event Loop Metrics
	LoopCallbacks     *prometheus.CounterVec
	LoopCallbackPanic *prometheus.CounterVec
	LoopTasksSpawned  *prometheus.CounterVec

	// Thread Pool Metrics
	PoolSize         *prometheus.GaugeVec
	PoolActive       *prometheus.GaugeVec
	PoolQueued       *prometheus.GaugeVec
	PoolOutstanding  *prometheus.GaugeVec
	JobsSubmitted    *prometheus.CounterVec
	JobsCompleted    *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	JobsAbandoned    *prometheus.CounterVec
	JobQueueDuration *prometheus.HistogramVec
	JobDuration      *prometheus.HistogramVec

	// Combinator Metrics
	WaitGroups        *prometheus.CounterVec
	WaitGroupOutcomes *prometheus.CounterVec
}

var (
	registries sync.Map // prometheus.Registerer -> *Registry
	createMu   sync.Mutex
)

// For returns the Registry bound to reg, creating and registering the
// collectors on first use. Components sharing a registerer share a Registry.
func For(reg prometheus.Registerer) *Registry {
	if r, ok := registries.Load(reg); ok {
		return r.(*Registry)
	}

	createMu.Lock()
	defer createMu.Unlock()

	if r, ok := registries.Load(reg); ok {
		return r.(*Registry)
	}
	r := NewRegistry(reg)
	registries.Store(reg, r)
	return r
}

// Default returns the Registry bound to prometheus.DefaultRegisterer.
func Default() *Registry {
	return For(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
// Calling it twice with the same registerer panics on duplicate registration;
// use For to share collectors.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		LoopCallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "eventloop",
				Name:      "callbacks_total",
				Help:      "Total number of callbacks executed by the loop",
			},
			[]string{"loop_name"},
		),

		LoopCallbackPanic: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "eventloop",
				Name:      "callback_panics_total",
				Help:      "Total number of callbacks that panicked",
			},
			[]string{"loop_name"},
		),

		LoopTasksSpawned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "eventloop",
				Name:      "tasks_spawned_total",
				Help:      "Total number of tasks spawned on the loop",
			},
			[]string{"loop_name"},
		),

		PoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "size",
				Help:      "Configured number of workers",
			},
			[]string{"pool_name"},
		),

		PoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "active_workers",
				Help:      "Number of workers currently running a job",
			},
			[]string{"pool_name"},
		),

		PoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "queued_jobs",
				Help:      "Number of jobs waiting for a worker",
			},
			[]string{"pool_name"},
		),

		PoolOutstanding: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "outstanding_futures",
				Help:      "Number of submitted futures not yet resolved",
			},
			[]string{"pool_name"},
		),

		JobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "jobs_submitted_total",
				Help:      "Total number of jobs submitted",
			},
			[]string{"pool_name"},
		),

		JobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "jobs_completed_total",
				Help:      "Total number of jobs that returned without error",
			},
			[]string{"pool_name"},
		),

		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "jobs_failed_total",
				Help:      "Total number of jobs that returned an error or panicked",
			},
			[]string{"pool_name"},
		),

		JobsAbandoned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "jobs_abandoned_total",
				Help:      "Total number of results dropped because the loop was closed",
			},
			[]string{"pool_name"},
		),

		JobQueueDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "job_queue_duration_seconds",
				Help:      "Time jobs spent queued before a worker picked them up",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "threadpool",
				Name:      "job_duration_seconds",
				Help:      "Time spent executing jobs",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		WaitGroups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "waitfor",
				Name:      "groups_total",
				Help:      "Total number of wait-for groups started",
			},
			[]string{"loop_name"},
		),

		WaitGroupOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "waitfor",
				Name:      "outcomes_total",
				Help:      "Wait-for group completions by outcome",
			},
			[]string{"loop_name", "outcome"},
		),
	}
}
