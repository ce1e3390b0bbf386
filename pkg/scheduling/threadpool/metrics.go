package threadpool

import (
	"time"
)

// The record helpers are no-ops when metrics are disabled.

func (p *Pool) recordSize() {
	if p.metrics == nil {
		return
	}
	p.metrics.PoolSize.WithLabelValues(p.name).Set(float64(p.config.WorkerCount))
}

func (p *Pool) recordSubmit() {
	if p.metrics == nil {
		return
	}
	p.metrics.JobsSubmitted.WithLabelValues(p.name).Inc()
	p.metrics.PoolQueued.WithLabelValues(p.name).Set(float64(p.QueueSize()))
	p.metrics.PoolOutstanding.WithLabelValues(p.name).Set(float64(p.Outstanding()))
}

func (p *Pool) recordDequeue(waited time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.JobQueueDuration.WithLabelValues(p.name).Observe(waited.Seconds())
	p.metrics.PoolQueued.WithLabelValues(p.name).Set(float64(p.QueueSize()))
	p.metrics.PoolActive.WithLabelValues(p.name).Set(float64(p.ActiveWorkers()))
}

func (p *Pool) recordDone(d time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.JobDuration.WithLabelValues(p.name).Observe(d.Seconds())
	p.metrics.PoolActive.WithLabelValues(p.name).Set(float64(p.ActiveWorkers()))
	if err != nil {
		p.metrics.JobsFailed.WithLabelValues(p.name).Inc()
	} else {
		p.metrics.JobsCompleted.WithLabelValues(p.name).Inc()
	}
}

func (p *Pool) recordOutstanding(n int) {
	if p.metrics == nil {
		return
	}
	p.metrics.PoolOutstanding.WithLabelValues(p.name).Set(float64(n))
}

func (p *Pool) recordAbandoned() {
	if p.metrics == nil {
		return
	}
	p.metrics.JobsAbandoned.WithLabelValues(p.name).Inc()
}
