// Package metrics collects distilled's runtime observability data.
//
// Two stores coexist, mirroring the teacher's internal/metrics split:
// a lightweight in-process Metrics struct of atomic counters for cheap
// programmatic inspection (tests, a health endpoint), and a Prometheus
// registry (prometheus.go) for scraping. RecordInvocation is called from
// the worker pool on every batch completion; it touches only atomics
// unless InitPrometheus has run, in which case it also updates the
// Prometheus collectors.
package metrics

import "sync/atomic"

// Metrics holds process-wide atomic counters.
type Metrics struct {
	TotalInvocations   atomic.Int64
	SuccessInvocations atomic.Int64
	FailedInvocations  atomic.Int64

	TotalLatencyMs atomic.Int64

	WorkersBusy    atomic.Int64
	QueueDepth     atomic.Int64
	LiveCompletions atomic.Int64

	SandboxTraps atomic.Int64
}

var global = &Metrics{}

// Global returns the process-wide Metrics instance.
func Global() *Metrics { return global }

// RecordInvocation updates the counters for one completed batch call.
func (m *Metrics) RecordInvocation(durationMs int64, success bool) {
	m.TotalInvocations.Add(1)
	m.TotalLatencyMs.Add(durationMs)
	if success {
		m.SuccessInvocations.Add(1)
	} else {
		m.FailedInvocations.Add(1)
	}
	if promMetrics != nil {
		promMetrics.observeInvocation(durationMs, success)
	}
}

// RecordTrap increments the sandbox trap counter.
func (m *Metrics) RecordTrap() {
	m.SandboxTraps.Add(1)
	if promMetrics != nil {
		promMetrics.trapsTotal.Inc()
	}
}

// SetQueueDepth reports the current request channel backlog.
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Store(int64(n))
	if promMetrics != nil {
		promMetrics.queueDepth.Set(float64(n))
	}
}

// SetLiveCompletions reports the completion manager's current live-slot
// count (spec.md invariant 5: cancellation safety / no leaks).
func (m *Metrics) SetLiveCompletions(n int) {
	m.LiveCompletions.Store(int64(n))
	if promMetrics != nil {
		promMetrics.liveCompletions.Set(float64(n))
	}
}
