package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// PrometheusMetrics wraps the Prometheus collectors exposed when a scrape
// endpoint is mounted. Kept separate from Metrics so programmatic callers
// (tests, in-process inspection) never pay the registry's cost.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	invocationsTotal *prometheus.CounterVec
	invocationLatency prometheus.Histogram
	trapsTotal        prometheus.Counter
	queueDepth        prometheus.Gauge
	liveCompletions   prometheus.Gauge
}

var promMetrics *PrometheusMetrics

// InitPrometheus registers the Prometheus collectors under namespace.
// Call once at startup before serving /metrics.
func InitPrometheus(namespace string, buckets []float64) *PrometheusMetrics {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	reg := prometheus.NewRegistry()
	pm := &PrometheusMetrics{
		registry: reg,
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invocations_total", Help: "Total batch invocations by outcome.",
		}, []string{"outcome"}),
		invocationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "invocation_latency_ms", Help: "Batch invocation latency in milliseconds.",
			Buckets: buckets,
		}),
		trapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sandbox_traps_total", Help: "Total sandbox traps surfaced to callers.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "request_queue_depth", Help: "Current backlog on the worker request channel.",
		}),
		liveCompletions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "completion_live_slots", Help: "Live (unresolved) completion manager slots.",
		}),
	}
	reg.MustRegister(pm.invocationsTotal, pm.invocationLatency, pm.trapsTotal, pm.queueDepth, pm.liveCompletions)
	promMetrics = pm
	return pm
}

func (pm *PrometheusMetrics) observeInvocation(durationMs int64, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	pm.invocationsTotal.WithLabelValues(outcome).Inc()
	pm.invocationLatency.Observe(float64(durationMs))
}

// Handler returns an http.Handler serving the Prometheus registry, or nil
// if InitPrometheus was never called.
func Handler() http.Handler {
	if promMetrics == nil {
		return nil
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// Uptime helper kept for symmetry with the teacher's GaugeFunc uptime
// metric; exposed so callers wiring a /metrics server can report process
// uptime without reinventing a start-time field.
func Uptime(start time.Time) float64 {
	return time.Since(start).Seconds()
}
