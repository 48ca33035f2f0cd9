// Package metrics defines the Prometheus collectors for the experiment runner.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	runsStarted    prometheus.Counter
	runsCompleted  prometheus.Counter
	responses      *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	responseTime   prometheus.Histogram
	exports        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	sessionsPruned prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maat_runs_started_total",
			Help: "Experiment runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maat_runs_completed_total",
			Help: "Experiment runs that reached completion and were exported.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maat_responses_recorded_total",
			Help: "Trial responses persisted, by accuracy.",
		}, []string{"accuracy"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maat_responses_rejected_total",
			Help: "Trial responses refused, by reason.",
		}, []string{"reason"}),
		responseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maat_response_time_milliseconds",
			Help:    "Participant response times as reported by the trial page.",
			Buckets: []float64{100, 200, 300, 400, 500, 750, 1000, 1500, 2000, 3000, 5000},
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maat_exports_total",
			Help: "Export files produced, by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maat_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maat_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		sessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maat_run_sessions_pruned_total",
			Help: "Expired in-memory run sessions removed by the scheduler.",
		}),
	}
	m.registry.MustRegister(
		m.runsStarted, m.runsCompleted, m.responses, m.rejected, m.responseTime,
		m.exports, m.httpRequests, m.httpDuration, m.sessionsPruned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

func (m *Metrics) RunCompleted() {
	if m == nil {
		return
	}
	m.runsCompleted.Inc()
}

// ResponseRecorded counts a stored response and observes its time.
func (m *Metrics) ResponseRecorded(accuracy int, responseTimeMS float64) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(strconv.Itoa(accuracy)).Inc()
	m.responseTime.Observe(responseTimeMS)
}

// ResponseRejected counts a refused submission; reason is a short constant.
func (m *Metrics) ResponseRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// Exported counts an export of kind csv, zip or xlsx.
func (m *Metrics) Exported(kind string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(kind).Inc()
}

func (m *Metrics) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) SessionsPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsPruned.Add(float64(n))
}
