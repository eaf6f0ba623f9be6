// Package metrics exposes Prometheus instruments for the generation pipeline
// and the HTTP front door. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imageservice"

// Collector owns a private registry rather than the global default one.
type Collector struct {
	registry *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	pollAttempts    *prometheus.HistogramVec
	downloadsTotal  *prometheus.CounterVec
	pointsCost      *prometheus.CounterVec
	tasksTotal      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rateLimitDenied prometheus.Counter
}

// NewCollector registers every instrument on a fresh registry, along with the
// Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Generation jobs by provider, model and outcome.",
		}, []string{"provider", "model", "outcome"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from submission to materialized result.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"provider", "outcome"}),
		pollAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_attempts",
			Help:      "Status queries issued per job.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 120},
		}, []string{"provider"}),
		downloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_downloads_total",
			Help:      "Image downloads by provider and result.",
		}, []string{"provider", "result"}),
		pointsCost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_cost_total",
			Help:      "Vendor points consumed.",
		}, []string{"provider"}),
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queued_tasks_total",
			Help:      "Queued task lifecycle events.",
		}, []string{"event"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimitDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveJob records one finished job. outcome is "succeeded" or an error code.
func (c *Collector) ObserveJob(provider, model, outcome string, elapsed time.Duration, attempts int) {
	if c == nil {
		return
	}
	c.jobsTotal.WithLabelValues(provider, model, outcome).Inc()
	c.jobDuration.WithLabelValues(provider, outcome).Observe(elapsed.Seconds())
	if attempts > 0 {
		c.pollAttempts.WithLabelValues(provider).Observe(float64(attempts))
	}
}

// ObserveDownload records one image download attempt.
func (c *Collector) ObserveDownload(provider string, ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.downloadsTotal.WithLabelValues(provider, result).Inc()
}

// AddPointsCost accumulates vendor billing.
func (c *Collector) AddPointsCost(provider string, points float64) {
	if c == nil || points <= 0 {
		return
	}
	c.pointsCost.WithLabelValues(provider).Add(points)
}

// TaskEvent counts queued task lifecycle events such as "enqueued" or "failed".
func (c *Collector) TaskEvent(event string) {
	if c == nil {
		return
	}
	c.tasksTotal.WithLabelValues(event).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RateLimited counts a rejected request.
func (c *Collector) RateLimited() {
	if c == nil {
		return
	}
	c.rateLimitDenied.Inc()
}
