// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the instrumentation surface used by the HTTP layer and the
// profile service.
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordRateLimited()
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	rateLimited prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saaskit_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saaskit_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saaskit_profile_cache_hits_total",
			Help: "Profile reads served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saaskit_profile_cache_misses_total",
			Help: "Profile reads that went to the repository.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saaskit_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(c.requests, c.latency, c.cacheHits, c.cacheMisses, c.rateLimited)
	return c
}

func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheHit()    { c.cacheHits.Inc() }
func (c *Collector) RecordCacheMiss()   { c.cacheMisses.Inc() }
func (c *Collector) RecordRateLimited() { c.rateLimited.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordCacheHit()                                  {}
func (Nop) RecordCacheMiss()                                 {}
func (Nop) RecordRateLimited()                               {}
