package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for search and indexing.
//
// Metrics:
//   - chatsearch_searches_total{outcome} - searches by "ok", "empty", "error"
//   - chatsearch_search_duration_seconds - search latency histogram
//   - chatsearch_search_cache_total{result} - cache "hit" or "miss"
//   - chatsearch_index_runs_total{result} - rebuilds by "success", "failed"
//   - chatsearch_index_duration_seconds - rebuild duration histogram
//   - chatsearch_indexed_messages - messages written by the last rebuild
//   - chatsearch_index_running - 1 while a rebuild is in flight
//   - chatsearch_http_requests_total{route,method,code} - HTTP API requests
//   - chatsearch_http_request_duration_seconds{route} - HTTP API latency
type Metrics struct {
	Registry *prometheus.Registry

	SearchesTotal   *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	CacheTotal      *prometheus.CounterVec
	IndexRunsTotal  *prometheus.CounterVec
	IndexDuration   prometheus.Histogram
	IndexedMessages prometheus.Gauge
	IndexRunning    prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers collectors on a fresh registry, including the Go and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SearchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsearch_searches_total",
			Help: "Total number of searches by outcome",
		}, []string{"outcome"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatsearch_search_duration_seconds",
			Help:    "Search latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		}),
		CacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsearch_search_cache_total",
			Help: "Search result cache lookups by result",
		}, []string{"result"}),
		IndexRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsearch_index_runs_total",
			Help: "Total number of index rebuilds by result",
		}, []string{"result"}),
		IndexDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatsearch_index_duration_seconds",
			Help:    "Index rebuild duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		IndexedMessages: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatsearch_indexed_messages",
			Help: "Messages written by the last successful rebuild",
		}),
		IndexRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatsearch_index_running",
			Help: "1 while a rebuild is in flight",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsearch_http_requests_total",
			Help: "HTTP API requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatsearch_http_request_duration_seconds",
			Help:    "HTTP API latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(e QueryEvent) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case e.Failed:
		outcome = "error"
	case e.IsZeroResult():
		outcome = "empty"
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()
	m.SearchDuration.Observe(e.Latency.Seconds())
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheTotal.WithLabelValues("hit").Inc()
	} else {
		m.CacheTotal.WithLabelValues("miss").Inc()
	}
}

// IndexStarted marks a rebuild in flight.
func (m *Metrics) IndexStarted() {
	if m == nil {
		return
	}
	m.IndexRunning.Set(1)
}

// IndexFinished records a rebuild outcome.
func (m *Metrics) IndexFinished(d time.Duration, messages int, err error) {
	if m == nil {
		return
	}
	m.IndexRunning.Set(0)
	m.IndexDuration.Observe(d.Seconds())
	if err != nil {
		m.IndexRunsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.IndexRunsTotal.WithLabelValues("success").Inc()
	m.IndexedMessages.Set(float64(messages))
}

// ObserveHTTP records one API request. route is the matched pattern, not the
// raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
