// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exec_monitor"

// Metrics holds the collectors shared by the consumer and the API.
type Metrics struct {
	registry *prometheus.Registry

	RecordsRead    prometheus.Counter
	ReadErrors     prometheus.Counter
	DecodeFailures prometheus.Counter
	Excluded       prometheus.Counter
	Stored         prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RecordsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ringbuf_records_total",
			Help:      "Records read from the ring buffer.",
		}),
		ReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ringbuf_read_errors_total",
			Help:      "Failed ring buffer reads.",
		}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Records discarded because they did not decode.",
		}),
		Excluded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_excluded_total",
			Help:      "Decoded records discarded in userspace because the command is excluded.",
		}),
		Stored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_stored_total",
			Help:      "Events inserted into the store.",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// RegisterKernelDrops exposes the probe's drop counter. read is called on
// every scrape; when it fails the last value read is reported again.
func (m *Metrics) RegisterKernelDrops(read func() (uint64, error)) {
	var (
		mu   sync.Mutex
		last uint64
	)
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kernel_dropped_events_total",
		Help:      "Events the probe could not submit because the ring buffer was full.",
	}, func() float64 {
		mu.Lock()
		defer mu.Unlock()
		if n, err := read(); err == nil && n >= last {
			last = n
		}
		return float64(last)
	}))
}

// RegisterStore exposes store occupancy and eviction totals.
func (m *Metrics) RegisterStore(size, evicted func() float64) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_events",
			Help:      "Events currently retained.",
		}, size),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_evictions_total",
			Help:      "Events evicted to make room for newer ones.",
		}, evicted),
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
