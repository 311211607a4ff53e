package web

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"minibridge/internal/ics"
)

// metrics lives on its own registry so several Servers (tests) can coexist
// in one process.
type metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	exports        prometheus.Counter
	exportedEvents prometheus.Counter
	rejectedFiles  prometheus.Counter
}

func newMetrics(parser *ics.Parser) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minibridge_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minibridge_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		exports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minibridge_exports_total",
			Help: "Calendars exported.",
		}),
		exportedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minibridge_exported_events_total",
			Help: "Events written to exported calendars.",
		}),
		rejectedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minibridge_rejected_files_total",
			Help: "Uploaded files that could not be decoded.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.exports,
		m.exportedEvents,
		m.rejectedFiles,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "minibridge_parse_cache_hits_total",
			Help: "Parse cache hits.",
		}, func() float64 { return float64(parser.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "minibridge_parse_cache_misses_total",
			Help: "Parse cache misses.",
		}, func() float64 { return float64(parser.Stats().Misses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "minibridge_parse_cache_entries",
			Help: "Decoded files currently cached.",
		}, func() float64 { return float64(parser.Stats().Entries) }),
	)
	return m
}

func (m *metrics) observe(route, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}
