package reports

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. Each instance owns its
// registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	downloadsRequested prometheus.Counter
	downloadsFinished  *prometheus.CounterVec
	archivesBuilt      *prometheus.CounterVec
	archiveBytes       prometheus.Histogram
	errorsLogged       prometheus.Counter
	patternTests       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.downloadsRequested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_requested_total",
		Help:      "Download requests accepted.",
	})
	m.downloadsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_finished_total",
		Help:      "Downloads that reached a terminal status.",
	}, []string{"status"})
	m.archivesBuilt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archives_served_total",
		Help:      "Archives served, by whether they came from the cache.",
	}, []string{"source"})
	m.archiveBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "archive_size_bytes",
		Help:      "Size of served archives.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	})
	m.errorsLogged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_logged_total",
		Help:      "Client error reports recorded.",
	})
	m.patternTests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pattern_tests_total",
		Help:      "Filename pattern tests, by outcome.",
	}, []string{"outcome"})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	m.registry.MustRegister(
		m.downloadsRequested,
		m.downloadsFinished,
		m.archivesBuilt,
		m.archiveBytes,
		m.errorsLogged,
		m.patternTests,
		m.requestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) DownloadRequested() {
	if m == nil {
		return
	}
	m.downloadsRequested.Inc()
}

func (m *Metrics) DownloadFinished(status DownloadStatus) {
	if m == nil {
		return
	}
	m.downloadsFinished.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ArchiveServed(size int, cached bool) {
	if m == nil {
		return
	}
	source := "built"
	if cached {
		source = "cache"
	}
	m.archivesBuilt.WithLabelValues(source).Inc()
	m.archiveBytes.Observe(float64(size))
}

func (m *Metrics) ErrorLogged() {
	if m == nil {
		return
	}
	m.errorsLogged.Inc()
}

func (m *Metrics) PatternTested(outcome string) {
	if m == nil {
		return
	}
	m.patternTests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}
