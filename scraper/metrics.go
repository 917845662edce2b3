package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	EntriesTotal         prometheus.Counter
	UnresolvedTotal      prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	CrawlDurationSeconds prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_requests_total",
			Help: "Total page fetches issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_request_duration_seconds",
			Help:    "Page fetch latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	entries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_entries_total",
			Help: "Total gallery entries discovered on listing pages.",
		},
	)
	unresolved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_unresolved_images_total",
			Help: "Detail pages without a recognizable full-size image.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_cache_hits_total",
			Help: "Page fetches served from the in-memory cache.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_errors_total",
			Help: "Total number of fetch errors by crawl phase and failure.",
		},
		[]string{"phase", "failure"},
	)
	crawlDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_crawl_duration_seconds",
			Help:    "Wall time of complete crawls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	registry.MustRegister(requests, requestDuration, entries, unresolved, cacheHits, errorsTotal, crawlDuration)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		EntriesTotal:         entries,
		UnresolvedTotal:      unresolved,
		CacheHitsTotal:       cacheHits,
		ErrorsTotal:          errorsTotal,
		CrawlDurationSeconds: crawlDuration,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase Phase) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(phase)).Inc()
}

// ObserveDuration records a fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddEntries adds n discovered entries.
func (m *Metrics) AddEntries(n int) {
	if m == nil {
		return
	}
	m.EntriesTotal.Add(float64(n))
}

// IncUnresolved counts a detail page without an image.
func (m *Metrics) IncUnresolved() {
	if m == nil {
		return
	}
	m.UnresolvedTotal.Inc()
}

// IncCacheHit counts a cached fetch.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncError counts a failed fetch.
func (m *Metrics) IncError(phase Phase, failure Failure) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(string(phase), string(failure)).Inc()
}

// ObserveCrawl records the duration of a finished crawl.
func (m *Metrics) ObserveCrawl(d time.Duration) {
	if m == nil {
		return
	}
	m.CrawlDurationSeconds.Observe(d.Seconds())
}
