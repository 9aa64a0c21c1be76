package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the evidence search service.
// Metrics are organized by subsystem: searches, sources, spelling correction,
// summaries, circuit breakers and HTTP. Each Metrics value owns its registry,
// so instances never collide.
type Metrics struct {
	// Registry holds every metric below plus the Go and process collectors.
	Registry *prometheus.Registry

	// SearchesStarted counts evidence searches initiated.
	SearchesStarted prometheus.Counter

	// SearchesCompleted counts evidence searches that produced a result.
	SearchesCompleted prometheus.Counter

	// SearchesFailed counts evidence searches that produced no result, labeled by reason.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes end-to-end search duration in seconds.
	SearchDuration prometheus.Histogram

	// StudiesPerSearch observes the number of unique studies returned per search.
	StudiesPerSearch prometheus.Histogram

	// DuplicatesRemoved counts studies dropped by title deduplication.
	DuplicatesRemoved prometheus.Counter

	// SourceRequestsTotal counts searches against each source, labeled by source.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed source searches, labeled by source and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes source search duration in seconds, labeled by source.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRecords counts studies returned by each source.
	SourceRecords *prometheus.CounterVec

	// Corrections counts spelling correction attempts, labeled by outcome.
	Corrections *prometheus.CounterVec

	// Summaries counts summary attempts, labeled by outcome and error type.
	Summaries *prometheus.CounterVec

	// SummaryDuration observes completion call duration in seconds.
	SummaryDuration prometheus.Histogram

	// BreakerStateChanges counts circuit breaker transitions, labeled by name, from and to.
	BreakerStateChanges *prometheus.CounterVec

	// HTTPRequestsTotal counts HTTP requests, labeled by method, route and status.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP request duration in seconds, labeled by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// Searches
		SearchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of evidence searches started",
		}),
		SearchesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of evidence searches completed",
		}),
		SearchesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of evidence searches that failed",
		}, []string{"reason"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of evidence searches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		StudiesPerSearch: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "studies_per_search",
			Help:      "Number of unique studies returned per search",
			Buckets:   []float64{0, 5, 10, 20, 30, 40, 60, 100},
		}),
		DuplicatesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Total number of duplicate studies removed",
		}),

		// Sources
		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of searches against evidence sources",
		}, []string{"source"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed searches against evidence sources",
		}, []string{"source", "error_type"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of evidence source searches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		SourceRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_records_total",
			Help:      "Total number of studies returned by evidence sources",
		}, []string{"source"}),

		// Spelling
		Corrections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spelling_corrections_total",
			Help:      "Total number of spelling correction attempts",
		}, []string{"outcome"}),

		// Summaries
		Summaries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of summary attempts",
		}, []string{"outcome", "error_type"}),
		SummaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_duration_seconds",
			Help:      "Duration of summary completion calls in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
		}),

		// Circuit breakers
		BreakerStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Total number of circuit breaker state transitions",
		}, []string{"name", "from", "to"}),

		// HTTP
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler returns an HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordSearchStarted records the start of an evidence search.
func (m *Metrics) RecordSearchStarted() {
	m.SearchesStarted.Inc()
}

// RecordSearchCompleted records a finished search with its unique study and duplicate counts.
func (m *Metrics) RecordSearchCompleted(studies, duplicates int, durationSeconds float64) {
	m.SearchesCompleted.Inc()
	m.SearchDuration.Observe(durationSeconds)
	m.StudiesPerSearch.Observe(float64(studies))
	m.DuplicatesRemoved.Add(float64(duplicates))
}

// RecordSearchFailed records a search that produced no result.
func (m *Metrics) RecordSearchFailed(reason string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(reason).Inc()
	m.SearchDuration.Observe(durationSeconds)
}

// RecordSourceSearch records a successful source search.
func (m *Metrics) RecordSourceSearch(source string, records int, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
	m.SourceRecords.WithLabelValues(source).Add(float64(records))
}

// RecordSourceSearchFailed records a failed source search.
func (m *Metrics) RecordSourceSearchFailed(source, errorType string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestsFailed.WithLabelValues(source, errorType).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordCorrection records a spelling correction outcome.
func (m *Metrics) RecordCorrection(outcome string) {
	m.Corrections.WithLabelValues(outcome).Inc()
}

// RecordSummary records a summary outcome. Skipped summaries carry no duration.
func (m *Metrics) RecordSummary(outcome, errorType string, durationSeconds float64) {
	m.Summaries.WithLabelValues(outcome, errorType).Inc()
	if durationSeconds > 0 {
		m.SummaryDuration.Observe(durationSeconds)
	}
}

// RecordBreakerStateChange records a circuit breaker transition.
func (m *Metrics) RecordBreakerStateChange(name, from, to string) {
	m.BreakerStateChanges.WithLabelValues(name, from, to).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
