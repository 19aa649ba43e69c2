package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Refresh metrics
	RefreshTotal       *prometheus.CounterVec
	RefreshDuration    *prometheus.HistogramVec
	RefreshInProgress  prometheus.Gauge
	RecordsFetched     *prometheus.CounterVec
	SnapshotGeneration prometheus.Gauge

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec

	// Analytics metrics
	NormalizerFallbacks *prometheus.CounterVec
	AggregationPasses   *prometheus.CounterVec
	StaleCycles         prometheus.Counter
	ViewCacheLookups    *prometheus.CounterVec
	ExportRows          *prometheus.CounterVec
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		RefreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpi_refresh_total",
				Help: "Total number of snapshot refreshes",
			},
			[]string{"status", "trigger"},
		),

		RefreshDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kpi_refresh_duration_seconds",
				Help:    "Snapshot refresh duration in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"trigger"},
		),

		RefreshInProgress: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "kpi_refresh_in_progress",
				Help: "Number of snapshot refreshes currently running",
			},
		),

		RecordsFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpi_records_fetched_total",
				Help: "Total number of raw records fetched per source",
			},
			[]string{"source"},
		),

		SnapshotGeneration: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "kpi_snapshot_generation",
				Help: "Generation of the most recently stored snapshot",
			},
		),

		ExternalAPICalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),

		NormalizerFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpi_normalizer_fallbacks_total",
				Help: "Fields the normalizer replaced with a default, by kind",
			},
			[]string{"kind"},
		),

		AggregationPasses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpi_aggregation_passes_total",
				Help: "Total number of aggregation passes by view",
			},
			[]string{"view"},
		),

		StaleCycles: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kpi_stale_cycles_total",
				Help: "Fetch/aggregate cycles discarded because a newer cycle started",
			},
		),

		ViewCacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpi_view_cache_lookups_total",
				Help: "View cache lookups by result",
			},
			[]string{"result"},
		),

		ExportRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpi_export_rows_total",
				Help: "Rows written by the exporter",
			},
			[]string{"target"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) RecordRefresh(status, trigger string, duration time.Duration) {
	m.RefreshTotal.WithLabelValues(status, trigger).Inc()
	m.RefreshDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

func (m *Metrics) RecordFetched(source string, count int) {
	m.RecordsFetched.WithLabelValues(source).Add(float64(count))
}

func (m *Metrics) SetSnapshotGeneration(gen uint64) {
	m.SnapshotGeneration.Set(float64(gen))
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

// RecordNormalizerFallbacks adds count under kind; zero counts are skipped.
func (m *Metrics) RecordNormalizerFallbacks(kind string, count int) {
	if count <= 0 {
		return
	}
	m.NormalizerFallbacks.WithLabelValues(kind).Add(float64(count))
}

func (m *Metrics) RecordAggregation(view string) {
	m.AggregationPasses.WithLabelValues(view).Inc()
}

func (m *Metrics) RecordStaleCycle() {
	m.StaleCycles.Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ViewCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordExportRows(target string, count int) {
	m.ExportRows.WithLabelValues(target).Add(float64(count))
}

func (m *Metrics) IncRefreshInProgress() {
	m.RefreshInProgress.Inc()
}

func (m *Metrics) DecRefreshInProgress() {
	m.RefreshInProgress.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
