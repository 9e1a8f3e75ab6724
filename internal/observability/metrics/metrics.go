package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "catalysis_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	analysisTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec

	fitTotal      *prometheus.CounterVec
	fitIterations prometheus.Histogram

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec

	qualityAlerts *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total recording ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total recording ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Recording ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		analysisTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "analysis_total",
				Help: "Total analysis runs by result",
			},
			[]string{"result"},
		)
		analysisLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "analysis_latency_seconds",
				Help:    "Analysis run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		fitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fit_total",
				Help: "Total sigmoid fits by model and result",
			},
			[]string{"model", "result"},
		)
		fitIterations = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fit_iterations",
				Help:    "Iterations spent per converged sigmoid fit",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500},
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		cacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_cache_lookups_total",
				Help: "Report cache lookups by outcome",
			},
			[]string{"outcome"},
		)

		qualityAlerts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quality_alerts_total",
				Help: "Total fit quality alerts by rule",
			},
			[]string{"rule"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			analysisTotal,
			analysisLatency,
			fitTotal,
			fitIterations,
			exportTotal,
			exportLatency,
			cacheLookups,
			qualityAlerts,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveAnalysis records analysis run latency and result.
func ObserveAnalysis(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if analysisTotal != nil {
		analysisTotal.WithLabelValues(result).Inc()
	}
	if analysisLatency != nil {
		analysisLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncFit increments the fit counter by model and result.
func IncFit(model, result string) {
	if model == "" {
		model = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if fitTotal != nil {
		fitTotal.WithLabelValues(model, result).Inc()
	}
}

// ObserveFitIterations records iteration count of a converged fit.
func ObserveFitIterations(iterations int) {
	if iterations <= 0 {
		return
	}
	if fitIterations != nil {
		fitIterations.Observe(float64(iterations))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncCacheLookup increments report cache lookup counters. Outcome is
// "hit", "miss" or "error".
func IncCacheLookup(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if cacheLookups != nil {
		cacheLookups.WithLabelValues(outcome).Inc()
	}
}

// IncQualityAlert increments quality alert counters.
func IncQualityAlert(rule string) {
	if rule == "" {
		rule = "unknown"
	}
	if qualityAlerts != nil {
		qualityAlerts.WithLabelValues(rule).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)
