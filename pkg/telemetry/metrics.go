package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the governance engine.
type Metrics struct {
	config MetricsConfig

	// Evaluation metrics
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	policiesSkipped    prometheus.Counter

	// Violation metrics
	violationsDetected *prometheus.CounterVec
	blockedOperations  *prometheus.CounterVec
	openViolations     prometheus.Gauge

	// Recording metrics
	operationsRecorded *prometheus.CounterVec
	accessRecorded     *prometheus.CounterVec
	recordingFailures  *prometheus.CounterVec

	// Scanner metrics
	scansCompleted *prometheus.CounterVec
	scanDuration   prometheus.Histogram

	// Purger metrics
	purgesCompleted *prometheus.CounterVec
	rowsPurged      *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"operation", "blocked"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of policy evaluations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		policiesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policies_skipped_total",
				Help:      "Total number of policies skipped due to malformed definitions",
			},
		),

		violationsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_detected_total",
				Help:      "Total number of policy violations detected",
			},
			[]string{"kind", "severity"},
		),
		blockedOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocked_operations_total",
				Help:      "Total number of operations blocked by policy",
			},
			[]string{"operation", "scope"},
		),
		openViolations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_violations",
				Help:      "Current number of open violations",
			},
		),

		operationsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_recorded_total",
				Help:      "Total number of operations recorded in the audit log",
			},
			[]string{"operation", "outcome"},
		),
		accessRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_recorded_total",
				Help:      "Total number of access events recorded",
			},
			[]string{"access_type"},
		),
		recordingFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recording_failures_total",
				Help:      "Total number of swallowed recording failures",
			},
			[]string{"record_type"},
		),

		scansCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_completed_total",
				Help:      "Total number of compliance scans completed",
			},
			[]string{"status"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of compliance scans in seconds",
				Buckets:   buckets,
			},
		),

		purgesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purges_completed_total",
				Help:      "Total number of retention purges completed",
			},
			[]string{"mode"},
		),
		rowsPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_purged_total",
				Help:      "Total number of rows removed by retention purges",
			},
			[]string{"collection"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.policiesSkipped,
		m.violationsDetected,
		m.blockedOperations,
		m.openViolations,
		m.operationsRecorded,
		m.accessRecorded,
		m.recordingFailures,
		m.scansCompleted,
		m.scanDuration,
		m.purgesCompleted,
		m.rowsPurged,
		m.errorsByClass,
	)

	return m, nil
}

// Evaluation Metrics

// RecordEvaluation records a completed policy evaluation.
func (m *Metrics) RecordEvaluation(operation string, blocked bool, duration time.Duration, skipped int) {
	if m.evaluationsTotal == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(operation, fmt.Sprintf("%t", blocked)).Inc()
	m.evaluationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if skipped > 0 {
		m.policiesSkipped.Add(float64(skipped))
	}
}

// Violation Metrics

// RecordViolation records a detected violation by policy kind and severity.
func (m *Metrics) RecordViolation(kind, severity string) {
	if m.violationsDetected == nil {
		return
	}
	m.violationsDetected.WithLabelValues(kind, severity).Inc()
}

// RecordBlockedOperation records an operation vetoed by policy.
func (m *Metrics) RecordBlockedOperation(operation, scope string) {
	if m.blockedOperations == nil {
		return
	}
	m.blockedOperations.WithLabelValues(operation, scope).Inc()
}

// SetOpenViolations sets the current open violation count.
func (m *Metrics) SetOpenViolations(count float64) {
	if m.openViolations == nil {
		return
	}
	m.openViolations.Set(count)
}

// Recording Metrics

// RecordOperationRecorded records a successful audit log append.
func (m *Metrics) RecordOperationRecorded(operation, outcome string) {
	if m.operationsRecorded == nil {
		return
	}
	m.operationsRecorded.WithLabelValues(operation, outcome).Inc()
}

// RecordAccessRecorded records a successful access log append.
func (m *Metrics) RecordAccessRecorded(accessType string) {
	if m.accessRecorded == nil {
		return
	}
	m.accessRecorded.WithLabelValues(accessType).Inc()
}

// RecordRecordingFailure records a swallowed recording failure.
func (m *Metrics) RecordRecordingFailure(recordType string) {
	if m.recordingFailures == nil {
		return
	}
	m.recordingFailures.WithLabelValues(recordType).Inc()
}

// Scanner Metrics

// RecordScanCompleted records a completed compliance scan.
func (m *Metrics) RecordScanCompleted(status string, duration time.Duration) {
	if m.scansCompleted == nil {
		return
	}
	m.scansCompleted.WithLabelValues(status).Inc()
	m.scanDuration.Observe(duration.Seconds())
}

// Purger Metrics

// RecordPurgeCompleted records a completed retention purge pass.
func (m *Metrics) RecordPurgeCompleted(mode string) {
	if m.purgesCompleted == nil {
		return
	}
	m.purgesCompleted.WithLabelValues(mode).Inc()
}

// RecordRowsPurged records rows removed per collection.
func (m *Metrics) RecordRowsPurged(collection string, count int64) {
	if m.rowsPurged == nil || count <= 0 {
		return
	}
	m.rowsPurged.WithLabelValues(collection).Add(float64(count))
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
