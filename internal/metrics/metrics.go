// Package metrics exposes Prometheus collectors for evaluation passes and imports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// evaluationRuns counts evaluation passes.
	// Labels: source (api, scheduler, cli), status (success, error)
	evaluationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "evaluation",
		Name:      "runs_total",
		Help:      "Total evaluation passes",
	}, []string{"source", "status"})

	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evm",
		Subsystem: "evaluation",
		Name:      "duration_seconds",
		Help:      "Evaluation pass latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"source"})

	rowsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "evaluation",
		Name:      "rows_total",
		Help:      "Total feature rows evaluated",
	})

	rowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "evaluation",
		Name:      "rows_skipped_total",
		Help:      "Total malformed records skipped by the feature builder",
	})

	// alertsRaised counts alerts by severity.
	// Labels: severity (Critical, High, Medium, Low)
	alertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "alerts",
		Name:      "raised_total",
		Help:      "Total alerts raised by severity",
	}, []string{"severity"})

	// lastRunAlerts is the alert count of the most recent pass per severity
	lastRunAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "evm",
		Subsystem: "alerts",
		Name:      "last_run",
		Help:      "Alerts in the most recent evaluation pass by severity",
	}, []string{"severity"})

	// importedRecords counts records handled by CSV imports.
	// Labels: outcome (stored, skipped, duplicate)
	importedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "records",
		Name:      "imported_total",
		Help:      "Records handled by CSV imports by outcome",
	}, []string{"outcome"})
)

// Recorder records evaluation and import metrics on the default registry.
// The zero value is ready to use.
type Recorder struct{}

// NewRecorder creates a metrics recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveEvaluation records one successful evaluation pass.
// bySeverity replaces the last-run gauges, severities absent from it are set to zero by the caller.
func (r *Recorder) ObserveEvaluation(source string, rows, skipped int, bySeverity map[string]int, took time.Duration) {
	evaluationRuns.WithLabelValues(source, "success").Inc()
	evaluationDuration.WithLabelValues(source).Observe(took.Seconds())
	rowsEvaluated.Add(float64(rows))
	rowsSkipped.Add(float64(skipped))
	for severity, n := range bySeverity {
		alertsRaised.WithLabelValues(severity).Add(float64(n))
		lastRunAlerts.WithLabelValues(severity).Set(float64(n))
	}
}

// EvaluationFailed records a pass that could not complete
func (r *Recorder) EvaluationFailed(source string) {
	evaluationRuns.WithLabelValues(source, "error").Inc()
}

// ObserveImport records the outcome counts of one CSV import
func (r *Recorder) ObserveImport(stored, skipped, duplicates int) {
	importedRecords.WithLabelValues("stored").Add(float64(stored))
	importedRecords.WithLabelValues("skipped").Add(float64(skipped))
	importedRecords.WithLabelValues("duplicate").Add(float64(duplicates))
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
