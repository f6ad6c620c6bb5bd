package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	EvaluationTime   *prometheus.HistogramVec
	ExternalCalls    *prometheus.CounterVec
	ExternalDuration *prometheus.HistogramVec
	ReportsFiled     *prometheus.CounterVec
	AMLRiskScore     *prometheus.HistogramVec
	HistoryUsers     prometheus.Gauge
}

// New registers the compliance metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_evaluations_total",
			Help: "Compliance evaluations by provider, operation and outcome",
		}, []string{"provider", "operation", "outcome"}),
		EvaluationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_evaluation_duration_seconds",
			Help:    "Duration of compliance evaluations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"provider", "operation"}),
		ExternalCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_external_calls_total",
			Help: "Calls to external verification and filing services",
		}, []string{"provider", "service", "result"}),
		ExternalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_external_call_duration_seconds",
			Help:    "Duration of external verification and filing calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider", "service"}),
		ReportsFiled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_reports_submitted_total",
			Help: "Regulatory reports submitted by provider and type",
		}, []string{"provider", "report_type"}),
		AMLRiskScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_aml_risk_score",
			Help:    "Distribution of AML risk scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"provider"}),
		HistoryUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_history_cached_users",
			Help: "Users with a cached transaction history",
		}),
	}
}

// ObserveEvaluation records one evaluation. Call with time.Now() at the start.
func (m *Metrics) ObserveEvaluation(provider, operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(provider, operation, outcome).Inc()
	m.EvaluationTime.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

// ObserveExternalCall records a call to an external collaborator
func (m *Metrics) ObserveExternalCall(provider, service string, err error, start time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ExternalCalls.WithLabelValues(provider, service, result).Inc()
	m.ExternalDuration.WithLabelValues(provider, service).Observe(time.Since(start).Seconds())
}

// IncrementReportsFiled records an accepted submission
func (m *Metrics) IncrementReportsFiled(provider, reportType string) {
	if m == nil {
		return
	}
	m.ReportsFiled.WithLabelValues(provider, reportType).Inc()
}

// ObserveAMLScore records the risk score of an AML check
func (m *Metrics) ObserveAMLScore(provider string, score int) {
	if m == nil {
		return
	}
	m.AMLRiskScore.WithLabelValues(provider).Observe(float64(score))
}

// SetHistoryUsers reports the size of the history cache
func (m *Metrics) SetHistoryUsers(n int) {
	if m == nil {
		return
	}
	m.HistoryUsers.Set(float64(n))
}
