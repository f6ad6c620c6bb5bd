package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonitoringAlertType classifies monitoring alerts
type MonitoringAlertType string

const (
	AlertVelocity     MonitoringAlertType = "velocity"
	AlertThreshold    MonitoringAlertType = "threshold"
	AlertPattern      MonitoringAlertType = "pattern"
	AlertGeographic   MonitoringAlertType = "geographic"
	AlertCounterparty MonitoringAlertType = "counterparty"
)

// MonitoringRecommendation is the follow-up advised by a monitoring run
type MonitoringRecommendation string

const (
	MonitorContinue MonitoringRecommendation = "continue_monitoring"
	MonitorEnhanced MonitoringRecommendation = "enhanced_monitoring"
	MonitorFile     MonitoringRecommendation = "file_report"
	MonitorRestrict MonitoringRecommendation = "restrict_account"
)

// MonitoringFlags selects which check families run. The zero value runs none;
// use AllMonitoringChecks for the full set.
type MonitoringFlags struct {
	Velocity   bool `json:"velocity"`
	Threshold  bool `json:"threshold"`
	Patterns   bool `json:"patterns"`
	Geographic bool `json:"geographic"`
}

// AllMonitoringChecks enables every check family
func AllMonitoringChecks() MonitoringFlags {
	return MonitoringFlags{Velocity: true, Threshold: true, Patterns: true, Geographic: true}
}

// MonitoringRequest is the input of a monitoring run
type MonitoringRequest struct {
	UserID         string          `json:"user_id"`
	LookbackPeriod time.Duration   `json:"lookback_period"`
	Checks         MonitoringFlags `json:"checks"`
}

// MonitoringAlert is a severity-tagged monitoring finding
type MonitoringAlert struct {
	Type           MonitoringAlertType `json:"type"`
	Severity       AlertSeverity       `json:"severity"`
	Description    string              `json:"description"`
	TransactionIDs []string            `json:"transaction_ids"`
	DetectedAt     time.Time           `json:"detected_at"`
}

// MonitoringStatistics summarizes the transactions in the lookback window
type MonitoringStatistics struct {
	TotalTransactions    int             `json:"total_transactions"`
	TotalVolume          decimal.Decimal `json:"total_volume"`
	AverageAmount        decimal.Decimal `json:"average_amount"`
	MaxAmount            decimal.Decimal `json:"max_amount"`
	UniqueCounterparties int             `json:"unique_counterparties"`
	HighRiskTransactions int             `json:"high_risk_transactions"`
	WindowStart          time.Time       `json:"window_start"`
	WindowEnd            time.Time       `json:"window_end"`
}

// TransactionMonitoringResult is the outcome of a monitoring run
type TransactionMonitoringResult struct {
	UserID         string                   `json:"user_id"`
	Provider       string                   `json:"provider"`
	Alerts         []MonitoringAlert        `json:"alerts"`
	Statistics     MonitoringStatistics     `json:"statistics"`
	Recommendation MonitoringRecommendation `json:"recommendation"`
}
