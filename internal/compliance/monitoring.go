package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/jurisdiction"
	"github.com/banking/regional-compliance/internal/compliance/pattern"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const fileReportHighRiskCount = 5

// MonitorTransactions summarizes the user's recent activity and runs the
// requested check families over it
func (e *Engine) MonitorTransactions(ctx context.Context, req domain.MonitoringRequest) (*domain.TransactionMonitoringResult, error) {
	start := time.Now()
	if err := e.ready(domain.OpMonitoring); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, invalid("user id is required")
	}
	if req.LookbackPeriod <= 0 {
		req.LookbackPeriod = e.profile.Monitoring.DefaultLookback
	}

	result, err := e.monitor(ctx, req)
	e.metrics.ObserveEvaluation(e.profile.Name, string(domain.OpMonitoring), outcome(err), start)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Transaction monitoring completed",
		zap.String("user_id", req.UserID),
		zap.Int("transactions", result.Statistics.TotalTransactions),
		zap.Int("alerts", len(result.Alerts)),
		zap.String("recommendation", string(result.Recommendation)))
	return result, nil
}

func (e *Engine) monitor(ctx context.Context, req domain.MonitoringRequest) (*domain.TransactionMonitoringResult, error) {
	p := e.profile
	now := e.now()
	from := now.Add(-req.LookbackPeriod)

	txs, err := e.history.Since(ctx, req.UserID, from)
	if err != nil {
		return nil, &InfraError{Provider: p.Name, Service: "transaction store", Err: err}
	}
	window := e.inBase(txs)

	var alerts []domain.MonitoringAlert
	alert := func(t domain.MonitoringAlertType, sev domain.AlertSeverity, desc string, d pattern.Detection) {
		alerts = append(alerts, domain.MonitoringAlert{
			Type:           t,
			Severity:       sev,
			Description:    desc,
			TransactionIDs: d.TransactionIDs,
			DetectedAt:     now,
		})
	}

	if req.Checks.Velocity {
		if d := pattern.Velocity(window, now, p.Monitoring.VelocityLimit); d.Detected {
			alert(domain.AlertVelocity, domain.SeverityHigh,
				fmt.Sprintf("High transaction velocity: %d transactions in 24 hours", len(d.TransactionIDs)), d)
		}
	}

	if req.Checks.Threshold {
		for _, rule := range p.Monitoring.Thresholds {
			d := pattern.Large(window, rule.MinAmount, e.thresholdMatch(rule))
			if d.Detected {
				alert(domain.AlertThreshold, rule.Severity,
					fmt.Sprintf("%s: %d transaction(s)", rule.Description, len(d.TransactionIDs)), d)
			}
		}
	}

	if req.Checks.Patterns {
		if d := pattern.RoundRobin(window); d.Detected {
			alert(domain.AlertPattern, domain.SeverityHigh,
				"Round-robin transaction pattern detected (potential money laundering)", d)
		}
		if d := pattern.Smurfing(window, p.Monitoring.SmurfingBandMin, p.Monitoring.SmurfingBandMax); d.Detected {
			alert(domain.AlertPattern, domain.SeverityHigh,
				fmt.Sprintf("Potential smurfing: %d small deposits between %s and %s %s",
					len(d.TransactionIDs), p.Monitoring.SmurfingBandMin, p.Monitoring.SmurfingBandMax, p.BaseCurrency), d)
		}
		if p.Monitoring.ThirdPartyPayments {
			if d := pattern.ThirdPartyPayments(window); d.Detected {
				alert(domain.AlertCounterparty, domain.SeverityMedium,
					fmt.Sprintf("Multiple third-party payments: %d", len(d.TransactionIDs)), d)
			}
		}
	}

	if req.Checks.Geographic {
		if d := pattern.Geographic(window, p.HighRisk()); d.Detected {
			alert(domain.AlertGeographic, domain.SeverityMedium,
				fmt.Sprintf("%d transaction(s) to high-risk jurisdictions", len(d.TransactionIDs)), d)
		}
	}

	stats := e.statistics(window, from, now)
	return &domain.TransactionMonitoringResult{
		UserID:         req.UserID,
		Provider:       p.Name,
		Alerts:         alerts,
		Statistics:     stats,
		Recommendation: monitoringRecommendation(alerts, stats),
	}, nil
}

func (e *Engine) thresholdMatch(rule jurisdiction.ThresholdRule) func(domain.Transaction) bool {
	return func(t domain.Transaction) bool {
		if len(rule.TransactionTypes) > 0 && !hasType(rule.TransactionTypes, t.Type) {
			return false
		}
		return !rule.ForeignOnly || e.profile.IsForeign(t.RecipientCountry)
	}
}

func (e *Engine) statistics(window []domain.Transaction, from, to time.Time) domain.MonitoringStatistics {
	stats := domain.MonitoringStatistics{
		TotalTransactions: len(window),
		TotalVolume:       decimal.Zero,
		AverageAmount:     decimal.Zero,
		MaxAmount:         decimal.Zero,
		WindowStart:       from,
		WindowEnd:         to,
	}
	counterparties := make(map[string]struct{})
	for _, t := range window {
		stats.TotalVolume = stats.TotalVolume.Add(t.Amount)
		if t.Amount.GreaterThan(stats.MaxAmount) {
			stats.MaxAmount = t.Amount
		}
		if c := t.Counterparty(); c != "" {
			counterparties[c] = struct{}{}
		}
		if t.Amount.GreaterThanOrEqual(e.profile.Limits.CashReportingThreshold) || e.profile.HighRisk().Contains(t.RecipientCountry) {
			stats.HighRiskTransactions++
		}
	}
	if len(window) > 0 {
		stats.AverageAmount = stats.TotalVolume.Div(decimal.NewFromInt(int64(len(window))))
	}
	stats.UniqueCounterparties = len(counterparties)
	return stats
}

func monitoringRecommendation(alerts []domain.MonitoringAlert, stats domain.MonitoringStatistics) domain.MonitoringRecommendation {
	high := 0
	for _, a := range alerts {
		if a.Severity == domain.SeverityHigh || a.Severity == domain.SeverityCritical {
			high++
		}
	}
	switch {
	case high >= 2 || stats.HighRiskTransactions > fileReportHighRiskCount:
		return domain.MonitorFile
	case len(alerts) > 0:
		return domain.MonitorEnhanced
	}
	return domain.MonitorContinue
}
