package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/history"
	"github.com/banking/regional-compliance/internal/compliance/pattern"
	"github.com/banking/regional-compliance/internal/domain"
	"go.uber.org/zap"
)

// alertSeverity is fixed per flag across jurisdictions
var alertSeverity = map[domain.AMLFlag]domain.AlertSeverity{
	domain.FlagStructuring:         domain.SeverityCritical,
	domain.FlagRapidMovement:       domain.SeverityHigh,
	domain.FlagUnusualPattern:      domain.SeverityMedium,
	domain.FlagHighRiskCountry:     domain.SeverityHigh,
	domain.FlagSanctionsMatch:      domain.SeverityCritical,
	domain.FlagTerroristFinancing:  domain.SeverityCritical,
	domain.FlagPEPInvolved:         domain.SeverityMedium,
	domain.FlagCashIntensive:       domain.SeverityMedium,
	domain.FlagSuspiciousNarration: domain.SeverityLow,
	domain.FlagCrossBorder:         domain.SeverityMedium,
	domain.FlagLargeCash:           domain.SeverityMedium,
	domain.FlagStrongAuth:          domain.SeverityLow,
}

type amlRun struct {
	score  int
	flags  domain.AMLFlags
	alerts []domain.AMLAlert
}

func (e *Engine) raise(run *amlRun, flag domain.AMLFlag, description string, txIDs []string) {
	run.score += e.profile.AML.Weights[flag]
	sev := alertSeverity[flag]
	run.alerts = append(run.alerts, domain.AMLAlert{
		Severity:       sev,
		Type:           flag,
		Description:    description,
		RequiresAction: sev == domain.SeverityHigh || sev == domain.SeverityCritical,
		TransactionIDs: txIDs,
	})
}

// CheckAML records the transaction in the user's history and scores it
// against the patterns in the lookback window. A reject recommendation is a
// normal result, not an error.
func (e *Engine) CheckAML(ctx context.Context, req domain.AMLRequest) (*domain.AMLResult, error) {
	start := time.Now()
	if err := e.ready(domain.OpAML); err != nil {
		return nil, err
	}
	tx := req.Transaction
	if tx.UserID == "" {
		tx.UserID = req.User.ID
	}
	if tx.ID == "" || tx.UserID == "" {
		return nil, invalid("transaction id and user id are required")
	}
	if tx.Amount.IsNegative() {
		return nil, invalid("transaction amount must not be negative")
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = e.now()
	}
	if req.CheckType == "" {
		req.CheckType = domain.AMLPreTransaction
	}

	result, err := e.checkAML(ctx, tx, req.User, req.CheckType)
	e.metrics.ObserveEvaluation(e.profile.Name, string(domain.OpAML), outcome(err), start)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveAMLScore(e.profile.Name, result.RiskScore)
	if !req.DeferRiskScore {
		e.CommitRiskScore(ctx, tx.UserID, result)
	}

	e.logger.Info("AML check completed",
		zap.String("transaction_id", tx.ID),
		zap.String("user_id", tx.UserID),
		zap.Int("risk_score", result.RiskScore),
		zap.String("recommendation", string(result.Recommendation)))
	return result, nil
}

// CommitRiskScore makes res the user's latest risk score and mirrors it to
// the shared sink. Mirror failures are logged only.
func (e *Engine) CommitRiskScore(ctx context.Context, userID string, res *domain.AMLResult) {
	score := history.RiskScore{
		UserID:        userID,
		Provider:      e.profile.Name,
		TransactionID: res.TransactionID,
		Score:         res.RiskScore,
		Level:         res.RiskLevel,
		ComputedAt:    res.CheckedAt,
	}
	e.scores.Put(score)
	if e.sink != nil {
		if err := e.sink.PutRiskScore(ctx, score); err != nil {
			e.logger.Warn("Failed to mirror risk score", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

func (e *Engine) checkAML(ctx context.Context, tx domain.Transaction, user domain.User, checkType domain.AMLCheckType) (*domain.AMLResult, error) {
	p := e.profile

	all, err := e.history.Append(ctx, tx)
	if err != nil {
		return nil, &InfraError{Provider: p.Name, Service: "transaction store", Err: err}
	}
	e.metrics.SetHistoryUsers(e.history.Len())

	historyBase := e.inBase(all)
	window := pattern.Since(historyBase, tx.Timestamp.Add(-p.AML.LookbackWindow))
	current := tx
	current.Amount = p.ToBase(tx.Amount, tx.Currency)
	threshold := p.Limits.CashReportingThreshold

	run := &amlRun{}

	if p.IsForeign(tx.RecipientCountry) && p.AML.Weights[domain.FlagCrossBorder] != 0 {
		e.raise(run, domain.FlagCrossBorder,
			fmt.Sprintf("Cross-border transfer to %s", strings.ToUpper(tx.RecipientCountry)), []string{tx.ID})
	}

	if p.AML.Weights[domain.FlagLargeCash] != 0 && tx.Type == domain.TransactionDeposit &&
		current.Amount.GreaterThanOrEqual(threshold) {
		e.raise(run, domain.FlagLargeCash,
			fmt.Sprintf("Large cash deposit at or above %s %s", threshold, p.BaseCurrency), []string{tx.ID})
	}

	if d := pattern.Structuring(window, threshold, p.AML.StructuringBand); d.Detected {
		run.flags.Structuring = true
		e.raise(run, domain.FlagStructuring,
			fmt.Sprintf("Multiple transactions just below the %s %s reporting threshold", threshold, p.BaseCurrency),
			d.TransactionIDs)
	}

	if d := pattern.RapidMovement(window); d.Detected {
		run.flags.RapidMovement = true
		e.raise(run, domain.FlagRapidMovement, "Funds moving through account rapidly (potential layering)", d.TransactionIDs)
	}

	if d := pattern.Unusual(current, historyBase, p.AML.UnusualMultiplier); d.Detected {
		run.flags.UnusualPattern = true
		e.raise(run, domain.FlagUnusualPattern, "Transaction deviates significantly from user baseline", d.TransactionIDs)
	}

	if d := pattern.HighRiskJurisdiction(tx, p.HighRisk()); d.Detected {
		run.flags.HighRiskCountry = true
		e.raise(run, domain.FlagHighRiskCountry,
			fmt.Sprintf("Transaction involves high-risk country: %s", strings.ToUpper(tx.RecipientCountry)), d.TransactionIDs)
	}

	if tx.RecipientName != "" {
		sanctions, err := e.screen(ctx, domain.SanctionsRequest{
			Name:        tx.RecipientName,
			Nationality: tx.RecipientCountry,
		})
		if err != nil {
			return nil, err
		}
		if sanctions.Matched {
			run.flags.SanctionsMatch = true
			e.raise(run, domain.FlagSanctionsMatch,
				fmt.Sprintf("Recipient matches %s", sanctions.Matches[0].ListName), []string{tx.ID})
		}

		if p.AML.Weights[domain.FlagTerroristFinancing] != 0 {
			if found := e.terroristMatch(tx.RecipientName); len(found) > 0 {
				run.flags.SanctionsMatch = true
				e.raise(run, domain.FlagTerroristFinancing,
					fmt.Sprintf("Recipient matches listed terrorist entity %q", found[0]), []string{tx.ID})
			}
		}
	}

	if user.PoliticallyExposed {
		run.flags.PEPInvolved = true
		e.raise(run, domain.FlagPEPInvolved, "Transaction involves Politically Exposed Person", []string{tx.ID})
	}

	if d := pattern.CashIntensive(window, p.AML.CashIntensiveFloor); d.Detected {
		run.flags.CashIntensive = true
		e.raise(run, domain.FlagCashIntensive, "User exhibits cash-intensive business patterns", d.TransactionIDs)
	}

	if found := pattern.Keywords(tx.Narration, p.NarrationKeywords); len(found) > 0 {
		run.flags.SuspiciousNarration = true
		e.raise(run, domain.FlagSuspiciousNarration,
			fmt.Sprintf("Narration contains watched terms: %s", strings.Join(found, ", ")), []string{tx.ID})
	}

	if amount := p.AML.StrongAuthAmount; amount.IsPositive() && tx.Type == domain.TransactionPayment &&
		current.Amount.GreaterThan(amount) {
		e.raise(run, domain.FlagStrongAuth,
			fmt.Sprintf("Payment above %s %s requires strong customer authentication", amount, p.BaseCurrency), []string{tx.ID})
	}

	score := clampScore(run.score)
	result := &domain.AMLResult{
		Passed:         score < 50,
		Provider:       p.Name,
		TransactionID:  tx.ID,
		CheckType:      checkType,
		RiskScore:      score,
		RiskLevel:      amlRiskLevel(score),
		Flags:          run.flags,
		Alerts:         run.alerts,
		Recommendation: recommend(score, run.flags),
		CheckedAt:      e.now(),
	}
	if report, ok := e.reportable(tx, current, score); ok {
		result.RequiresReporting = true
		result.ReportType = report
	}
	return result, nil
}

func amlRiskLevel(score int) domain.RiskLevel {
	switch {
	case score >= 70:
		return domain.RiskCritical
	case score >= 50:
		return domain.RiskHigh
	case score >= 30:
		return domain.RiskMedium
	}
	return domain.RiskLow
}

func recommend(score int, flags domain.AMLFlags) domain.Recommendation {
	switch {
	case flags.SanctionsMatch || flags.Structuring:
		return domain.RecommendReject
	case score >= 60:
		return domain.RecommendEscalate
	case score >= 40:
		return domain.RecommendReview
	}
	return domain.RecommendApprove
}

// reportable applies the profile's reporting rules in order; a later match
// replaces an earlier one
func (e *Engine) reportable(tx, base domain.Transaction, score int) (domain.ReportType, bool) {
	var (
		report domain.ReportType
		found  bool
	)
	for _, rule := range e.profile.AML.ReportingRules {
		if rule.Currency != "" && !strings.EqualFold(rule.Currency, tx.Currency) {
			continue
		}
		if len(rule.TransactionTypes) > 0 && !hasType(rule.TransactionTypes, tx.Type) {
			continue
		}
		if rule.ForeignOnly && !e.profile.IsForeign(tx.RecipientCountry) {
			continue
		}
		if score < rule.MinScore || base.Amount.LessThan(rule.MinAmount) {
			continue
		}
		report, found = rule.Report, true
	}
	return report, found
}

func hasType(types []domain.TransactionType, t domain.TransactionType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// inBase returns copies of txs with amounts converted to the base currency
func (e *Engine) inBase(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, t := range txs {
		t.Amount = e.profile.ToBase(t.Amount, t.Currency)
		t.Currency = e.profile.BaseCurrency
		out[i] = t
	}
	return out
}
