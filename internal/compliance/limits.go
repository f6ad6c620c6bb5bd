package compliance

import (
	"fmt"
	"strings"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// GetRegulatoryLimits returns the jurisdiction limits expressed in currency.
// An empty currency means the base currency.
func (e *Engine) GetRegulatoryLimits(currency string) (*domain.RegulatoryLimits, error) {
	if err := e.ready(domain.OpLimits); err != nil {
		return nil, err
	}
	p := e.profile
	if currency == "" {
		currency = p.BaseCurrency
	}
	currency = strings.ToUpper(currency)
	if !p.Converts(currency) {
		return nil, invalid("no conversion rate for currency %s", currency)
	}
	conv := func(d decimal.Decimal) decimal.Decimal { return p.FromBase(d, currency).Round(2) }

	l := p.Limits
	return &domain.RegulatoryLimits{
		Currency:                 currency,
		CashReportingThreshold:   conv(l.CashReportingThreshold),
		SuspiciousActivityAmount: conv(l.SuspiciousActivityAmount),
		EnhancedDueDiligence:     conv(l.EnhancedDueDiligence),
		DailyLimit:               conv(l.DailyLimit),
		MonthlyLimit:             conv(l.MonthlyLimit),
		SingleTransactionLimit:   conv(l.SingleTransactionLimit),
		PEPTransactionLimit:      conv(l.PEPTransactionLimit),
		InternationalLimit:       conv(l.InternationalLimit),
	}, nil
}

// GetRequiredKYCLevel returns the verification depth an operation of amount
// requires: advanced at the EDD threshold, intermediate from half the
// suspicious-activity amount, basic below. Payments are not a KYC-gated
// operation.
func (e *Engine) GetRequiredKYCLevel(op domain.TransactionType, amount decimal.Decimal, currency string) (domain.KYCLevel, error) {
	if err := e.ready(domain.OpLimits); err != nil {
		return "", err
	}
	switch op {
	case domain.TransactionTransfer, domain.TransactionDeposit, domain.TransactionWithdrawal:
	default:
		return "", invalid("unsupported operation %q", op)
	}
	if amount.IsNegative() {
		return "", invalid("amount must not be negative")
	}
	if !e.profile.Converts(currency) {
		return "", invalid("no conversion rate for currency %s", strings.ToUpper(currency))
	}
	return e.requiredLevel(e.profile.ToBase(amount, currency)), nil
}

func (e *Engine) requiredLevel(base decimal.Decimal) domain.KYCLevel {
	l := e.profile.Limits
	switch {
	case base.GreaterThanOrEqual(l.EnhancedDueDiligence):
		return domain.KYCAdvanced
	case base.GreaterThanOrEqual(l.SuspiciousActivityAmount.Mul(half)):
		return domain.KYCIntermediate
	}
	return domain.KYCBasic
}

// IsOperationCompliant checks an operation against the jurisdiction's
// monetary limits and KYC requirements. Violations are a normal result.
func (e *Engine) IsOperationCompliant(op domain.TransactionType, octx domain.OperationContext) (*domain.ComplianceDecision, error) {
	if err := e.ready(domain.OpLimits); err != nil {
		return nil, err
	}
	if octx.Amount.IsNegative() {
		return nil, invalid("amount must not be negative")
	}
	p := e.profile
	if !p.Converts(octx.Currency) {
		return nil, invalid("no conversion rate for currency %s", strings.ToUpper(octx.Currency))
	}
	l := p.Limits
	base := func(d decimal.Decimal) decimal.Decimal { return p.ToBase(d, octx.Currency) }
	amount := base(octx.Amount)

	var violations []string
	over := func(value, limit decimal.Decimal, what string) {
		if limit.IsPositive() && value.GreaterThan(limit) {
			violations = append(violations, fmt.Sprintf("%s of %s %s exceeds limit of %s %s",
				what, value.Round(2), p.BaseCurrency, limit, p.BaseCurrency))
		}
	}

	over(amount, l.SingleTransactionLimit, "single transaction")
	over(base(octx.DailyTotal).Add(amount), l.DailyLimit, "daily total")
	over(base(octx.MonthlyTotal).Add(amount), l.MonthlyLimit, "monthly total")
	if octx.PEP {
		over(amount, l.PEPTransactionLimit, "PEP transaction")
	}
	international := octx.International || p.IsForeign(octx.RecipientCountry)
	if international {
		over(amount, l.InternationalLimit, "international transfer")
	}
	if octx.RecipientCountry != "" && p.IsSanctionedCountry(octx.RecipientCountry) {
		violations = append(violations, fmt.Sprintf("recipient country %s is sanctioned", strings.ToUpper(octx.RecipientCountry)))
	}

	required := e.requiredLevel(amount)
	if !octx.KYCLevel.Valid() || !octx.KYCLevel.AtLeast(required) {
		if op == "" {
			op = "operation"
		}
		violations = append(violations, fmt.Sprintf("%s requires %s KYC verification", op, required))
	}

	return &domain.ComplianceDecision{
		Compliant:        len(violations) == 0,
		RequiredKYCLevel: required,
		Violations:       violations,
	}, nil
}
