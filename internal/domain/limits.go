package domain

import (
	"github.com/shopspring/decimal"
)

// Operation names a capability-gated provider operation
type Operation string

const (
	OpKYC        Operation = "kyc"
	OpAML        Operation = "aml"
	OpSanctions  Operation = "sanctions"
	OpMonitoring Operation = "monitoring"
	OpReporting  Operation = "reporting"
	OpLimits     Operation = "limits"
)

// ComplianceCapabilities gates which operations a provider may perform
type ComplianceCapabilities struct {
	KYC                   bool         `json:"kyc" yaml:"kyc"`
	AML                   bool         `json:"aml" yaml:"aml"`
	SanctionsScreening    bool         `json:"sanctions_screening" yaml:"sanctions_screening"`
	TransactionMonitoring bool         `json:"transaction_monitoring" yaml:"transaction_monitoring"`
	RegulatoryReporting   bool         `json:"regulatory_reporting" yaml:"regulatory_reporting"`
	DataResidency         bool         `json:"data_residency" yaml:"data_residency"`
	RealTimeMonitoring    bool         `json:"real_time_monitoring" yaml:"real_time_monitoring"`
	SupportedReports      []ReportType `json:"supported_reports" yaml:"supported_reports"`
	RegulatoryBodies      []string     `json:"regulatory_bodies" yaml:"regulatory_bodies"`
}

// Supports reports whether the capability set allows an operation
func (c ComplianceCapabilities) Supports(op Operation) bool {
	switch op {
	case OpKYC:
		return c.KYC
	case OpAML:
		return c.AML
	case OpSanctions:
		return c.SanctionsScreening
	case OpMonitoring:
		return c.TransactionMonitoring
	case OpReporting:
		return c.RegulatoryReporting
	case OpLimits:
		return true
	}
	return false
}

// SupportsReport reports whether the provider can file a report type
func (c ComplianceCapabilities) SupportsReport(t ReportType) bool {
	if !c.RegulatoryReporting {
		return false
	}
	for _, r := range c.SupportedReports {
		if r == t {
			return true
		}
	}
	return false
}

// RegulatoryLimits are the monetary limits of a jurisdiction, in Currency
type RegulatoryLimits struct {
	Currency                 string          `json:"currency"`
	CashReportingThreshold   decimal.Decimal `json:"cash_reporting_threshold"`
	SuspiciousActivityAmount decimal.Decimal `json:"suspicious_activity_amount"`
	EnhancedDueDiligence     decimal.Decimal `json:"enhanced_due_diligence"`
	DailyLimit               decimal.Decimal `json:"daily_limit"`
	MonthlyLimit             decimal.Decimal `json:"monthly_limit"`
	SingleTransactionLimit   decimal.Decimal `json:"single_transaction_limit"`
	PEPTransactionLimit      decimal.Decimal `json:"pep_transaction_limit"`
	InternationalLimit       decimal.Decimal `json:"international_limit"`
}

// OperationContext describes a money movement whose compliance is queried
type OperationContext struct {
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	KYCLevel         KYCLevel        `json:"kyc_level"`
	PEP              bool            `json:"pep"`
	International    bool            `json:"international"`
	DailyTotal       decimal.Decimal `json:"daily_total"`
	MonthlyTotal     decimal.Decimal `json:"monthly_total"`
	RecipientCountry string          `json:"recipient_country,omitempty"`
}

// ComplianceDecision is the answer to an operation compliance query
type ComplianceDecision struct {
	Compliant        bool     `json:"compliant"`
	RequiredKYCLevel KYCLevel `json:"required_kyc_level"`
	Violations       []string `json:"violations,omitempty"`
}

// TenantConfig is the jurisdiction data of a tenant
type TenantConfig struct {
	TenantID string `json:"tenant_id" db:"id"`
	Name     string `json:"name" db:"name"`
	Country  string `json:"country" db:"country"`
	Region   string `json:"region" db:"region"`
	Currency string `json:"currency" db:"currency"`
}
