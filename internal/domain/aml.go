package domain

import (
	"time"
)

// AMLCheckType represents when in the transaction lifecycle a check runs
type AMLCheckType string

const (
	AMLPreTransaction  AMLCheckType = "pre_transaction"
	AMLPostTransaction AMLCheckType = "post_transaction"
	AMLPeriodic        AMLCheckType = "periodic"
)

// Recommendation is the action an AML result advises the caller to take.
// A reject is a policy outcome, not an error.
type Recommendation string

const (
	RecommendApprove  Recommendation = "approve"
	RecommendReview   Recommendation = "review"
	RecommendEscalate Recommendation = "escalate"
	RecommendReject   Recommendation = "reject"
)

// AMLFlag names a single risk indicator. Flag names double as weight keys
// in jurisdiction profiles.
type AMLFlag string

const (
	FlagStructuring         AMLFlag = "structuring"          // Amounts just below the reporting threshold
	FlagRapidMovement       AMLFlag = "rapid_movement"       // Simultaneous in and out flow (layering)
	FlagUnusualPattern      AMLFlag = "unusual_pattern"      // Amount far above the user's baseline
	FlagHighRiskCountry     AMLFlag = "high_risk_country"    // Recipient in a high-risk jurisdiction
	FlagSanctionsMatch      AMLFlag = "sanctions_match"      // Counterparty on a sanctions list
	FlagTerroristFinancing  AMLFlag = "terrorist_financing"  // Counterparty matches a terrorist entity
	FlagPEPInvolved         AMLFlag = "pep_involved"         // Politically exposed customer
	FlagCashIntensive       AMLFlag = "cash_intensive"       // Many large deposits
	FlagSuspiciousNarration AMLFlag = "suspicious_narration" // Narration contains watched keywords
	FlagCrossBorder         AMLFlag = "cross_border"         // Recipient outside the economic area
	FlagLargeCash           AMLFlag = "large_cash"           // Single deposit at the cash reporting threshold
	FlagStrongAuth          AMLFlag = "strong_auth"          // Payment requiring strong customer authentication
)

// AMLFlags is the boolean flag set of an AML result
type AMLFlags struct {
	Structuring         bool `json:"structuring"`
	RapidMovement       bool `json:"rapid_movement"`
	UnusualPattern      bool `json:"unusual_pattern"`
	HighRiskCountry     bool `json:"high_risk_country"`
	SanctionsMatch      bool `json:"sanctions_match"`
	PEPInvolved         bool `json:"pep_involved"`
	CashIntensive       bool `json:"cash_intensive"`
	SuspiciousNarration bool `json:"suspicious_narration"`
}

// AlertSeverity grades alerts
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AMLAlert is a severity-tagged finding with the transactions that caused it
type AMLAlert struct {
	Severity       AlertSeverity `json:"severity"`
	Type           AMLFlag       `json:"type"`
	Description    string        `json:"description"`
	RequiresAction bool          `json:"requires_action"`
	TransactionIDs []string      `json:"transaction_ids,omitempty"`
}

// AMLRequest is the input of an AML check
type AMLRequest struct {
	Transaction Transaction  `json:"transaction"`
	User        User         `json:"user"`
	CheckType   AMLCheckType `json:"check_type"`
	// DeferRiskScore leaves recording the score to a later CommitRiskScore
	DeferRiskScore bool `json:"-"`
}

// AMLResult is the outcome of an AML check
type AMLResult struct {
	Passed            bool           `json:"passed"`
	Provider          string         `json:"provider"`
	TransactionID     string         `json:"transaction_id"`
	CheckType         AMLCheckType   `json:"check_type"`
	RiskScore         int            `json:"risk_score"`
	RiskLevel         RiskLevel      `json:"risk_level"`
	Flags             AMLFlags       `json:"flags"`
	Alerts            []AMLAlert     `json:"alerts"`
	Recommendation    Recommendation `json:"recommendation"`
	RequiresReporting bool           `json:"requires_reporting"`
	ReportType        ReportType     `json:"report_type,omitempty"`
	CheckedAt         time.Time      `json:"checked_at"`
}
