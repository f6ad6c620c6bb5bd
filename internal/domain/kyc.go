package domain

import (
	"time"
)

// RiskLevel represents a risk classification. KYC results use low, medium
// and high; AML and sanctions results may also be critical.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Worse returns the more severe of two risk levels
func (r RiskLevel) Worse(other RiskLevel) RiskLevel {
	if riskRank[other] > riskRank[r] {
		return other
	}
	return r
}

// WorstRisk folds risk levels into the single most severe one
func WorstRisk(levels ...RiskLevel) RiskLevel {
	worst := RiskLow
	for _, l := range levels {
		worst = worst.Worse(l)
	}
	return worst
}

// KYCLevel represents the depth of a KYC verification
type KYCLevel string

const (
	KYCBasic        KYCLevel = "basic"
	KYCIntermediate KYCLevel = "intermediate"
	KYCAdvanced     KYCLevel = "advanced"
)

var kycRank = map[KYCLevel]int{
	KYCBasic:        0,
	KYCIntermediate: 1,
	KYCAdvanced:     2,
}

// Valid reports whether the level is one of the known levels
func (l KYCLevel) Valid() bool {
	_, ok := kycRank[l]
	return ok
}

// AtLeast reports whether l is as deep as other
func (l KYCLevel) AtLeast(other KYCLevel) bool {
	return kycRank[l] >= kycRank[other]
}

// KYCOptions tunes a single KYC run
type KYCOptions struct {
	CheckAddress    bool `json:"check_address"`
	CheckBiometrics bool `json:"check_biometrics"`
}

// KYCRequest is the input of a KYC verification
type KYCRequest struct {
	User      User               `json:"user"`
	Level     KYCLevel           `json:"level"`
	Documents []IdentityDocument `json:"documents,omitempty"`
	Options   KYCOptions         `json:"options"`
}

// KYCChecks holds the boolean outcome of each sub-check
type KYCChecks struct {
	IdentityVerified     bool `json:"identity_verified"`
	AddressVerified      bool `json:"address_verified"`
	DocumentVerified     bool `json:"document_verified"`
	BiometricVerified    bool `json:"biometric_verified"`
	PEPCheck             bool `json:"pep_check"`
	SanctionsCheck       bool `json:"sanctions_check"`
	AdverseMediaCheck    bool `json:"adverse_media_check"`
	DataConsentConfirmed bool `json:"data_consent_confirmed"`
}

// KYCResult is the terminal outcome of a KYC verification.
// Issues are blocking and prevent verification; Advisories only lower the score.
type KYCResult struct {
	Success          bool      `json:"success"`
	Provider         string    `json:"provider"`
	Level            KYCLevel  `json:"verification_level"`
	Verified         bool      `json:"verified"`
	VerificationDate time.Time `json:"verification_date"`
	Score            int       `json:"score"`
	Checks           KYCChecks `json:"checks"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Issues           []string  `json:"issues,omitempty"`
	Advisories       []string  `json:"advisories,omitempty"`
	NextReviewDate   time.Time `json:"next_review_date"`
}
