package domain

// ComprehensiveRequest asks for KYC, AML and sanctions on one provider
type ComprehensiveRequest struct {
	User        User        `json:"user"`
	Transaction Transaction `json:"transaction"`
}

// ComprehensiveResult combines the three checks. Approved requires a
// verified KYC, a passed non-rejected AML check, no sanctions match and an
// overall risk below critical.
type ComprehensiveResult struct {
	Provider    string                `json:"provider"`
	KYC         *KYCResult            `json:"kyc"`
	AML         *AMLResult            `json:"aml"`
	Sanctions   *SanctionsCheckResult `json:"sanctions"`
	OverallRisk RiskLevel             `json:"overall_risk"`
	Approved    bool                  `json:"approved"`
	Reason      string                `json:"reason,omitempty"`
}

// ProviderInfo describes a registered provider
type ProviderInfo struct {
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"display_name"`
	Region       string                 `json:"region"`
	Country      string                 `json:"country"`
	Countries    []string               `json:"countries,omitempty"`
	Capabilities ComplianceCapabilities `json:"capabilities"`
}
