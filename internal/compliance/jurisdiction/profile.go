// Package jurisdiction defines the declarative profile that parameterizes the
// compliance engine for one regulatory region. Adding a region means writing
// a profile, not code.
package jurisdiction

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/pattern"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
)

// SanctionsEntry is a listed party screened with the name matcher
type SanctionsEntry struct {
	List      string            `yaml:"list"`
	Name      string            `yaml:"name"`
	Type      domain.EntityType `yaml:"type"`
	Program   string            `yaml:"program"`
	Threshold float64           `yaml:"threshold"`
}

// KeywordList matches by substring containment and yields a fixed score.
// Terrorist lists also drive the terrorist-financing checks.
type KeywordList struct {
	List      string   `yaml:"list"`
	Program   string   `yaml:"program"`
	Score     float64  `yaml:"score"`
	Terrorist bool     `yaml:"terrorist"`
	Keywords  []string `yaml:"keywords"`
}

// Limits are monetary thresholds in the profile's base currency
type Limits struct {
	CashReportingThreshold   decimal.Decimal `yaml:"cash_reporting_threshold"`
	SuspiciousActivityAmount decimal.Decimal `yaml:"suspicious_activity_amount"`
	EnhancedDueDiligence     decimal.Decimal `yaml:"enhanced_due_diligence"`
	DailyLimit               decimal.Decimal `yaml:"daily_limit"`
	MonthlyLimit             decimal.Decimal `yaml:"monthly_limit"`
	SingleTransactionLimit   decimal.Decimal `yaml:"single_transaction_limit"`
	PEPTransactionLimit      decimal.Decimal `yaml:"pep_transaction_limit"`
	InternationalLimit       decimal.Decimal `yaml:"international_limit"`
}

// NationalIDRule validates the format of a national identifier
type NationalIDRule struct {
	Document          domain.DocumentType `yaml:"document"`
	Pattern           string              `yaml:"pattern"`
	ForbiddenPrefixes []string            `yaml:"forbidden_prefixes"`

	re *regexp.Regexp
}

// Valid reports whether number matches the format and avoids the
// forbidden prefixes
func (r *NationalIDRule) Valid(number string) bool {
	number = strings.TrimSpace(number)
	if r.re == nil || !r.re.MatchString(number) {
		return false
	}
	for _, prefix := range r.ForbiddenPrefixes {
		if strings.HasPrefix(number, prefix) {
			return false
		}
	}
	return true
}

// KYCWeights are score contributions. Positive values are added when a check
// passes; penalties are negative and added when it fails.
type KYCWeights struct {
	PrimaryDocument   int `yaml:"primary_document"`
	NationalID        int `yaml:"national_id"`
	IdentityRegistry  int `yaml:"identity_registry"`
	AddressOnFile     int `yaml:"address_on_file"`
	MissingOccupation int `yaml:"missing_occupation"`

	CreditIdentity  int `yaml:"credit_identity"`
	CreditAddress   int `yaml:"credit_address"`
	StrongAuth      int `yaml:"strong_auth"`
	AddressRecords  int `yaml:"address_records"`
	NationalIDBonus int `yaml:"national_id_bonus"`

	PEPClear             int `yaml:"pep_clear"`
	PEPMatch             int `yaml:"pep_match"`
	SanctionsClear       int `yaml:"sanctions_clear"`
	SanctionsMatch       int `yaml:"sanctions_match"`
	TerroristMatch       int `yaml:"terrorist_match"`
	AdverseMediaClear    int `yaml:"adverse_media_clear"`
	AdverseMediaHit      int `yaml:"adverse_media_hit"`
	Biometric            int `yaml:"biometric"`
	MissingSourceOfFunds int `yaml:"missing_source_of_funds"`
	MissingIncome        int `yaml:"missing_income"`
	UndisclosedOwnership int `yaml:"undisclosed_ownership"`
}

// KYCRules configure the tiered KYC scoring
type KYCRules struct {
	ConsentRegime          string                   `yaml:"consent_regime"` // GDPR, PIPEDA; empty disables the gate
	PrimaryDocuments       []domain.DocumentType    `yaml:"primary_documents"`
	NationalID             *NationalIDRule          `yaml:"national_id"`
	CreditCheckLevel       domain.KYCLevel          `yaml:"credit_check_level"`
	AdverseMediaForcesHigh bool                     `yaml:"adverse_media_forces_high_risk"`
	VerifiedScore          int                      `yaml:"verified_score"`
	Weights                KYCWeights               `yaml:"weights"`
	ReviewMonths           map[domain.RiskLevel]int `yaml:"review_months"`
}

// ReportingRule makes a transaction reportable. Rules are evaluated in order
// and later matches replace earlier ones.
type ReportingRule struct {
	Report           domain.ReportType        `yaml:"report"`
	MinAmount        decimal.Decimal          `yaml:"min_amount"`
	MinScore         int                      `yaml:"min_score"`
	Currency         string                   `yaml:"currency"`
	TransactionTypes []domain.TransactionType `yaml:"transaction_types"`
	ForeignOnly      bool                     `yaml:"foreign_only"`
}

// AMLRules configure transaction risk scoring
type AMLRules struct {
	LookbackWindow     time.Duration          `yaml:"lookback_window"`
	StructuringBand    decimal.Decimal        `yaml:"structuring_band"`
	UnusualMultiplier  decimal.Decimal        `yaml:"unusual_multiplier"`
	CashIntensiveFloor decimal.Decimal        `yaml:"cash_intensive_floor"`
	StrongAuthAmount   decimal.Decimal        `yaml:"strong_auth_amount"`
	Weights            map[domain.AMLFlag]int `yaml:"weights"`
	ReportingRules     []ReportingRule        `yaml:"reporting_rules"`
}

// ThresholdRule raises a monitoring alert for large transactions
type ThresholdRule struct {
	Name             string                   `yaml:"name"`
	MinAmount        decimal.Decimal          `yaml:"min_amount"`
	TransactionTypes []domain.TransactionType `yaml:"transaction_types"`
	ForeignOnly      bool                     `yaml:"foreign_only"`
	Severity         domain.AlertSeverity     `yaml:"severity"`
	Description      string                   `yaml:"description"`
}

// MonitoringRules configure periodic transaction monitoring
type MonitoringRules struct {
	DefaultLookback    time.Duration   `yaml:"default_lookback"`
	VelocityLimit      int             `yaml:"velocity_limit"`
	Thresholds         []ThresholdRule `yaml:"thresholds"`
	SmurfingBandMin    decimal.Decimal `yaml:"smurfing_band_min"`
	SmurfingBandMax    decimal.Decimal `yaml:"smurfing_band_max"`
	ThirdPartyPayments bool            `yaml:"third_party_payments"`
}

// ReportTemplate shapes the payload of one report type. Metadata keys are
// copied from the request metadata, falling back to the listed default.
type ReportTemplate struct {
	SubmitTo string         `yaml:"submit_to"`
	Form     string         `yaml:"form"`
	Fields   map[string]any `yaml:"fields"`
	Metadata map[string]any `yaml:"metadata"`
}

// Profile is the complete, read-only configuration of one jurisdiction
type Profile struct {
	Name                 string                               `yaml:"name"`
	DisplayName          string                               `yaml:"display_name"`
	Region               string                               `yaml:"region"`
	Country              string                               `yaml:"country"`
	Countries            []string                             `yaml:"countries"`
	BaseCurrency         string                               `yaml:"base_currency"`
	Regulator            string                               `yaml:"regulator"`
	AcknowledgmentPrefix string                               `yaml:"acknowledgment_prefix"`
	Capabilities         domain.ComplianceCapabilities        `yaml:"capabilities"`
	HomeArea             []string                             `yaml:"home_area"`
	SanctionedCountries  []string                             `yaml:"sanctioned_countries"`
	HighRiskCountries    []string                             `yaml:"high_risk_countries"`
	SanctionsEntries     []SanctionsEntry                     `yaml:"sanctions_entries"`
	KeywordLists         []KeywordList                        `yaml:"keyword_lists"`
	CriticalPrograms     []string                             `yaml:"critical_programs"`
	NarrationKeywords    []string                             `yaml:"narration_keywords"`
	Limits               Limits                               `yaml:"limits"`
	ConversionRates      map[string]decimal.Decimal           `yaml:"conversion_rates"`
	KYC                  KYCRules                             `yaml:"kyc"`
	AML                  AMLRules                             `yaml:"aml"`
	Monitoring           MonitoringRules                      `yaml:"monitoring"`
	Reports              map[domain.ReportType]ReportTemplate `yaml:"reports"`

	highRisk   pattern.CountrySet
	sanctioned pattern.CountrySet
	home       pattern.CountrySet
	critical   map[string]struct{}
}

var errInvalidProfile = errors.New("invalid jurisdiction profile")

// minVerifiedScore is the lowest KYC score that may count as verified
const minVerifiedScore = 70

// prepare validates the profile and builds its lookup sets
func (p *Profile) prepare() error {
	var problems []string
	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if p.Country == "" {
		problems = append(problems, "country is required")
	}
	if p.BaseCurrency == "" {
		problems = append(problems, "base_currency is required")
	}
	if !p.Limits.CashReportingThreshold.IsPositive() {
		problems = append(problems, "limits.cash_reporting_threshold must be positive")
	}
	if p.AML.LookbackWindow <= 0 {
		problems = append(problems, "aml.lookback_window must be positive")
	}
	if p.KYC.VerifiedScore != 0 && p.KYC.VerifiedScore < minVerifiedScore {
		problems = append(problems, fmt.Sprintf("kyc.verified_score must be at least %d", minVerifiedScore))
	}
	if !p.AML.StructuringBand.IsPositive() || p.AML.StructuringBand.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		problems = append(problems, "aml.structuring_band must be in (0,1)")
	}
	if !p.AML.UnusualMultiplier.IsPositive() {
		problems = append(problems, "aml.unusual_multiplier must be positive")
	}
	if p.Monitoring.VelocityLimit <= 0 {
		problems = append(problems, "monitoring.velocity_limit must be positive")
	}
	for _, e := range p.SanctionsEntries {
		if e.Threshold <= 0 || e.Threshold > 100 {
			problems = append(problems, fmt.Sprintf("sanctions entry %q: threshold must be in (0,100]", e.Name))
		}
	}
	if rule := p.KYC.NationalID; rule != nil {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			problems = append(problems, fmt.Sprintf("kyc.national_id.pattern: %v", err))
		}
		rule.re = re
	}
	for _, t := range p.Capabilities.SupportedReports {
		if _, ok := p.Reports[t]; !ok {
			problems = append(problems, fmt.Sprintf("report %s is supported but has no template", t))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %s", errInvalidProfile, p.Name, strings.Join(problems, "; "))
	}

	p.Country = strings.ToUpper(p.Country)
	if p.KYC.VerifiedScore == 0 {
		p.KYC.VerifiedScore = minVerifiedScore
	}
	if len(p.KYC.ReviewMonths) == 0 {
		p.KYC.ReviewMonths = map[domain.RiskLevel]int{domain.RiskHigh: 6, domain.RiskMedium: 12, domain.RiskLow: 24}
	}
	if p.Monitoring.DefaultLookback <= 0 {
		p.Monitoring.DefaultLookback = 30 * 24 * time.Hour
	}

	p.highRisk = pattern.NewCountrySet(p.HighRiskCountries...)
	p.sanctioned = pattern.NewCountrySet(p.SanctionedCountries...)
	if len(p.HomeArea) > 0 {
		p.home = pattern.NewCountrySet(p.HomeArea...)
	} else {
		p.home = pattern.NewCountrySet(p.Country)
	}
	p.critical = make(map[string]struct{}, len(p.CriticalPrograms))
	for _, prog := range p.CriticalPrograms {
		p.critical[strings.ToUpper(prog)] = struct{}{}
	}
	return nil
}

// HighRisk returns the high-risk country set
func (p *Profile) HighRisk() pattern.CountrySet { return p.highRisk }

// IsSanctionedCountry reports whether a nationality is sanctioned
func (p *Profile) IsSanctionedCountry(code string) bool { return p.sanctioned.Contains(code) }

// IsForeign reports whether a recipient country lies outside the home area.
// Unknown countries are not foreign.
func (p *Profile) IsForeign(code string) bool {
	return code != "" && !p.home.Contains(code)
}

// IsCriticalProgram reports whether matches on a program are always critical
func (p *Profile) IsCriticalProgram(program string) bool {
	_, ok := p.critical[strings.ToUpper(program)]
	return ok
}

// Serves reports whether the profile covers a country code
func (p *Profile) Serves(code string) bool {
	code = strings.ToUpper(code)
	if code == p.Country {
		return true
	}
	for _, c := range p.Countries {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// Rate returns how many units of currency equal one unit of the base
// currency. Unknown currencies convert at par.
func (p *Profile) Rate(currency string) decimal.Decimal {
	if currency == "" || strings.EqualFold(currency, p.BaseCurrency) {
		return decimal.NewFromInt(1)
	}
	if r, ok := p.ConversionRates[strings.ToUpper(currency)]; ok && r.IsPositive() {
		return r
	}
	return decimal.NewFromInt(1)
}

// Converts reports whether the profile holds a rate for currency. The base
// currency and an empty currency always convert.
func (p *Profile) Converts(currency string) bool {
	if currency == "" || strings.EqualFold(currency, p.BaseCurrency) {
		return true
	}
	r, ok := p.ConversionRates[strings.ToUpper(currency)]
	return ok && r.IsPositive()
}

// ToBase converts an amount in currency into the base currency
func (p *Profile) ToBase(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Div(p.Rate(currency))
}

// FromBase converts an amount in the base currency into currency
func (p *Profile) FromBase(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Mul(p.Rate(currency))
}

// ReviewInterval returns the months until the next KYC review
func (p *Profile) ReviewInterval(level domain.RiskLevel) int {
	if m, ok := p.KYC.ReviewMonths[level]; ok {
		return m
	}
	return 12
}
