// Package service routes compliance requests to the provider of the
// tenant's jurisdiction and records every decision.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/compliance/history"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultRegionMap maps deployment regions to provider regions
var DefaultRegionMap = map[string]string{
	"north-america-east":    "USA",
	"north-america-west":    "USA",
	"north-america-central": "Canada",
	"europe-west":           "Europe",
	"europe-central":        "Europe",
	"europe-east":           "Europe",
}

// Target carries the routing hints of a request
type Target struct {
	TenantID          string
	PreferredProvider string
	CountryHint       string
}

// AlertPublisher forwards AML results that need attention
type AlertPublisher interface {
	PublishAMLAlert(ctx context.Context, tenantID, userID string, result *domain.AMLResult) error
}

// Config tunes provider resolution
type Config struct {
	// DefaultProvider is used when nothing else resolves. Empty selects the
	// provider with the widest capabilities.
	DefaultProvider string
	RegionMap       map[string]string
}

type ComplianceService struct {
	registry        *compliance.Registry
	tenants         TenantResolver
	regions         map[string]string
	defaultProvider string
	recorder        *DecisionRecorder
	alerts          AlertPublisher
	logger          *zap.Logger
}

// NewComplianceService wires the service. recorder and alerts may be nil.
func NewComplianceService(
	registry *compliance.Registry,
	tenants TenantResolver,
	cfg Config,
	recorder *DecisionRecorder,
	alerts AlertPublisher,
	logger *zap.Logger,
) *ComplianceService {
	if tenants == nil {
		tenants = StaticTenants{}
	}
	regions := cfg.RegionMap
	if len(regions) == 0 {
		regions = DefaultRegionMap
	}
	normalized := make(map[string]string, len(regions))
	for k, v := range regions {
		normalized[strings.ToLower(k)] = v
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplianceService{
		registry:        registry,
		tenants:         tenants,
		regions:         normalized,
		defaultProvider: cfg.DefaultProvider,
		recorder:        recorder,
		alerts:          alerts,
		logger:          logger,
	}
}

// Resolve picks the provider for a request: preferred provider, tenant
// country, country hint, tenant region, then the default.
func (s *ComplianceService) Resolve(ctx context.Context, t Target) (compliance.Provider, error) {
	if t.PreferredProvider != "" {
		if p, ok := s.registry.GetProvider(t.PreferredProvider); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: unknown provider %q", compliance.ErrNoProvider, t.PreferredProvider)
	}

	tenant, err := s.tenant(ctx, t.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant != nil && tenant.Country != "" {
		if p, ok := s.registry.GetProviderForCountry(tenant.Country); ok {
			return p, nil
		}
	}
	if t.CountryHint != "" {
		if p, ok := s.registry.GetProviderForCountry(t.CountryHint); ok {
			return p, nil
		}
	}
	if tenant != nil && tenant.Region != "" {
		if p, ok := s.providerForRegion(tenant.Region); ok {
			return p, nil
		}
	}
	return s.fallback()
}

func (s *ComplianceService) tenant(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	if tenantID == "" {
		return nil, nil
	}
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &compliance.InfraError{Provider: "compliance-service", Service: "tenant resolver", Err: err}
	}
	return tenant, nil
}

func (s *ComplianceService) providerForRegion(region string) (compliance.Provider, bool) {
	if mapped, ok := s.regions[strings.ToLower(region)]; ok {
		return s.registry.GetProviderForRegion(mapped)
	}
	return s.registry.GetProviderForRegion(region)
}

func (s *ComplianceService) fallback() (compliance.Provider, error) {
	if s.defaultProvider != "" {
		if p, ok := s.registry.GetProvider(s.defaultProvider); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: default provider %q is not registered", compliance.ErrNoProvider, s.defaultProvider)
	}
	var best compliance.Provider
	bestScore := -1
	for _, p := range s.registry.GetAllProviders() {
		if score := breadth(p.Capabilities()); score > bestScore {
			best, bestScore = p, score
		}
	}
	if best == nil {
		return nil, compliance.ErrNoProvider
	}
	return best, nil
}

// breadth counts enabled operations and fileable report types
func breadth(c domain.ComplianceCapabilities) int {
	n := len(c.SupportedReports)
	for _, op := range []domain.Operation{domain.OpKYC, domain.OpAML, domain.OpSanctions, domain.OpMonitoring, domain.OpReporting} {
		if c.Supports(op) {
			n++
		}
	}
	return n
}

// resolveFor resolves a provider and fails unless it allows every op
func (s *ComplianceService) resolveFor(ctx context.Context, t Target, ops ...domain.Operation) (compliance.Provider, error) {
	p, err := s.Resolve(ctx, t)
	if err != nil {
		return nil, err
	}
	caps := p.Capabilities()
	for _, op := range ops {
		if !caps.Supports(op) {
			return nil, &compliance.CapabilityError{Provider: p.Name(), Operation: op}
		}
	}
	return p, nil
}

func hint(t Target, country string) Target {
	if t.CountryHint == "" {
		t.CountryHint = country
	}
	return t
}

func (s *ComplianceService) PerformKYC(ctx context.Context, t Target, req domain.KYCRequest) (*domain.KYCResult, error) {
	p, err := s.resolveFor(ctx, hint(t, req.User.CountryOfResidence), domain.OpKYC)
	if err != nil {
		return nil, err
	}
	res, err := p.PerformKYC(ctx, req)
	if err != nil {
		return nil, err
	}
	outcome := "not_verified"
	if res.Verified {
		outcome = "verified"
	}
	if err := s.record(ctx, decision{
		kind: domain.DecisionKYC, provider: p.Name(), tenantID: t.TenantID, userID: req.User.ID,
		outcome: outcome, risk: res.RiskLevel, score: res.Score, at: res.VerificationDate, result: res,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ComplianceService) CheckAML(ctx context.Context, t Target, req domain.AMLRequest) (*domain.AMLResult, error) {
	p, err := s.resolveFor(ctx, hint(t, req.User.CountryOfResidence), domain.OpAML)
	if err != nil {
		return nil, err
	}
	res, err := p.CheckAML(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, decision{
		kind: domain.DecisionAML, provider: p.Name(), tenantID: t.TenantID, userID: req.User.ID,
		subjectID: res.TransactionID, outcome: string(res.Recommendation), risk: res.RiskLevel,
		score: res.RiskScore, at: res.CheckedAt, result: res,
	}); err != nil {
		return nil, err
	}
	s.alert(ctx, t.TenantID, req.User.ID, res)
	return res, nil
}

func (s *ComplianceService) CheckSanctions(ctx context.Context, t Target, req domain.SanctionsRequest) (*domain.SanctionsCheckResult, error) {
	p, err := s.resolveFor(ctx, hint(t, req.Nationality), domain.OpSanctions)
	if err != nil {
		return nil, err
	}
	res, err := p.CheckSanctions(ctx, req)
	if err != nil {
		return nil, err
	}
	outcome := "clear"
	if res.Matched {
		outcome = "matched"
	}
	if err := s.record(ctx, decision{
		kind: domain.DecisionSanctions, provider: p.Name(), tenantID: t.TenantID, subjectID: req.Name,
		outcome: outcome, risk: res.RiskLevel, score: int(res.HighestScore()), at: res.CheckedAt, result: res,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ComplianceService) MonitorTransactions(ctx context.Context, t Target, req domain.MonitoringRequest) (*domain.TransactionMonitoringResult, error) {
	p, err := s.resolveFor(ctx, t, domain.OpMonitoring)
	if err != nil {
		return nil, err
	}
	res, err := p.MonitorTransactions(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, decision{
		kind: domain.DecisionMonitoring, provider: p.Name(), tenantID: t.TenantID, userID: req.UserID,
		outcome: string(res.Recommendation), score: len(res.Alerts), at: res.Statistics.WindowEnd, result: res,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ComplianceService) GenerateReport(ctx context.Context, t Target, req domain.ReportRequest) (*domain.ComplianceReport, error) {
	p, err := s.resolveFor(ctx, t, domain.OpReporting)
	if err != nil {
		return nil, err
	}
	return p.GenerateReport(ctx, req)
}

// SubmitReport files a report with the provider that generated it
func (s *ComplianceService) SubmitReport(ctx context.Context, t Target, report *domain.ComplianceReport) (*domain.SubmissionResult, error) {
	if report != nil && report.Provider != "" {
		t.PreferredProvider = report.Provider
	}
	p, err := s.resolveFor(ctx, t, domain.OpReporting)
	if err != nil {
		return nil, err
	}
	res, err := p.SubmitReport(ctx, report)
	if err != nil {
		return nil, err
	}
	at := time.Now().UTC()
	if report.SubmittedAt != nil {
		at = *report.SubmittedAt
	}
	if err := s.record(ctx, decision{
		kind: domain.DecisionFiling, provider: p.Name(), tenantID: t.TenantID, userID: report.UserID,
		subjectID: res.ReportID, outcome: string(res.Status), at: at, result: res,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ComplianceService) GetReport(ctx context.Context, t Target, reportID string) (*domain.ComplianceReport, error) {
	p, err := s.resolveFor(ctx, t, domain.OpReporting)
	if err != nil {
		return nil, err
	}
	return p.GetReport(ctx, reportID)
}

// UpdateReportStatus records regulator feedback on a filed report
func (s *ComplianceService) UpdateReportStatus(ctx context.Context, t Target, reportID string, status domain.ReportStatus) (*domain.ComplianceReport, error) {
	p, err := s.resolveFor(ctx, t, domain.OpReporting)
	if err != nil {
		return nil, err
	}
	return p.AdvanceReport(ctx, reportID, status)
}

func (s *ComplianceService) GetRegulatoryLimits(ctx context.Context, t Target, currency string) (*domain.RegulatoryLimits, error) {
	p, err := s.resolveFor(ctx, t, domain.OpLimits)
	if err != nil {
		return nil, err
	}
	return p.GetRegulatoryLimits(currency)
}

func (s *ComplianceService) GetRequiredKYCLevel(ctx context.Context, t Target, op domain.TransactionType, amount decimal.Decimal, currency string) (domain.KYCLevel, error) {
	p, err := s.resolveFor(ctx, t, domain.OpLimits)
	if err != nil {
		return "", err
	}
	return p.GetRequiredKYCLevel(op, amount, currency)
}

func (s *ComplianceService) IsOperationCompliant(ctx context.Context, t Target, op domain.TransactionType, octx domain.OperationContext) (*domain.ComplianceDecision, error) {
	p, err := s.resolveFor(ctx, t, domain.OpLimits)
	if err != nil {
		return nil, err
	}
	return p.IsOperationCompliant(op, octx)
}

// RecordTransaction feeds a completed transaction into the history window
// of the provider that serves the tenant
func (s *ComplianceService) RecordTransaction(ctx context.Context, t Target, tx domain.Transaction) error {
	p, err := s.resolveFor(ctx, t, domain.OpAML)
	if err != nil {
		return err
	}
	return p.RecordTransaction(ctx, tx)
}

func (s *ComplianceService) LastRiskScore(ctx context.Context, t Target, userID string) (history.RiskScore, bool, error) {
	p, err := s.Resolve(ctx, t)
	if err != nil {
		return history.RiskScore{}, false, err
	}
	score, ok := p.LastRiskScore(userID)
	return score, ok, nil
}

// GetAvailableProviders lists the providers serving a tenant's country or
// region. Unconfigured tenants have none.
func (s *ComplianceService) GetAvailableProviders(ctx context.Context, tenantID string) ([]domain.ProviderInfo, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := []domain.ProviderInfo{}
	if tenant == nil {
		return out, nil
	}
	region := tenant.Region
	if mapped, ok := s.regions[strings.ToLower(region)]; ok {
		region = mapped
	}
	for _, p := range s.registry.GetAllProviders() {
		if serves(p, tenant.Country) || (region != "" && strings.EqualFold(p.Region(), region)) {
			out = append(out, info(p))
		}
	}
	return out, nil
}

// ListProviders describes every registered provider
func (s *ComplianceService) ListProviders() []domain.ProviderInfo {
	all := s.registry.GetAllProviders()
	out := make([]domain.ProviderInfo, 0, len(all))
	for _, p := range all {
		out = append(out, info(p))
	}
	return out
}

func (s *ComplianceService) GetProviderCapabilities(name string) (domain.ComplianceCapabilities, error) {
	p, ok := s.registry.GetProvider(name)
	if !ok {
		return domain.ComplianceCapabilities{}, fmt.Errorf("%w: unknown provider %q", compliance.ErrNoProvider, name)
	}
	return p.Capabilities(), nil
}

func serves(p compliance.Provider, country string) bool {
	if country == "" {
		return false
	}
	if strings.EqualFold(p.Country(), country) {
		return true
	}
	for _, c := range p.Countries() {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

func info(p compliance.Provider) domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:         p.Name(),
		DisplayName:  p.DisplayName(),
		Region:       p.Region(),
		Country:      p.Country(),
		Countries:    p.Countries(),
		Capabilities: p.Capabilities(),
	}
}

// alert publishes non-approved AML results. Failures are logged only.
func (s *ComplianceService) alert(ctx context.Context, tenantID, userID string, res *domain.AMLResult) {
	if s.alerts == nil || res.Recommendation == domain.RecommendApprove {
		return
	}
	if err := s.alerts.PublishAMLAlert(ctx, tenantID, userID, res); err != nil {
		s.logger.Warn("Failed to publish AML alert",
			zap.String("transaction_id", res.TransactionID),
			zap.String("recommendation", string(res.Recommendation)),
			zap.Error(err))
	}
}
