// Package compliance implements the jurisdiction-parameterized compliance
// engine. One Engine serves one jurisdiction.Profile; all regional variation
// lives in the profile.
package compliance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/history"
	"github.com/banking/regional-compliance/internal/compliance/jurisdiction"
	"github.com/banking/regional-compliance/internal/compliance/verification"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/banking/regional-compliance/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Provider is the operation set every jurisdiction exposes
type Provider interface {
	Name() string
	DisplayName() string
	Region() string
	Country() string
	Countries() []string
	Capabilities() domain.ComplianceCapabilities
	Initialize(config map[string]string) error

	PerformKYC(ctx context.Context, req domain.KYCRequest) (*domain.KYCResult, error)
	CheckAML(ctx context.Context, req domain.AMLRequest) (*domain.AMLResult, error)
	CheckSanctions(ctx context.Context, req domain.SanctionsRequest) (*domain.SanctionsCheckResult, error)
	MonitorTransactions(ctx context.Context, req domain.MonitoringRequest) (*domain.TransactionMonitoringResult, error)
	GenerateReport(ctx context.Context, req domain.ReportRequest) (*domain.ComplianceReport, error)
	SubmitReport(ctx context.Context, report *domain.ComplianceReport) (*domain.SubmissionResult, error)
	GetReport(ctx context.Context, reportID string) (*domain.ComplianceReport, error)
	AdvanceReport(ctx context.Context, reportID string, next domain.ReportStatus) (*domain.ComplianceReport, error)
	GetRegulatoryLimits(currency string) (*domain.RegulatoryLimits, error)
	GetRequiredKYCLevel(op domain.TransactionType, amount decimal.Decimal, currency string) (domain.KYCLevel, error)
	IsOperationCompliant(op domain.TransactionType, octx domain.OperationContext) (*domain.ComplianceDecision, error)
	RecordTransaction(ctx context.Context, tx domain.Transaction) error
	LastRiskScore(userID string) (history.RiskScore, bool)
	CommitRiskScore(ctx context.Context, userID string, res *domain.AMLResult)
}

// RiskScoreSink mirrors computed risk scores to a shared store
type RiskScoreSink interface {
	PutRiskScore(ctx context.Context, score history.RiskScore) error
}

const (
	defaultLookupTimeout = 5 * time.Second
	defaultFilingTimeout = 30 * time.Second

	EnvProduction = "production"
	EnvSandbox    = "sandbox"
)

// Engine evaluates KYC, AML, sanctions, monitoring and reporting for one
// jurisdiction profile
type Engine struct {
	profile  *jurisdiction.Profile
	logger   *zap.Logger
	metrics  *metrics.Metrics
	services verification.Services
	history  *history.Store
	scores   *history.Scores
	reports  ReportStore
	filer    Filer
	sink     RiskScoreSink
	now      func() time.Time
	newID    func() string

	lookupTimeout time.Duration
	filingTimeout time.Duration

	submissions singleflight.Group

	mu          sync.RWMutex
	initialized bool
	environment string
	institution string
	submitTo    string
}

// Option configures an Engine
type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option { return func(e *Engine) { e.logger = logger } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithServices overrides external verification services. Unset fields keep
// the rule-based defaults.
func WithServices(s verification.Services) Option {
	return func(e *Engine) { e.services = s.WithDefaults(e.services) }
}

// WithHistory shares a transaction history cache between engines
func WithHistory(h *history.Store) Option { return func(e *Engine) { e.history = h } }

func WithScores(s *history.Scores) Option { return func(e *Engine) { e.scores = s } }

func WithReportStore(s ReportStore) Option { return func(e *Engine) { e.reports = s } }

func WithFiler(f Filer) Option { return func(e *Engine) { e.filer = f } }

func WithRiskScoreSink(s RiskScoreSink) Option { return func(e *Engine) { e.sink = s } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithTimeouts bounds external lookups and regulatory filing calls
func WithTimeouts(lookup, filing time.Duration) Option {
	return func(e *Engine) {
		if lookup > 0 {
			e.lookupTimeout = lookup
		}
		if filing > 0 {
			e.filingTimeout = filing
		}
	}
}

// New creates an engine for profile. It must be initialized before use.
func New(profile *jurisdiction.Profile, opts ...Option) (*Engine, error) {
	if profile == nil {
		return nil, fmt.Errorf("compliance engine requires a profile")
	}
	e := &Engine{
		profile:       profile,
		logger:        zap.NewNop(),
		services:      verification.Defaults(append([]string{profile.Country}, profile.Countries...)),
		reports:       NewMemoryReportStore(),
		filer:         NopFiler{},
		now:           time.Now,
		newID:         func() string { return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9]) },
		lookupTimeout: defaultLookupTimeout,
		filingTimeout: defaultFilingTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("provider", profile.Name))

	if e.history == nil {
		h, err := history.NewStore(history.Config{}, nil)
		if err != nil {
			return nil, err
		}
		e.history = h
	}
	if e.scores == nil {
		s, err := history.NewScores(0, 0)
		if err != nil {
			return nil, err
		}
		e.scores = s
	}
	return e, nil
}

// Initialize configures the engine. Recognized keys: environment
// (production or sandbox), institution_name and submit_to, which replaces
// every template's filing target. Other keys are accepted as credentials.
func (e *Engine) Initialize(config map[string]string) error {
	if config == nil {
		return invalid("provider %s: configuration is required", e.profile.Name)
	}
	env := strings.ToLower(config["environment"])
	switch env {
	case "":
		env = EnvProduction
	case EnvProduction, EnvSandbox:
	default:
		return invalid("provider %s: unknown environment %q", e.profile.Name, config["environment"])
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.environment = env
	e.institution = config["institution_name"]
	if e.institution == "" {
		e.institution = "Banking Institution"
	}
	e.submitTo = config["submit_to"]
	e.initialized = true

	e.logger.Info("Compliance provider initialized", zap.String("environment", env))
	return nil
}

func (e *Engine) Name() string        { return e.profile.Name }
func (e *Engine) DisplayName() string { return e.profile.DisplayName }
func (e *Engine) Region() string      { return e.profile.Region }
func (e *Engine) Country() string     { return e.profile.Country }
func (e *Engine) Countries() []string { return e.profile.Countries }

func (e *Engine) Capabilities() domain.ComplianceCapabilities { return e.profile.Capabilities }

// Profile returns the jurisdiction profile backing the engine
func (e *Engine) Profile() *jurisdiction.Profile { return e.profile }

// ready fails unless the engine is initialized and allows op
func (e *Engine) ready(op domain.Operation) error {
	e.mu.RLock()
	ok := e.initialized
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInitialized, e.profile.Name)
	}
	if !e.profile.Capabilities.Supports(op) {
		return &CapabilityError{Provider: e.profile.Name, Operation: op}
	}
	return nil
}

func (e *Engine) settings() (env, institution, submitTo string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.environment, e.institution, e.submitTo
}

// RecordTransaction appends tx to the user's history without scoring it
func (e *Engine) RecordTransaction(ctx context.Context, tx domain.Transaction) error {
	if err := e.ready(domain.OpAML); err != nil {
		return err
	}
	if tx.ID == "" || tx.UserID == "" {
		return invalid("transaction id and user id are required")
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = e.now()
	}
	if _, err := e.history.Append(ctx, tx); err != nil {
		return &InfraError{Provider: e.profile.Name, Service: "transaction store", Err: err}
	}
	e.metrics.SetHistoryUsers(e.history.Len())
	return nil
}

// LastRiskScore returns the latest AML score computed for a user
func (e *Engine) LastRiskScore(userID string) (history.RiskScore, bool) {
	return e.scores.Get(userID)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
