package compliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
	"go.uber.org/zap"
)

// Submission binds a report to its acknowledgment number. FiledAt is set
// once the filing endpoint accepted the report.
type Submission struct {
	ReportID             string     `json:"report_id"`
	AcknowledgmentNumber string     `json:"acknowledgment_number"`
	FiledAt              *time.Time `json:"filed_at,omitempty"`
}

// ReportStore persists reports and their acknowledgment numbers. An
// acknowledgment is bound once per report id and never reissued.
type ReportStore interface {
	SaveReport(ctx context.Context, report *domain.ComplianceReport) error
	GetReport(ctx context.Context, reportID string) (*domain.ComplianceReport, error)
	// ReserveAcknowledgment binds ack to reportID unless one is already
	// bound, and returns the bound submission
	ReserveAcknowledgment(ctx context.Context, reportID, ack string) (Submission, error)
	MarkFiled(ctx context.Context, reportID string, at time.Time) (Submission, error)
}

// Filer transmits a report to the regulator's filing endpoint. The report
// carries its acknowledgment number; transmitting the same report twice must
// be harmless.
type Filer interface {
	Submit(ctx context.Context, report *domain.ComplianceReport) error
}

// FilerFunc adapts a function to Filer
type FilerFunc func(ctx context.Context, report *domain.ComplianceReport) error

func (f FilerFunc) Submit(ctx context.Context, report *domain.ComplianceReport) error {
	return f(ctx, report)
}

// NopFiler accepts every report
type NopFiler struct{}

func (NopFiler) Submit(context.Context, *domain.ComplianceReport) error { return nil }

// Filers runs filers in order and stops at the first failure
func Filers(filers ...Filer) Filer {
	return FilerFunc(func(ctx context.Context, report *domain.ComplianceReport) error {
		for _, f := range filers {
			if err := f.Submit(ctx, report); err != nil {
				return err
			}
		}
		return nil
	})
}

// GenerateReport drafts a report shaped by the profile's template
func (e *Engine) GenerateReport(ctx context.Context, req domain.ReportRequest) (*domain.ComplianceReport, error) {
	if err := e.ready(domain.OpReporting); err != nil {
		return nil, err
	}
	p := e.profile
	if !p.Capabilities.SupportsReport(req.Type) {
		return nil, &CapabilityError{Provider: p.Name, Operation: domain.OpReporting, Report: req.Type}
	}
	if req.UserID == "" {
		return nil, invalid("user id is required")
	}
	now := e.now()
	if req.PeriodStart.IsZero() {
		req.PeriodStart = now
	}
	if req.PeriodEnd.IsZero() {
		req.PeriodEnd = now
	}
	if req.PeriodEnd.Before(req.PeriodStart) {
		return nil, invalid("reporting period ends before it starts")
	}

	_, institution, _ := e.settings()
	report := &domain.ComplianceReport{
		ReportID:       fmt.Sprintf("%s-%s-%s-%s", req.Type, p.Country, now.UTC().Format("20060102150405"), e.newID()),
		Type:           req.Type,
		Provider:       p.Name,
		Jurisdiction:   p.Country,
		UserID:         req.UserID,
		TransactionIDs: req.TransactionIDs,
		FilingDate:     now,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		Status:         domain.ReportDraft,
		Payload:        e.payload(req, institution, now),
		SubmittedTo:    e.target(req.Type),
	}

	if err := e.reports.SaveReport(ctx, report); err != nil {
		return nil, &InfraError{Provider: p.Name, Service: "report store", Err: err}
	}
	e.logger.Info("Compliance report drafted",
		zap.String("report_id", report.ReportID),
		zap.String("report_type", string(report.Type)),
		zap.String("user_id", report.UserID))
	return report, nil
}

func (e *Engine) payload(req domain.ReportRequest, institution string, now time.Time) map[string]any {
	tmpl := e.profile.Reports[req.Type]
	payload := map[string]any{
		"reportType":           string(req.Type),
		"generatedAt":          now.UTC().Format(time.RFC3339),
		"reportingInstitution": institution,
		"regulator":            e.profile.Regulator,
		"filingMethod":         "Electronic",
		"formNumber":           tmpl.Form,
		"userId":               req.UserID,
		"transactionIds":       req.TransactionIDs,
		"reportingPeriod": map[string]any{
			"startDate": req.PeriodStart.UTC().Format(time.RFC3339),
			"endDate":   req.PeriodEnd.UTC().Format(time.RFC3339),
		},
	}
	for k, v := range tmpl.Fields {
		payload[k] = v
	}
	// unset dates default to the start of the reporting period
	for k, dflt := range tmpl.Metadata {
		if dflt == nil {
			dflt = req.PeriodStart.UTC().Format(time.RFC3339)
		}
		payload[k] = dflt
	}
	for k, v := range req.Metadata {
		payload[k] = v
	}
	return payload
}

func (e *Engine) target(t domain.ReportType) string {
	if _, _, override := e.settings(); override != "" {
		return override
	}
	if tmpl, ok := e.profile.Reports[t]; ok && tmpl.SubmitTo != "" {
		return tmpl.SubmitTo
	}
	return e.profile.Regulator
}

func (e *Engine) acknowledgment(t domain.ReportType) string {
	env, _, _ := e.settings()
	ack := fmt.Sprintf("%s-%s-%s-%s", e.profile.AcknowledgmentPrefix, t, e.now().UTC().Format("20060102150405"), e.newID())
	if env == EnvSandbox {
		ack = "SANDBOX-" + ack
	}
	return ack
}

// GetReport loads a report by id
func (e *Engine) GetReport(ctx context.Context, reportID string) (*domain.ComplianceReport, error) {
	if err := e.ready(domain.OpReporting); err != nil {
		return nil, err
	}
	report, err := e.reports.GetReport(ctx, reportID)
	if errors.Is(err, ErrReportNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &InfraError{Provider: e.profile.Name, Service: "report store", Err: err}
	}
	return report, nil
}

// SubmitReport files a draft report and moves it to submitted. Retrying
// with the same report id returns the acknowledgment issued the first time.
// A report the store already holds as filed is returned as stored, whatever
// status the caller's copy carries.
func (e *Engine) SubmitReport(ctx context.Context, report *domain.ComplianceReport) (*domain.SubmissionResult, error) {
	start := time.Now()
	if err := e.ready(domain.OpReporting); err != nil {
		return nil, err
	}
	if report == nil || report.ReportID == "" {
		return nil, invalid("report id is required")
	}
	if !e.profile.Capabilities.SupportsReport(report.Type) {
		return nil, &CapabilityError{Provider: e.profile.Name, Operation: domain.OpReporting, Report: report.Type}
	}
	if report.Provider != "" && report.Provider != e.profile.Name {
		return nil, invalid("report %s belongs to provider %s", report.ReportID, report.Provider)
	}

	v, err, _ := e.submissions.Do(report.ReportID, func() (any, error) {
		return e.submit(ctx, *report)
	})
	e.metrics.ObserveEvaluation(e.profile.Name, string(domain.OpReporting), outcome(err), start)
	if err != nil {
		return nil, err
	}
	filed := v.(domain.ComplianceReport)
	*report = filed

	return &domain.SubmissionResult{
		Success:              true,
		ReportID:             filed.ReportID,
		Status:               filed.Status,
		SubmittedTo:          filed.SubmittedTo,
		AcknowledgmentNumber: filed.AcknowledgmentNumber,
	}, nil
}

func (e *Engine) submit(ctx context.Context, report domain.ComplianceReport) (domain.ComplianceReport, error) {
	p := e.profile
	stored, err := e.reports.GetReport(ctx, report.ReportID)
	if err != nil && !errors.Is(err, ErrReportNotFound) {
		return report, &InfraError{Provider: p.Name, Service: "report store", Err: err}
	}
	if stored != nil && stored.AcknowledgmentNumber != "" {
		switch stored.Status {
		case domain.ReportSubmitted, domain.ReportAcknowledged, domain.ReportUnderReview:
			return *stored, nil
		}
	}

	switch report.Status {
	case domain.ReportAcknowledged, domain.ReportUnderReview:
		return report, nil
	case "", domain.ReportDraft, domain.ReportSubmitted:
	default:
		return report, invalid("unknown report status %q", report.Status)
	}

	sub, err := e.reports.ReserveAcknowledgment(ctx, report.ReportID, e.acknowledgment(report.Type))
	if err != nil {
		return report, &InfraError{Provider: p.Name, Service: "report store", Err: err}
	}

	if report.SubmittedTo == "" {
		report.SubmittedTo = e.target(report.Type)
	}
	report.Provider = p.Name
	report.AcknowledgmentNumber = sub.AcknowledgmentNumber

	if sub.FiledAt == nil {
		_, err := call(ctx, e, "regulatory filing", e.filingTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.filer.Submit(ctx, &report)
		})
		if err != nil {
			return report, err
		}
		sub, err = e.reports.MarkFiled(ctx, report.ReportID, e.now())
		if err != nil {
			return report, &InfraError{Provider: p.Name, Service: "report store", Err: err}
		}
		e.metrics.IncrementReportsFiled(p.Name, string(report.Type))
		e.logger.Info("Compliance report submitted",
			zap.String("report_id", report.ReportID),
			zap.String("report_type", string(report.Type)),
			zap.String("submitted_to", report.SubmittedTo),
			zap.String("acknowledgment_number", sub.AcknowledgmentNumber))
	}

	report.Status = domain.ReportSubmitted
	report.SubmittedAt = sub.FiledAt
	if err := e.reports.SaveReport(ctx, &report); err != nil {
		return report, &InfraError{Provider: p.Name, Service: "report store", Err: err}
	}
	return report, nil
}

// AdvanceReport records a regulator-driven status change
func (e *Engine) AdvanceReport(ctx context.Context, reportID string, next domain.ReportStatus) (*domain.ComplianceReport, error) {
	report, err := e.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == next {
		return report, nil
	}
	if !report.Status.CanAdvanceTo(next) || next == domain.ReportSubmitted {
		return nil, invalid("report %s cannot move from %s to %s", reportID, report.Status, next)
	}
	report.Status = next
	if err := e.reports.SaveReport(ctx, report); err != nil {
		return nil, &InfraError{Provider: e.profile.Name, Service: "report store", Err: err}
	}
	return report, nil
}

// MemoryReportStore is the in-process ReportStore
type MemoryReportStore struct {
	mu          sync.Mutex
	reports     map[string]domain.ComplianceReport
	submissions map[string]Submission
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{
		reports:     make(map[string]domain.ComplianceReport),
		submissions: make(map[string]Submission),
	}
}

func (s *MemoryReportStore) SaveReport(_ context.Context, report *domain.ComplianceReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.reports[report.ReportID]; ok &&
		current.Status != report.Status && !current.Status.CanAdvanceTo(report.Status) {
		return fmt.Errorf("report %s: status %s cannot follow %s", report.ReportID, report.Status, current.Status)
	}
	s.reports[report.ReportID] = *report
	return nil
}

func (s *MemoryReportStore) GetReport(_ context.Context, reportID string) (*domain.ComplianceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
	}
	return &r, nil
}

func (s *MemoryReportStore) ReserveAcknowledgment(_ context.Context, reportID, ack string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.submissions[reportID]; ok {
		return sub, nil
	}
	sub := Submission{ReportID: reportID, AcknowledgmentNumber: ack}
	s.submissions[reportID] = sub
	return sub, nil
}

func (s *MemoryReportStore) MarkFiled(_ context.Context, reportID string, at time.Time) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[reportID]
	if !ok {
		return Submission{}, fmt.Errorf("%w: no acknowledgment reserved for %s", ErrReportNotFound, reportID)
	}
	if sub.FiledAt == nil {
		sub.FiledAt = &at
		s.submissions[reportID] = sub
	}
	return sub, nil
}
