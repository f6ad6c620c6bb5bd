package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/crypto"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrDecisionNotFound is returned when no decision has the requested ID
	ErrDecisionNotFound = errors.New("decision not found")
	// ErrDecisionTampered is returned when a stored decision fails signature verification
	ErrDecisionTampered = errors.New("decision trail integrity failure")
)

// DecisionLedger is the append-only store of signed decisions
type DecisionLedger interface {
	AppendDecision(ctx context.Context, rec *domain.DecisionRecord) error
	GetDecisions(ctx context.Context, filter domain.DecisionFilter) (*domain.DecisionPage, error)
}

// DecisionIndex is the search index over decisions
type DecisionIndex interface {
	IndexDecision(ctx context.Context, rec *domain.DecisionRecord) error
	SearchDecisions(ctx context.Context, query string, from, size int) (*domain.DecisionPage, error)
}

// DecisionRecorder signs decisions, appends them to the ledger and indexes
// them in the background
type DecisionRecorder struct {
	ledger  DecisionLedger
	index   DecisionIndex
	keyring *crypto.Keyring
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDecisionRecorder creates a recorder. index may be nil.
func NewDecisionRecorder(ledger DecisionLedger, index DecisionIndex, keyring *crypto.Keyring, logger *zap.Logger) *DecisionRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionRecorder{ledger: ledger, index: index, keyring: keyring, logger: logger}
}

type decision struct {
	kind      domain.DecisionKind
	provider  string
	tenantID  string
	userID    string
	subjectID string
	outcome   string
	risk      domain.RiskLevel
	score     int
	at        time.Time
	result    any
}

func (s *ComplianceService) record(ctx context.Context, d decision) error {
	if s.recorder == nil {
		return nil
	}
	if _, err := s.recorder.record(ctx, d); err != nil {
		return &compliance.InfraError{Provider: d.provider, Service: "decision ledger", Err: err}
	}
	return nil
}

// record signs and persists one decision. The ledger write must succeed;
// indexing is best effort.
func (r *DecisionRecorder) record(ctx context.Context, d decision) (*domain.DecisionRecord, error) {
	payload, err := json.Marshal(d.result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", d.kind, err)
	}
	at := d.at
	if at.IsZero() {
		at = time.Now()
	}
	rec := &domain.DecisionRecord{
		DecisionID: uuid.New(),
		Kind:       d.kind,
		Provider:   d.provider,
		TenantID:   d.tenantID,
		UserID:     d.userID,
		SubjectID:  d.subjectID,
		Outcome:    d.outcome,
		RiskLevel:  d.risk,
		RiskScore:  d.score,
		Result:     payload,
		DecidedAt:  at.UTC(),
	}
	r.keyring.SignDecision(rec)

	if err := r.ledger.AppendDecision(ctx, rec); err != nil {
		r.logger.Error("Failed to persist compliance decision",
			zap.String("decision_id", rec.DecisionID.String()),
			zap.String("kind", string(rec.Kind)),
			zap.Error(err))
		return nil, fmt.Errorf("ledger persistence failed: %w", err)
	}

	r.asyncIndex(rec)
	return rec, nil
}

func (r *DecisionRecorder) asyncIndex(rec *domain.DecisionRecord) {
	if r.index == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("Panic in async decision indexing", zap.Any("panic", p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.index.IndexDecision(ctx, rec); err != nil {
			r.logger.Warn("Failed to index compliance decision",
				zap.String("decision_id", rec.DecisionID.String()),
				zap.Error(err))
		}
	}()
}

// Wait blocks until pending index writes finish
func (r *DecisionRecorder) Wait() { r.wg.Wait() }

// GetDecisions reads the ledger and verifies every signature
func (r *DecisionRecorder) GetDecisions(ctx context.Context, filter domain.DecisionFilter) (*domain.DecisionPage, error) {
	page, err := r.ledger.GetDecisions(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, rec := range page.Decisions {
		if !r.keyring.VerifyDecision(rec) {
			r.logger.Error("Decision signature mismatch",
				zap.String("decision_id", rec.DecisionID.String()),
				zap.String("kind", string(rec.Kind)))
			return nil, fmt.Errorf("%w: decision %s signature invalid", ErrDecisionTampered, rec.DecisionID)
		}
	}
	return page, nil
}

// VerifyDecision checks one decision's signature
func (r *DecisionRecorder) VerifyDecision(ctx context.Context, decisionID string) (bool, error) {
	id, err := uuid.Parse(decisionID)
	if err != nil {
		return false, fmt.Errorf("%w: invalid decision ID", compliance.ErrInvalidRequest)
	}
	page, err := r.ledger.GetDecisions(ctx, domain.DecisionFilter{DecisionID: &id, Limit: 1})
	if err != nil {
		return false, err
	}
	if len(page.Decisions) == 0 {
		return false, fmt.Errorf("%w: %s", ErrDecisionNotFound, decisionID)
	}
	return r.keyring.VerifyDecision(page.Decisions[0]), nil
}

// SearchDecisions runs a full text query against the index
func (r *DecisionRecorder) SearchDecisions(ctx context.Context, query string, from, size int) (*domain.DecisionPage, error) {
	if r.index == nil {
		return nil, fmt.Errorf("decision index is not configured")
	}
	return r.index.SearchDecisions(ctx, query, from, size)
}
