package postgres

import (
	"context"
	"fmt"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DecisionRepository is the append-only ledger of signed decisions
type DecisionRepository struct {
	pool *pgxpool.Pool
}

func NewDecisionRepository(pool *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{pool: pool}
}

// AppendDecision inserts a decision. Rows are never updated or deleted.
func (r *DecisionRepository) AppendDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	const query = `
		INSERT INTO compliance_decisions (
			decision_id, kind, provider, tenant_id, user_id,
			subject_id, outcome, risk_level, risk_score, result,
			digital_signature, key_version, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.DecisionID, rec.Kind, rec.Provider, rec.TenantID, rec.UserID,
		rec.SubjectID, rec.Outcome, rec.RiskLevel, rec.RiskScore, []byte(rec.Result),
		rec.DigitalSignature, rec.KeyVersion, rec.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

const decisionColumns = `
	decision_id, kind, provider, tenant_id, user_id,
	subject_id, outcome, risk_level, risk_score, result,
	digital_signature, key_version, decided_at
`

// decisionWhere builds the filter clause and its arguments
func decisionWhere(filter domain.DecisionFilter) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+clause, len(args))
	}

	if filter.DecisionID != nil {
		add("decision_id = $%d", *filter.DecisionID)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.SubjectID != nil {
		add("subject_id = $%d", *filter.SubjectID)
	}
	if filter.Kind != nil {
		add("kind = $%d", string(*filter.Kind))
	}
	if filter.Provider != nil {
		add("provider = $%d", *filter.Provider)
	}
	if filter.StartTime != nil {
		add("decided_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("decided_at <= $%d", *filter.EndTime)
	}
	return where, args
}

// GetDecisions returns one page of decisions, newest first
func (r *DecisionRepository) GetDecisions(ctx context.Context, filter domain.DecisionFilter) (*domain.DecisionPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	where, args := decisionWhere(filter)

	var totalCount int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM compliance_decisions"+where, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}

	query := "SELECT" + decisionColumns + "FROM compliance_decisions" + where +
		fmt.Sprintf(" ORDER BY decided_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []*domain.DecisionRecord{}
	for rows.Next() {
		var (
			d      domain.DecisionRecord
			result []byte
		)
		if err := rows.Scan(
			&d.DecisionID, &d.Kind, &d.Provider, &d.TenantID, &d.UserID,
			&d.SubjectID, &d.Outcome, &d.RiskLevel, &d.RiskScore, &result,
			&d.DigitalSignature, &d.KeyVersion, &d.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Result = result
		decisions = append(decisions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decisions: %w", err)
	}

	return &domain.DecisionPage{
		Decisions:  decisions,
		TotalCount: totalCount,
		Page:       filter.Offset/filter.Limit + 1,
		PageSize:   filter.Limit,
		HasMore:    totalCount > int64(filter.Offset+filter.Limit),
	}, nil
}
