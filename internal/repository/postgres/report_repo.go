package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRepository is the durable compliance.ReportStore
type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// SaveReport upserts a report. A status change must be a forward transition.
func (r *ReportRepository) SaveReport(ctx context.Context, report *domain.ComplianceReport) error {
	payload, err := json.Marshal(report.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal report payload: %w", err)
	}
	ids := report.TransactionIDs
	if ids == nil {
		ids = []string{}
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current domain.ReportStatus
		err := tx.QueryRow(ctx,
			`SELECT status FROM compliance_reports WHERE report_id = $1 FOR UPDATE`,
			report.ReportID,
		).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to lock report: %w", err)
		case current != report.Status && !current.CanAdvanceTo(report.Status):
			return fmt.Errorf("report %s: status %s cannot follow %s", report.ReportID, report.Status, current)
		}

		const upsert = `
			INSERT INTO compliance_reports (
				report_id, report_type, provider, jurisdiction, user_id,
				transaction_ids, filing_date, period_start, period_end, status,
				payload, submitted_to, submitted_at, acknowledgment_number
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (report_id) DO UPDATE SET
				status = EXCLUDED.status,
				payload = EXCLUDED.payload,
				submitted_to = EXCLUDED.submitted_to,
				submitted_at = EXCLUDED.submitted_at,
				acknowledgment_number = EXCLUDED.acknowledgment_number
		`
		_, err = tx.Exec(ctx, upsert,
			report.ReportID, report.Type, report.Provider, report.Jurisdiction, report.UserID,
			ids, report.FilingDate, report.PeriodStart, report.PeriodEnd, report.Status,
			payload, report.SubmittedTo, report.SubmittedAt, report.AcknowledgmentNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		return nil
	})
}

func (r *ReportRepository) GetReport(ctx context.Context, reportID string) (*domain.ComplianceReport, error) {
	const query = `
		SELECT report_id, report_type, provider, jurisdiction, user_id,
			transaction_ids, filing_date, period_start, period_end, status,
			payload, submitted_to, submitted_at, acknowledgment_number
		FROM compliance_reports
		WHERE report_id = $1
	`
	var (
		rep     domain.ComplianceReport
		payload []byte
	)
	err := r.pool.QueryRow(ctx, query, reportID).Scan(
		&rep.ReportID, &rep.Type, &rep.Provider, &rep.Jurisdiction, &rep.UserID,
		&rep.TransactionIDs, &rep.FilingDate, &rep.PeriodStart, &rep.PeriodEnd, &rep.Status,
		&payload, &rep.SubmittedTo, &rep.SubmittedAt, &rep.AcknowledgmentNumber,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", compliance.ErrReportNotFound, reportID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	if err := json.Unmarshal(payload, &rep.Payload); err != nil {
		return nil, fmt.Errorf("report %s: failed to decode payload: %w", reportID, err)
	}
	return &rep, nil
}

// ReserveAcknowledgment binds ack to reportID unless one is bound already
func (r *ReportRepository) ReserveAcknowledgment(ctx context.Context, reportID, ack string) (compliance.Submission, error) {
	const insert = `
		INSERT INTO compliance_report_submissions (report_id, acknowledgment_number)
		VALUES ($1, $2)
		ON CONFLICT (report_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, reportID, ack); err != nil {
		return compliance.Submission{}, fmt.Errorf("failed to reserve acknowledgment: %w", err)
	}

	sub := compliance.Submission{ReportID: reportID}
	err := r.pool.QueryRow(ctx,
		`SELECT acknowledgment_number, filed_at FROM compliance_report_submissions WHERE report_id = $1`,
		reportID,
	).Scan(&sub.AcknowledgmentNumber, &sub.FiledAt)
	if err != nil {
		return compliance.Submission{}, fmt.Errorf("failed to read acknowledgment: %w", err)
	}
	return sub, nil
}

// MarkFiled records the first successful filing time
func (r *ReportRepository) MarkFiled(ctx context.Context, reportID string, at time.Time) (compliance.Submission, error) {
	const query = `
		UPDATE compliance_report_submissions
		SET filed_at = COALESCE(filed_at, $2)
		WHERE report_id = $1
		RETURNING acknowledgment_number, filed_at
	`
	sub := compliance.Submission{ReportID: reportID}
	err := r.pool.QueryRow(ctx, query, reportID, at).Scan(&sub.AcknowledgmentNumber, &sub.FiledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return compliance.Submission{}, fmt.Errorf("%w: no acknowledgment reserved for %s", compliance.ErrReportNotFound, reportID)
	}
	if err != nil {
		return compliance.Submission{}, fmt.Errorf("failed to mark report filed: %w", err)
	}
	return sub, nil
}
