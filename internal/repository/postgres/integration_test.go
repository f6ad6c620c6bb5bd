//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/banking/regional-compliance/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "compliance_db",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/compliance_db?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "schema must be re-runnable")
	return pool
}

func TestRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := startPostgres(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	t.Run("tenants", func(t *testing.T) {
		repo := NewTenantRepository(pool)
		require.NoError(t, repo.UpsertTenant(ctx, domain.TenantConfig{
			TenantID: "bank-ca", Name: "Maple Bank", Country: "CA", Region: "north-america-central", Currency: "CAD",
		}))

		tenant, err := repo.GetTenant(ctx, "bank-ca")
		require.NoError(t, err)
		assert.Equal(t, "CA", tenant.Country)

		_, err = repo.GetTenant(ctx, "missing")
		assert.ErrorIs(t, err, service.ErrTenantNotFound)
	})

	t.Run("transactions", func(t *testing.T) {
		repo := NewTransactionRepository(pool)
		tx := domain.Transaction{
			ID: "tx-1", UserID: "user-1", Type: domain.TransactionDeposit,
			Amount: decimal.RequireFromString("9999.50"), Currency: "USD",
			Timestamp: now, Status: domain.TransactionCompleted,
		}
		require.NoError(t, repo.InsertTransaction(ctx, tx))
		require.NoError(t, repo.InsertTransaction(ctx, tx))

		txs, err := repo.LoadSince(ctx, "user-1", now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.True(t, txs[0].Amount.Equal(tx.Amount))
		assert.Equal(t, domain.TransactionDeposit, txs[0].Type)

		none, err := repo.LoadSince(ctx, "user-1", now.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("reports", func(t *testing.T) {
		repo := NewReportRepository(pool)
		report := &domain.ComplianceReport{
			ReportID: "SAR-US-1", Type: domain.ReportSAR, Provider: "usa-compliance", Jurisdiction: "US",
			UserID: "user-1", TransactionIDs: []string{"t1"}, FilingDate: now,
			PeriodStart: now.AddDate(0, 0, -1), PeriodEnd: now, Status: domain.ReportDraft,
			Payload: map[string]any{"reportType": "SAR"},
		}
		require.NoError(t, repo.SaveReport(ctx, report))

		first, err := repo.ReserveAcknowledgment(ctx, report.ReportID, "BSA-SAR-1")
		require.NoError(t, err)
		second, err := repo.ReserveAcknowledgment(ctx, report.ReportID, "BSA-SAR-2")
		require.NoError(t, err)
		assert.Equal(t, "BSA-SAR-1", second.AcknowledgmentNumber)
		assert.Nil(t, first.FiledAt)

		filed, err := repo.MarkFiled(ctx, report.ReportID, now)
		require.NoError(t, err)
		require.NotNil(t, filed.FiledAt)
		again, err := repo.MarkFiled(ctx, report.ReportID, now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, again.FiledAt.Equal(now))

		report.Status = domain.ReportSubmitted
		report.AcknowledgmentNumber = "BSA-SAR-1"
		require.NoError(t, repo.SaveReport(ctx, report))

		report.Status = domain.ReportDraft
		assert.Error(t, repo.SaveReport(ctx, report))

		stored, err := repo.GetReport(ctx, "SAR-US-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ReportSubmitted, stored.Status)
		assert.Equal(t, "SAR", stored.Payload["reportType"])

		_, err = repo.GetReport(ctx, "missing")
		assert.ErrorIs(t, err, compliance.ErrReportNotFound)
		_, err = repo.MarkFiled(ctx, "missing", now)
		assert.ErrorIs(t, err, compliance.ErrReportNotFound)
	})

	t.Run("decisions", func(t *testing.T) {
		repo := NewDecisionRepository(pool)
		rec := &domain.DecisionRecord{
			DecisionID: uuid.New(), Kind: domain.DecisionAML, Provider: "usa-compliance",
			UserID: "user-1", SubjectID: "tx-1", Outcome: "reject", RiskLevel: domain.RiskCritical,
			RiskScore: 80, Result: json.RawMessage(`{"passed":false}`),
			DigitalSignature: "sig", KeyVersion: 1, DecidedAt: now,
		}
		require.NoError(t, repo.AppendDecision(ctx, rec))

		kind := domain.DecisionAML
		page, err := repo.GetDecisions(ctx, domain.DecisionFilter{Kind: &kind, Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Decisions, 1)
		assert.Equal(t, int64(1), page.TotalCount)
		assert.JSONEq(t, `{"passed":false}`, string(page.Decisions[0].Result))

		_, err = pool.Exec(ctx, `UPDATE compliance_decisions SET outcome = 'approve'`)
		assert.Error(t, err)
	})
}
