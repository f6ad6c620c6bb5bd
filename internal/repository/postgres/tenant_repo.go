package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/banking/regional-compliance/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantRepository resolves tenant jurisdiction data
type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

// GetTenant returns service.ErrTenantNotFound for unknown tenants
func (r *TenantRepository) GetTenant(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	const query = `SELECT id, name, country, region, currency FROM tenants WHERE id = $1`

	var t domain.TenantConfig
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(&t.TenantID, &t.Name, &t.Country, &t.Region, &t.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", service.ErrTenantNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return &t, nil
}

// UpsertTenant creates or replaces a tenant
func (r *TenantRepository) UpsertTenant(ctx context.Context, t domain.TenantConfig) error {
	const query = `
		INSERT INTO tenants (id, name, country, region, currency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			region = EXCLUDED.region,
			currency = EXCLUDED.currency
	`
	if _, err := r.pool.Exec(ctx, query, t.TenantID, t.Name, t.Country, t.Region, t.Currency); err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}
	return nil
}
