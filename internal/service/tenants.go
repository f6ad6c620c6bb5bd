package service

import (
	"context"
	"errors"

	"github.com/banking/regional-compliance/internal/domain"
)

// ErrTenantNotFound marks a tenant with no jurisdiction configuration.
// Resolution treats it as an unconfigured tenant, not a failure.
var ErrTenantNotFound = errors.New("tenant not found")

// TenantResolver looks up a tenant's jurisdiction data
type TenantResolver interface {
	GetTenant(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
}

// StaticTenants resolves tenants from a fixed map keyed by tenant id
type StaticTenants map[string]domain.TenantConfig

func (s StaticTenants) GetTenant(_ context.Context, tenantID string) (*domain.TenantConfig, error) {
	cfg, ok := s[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cfg.TenantID = tenantID
	return &cfg, nil
}
