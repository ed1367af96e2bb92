package repo

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/auth_service/internal/models"
)

func (r *GormRepo) CreateTenant(ctx context.Context, t *models.Tenant) error {
	if err := r.DB.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// ListTenants returns one page ordered by id and the total tenant count.
func (r *GormRepo) ListTenants(ctx context.Context, page, size int) ([]models.Tenant, int64, error) {
	offset, limit := Page(page, size)

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Tenant{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	out := make([]models.Tenant, 0, limit)
	if err := r.DB.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	return out, total, nil
}
