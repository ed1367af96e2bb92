package service

import (
	"context"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
)

type TenantService struct {
	Repo *repo.GormRepo
}

func (s *TenantService) Create(ctx context.Context, in TenantInput) (*models.Tenant, error) {
	l := logging.FromContext(ctx).With("svc", "tenant.create")

	in = in.normalized()
	if err := validateTenant(in); err != nil {
		l.Warn("tenant_create_failed", "status", 400, "error", err)
		return nil, err
	}

	t := &models.Tenant{Name: in.Name, Address: in.Address}
	if err := s.Repo.CreateTenant(ctx, t); err != nil {
		l.Error("tenant_create_failed", "status", 500, "error", err)
		return nil, err
	}
	l.Info("tenant_created", "tenant_id", t.ID)
	return t, nil
}

type TenantPage struct {
	Data        []models.Tenant `json:"data"`
	CurrentPage int             `json:"currentPage"`
	PerPage     int             `json:"perPage"`
	Total       int64           `json:"total"`
}

func (s *TenantService) List(ctx context.Context, page, size int) (*TenantPage, error) {
	list, total, err := s.Repo.ListTenants(ctx, page, size)
	if err != nil {
		logging.FromContext(ctx).Error("tenant_list_failed", "status", 500, "error", err)
		return nil, err
	}
	offset, limit := repo.Page(page, size)
	return &TenantPage{Data: list, CurrentPage: offset/limit + 1, PerPage: limit, Total: total}, nil
}
