package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// Service manages the procedures a clinic offers.
type Service struct {
	tx        repository.TxManager
	repo      repository.ServiceRepository
	validator validator.Validator
	auditor   *audit.Service
}

func NewService(tx repository.TxManager, repo repository.ServiceRepository, v validator.Validator, auditor *audit.Service) *Service {
	return &Service{tx: tx, repo: repo, validator: v, auditor: auditor}
}

func (s *Service) CreateService(ctx context.Context, clinicID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("service name is required")
	}

	svc := &model.Service{
		ClinicID:        clinicID,
		Name:            name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		Status:          model.ServiceStatusActive,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, svc); err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionCreate, model.AuditEntityService, svc.ID, &audit.LogOptions{
			Changes: svc,
		})
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) GetService(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error) {
	return s.repo.Get(ctx, clinicID, id)
}

// UpdateService changes the catalog entry. Existing appointments keep the
// price and end time they were booked with.
func (s *Service) UpdateService(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	svc, err := s.repo.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	before := *svc

	if req.Name != nil {
		svc.Name = strings.TrimSpace(*req.Name)
		if svc.Name == "" {
			return nil, apperrors.Validation("service name is required")
		}
	}
	if req.Description != nil {
		svc.Description = req.Description
	}
	if req.DurationMinutes != nil {
		svc.DurationMinutes = *req.DurationMinutes
	}
	if req.PriceCents != nil {
		svc.PriceCents = *req.PriceCents
	}
	if req.Status != nil {
		svc.Status = *req.Status
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, svc); err != nil {
			return fmt.Errorf("failed to update service: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityService, id, &audit.LogOptions{
			Changes: audit.Diff(before, svc),
		})
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) DeleteService(ctx context.Context, clinicID, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, clinicID, id); err != nil {
			return err
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionDelete, model.AuditEntityService, id, nil)
	})
}

func (s *Service) ListServices(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int64, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list services: %w", err)
	}
	return items, total, nil
}
