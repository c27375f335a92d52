package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Service struct {
	tx        repository.TxManager
	repo      repository.ClientRepository
	validator validator.Validator
	auditor   *audit.Service
	now       func() time.Time
}

func NewService(tx repository.TxManager, repo repository.ClientRepository, v validator.Validator, auditor *audit.Service) *Service {
	return &Service{
		tx:        tx,
		repo:      repo,
		validator: v,
		auditor:   auditor,
		now:       time.Now,
	}
}

func (s *Service) CreateClient(ctx context.Context, clinicID uuid.UUID, req *model.CreateClientRequest) (*model.Client, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("client name is required")
	}
	if err := s.checkBirthDate(req.BirthDate); err != nil {
		return nil, err
	}

	client := &model.Client{
		ClinicID:  clinicID,
		Name:      name,
		Email:     normalizeEmail(req.Email),
		Phone:     req.Phone,
		Document:  req.Document,
		BirthDate: req.BirthDate,
		Gender:    req.Gender,
		Notes:     req.Notes,
		Status:    model.ClientStatusActive,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, client); err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionCreate, model.AuditEntityClient, client.ID, &audit.LogOptions{
			Changes: client,
		})
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) GetClient(ctx context.Context, clinicID, id uuid.UUID) (*model.Client, error) {
	return s.repo.Get(ctx, clinicID, id)
}

func (s *Service) UpdateClient(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateClientRequest) (*model.Client, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.checkBirthDate(req.BirthDate); err != nil {
		return nil, err
	}

	client, err := s.repo.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if client.Status == model.ClientStatusArchived {
		return nil, apperrors.Conflict("archived clients cannot be edited", nil)
	}
	before := *client

	if req.Name != nil {
		client.Name = strings.TrimSpace(*req.Name)
		if client.Name == "" {
			return nil, apperrors.Validation("client name is required")
		}
	}
	if req.Email != nil {
		client.Email = normalizeEmail(req.Email)
	}
	if req.Phone != nil {
		client.Phone = req.Phone
	}
	if req.Document != nil {
		client.Document = req.Document
	}
	if req.BirthDate != nil {
		client.BirthDate = req.BirthDate
	}
	if req.Gender != nil {
		client.Gender = req.Gender
	}
	if req.Notes != nil {
		client.Notes = req.Notes
	}
	if req.Status != nil {
		client.Status = *req.Status
	}
	client.UpdatedAt = s.now().UTC()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, client); err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityClient, id, &audit.LogOptions{
			Changes: audit.Diff(before, client),
		})
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient archives the client. History that references it is kept.
func (s *Service) DeleteClient(ctx context.Context, clinicID, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Archive(ctx, clinicID, id); err != nil {
			return err
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionDelete, model.AuditEntityClient, id, nil)
	})
}

func (s *Service) ListClients(ctx context.Context, filters *model.ClientFilters) ([]*model.Client, int64, error) {
	clients, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, total, nil
}

func (s *Service) checkBirthDate(d *time.Time) error {
	if d != nil && d.After(s.now()) {
		return apperrors.Validation("birth date cannot be in the future")
	}
	return nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if v == "" {
		return nil
	}
	return &v
}
