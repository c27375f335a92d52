package professional

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

type Service struct {
	tx         repository.TxManager
	repo       repository.ProfessionalRepository
	memberRepo repository.MemberRepository
	validator  validator.Validator
	auditor    *audit.Service
}

func NewService(tx repository.TxManager, repo repository.ProfessionalRepository, memberRepo repository.MemberRepository, v validator.Validator, auditor *audit.Service) *Service {
	return &Service{
		tx:         tx,
		repo:       repo,
		memberRepo: memberRepo,
		validator:  v,
		auditor:    auditor,
	}
}

func (s *Service) CreateProfessional(ctx context.Context, clinicID uuid.UUID, req *model.CreateProfessionalRequest) (*model.Professional, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("professional name is required")
	}
	if err := s.checkMember(ctx, clinicID, req.UserID); err != nil {
		return nil, err
	}

	p := &model.Professional{
		ClinicID:     clinicID,
		UserID:       req.UserID,
		Name:         name,
		Specialty:    req.Specialty,
		Registration: req.Registration,
		Email:        req.Email,
		Phone:        req.Phone,
		Color:        req.Color,
		Status:       model.ProfessionalStatusActive,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create professional: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionCreate, model.AuditEntityProfessional, p.ID, &audit.LogOptions{
			Changes: p,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProfessional(ctx context.Context, clinicID, id uuid.UUID) (*model.Professional, error) {
	return s.repo.Get(ctx, clinicID, id)
}

func (s *Service) UpdateProfessional(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateProfessionalRequest) (*model.Professional, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	p, err := s.repo.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	before := *p

	if req.UserID != nil {
		if err := s.checkMember(ctx, clinicID, req.UserID); err != nil {
			return nil, err
		}
		p.UserID = req.UserID
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
		if p.Name == "" {
			return nil, apperrors.Validation("professional name is required")
		}
	}
	if req.Specialty != nil {
		p.Specialty = req.Specialty
	}
	if req.Registration != nil {
		p.Registration = req.Registration
	}
	if req.Email != nil {
		p.Email = req.Email
	}
	if req.Phone != nil {
		p.Phone = req.Phone
	}
	if req.Color != nil {
		p.Color = req.Color
	}
	if req.Status != nil {
		p.Status = *req.Status
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update professional: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityProfessional, id, &audit.LogOptions{
			Changes: audit.Diff(before, p),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteProfessional(ctx context.Context, clinicID, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, clinicID, id); err != nil {
			return err
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionDelete, model.AuditEntityProfessional, id, nil)
	})
}

func (s *Service) ListProfessionals(ctx context.Context, filters *model.ProfessionalFilters) ([]*model.Professional, int64, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list professionals: %w", err)
	}
	return items, total, nil
}

// checkMember requires a linked user to belong to the clinic.
func (s *Service) checkMember(ctx context.Context, clinicID uuid.UUID, userID *uuid.UUID) error {
	if userID == nil {
		return nil
	}
	if _, err := s.memberRepo.GetByUser(ctx, clinicID, *userID); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Validation("linked user is not a member of this clinic")
		}
		return err
	}
	return nil
}
