package member

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var errLastOwner = apperrors.Conflict("a clinic must keep at least one active owner", nil)

type Service struct {
	tx          repository.TxManager
	repo        repository.MemberRepository
	permissions *permission.Service
	auditor     *audit.Service
	now         func() time.Time
}

func NewService(tx repository.TxManager, repo repository.MemberRepository, permissions *permission.Service, auditor *audit.Service) *Service {
	return &Service{
		tx:          tx,
		repo:        repo,
		permissions: permissions,
		auditor:     auditor,
		now:         time.Now,
	}
}

func (s *Service) ListMembers(ctx context.Context, filters *model.MemberFilters) ([]*model.Member, error) {
	members, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *Service) GetMember(ctx context.Context, clinicID, id uuid.UUID) (*model.Member, error) {
	return s.repo.Get(ctx, clinicID, id)
}

// GetMembership resolves the caller's membership in a clinic.
func (s *Service) GetMembership(ctx context.Context, clinicID, userID uuid.UUID) (*model.ClinicUser, error) {
	return s.repo.GetByUser(ctx, clinicID, userID)
}

// UpdateMemberRole changes the role and resets permissions to the role defaults.
func (s *Service) UpdateMemberRole(ctx context.Context, clinicID, id uuid.UUID, role model.Role) (*model.Member, error) {
	if !model.IsValidRole(role) {
		return nil, apperrors.Validation(fmt.Sprintf("unknown role %q", role))
	}

	var member *model.Member
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if member, err = s.repo.Get(ctx, clinicID, id); err != nil {
			return err
		}
		if err := s.authorize(ctx, clinicID, member.Role, role); err != nil {
			return err
		}
		if member.Role == model.RoleOwner && role != model.RoleOwner {
			if err := s.ensureAnotherOwner(ctx, clinicID, &member.ClinicUser); err != nil {
				return err
			}
		}

		previous := member.Role
		if err := s.repo.UpdateRole(ctx, clinicID, id, role); err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}
		if err := s.permissions.ApplyRoleDefaults(ctx, id, role); err != nil {
			return err
		}
		member.Role = role
		member.UpdatedAt = s.now().UTC()

		return s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityMember, id, &audit.LogOptions{
			Changes: audit.Diff(map[string]model.Role{"role": previous}, map[string]model.Role{"role": role}),
		})
	})
	if err != nil {
		return nil, err
	}

	s.permissions.Invalidate(ctx, id)
	return member, nil
}

func (s *Service) DeactivateMember(ctx context.Context, clinicID, id uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		member, err := s.repo.Get(ctx, clinicID, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, clinicID, member.Role, member.Role); err != nil {
			return err
		}
		if err := s.ensureAnotherOwner(ctx, clinicID, &member.ClinicUser); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, clinicID, id, model.MemberStatusInactive); err != nil {
			return fmt.Errorf("failed to deactivate member: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityMember, id, &audit.LogOptions{
			Changes: audit.Diff(map[string]string{"status": member.Status}, map[string]string{"status": model.MemberStatusInactive}),
		})
	})
	if err != nil {
		return err
	}

	s.permissions.Invalidate(ctx, id)
	return nil
}

// RemoveMember deletes the membership; permissions cascade with it.
func (s *Service) RemoveMember(ctx context.Context, clinicID, id uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		member, err := s.repo.Get(ctx, clinicID, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, clinicID, member.Role, member.Role); err != nil {
			return err
		}
		if err := s.ensureAnotherOwner(ctx, clinicID, &member.ClinicUser); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, clinicID, id); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionDelete, model.AuditEntityMember, id, &audit.LogOptions{
			Changes: member,
		})
	})
	if err != nil {
		return err
	}

	s.permissions.Invalidate(ctx, id)
	return nil
}

// authorize checks that the caller's role can manage both the member's
// current role and the role being assigned.
func (s *Service) authorize(ctx context.Context, clinicID uuid.UUID, current, assigned model.Role) error {
	actor, err := s.repo.GetByUser(ctx, clinicID, audit.ActorID(ctx))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Forbidden("not a member of this clinic")
		}
		return fmt.Errorf("failed to resolve caller membership: %w", err)
	}
	if actor.Status != model.MemberStatusActive {
		return apperrors.Forbidden("membership is inactive")
	}
	if current == model.RoleOwner || assigned == model.RoleOwner {
		if actor.Role != model.RoleOwner {
			return apperrors.Forbidden("only owners can manage owner memberships")
		}
		return nil
	}
	if !actor.Role.CanManage(current) || !actor.Role.CanManage(assigned) {
		return apperrors.Forbidden("cannot manage a role above your own")
	}
	return nil
}

// ensureAnotherOwner fails when member is the clinic's only active owner.
// The owner count is read with a row lock so concurrent demotions serialize.
func (s *Service) ensureAnotherOwner(ctx context.Context, clinicID uuid.UUID, member *model.ClinicUser) error {
	if member.Role != model.RoleOwner || member.Status != model.MemberStatusActive {
		return nil
	}
	owners, err := s.repo.CountActiveOwners(ctx, clinicID)
	if err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}
	if owners <= 1 {
		return errLastOwner
	}
	return nil
}
