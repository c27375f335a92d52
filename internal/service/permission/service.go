package permission

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/cache"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Checker answers permission questions for the authorization middleware.
type Checker interface {
	Check(ctx context.Context, member *model.ClinicUser, module model.Module, action model.Action) (bool, error)
}

type Service struct {
	tx         repository.TxManager
	repo       repository.PermissionRepository
	memberRepo repository.MemberRepository
	cache      *cache.Store
	auditor    *audit.Service
}

func NewService(tx repository.TxManager, repo repository.PermissionRepository, memberRepo repository.MemberRepository,
	store *cache.Store, auditor *audit.Service) *Service {
	return &Service{
		tx:         tx,
		repo:       repo,
		memberRepo: memberRepo,
		cache:      store,
		auditor:    auditor,
	}
}

// Check reports whether member holds (module, action). Owners always pass.
func (s *Service) Check(ctx context.Context, member *model.ClinicUser, module model.Module, action model.Action) (bool, error) {
	if member.Role == model.RoleOwner {
		return true, nil
	}
	set, err := s.Permissions(ctx, member.ID)
	if err != nil {
		return false, err
	}
	return set.Has(module, action), nil
}

// Permissions returns the grant set of a clinic user, served from cache when possible.
func (s *Service) Permissions(ctx context.Context, clinicUserID uuid.UUID) (model.PermissionSet, error) {
	key := clinicUserID.String()
	if cached, ok := s.cache.Get(key); ok {
		if set, ok := cached.(model.PermissionSet); ok {
			return set, nil
		}
	}

	grants, err := s.repo.List(ctx, clinicUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	set := model.NewPermissionSet(grants)
	s.cache.Set(key, set)
	return set, nil
}

func (s *Service) List(ctx context.Context, clinicID, memberID uuid.UUID) ([]model.Grant, error) {
	if _, err := s.memberRepo.Get(ctx, clinicID, memberID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, memberID)
}

// Grant is idempotent: granting a pair the member already holds succeeds.
func (s *Service) Grant(ctx context.Context, clinicID, memberID uuid.UUID, grant model.Grant) error {
	if err := validateGrant(grant); err != nil {
		return err
	}
	if _, err := s.memberRepo.Get(ctx, clinicID, memberID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Grant(ctx, memberID, grant); err != nil {
			return fmt.Errorf("failed to grant permission: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionCreate, model.AuditEntityPermission, memberID, &audit.LogOptions{
			Changes: grant,
		})
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, memberID)
	return nil
}

func (s *Service) Revoke(ctx context.Context, clinicID, memberID uuid.UUID, grant model.Grant) error {
	if err := validateGrant(grant); err != nil {
		return err
	}
	if _, err := s.memberRepo.Get(ctx, clinicID, memberID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Revoke(ctx, memberID, grant); err != nil {
			return fmt.Errorf("failed to revoke permission: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionDelete, model.AuditEntityPermission, memberID, &audit.LogOptions{
			Changes: grant,
		})
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, memberID)
	return nil
}

// Replace sets the member's grants to exactly grants.
func (s *Service) Replace(ctx context.Context, clinicID, memberID uuid.UUID, grants []model.Grant) error {
	for _, g := range grants {
		if err := validateGrant(g); err != nil {
			return err
		}
	}
	if _, err := s.memberRepo.Get(ctx, clinicID, memberID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.List(ctx, memberID)
		if err != nil {
			return fmt.Errorf("failed to load permissions: %w", err)
		}
		if err := s.replace(ctx, memberID, grants); err != nil {
			return err
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityPermission, memberID, &audit.LogOptions{
			Changes: audit.Diff(before, grants),
		})
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, memberID)
	return nil
}

// ApplyRoleDefaults resets a clinic user's grants to the defaults of role.
// It joins the caller's transaction and leaves cache invalidation to the caller.
func (s *Service) ApplyRoleDefaults(ctx context.Context, clinicUserID uuid.UUID, role model.Role) error {
	return s.replace(ctx, clinicUserID, model.DefaultGrants(role))
}

// Invalidate drops the cached grant set of a clinic user on every instance.
func (s *Service) Invalidate(ctx context.Context, clinicUserID uuid.UUID) {
	s.cache.Delete(ctx, clinicUserID.String())
}

func (s *Service) replace(ctx context.Context, clinicUserID uuid.UUID, grants []model.Grant) error {
	if err := s.repo.DeleteAll(ctx, clinicUserID); err != nil {
		return fmt.Errorf("failed to clear permissions: %w", err)
	}
	if len(grants) == 0 {
		return nil
	}
	if err := s.repo.Grant(ctx, clinicUserID, grants...); err != nil {
		return fmt.Errorf("failed to grant permissions: %w", err)
	}
	return nil
}

func validateGrant(g model.Grant) error {
	if !model.IsValidModule(g.Module) {
		return apperrors.Validation(fmt.Sprintf("unknown module %q", g.Module))
	}
	if !model.IsValidAction(g.Action) {
		return apperrors.Validation(fmt.Sprintf("unknown action %q", g.Action))
	}
	return nil
}
