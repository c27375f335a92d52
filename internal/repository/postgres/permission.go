package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type permissionRepository struct {
	BaseRepository
}

func NewPermissionRepository(base BaseRepository) repository.PermissionRepository {
	return &permissionRepository{base}
}

// Grant inserts the pairs; pairs already held are left untouched.
func (r *permissionRepository) Grant(ctx context.Context, clinicUserID uuid.UUID, grants ...model.Grant) error {
	if len(grants) == 0 {
		return nil
	}

	var (
		values []string
		args   []interface{}
	)
	for _, g := range grants {
		n := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, NOW())", n+1, n+2, n+3, n+4))
		args = append(args, uuid.New(), clinicUserID, g.Module, g.Action)
	}

	query := `
		INSERT INTO permissions (id, clinic_user_id, module, action, created_at)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (clinic_user_id, module, action) DO NOTHING
	`
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "permission")
	}
	return nil
}

func (r *permissionRepository) Revoke(ctx context.Context, clinicUserID uuid.UUID, grant model.Grant) error {
	query := `DELETE FROM permissions WHERE clinic_user_id = $1 AND module = $2 AND action = $3`
	return r.execAffecting(ctx, "permission", query, clinicUserID, grant.Module, grant.Action)
}

func (r *permissionRepository) DeleteAll(ctx context.Context, clinicUserID uuid.UUID) error {
	if _, err := r.q(ctx).ExecContext(ctx, `DELETE FROM permissions WHERE clinic_user_id = $1`, clinicUserID); err != nil {
		return mapError(err, "permission")
	}
	return nil
}

func (r *permissionRepository) List(ctx context.Context, clinicUserID uuid.UUID) ([]model.Grant, error) {
	query := `
		SELECT module, action FROM permissions
		WHERE clinic_user_id = $1
		ORDER BY module, action
	`
	var grants []model.Grant
	if err := r.q(ctx).SelectContext(ctx, &grants, query, clinicUserID); err != nil {
		return nil, mapError(err, "permission")
	}
	return grants, nil
}
