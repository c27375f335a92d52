package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const memberSelect = `
	SELECT cu.id, cu.clinic_id, cu.user_id, cu.role, cu.status, cu.invited_by, cu.joined_at,
		cu.created_at, cu.updated_at, u.name, u.email
	FROM clinic_users cu
	JOIN users u ON u.id = cu.user_id
`

type memberRepository struct {
	BaseRepository
}

func NewMemberRepository(base BaseRepository) repository.MemberRepository {
	return &memberRepository{base}
}

func (r *memberRepository) Create(ctx context.Context, m *model.ClinicUser) error {
	query := `
		INSERT INTO clinic_users (
			id, clinic_id, user_id, role, status, invited_by, joined_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	m.Base = model.NewBase()
	m.JoinedAt = m.CreatedAt
	if m.Status == "" {
		m.Status = model.MemberStatusActive
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		m.ID, m.ClinicID, m.UserID, m.Role, m.Status, m.InvitedBy,
		m.JoinedAt, m.CreatedAt, m.UpdatedAt,
	)
	return mapError(err, "clinic member")
}

func (r *memberRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Member, error) {
	query := memberSelect + ` WHERE cu.clinic_id = $1 AND cu.id = $2`

	var m model.Member
	if err := r.q(ctx).GetContext(ctx, &m, query, clinicID, id); err != nil {
		return nil, mapError(err, "clinic member")
	}
	return &m, nil
}

func (r *memberRepository) GetByUser(ctx context.Context, clinicID, userID uuid.UUID) (*model.ClinicUser, error) {
	query := `
		SELECT id, clinic_id, user_id, role, status, invited_by, joined_at, created_at, updated_at
		FROM clinic_users
		WHERE clinic_id = $1 AND user_id = $2
	`
	var m model.ClinicUser
	if err := r.q(ctx).GetContext(ctx, &m, query, clinicID, userID); err != nil {
		return nil, mapError(err, "clinic member")
	}
	return &m, nil
}

func (r *memberRepository) ExistsByEmail(ctx context.Context, clinicID uuid.UUID, email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM clinic_users cu JOIN users u ON u.id = cu.user_id
			WHERE cu.clinic_id = $1 AND u.email = $2 AND cu.status = 'active'
		)
	`
	var exists bool
	if err := r.q(ctx).GetContext(ctx, &exists, query, clinicID, strings.ToLower(email)); err != nil {
		return false, mapError(err, "clinic member")
	}
	return exists, nil
}

func (r *memberRepository) List(ctx context.Context, filters *model.MemberFilters) ([]*model.Member, error) {
	query := memberSelect + ` WHERE cu.clinic_id = $1`
	args := []interface{}{filters.ClinicID}

	if filters.Role != "" {
		args = append(args, filters.Role)
		query += fmt.Sprintf(" AND cu.role = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND cu.status = $%d", len(args))
	}
	query += " ORDER BY u.name"

	var members []*model.Member
	if err := r.q(ctx).SelectContext(ctx, &members, query, args...); err != nil {
		return nil, mapError(err, "clinic member")
	}
	return members, nil
}

func (r *memberRepository) UpdateRole(ctx context.Context, clinicID, id uuid.UUID, role model.Role) error {
	query := `UPDATE clinic_users SET role = $1, updated_at = NOW() WHERE clinic_id = $2 AND id = $3`
	return r.execAffecting(ctx, "clinic member", query, role, clinicID, id)
}

func (r *memberRepository) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status string) error {
	query := `UPDATE clinic_users SET status = $1, updated_at = NOW() WHERE clinic_id = $2 AND id = $3`
	return r.execAffecting(ctx, "clinic member", query, status, clinicID, id)
}

func (r *memberRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	query := `DELETE FROM clinic_users WHERE clinic_id = $1 AND id = $2`
	return r.execAffecting(ctx, "clinic member", query, clinicID, id)
}

// CountActiveOwners locks the clinic's owner rows so concurrent demotions serialize.
func (r *memberRepository) CountActiveOwners(ctx context.Context, clinicID uuid.UUID) (int, error) {
	query := `
		SELECT id FROM clinic_users
		WHERE clinic_id = $1 AND role = 'owner' AND status = 'active'
		FOR UPDATE
	`
	var ids []uuid.UUID
	if err := r.q(ctx).SelectContext(ctx, &ids, query, clinicID); err != nil {
		return 0, mapError(err, "clinic member")
	}
	return len(ids), nil
}
