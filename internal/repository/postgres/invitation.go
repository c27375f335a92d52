package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const invitationColumns = `id, clinic_id, email, role, token_hash, invited_by, expires_at,
	accepted_at, accepted_by, revoked_at, created_at, updated_at`

type invitationRepository struct {
	BaseRepository
}

func NewInvitationRepository(base BaseRepository) repository.InvitationRepository {
	return &invitationRepository{base}
}

func (r *invitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	query := `
		INSERT INTO invitations (
			id, clinic_id, email, role, token_hash, invited_by, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	inv.Base = model.NewBase()
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))

	_, err := r.q(ctx).ExecContext(ctx, query,
		inv.ID, inv.ClinicID, inv.Email, inv.Role, inv.TokenHash,
		inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt,
	)
	return mapError(err, "invitation")
}

func (r *invitationRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE clinic_id = $1 AND id = $2`

	var inv model.Invitation
	if err := r.q(ctx).GetContext(ctx, &inv, query, clinicID, id); err != nil {
		return nil, mapError(err, "invitation")
	}
	return &inv, nil
}

// GetByTokenHash loads an invitation by token hash. forUpdate locks the row
// and must be used inside a transaction.
func (r *invitationRepository) GetByTokenHash(ctx context.Context, tokenHash string, forUpdate bool) (*model.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_hash = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var inv model.Invitation
	if err := r.q(ctx).GetContext(ctx, &inv, query, tokenHash); err != nil {
		return nil, mapError(err, "invitation")
	}
	return &inv, nil
}

func (r *invitationRepository) List(ctx context.Context, filters *model.InvitationFilters) ([]*model.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE clinic_id = $1`
	args := []interface{}{filters.ClinicID}

	switch filters.Status {
	case model.InvitationStatusPending:
		query += " AND accepted_at IS NULL AND revoked_at IS NULL AND expires_at > NOW()"
	case model.InvitationStatusAccepted:
		query += " AND accepted_at IS NOT NULL"
	case model.InvitationStatusRevoked:
		query += " AND accepted_at IS NULL AND revoked_at IS NOT NULL"
	case model.InvitationStatusExpired:
		query += " AND accepted_at IS NULL AND revoked_at IS NULL AND expires_at <= NOW()"
	}
	query += " ORDER BY created_at DESC"

	var invitations []*model.Invitation
	if err := r.q(ctx).SelectContext(ctx, &invitations, query, args...); err != nil {
		return nil, mapError(err, "invitation")
	}
	return invitations, nil
}

// RevokePending revokes unaccepted invitations for the email in the clinic.
func (r *invitationRepository) RevokePending(ctx context.Context, clinicID uuid.UUID, email string, at time.Time) (int64, error) {
	query := `
		UPDATE invitations SET revoked_at = $1, updated_at = $1
		WHERE clinic_id = $2 AND lower(email) = lower($3)
		AND accepted_at IS NULL AND revoked_at IS NULL
	`
	result, err := r.q(ctx).ExecContext(ctx, query, at, clinicID, email)
	if err != nil {
		return 0, mapError(err, "invitation")
	}
	return result.RowsAffected()
}

func (r *invitationRepository) Revoke(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE invitations SET revoked_at = $1, updated_at = $1
		WHERE clinic_id = $2 AND id = $3 AND accepted_at IS NULL AND revoked_at IS NULL
	`
	return r.execAffecting(ctx, "invitation", query, at, clinicID, id)
}

func (r *invitationRepository) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE invitations SET accepted_at = $1, accepted_by = $2, updated_at = $1
		WHERE id = $3 AND accepted_at IS NULL
	`
	return r.execAffecting(ctx, "invitation", query, at, userID, id)
}

func (r *invitationRepository) UpdateToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE invitations SET token_hash = $1, expires_at = $2, revoked_at = NULL, updated_at = NOW()
		WHERE id = $3 AND accepted_at IS NULL
	`
	if err := r.execAffecting(ctx, "invitation", query, tokenHash, expiresAt, id); err != nil {
		return fmt.Errorf("failed to rotate invitation token: %w", err)
	}
	return nil
}

// DeleteExpiredBefore removes invitations that were never accepted and expired before cutoff.
func (r *invitationRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < $1`
	result, err := r.q(ctx).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, mapError(err, "invitation")
	}
	return result.RowsAffected()
}
