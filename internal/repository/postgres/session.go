package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const sessionColumns = `id, user_id, token_hash, ip_address, user_agent, expires_at,
	revoked_at, last_seen_at, created_at, updated_at`

type sessionRepository struct {
	BaseRepository
}

func NewSessionRepository(base BaseRepository) repository.SessionRepository {
	return &sessionRepository{base}
}

func (r *sessionRepository) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (
			id, user_id, token_hash, ip_address, user_agent,
			expires_at, last_seen_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	s.Base = model.NewBase()
	s.LastSeenAt = s.CreatedAt

	_, err := r.q(ctx).ExecContext(ctx, query,
		s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent,
		s.ExpiresAt, s.LastSeenAt, s.CreatedAt, s.UpdatedAt,
	)
	return mapError(err, "session")
}

func (r *sessionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	var s model.Session
	if err := r.q(ctx).GetContext(ctx, &s, query, id); err != nil {
		return nil, mapError(err, "session")
	}
	return &s, nil
}

func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1`

	var s model.Session
	if err := r.q(ctx).GetContext(ctx, &s, query, tokenHash); err != nil {
		return nil, mapError(err, "session")
	}
	return &s, nil
}

func (r *sessionRepository) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY last_seen_at DESC
	`
	var sessions []*model.Session
	if err := r.q(ctx).SelectContext(ctx, &sessions, query, userID, now); err != nil {
		return nil, mapError(err, "session")
	}
	return sessions, nil
}

func (r *sessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE sessions SET last_seen_at = $1 WHERE id = $2`
	return r.execAffecting(ctx, "session", query, at, id)
}

func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE sessions SET revoked_at = $1, updated_at = $1
		WHERE id = $2 AND revoked_at IS NULL
	`
	return r.execAffecting(ctx, "session", query, at, id)
}

// RevokeAllForUser revokes every live session of the user except one and
// returns the revoked IDs.
func (r *sessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, except *uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE sessions SET revoked_at = $1, updated_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL
		AND ($3::uuid IS NULL OR id <> $3)
		RETURNING id
	`
	var ids []uuid.UUID
	if err := r.q(ctx).SelectContext(ctx, &ids, query, at, userID, except); err != nil {
		return nil, mapError(err, "session")
	}
	return ids, nil
}

func (r *sessionRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)
	`
	result, err := r.q(ctx).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, mapError(err, "session")
	}
	return result.RowsAffected()
}
