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

const userColumns = `id, email, name, password_hash, phone, status, failed_login_attempts,
	locked_until, last_login_at, mfa_enabled, mfa_secret, preferred_language, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, name, password_hash, phone, status,
			preferred_language, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	user.Base = model.NewBase()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Status == "" {
		user.Status = model.UserStatusActive
	}
	if user.PreferredLanguage == "" {
		user.PreferredLanguage = "en"
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Phone,
		user.Status,
		user.PreferredLanguage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "user")
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.q(ctx).GetContext(ctx, &user, query, id); err != nil {
		return nil, mapError(err, "user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user model.User
	if err := r.q(ctx).GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, mapError(err, "user")
	}
	return &user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			name = $1,
			phone = $2,
			preferred_language = $3,
			updated_at = $4
		WHERE id = $5
	`
	user.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "user", query,
		user.Name, user.Phone, user.PreferredLanguage, user.UpdatedAt, user.ID)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	return r.execAffecting(ctx, "user", query, passwordHash, id)
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = $1, locked_until = $2, updated_at = NOW()
		WHERE id = $3
	`
	return r.execAffecting(ctx, "user", query, attempts, lockedUntil, id)
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, last_login_at = $1, updated_at = NOW()
		WHERE id = $2
	`
	return r.execAffecting(ctx, "user", query, at, id)
}

func (r *userRepository) SetMFA(ctx context.Context, id uuid.UUID, enabled bool, secret *string) error {
	query := `UPDATE users SET mfa_enabled = $1, mfa_secret = $2, updated_at = NOW() WHERE id = $3`
	if err := r.execAffecting(ctx, "user", query, enabled, secret, id); err != nil {
		return fmt.Errorf("failed to update mfa: %w", err)
	}
	return nil
}
