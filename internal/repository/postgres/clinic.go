package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const clinicColumns = `id, name, slug, document, phone, email, timezone, currency, status, plan,
	payment_customer_id, subscription_id, subscription_status, created_at, updated_at`

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(base BaseRepository) repository.ClinicRepository {
	return &clinicRepository{base}
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (
			id, name, slug, document, phone, email, timezone, currency,
			status, plan, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	clinic.Base = model.NewBase()

	_, err := r.q(ctx).ExecContext(ctx, query,
		clinic.ID,
		clinic.Name,
		clinic.Slug,
		clinic.Document,
		clinic.Phone,
		clinic.Email,
		clinic.Timezone,
		clinic.Currency,
		clinic.Status,
		clinic.Plan,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	return mapError(err, "clinic")
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1`

	var clinic model.Clinic
	if err := r.q(ctx).GetContext(ctx, &clinic, query, id); err != nil {
		return nil, mapError(err, "clinic")
	}
	return &clinic, nil
}

func (r *clinicRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.q(ctx).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM clinics WHERE slug = $1)`, slug)
	if err != nil {
		return false, mapError(err, "clinic")
	}
	return exists, nil
}

func (r *clinicRepository) Update(ctx context.Context, clinic *model.Clinic) error {
	query := `
		UPDATE clinics SET
			name = $1, document = $2, phone = $3, email = $4,
			timezone = $5, currency = $6, updated_at = $7
		WHERE id = $8
	`
	clinic.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "clinic", query,
		clinic.Name, clinic.Document, clinic.Phone, clinic.Email,
		clinic.Timezone, clinic.Currency, clinic.UpdatedAt, clinic.ID,
	)
}

func (r *clinicRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE clinics SET status = $1, updated_at = NOW() WHERE id = $2`
	return r.execAffecting(ctx, "clinic", query, status, id)
}

func (r *clinicRepository) UpdateBilling(ctx context.Context, clinic *model.Clinic) error {
	query := `
		UPDATE clinics SET
			plan = $1, payment_customer_id = $2, subscription_id = $3,
			subscription_status = $4, updated_at = $5
		WHERE id = $6
	`
	clinic.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "clinic", query,
		clinic.Plan, clinic.PaymentCustomerID, clinic.SubscriptionID,
		clinic.SubscriptionStatus, clinic.UpdatedAt, clinic.ID,
	)
}

func (r *clinicRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE subscription_id = $1`

	var clinic model.Clinic
	if err := r.q(ctx).GetContext(ctx, &clinic, query, subscriptionID); err != nil {
		return nil, mapError(err, "clinic")
	}
	return &clinic, nil
}

func (r *clinicRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.ClinicMembership, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.document, c.phone, c.email, c.timezone, c.currency,
			c.status, c.plan, c.payment_customer_id, c.subscription_id, c.subscription_status,
			c.created_at, c.updated_at, cu.id AS clinic_user_id, cu.role
		FROM clinics c
		JOIN clinic_users cu ON cu.clinic_id = c.id
		WHERE cu.user_id = $1 AND cu.status = 'active'
		ORDER BY c.name
	`
	var clinics []*model.ClinicMembership
	if err := r.q(ctx).SelectContext(ctx, &clinics, query, userID); err != nil {
		return nil, mapError(err, "clinic")
	}
	return clinics, nil
}
