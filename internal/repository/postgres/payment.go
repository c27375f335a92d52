package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const paymentColumns = `id, clinic_id, client_id, appointment_id, amount_cents, currency, status, method,
	provider_intent_id, refunded_cents, description, failure_message, created_by, created_at, updated_at`

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(base BaseRepository) repository.PaymentRepository {
	return &paymentRepository{base}
}

func (r *paymentRepository) Create(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (
			id, clinic_id, client_id, appointment_id, amount_cents, currency, status,
			provider_intent_id, description, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	p.Base = model.NewBase()

	_, err := r.q(ctx).ExecContext(ctx, query,
		p.ID, p.ClinicID, p.ClientID, p.AppointmentID, p.AmountCents, p.Currency, p.Status,
		p.ProviderIntentID, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	return mapError(err, "payment")
}

func (r *paymentRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE clinic_id = $1 AND id = $2`

	var p model.Payment
	if err := r.q(ctx).GetContext(ctx, &p, query, clinicID, id); err != nil {
		return nil, mapError(err, "payment")
	}
	return &p, nil
}

func (r *paymentRepository) GetByIntentID(ctx context.Context, intentID string, forUpdate bool) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_intent_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var p model.Payment
	if err := r.q(ctx).GetContext(ctx, &p, query, intentID); err != nil {
		return nil, mapError(err, "payment")
	}
	return &p, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, p *model.Payment) error {
	query := `
		UPDATE payments SET status = $1, method = $2, failure_message = $3, updated_at = $4
		WHERE id = $5
	`
	p.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "payment", query, p.Status, p.Method, p.FailureMessage, p.UpdatedAt, p.ID)
}

func (r *paymentRepository) UpdateRefund(ctx context.Context, p *model.Payment) error {
	query := `
		UPDATE payments SET refunded_cents = $1, status = $2, updated_at = $3
		WHERE id = $4
	`
	p.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "payment", query, p.RefundedCents, p.Status, p.UpdatedAt, p.ID)
}

func (r *paymentRepository) List(ctx context.Context, filters *model.PaymentFilters) ([]*model.Payment, int64, error) {
	where := " WHERE clinic_id = $1"
	args := []interface{}{filters.ClinicID}

	if filters.ClientID != nil {
		args = append(args, *filters.ClientID)
		where += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filters.AppointmentID != nil {
		args = append(args, *filters.AppointmentID)
		where += fmt.Sprintf(" AND appointment_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	where, args = timeRange(where, args, "created_at", filters.From, filters.To)

	var total int64
	if err := r.q(ctx).GetContext(ctx, &total, "SELECT COUNT(*) FROM payments"+where, args...); err != nil {
		return nil, 0, mapError(err, "payment")
	}

	query := "SELECT " + paymentColumns + " FROM payments" + where + " ORDER BY created_at DESC"
	query, args = paginate(query, args, filters.ListParams)

	var payments []*model.Payment
	if err := r.q(ctx).SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, mapError(err, "payment")
	}
	return payments, total, nil
}

// Summary totals captured and refunded cents over [from, to), grouped by
// currency since amounts in different currencies cannot be added.
func (r *paymentRepository) Summary(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) (*model.FinancialSummary, error) {
	where := " WHERE clinic_id = $1 AND status IN ('succeeded', 'partially_refunded', 'refunded')"
	args := []interface{}{clinicID}
	where, args = timeRange(where, args, "created_at", from, to)

	query := `
		SELECT
			currency,
			COALESCE(SUM(amount_cents), 0) AS succeeded_cents,
			COALESCE(SUM(refunded_cents), 0) AS refunded_cents,
			COUNT(*) AS payment_count
		FROM payments` + where + `
		GROUP BY currency
		ORDER BY currency`

	var totals []model.CurrencyTotal
	if err := r.q(ctx).SelectContext(ctx, &totals, query, args...); err != nil {
		return nil, mapError(err, "payment")
	}
	for i := range totals {
		totals[i].NetCents = totals[i].SucceededCents - totals[i].RefundedCents
	}
	return &model.FinancialSummary{From: from, To: to, Totals: totals}, nil
}

func timeRange(where string, args []interface{}, column string, from, to *time.Time) (string, []interface{}) {
	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND %s >= $%d", column, len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND %s < $%d", column, len(args))
	}
	return where, args
}
