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

const appointmentColumns = `id, clinic_id, client_id, professional_id, service_id, start_time, end_time,
	status, notes, cancel_reason, cancelled_at, price_cents, created_by, created_at, updated_at`

// freeSlotStatuses is the SQL list of statuses that do not occupy a slot.
var freeSlotStatuses = func() string {
	var quoted []string
	for _, st := range model.AppointmentStatuses {
		if !st.HoldsSlot() {
			quoted = append(quoted, "'"+string(st)+"'")
		}
	}
	return strings.Join(quoted, ", ")
}()

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinic_id, client_id, professional_id, service_id,
			start_time, end_time, status, notes, price_cents,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	appointment.Base = model.NewBase()
	if appointment.Status == "" {
		appointment.Status = model.AppointmentStatusScheduled
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.ClientID,
		appointment.ProfessionalID,
		appointment.ServiceID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notes,
		appointment.PriceCents,
		appointment.CreatedBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "appointment")
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE clinic_id = $1 AND id = $2`

	var appointment model.Appointment
	if err := r.q(ctx).GetContext(ctx, &appointment, query, clinicID, id); err != nil {
		return nil, mapError(err, "appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments SET
			professional_id = $1, service_id = $2, start_time = $3, end_time = $4,
			notes = $5, price_cents = $6, updated_at = $7
		WHERE clinic_id = $8 AND id = $9
	`
	appointment.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "appointment", query,
		appointment.ProfessionalID,
		appointment.ServiceID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Notes,
		appointment.PriceCents,
		appointment.UpdatedAt,
		appointment.ClinicID,
		appointment.ID,
	)
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments SET
			status = $1, cancel_reason = $2, cancelled_at = $3, updated_at = $4
		WHERE clinic_id = $5 AND id = $6
	`
	appointment.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "appointment", query,
		appointment.Status,
		appointment.CancelReason,
		appointment.CancelledAt,
		appointment.UpdatedAt,
		appointment.ClinicID,
		appointment.ID,
	)
}

func (r *appointmentRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	query := `DELETE FROM appointments WHERE clinic_id = $1 AND id = $2`
	return r.execAffecting(ctx, "appointment", query, clinicID, id)
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	where := " WHERE clinic_id = $1"
	args := []interface{}{filters.ClinicID}

	if filters.ProfessionalID != nil {
		args = append(args, *filters.ProfessionalID)
		where += fmt.Sprintf(" AND professional_id = $%d", len(args))
	}
	if filters.ClientID != nil {
		args = append(args, *filters.ClientID)
		where += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		where += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		where += fmt.Sprintf(" AND start_time < $%d", len(args))
	}

	var total int64
	if err := r.q(ctx).GetContext(ctx, &total, "SELECT COUNT(*) FROM appointments"+where, args...); err != nil {
		return nil, 0, mapError(err, "appointment")
	}

	query := "SELECT " + appointmentColumns + " FROM appointments" + where + " ORDER BY start_time"
	query, args = paginate(query, args, filters.ListParams)

	var appointments []*model.Appointment
	if err := r.q(ctx).SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, mapError(err, "appointment")
	}
	return appointments, total, nil
}

// HasOverlap reports whether the professional holds an appointment that
// occupies its slot and intersects [start, end). Touching intervals do not
// overlap.
func (r *appointmentRepository) HasOverlap(ctx context.Context, clinicID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE clinic_id = $1
			AND professional_id = $2
			AND status NOT IN (` + freeSlotStatuses + `)
			AND start_time < $4
			AND end_time > $3
			AND ($5::uuid IS NULL OR id <> $5)
		)
	`
	var exists bool
	if err := r.q(ctx).GetContext(ctx, &exists, query, clinicID, professionalID, start, end, excludeID); err != nil {
		return false, fmt.Errorf("failed to check appointment overlap: %w", err)
	}
	return exists, nil
}
