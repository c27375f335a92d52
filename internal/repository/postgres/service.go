package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const serviceColumns = `id, clinic_id, name, description, duration_minutes, price_cents, status,
	created_at, updated_at`

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) Create(ctx context.Context, s *model.Service) error {
	query := `
		INSERT INTO services (
			id, clinic_id, name, description, duration_minutes, price_cents,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	s.Base = model.NewBase()
	if s.Status == "" {
		s.Status = model.ServiceStatusActive
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		s.ID, s.ClinicID, s.Name, s.Description, s.DurationMinutes, s.PriceCents,
		s.Status, s.CreatedAt, s.UpdatedAt,
	)
	return mapError(err, "service")
}

func (r *serviceRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE clinic_id = $1 AND id = $2`

	var s model.Service
	if err := r.q(ctx).GetContext(ctx, &s, query, clinicID, id); err != nil {
		return nil, mapError(err, "service")
	}
	return &s, nil
}

func (r *serviceRepository) Update(ctx context.Context, s *model.Service) error {
	query := `
		UPDATE services SET
			name = $1, description = $2, duration_minutes = $3, price_cents = $4,
			status = $5, updated_at = $6
		WHERE clinic_id = $7 AND id = $8
	`
	s.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "service", query,
		s.Name, s.Description, s.DurationMinutes, s.PriceCents,
		s.Status, s.UpdatedAt, s.ClinicID, s.ID,
	)
}

func (r *serviceRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	query := `DELETE FROM services WHERE clinic_id = $1 AND id = $2`
	return r.execAffecting(ctx, "service", query, clinicID, id)
}

func (r *serviceRepository) List(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int64, error) {
	where := " WHERE clinic_id = $1"
	args := []interface{}{filters.ClinicID}

	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.Search != "" {
		args = append(args, containsPattern(filters.Search))
		where += fmt.Sprintf(` AND name ILIKE $%d ESCAPE '\'`, len(args))
	}

	var total int64
	if err := r.q(ctx).GetContext(ctx, &total, "SELECT COUNT(*) FROM services"+where, args...); err != nil {
		return nil, 0, mapError(err, "service")
	}

	query := "SELECT " + serviceColumns + " FROM services" + where + " ORDER BY name"
	query, args = paginate(query, args, filters.ListParams)

	var services []*model.Service
	if err := r.q(ctx).SelectContext(ctx, &services, query, args...); err != nil {
		return nil, 0, mapError(err, "service")
	}
	return services, total, nil
}
