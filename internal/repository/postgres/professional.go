package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const professionalColumns = `id, clinic_id, user_id, name, specialty, registration, email, phone,
	color, status, created_at, updated_at`

type professionalRepository struct {
	BaseRepository
}

func NewProfessionalRepository(base BaseRepository) repository.ProfessionalRepository {
	return &professionalRepository{base}
}

func (r *professionalRepository) Create(ctx context.Context, p *model.Professional) error {
	query := `
		INSERT INTO professionals (
			id, clinic_id, user_id, name, specialty, registration, email,
			phone, color, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	p.Base = model.NewBase()
	if p.Status == "" {
		p.Status = model.ProfessionalStatusActive
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		p.ID, p.ClinicID, p.UserID, p.Name, p.Specialty, p.Registration, p.Email,
		p.Phone, p.Color, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return mapError(err, "professional")
}

func (r *professionalRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Professional, error) {
	query := `SELECT ` + professionalColumns + ` FROM professionals WHERE clinic_id = $1 AND id = $2`

	var p model.Professional
	if err := r.q(ctx).GetContext(ctx, &p, query, clinicID, id); err != nil {
		return nil, mapError(err, "professional")
	}
	return &p, nil
}

func (r *professionalRepository) Update(ctx context.Context, p *model.Professional) error {
	query := `
		UPDATE professionals SET
			user_id = $1, name = $2, specialty = $3, registration = $4, email = $5,
			phone = $6, color = $7, status = $8, updated_at = $9
		WHERE clinic_id = $10 AND id = $11
	`
	p.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "professional", query,
		p.UserID, p.Name, p.Specialty, p.Registration, p.Email,
		p.Phone, p.Color, p.Status, p.UpdatedAt, p.ClinicID, p.ID,
	)
}

func (r *professionalRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	query := `DELETE FROM professionals WHERE clinic_id = $1 AND id = $2`
	return r.execAffecting(ctx, "professional", query, clinicID, id)
}

func (r *professionalRepository) List(ctx context.Context, filters *model.ProfessionalFilters) ([]*model.Professional, int64, error) {
	where := " WHERE clinic_id = $1"
	args := []interface{}{filters.ClinicID}

	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.Search != "" {
		args = append(args, containsPattern(filters.Search))
		n := len(args)
		where += fmt.Sprintf(` AND (name ILIKE $%d ESCAPE '\' OR specialty ILIKE $%d ESCAPE '\')`, n, n)
	}

	var total int64
	if err := r.q(ctx).GetContext(ctx, &total, "SELECT COUNT(*) FROM professionals"+where, args...); err != nil {
		return nil, 0, mapError(err, "professional")
	}

	query := "SELECT " + professionalColumns + " FROM professionals" + where + " ORDER BY name"
	query, args = paginate(query, args, filters.ListParams)

	var professionals []*model.Professional
	if err := r.q(ctx).SelectContext(ctx, &professionals, query, args...); err != nil {
		return nil, 0, mapError(err, "professional")
	}
	return professionals, total, nil
}

// Lock takes a row lock on the professional so bookings for them serialize.
func (r *professionalRepository) Lock(ctx context.Context, clinicID, id uuid.UUID) error {
	var locked uuid.UUID
	query := `SELECT id FROM professionals WHERE clinic_id = $1 AND id = $2 FOR UPDATE`
	if err := r.q(ctx).GetContext(ctx, &locked, query, clinicID, id); err != nil {
		return mapError(err, "professional")
	}
	return nil
}
