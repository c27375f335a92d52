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

const clientColumns = `id, clinic_id, name, email, phone, document, birth_date, gender, notes,
	status, payment_customer_id, created_at, updated_at`

type clientRepository struct {
	BaseRepository
}

func NewClientRepository(base BaseRepository) repository.ClientRepository {
	return &clientRepository{base}
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	query := `
		INSERT INTO clients (
			id, clinic_id, name, email, phone, document, birth_date,
			gender, notes, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	client.Base = model.NewBase()
	if client.Status == "" {
		client.Status = model.ClientStatusActive
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		client.ID,
		client.ClinicID,
		client.Name,
		client.Email,
		client.Phone,
		client.Document,
		client.BirthDate,
		client.Gender,
		client.Notes,
		client.Status,
		client.CreatedAt,
		client.UpdatedAt,
	)
	return mapError(err, "client")
}

func (r *clientRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE clinic_id = $1 AND id = $2`

	var client model.Client
	if err := r.q(ctx).GetContext(ctx, &client, query, clinicID, id); err != nil {
		return nil, mapError(err, "client")
	}
	return &client, nil
}

func (r *clientRepository) Update(ctx context.Context, client *model.Client) error {
	query := `
		UPDATE clients SET
			name = $1, email = $2, phone = $3, document = $4, birth_date = $5,
			gender = $6, notes = $7, status = $8, updated_at = $9
		WHERE clinic_id = $10 AND id = $11
	`
	client.UpdatedAt = time.Now().UTC()
	return r.execAffecting(ctx, "client", query,
		client.Name, client.Email, client.Phone, client.Document, client.BirthDate,
		client.Gender, client.Notes, client.Status, client.UpdatedAt,
		client.ClinicID, client.ID,
	)
}

func (r *clientRepository) Archive(ctx context.Context, clinicID, id uuid.UUID) error {
	query := `
		UPDATE clients SET status = 'archived', updated_at = NOW()
		WHERE clinic_id = $1 AND id = $2 AND status <> 'archived'
	`
	return r.execAffecting(ctx, "client", query, clinicID, id)
}

func (r *clientRepository) List(ctx context.Context, filters *model.ClientFilters) ([]*model.Client, int64, error) {
	where := " WHERE clinic_id = $1"
	args := []interface{}{filters.ClinicID}

	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	} else {
		where += " AND status <> 'archived'"
	}
	if filters.Search != "" {
		args = append(args, containsPattern(filters.Search))
		n := len(args)
		where += fmt.Sprintf(` AND (name ILIKE $%d ESCAPE '\' OR email ILIKE $%d ESCAPE '\' OR phone ILIKE $%d ESCAPE '\')`, n, n, n)
	}

	var total int64
	if err := r.q(ctx).GetContext(ctx, &total, "SELECT COUNT(*) FROM clients"+where, args...); err != nil {
		return nil, 0, mapError(err, "client")
	}

	query := "SELECT " + clientColumns + " FROM clients" + where + " ORDER BY name"
	query, args = paginate(query, args, filters.ListParams)

	var clients []*model.Client
	if err := r.q(ctx).SelectContext(ctx, &clients, query, args...); err != nil {
		return nil, 0, mapError(err, "client")
	}
	return clients, total, nil
}

func (r *clientRepository) SetPaymentCustomerID(ctx context.Context, clinicID, id uuid.UUID, customerID string) error {
	query := `UPDATE clients SET payment_customer_id = $1, updated_at = NOW() WHERE clinic_id = $2 AND id = $3`
	return r.execAffecting(ctx, "client", query, customerID, clinicID, id)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns a search term into an ILIKE pattern that matches
// the term literally anywhere in the column.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// paginate appends LIMIT/OFFSET placeholders when a page size is set.
func paginate(query string, args []interface{}, p model.ListParams) (string, []interface{}) {
	if p.Limit() <= 0 {
		return query, args
	}
	args = append(args, p.Limit(), p.Offset())
	return query + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
