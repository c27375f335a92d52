package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const auditColumns = `id, user_id, clinic_id, action, entity_type, entity_id, changes, metadata,
	ip_address, user_agent, created_at`

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, clinic_id, action, entity_type, entity_id,
			changes, metadata, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.ClinicID,
		log.Action,
		log.EntityType,
		log.EntityID,
		nullJSON(log.Changes),
		nullJSON(log.Metadata),
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters *model.AuditLogFilters) ([]*model.AuditLog, int64, error) {
	where := " WHERE clinic_id = $1"
	args := []interface{}{filters.ClinicID}

	if filters.UserID != nil {
		args = append(args, *filters.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filters.EntityType != "" {
		args = append(args, filters.EntityType)
		where += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filters.EntityID != nil {
		args = append(args, *filters.EntityID)
		where += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filters.Action != "" {
		args = append(args, filters.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}
	where, args = timeRange(where, args, "created_at", filters.From, filters.To)

	var total int64
	if err := r.q(ctx).GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := "SELECT " + auditColumns + " FROM audit_logs" + where + " ORDER BY created_at DESC"
	query, args = paginate(query, args, filters.ListParams)

	var logs []*model.AuditLog
	if err := r.q(ctx).SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM audit_logs WHERE created_at < $1`

	result, err := r.q(ctx).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}

// nullJSON keeps empty documents as SQL NULL.
func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
