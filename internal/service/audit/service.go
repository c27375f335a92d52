package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type Service struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type LogOptions struct {
	Changes  interface{}
	Metadata interface{}
}

// Log creates an audit log entry for the caller found in ctx. A zero
// clinicID or entityID is stored as NULL.
func (s *Service) Log(ctx context.Context, clinicID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) error {
	var changes, metadata json.RawMessage
	var err error

	if opts != nil {
		if opts.Changes != nil {
			if changes, err = json.Marshal(opts.Changes); err != nil {
				return fmt.Errorf("failed to marshal audit changes: %w", err)
			}
		}
		if opts.Metadata != nil {
			if metadata, err = json.Marshal(opts.Metadata); err != nil {
				return fmt.Errorf("failed to marshal audit metadata: %w", err)
			}
		}
	}

	info := RequestInfoFrom(ctx)
	log := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     optionalID(info.UserID),
		ClinicID:   optionalID(clinicID),
		Action:     action,
		EntityType: entityType,
		EntityID:   optionalID(entityID),
		Changes:    changes,
		Metadata:   metadata,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filters *model.AuditLogFilters) ([]*model.AuditLog, int64, error) {
	return s.repo.List(ctx, filters)
}

// Cleanup removes entries older than the retention window.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteBefore(ctx, s.now().Add(-retention))
}

// Diff returns the before/after pair stored in the changes column.
func Diff(before, after interface{}) map[string]interface{} {
	return map[string]interface{}{"before": before, "after": after}
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
