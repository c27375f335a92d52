package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const outboxColumns = `id, event_type, payload, status, error_message, retry_count,
	retry_at, processed_at, created_at, updated_at`

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

// Create appends a pending event. Callers pass a ctx carrying the
// transaction that wrote the entity so both commit together.
func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || len(event.Payload) == 0 {
		return errors.New("outbox event requires a payload")
	}

	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt

	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.EventType, string(event.Payload), string(event.Status), event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEventsWithLock must run inside a transaction; the rows stay
// locked until it ends so concurrent workers skip them.
func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.q(ctx).SelectContext(ctx, &events, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE status IN ('pending', 'retry') AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.execAffecting(ctx, "outbox event", `
		UPDATE outbox_events
		SET status = 'processed', error_message = NULL, retry_at = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errMsg string, retryAt time.Time) error {
	return r.settle(ctx, id, model.OutboxStatusRetry, retryCount, errMsg, &retryAt)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	return r.settle(ctx, id, model.OutboxStatusFailed, retryCount, errMsg, nil)
}

// settle records an unsuccessful attempt. A nil retryAt clears the schedule.
func (r *outboxRepository) settle(ctx context.Context, id uuid.UUID, status model.OutboxStatus, retryCount int, errMsg string, retryAt *time.Time) error {
	return r.execAffecting(ctx, "outbox event", `
		UPDATE outbox_events
		SET status = $2, retry_count = $3, error_message = $4, retry_at = $5, updated_at = NOW()
		WHERE id = $1 AND status <> 'processed'`,
		id, string(status), retryCount, errMsg, retryAt)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.q(ctx).ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = 'processed' AND processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
