package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Service writes events to the outbox table. When called with a ctx that
// carries a transaction, the event commits or rolls back with it.
type Service struct {
	outboxRepo repository.OutboxRepository
	now        func() time.Time
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{
		outboxRepo: outboxRepo,
		now:        time.Now,
	}
}

func (s *Service) Record(ctx context.Context, eventType string, payload []byte) error {
	now := s.now().UTC()
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return s.Record(ctx, eventType, payloadJSON)
}
