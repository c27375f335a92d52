package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	RetryDelay   time.Duration
	MaxRetries   int
}

// OutboxProcessor publishes pending outbox events to the broker. Several
// processors may run side by side; row locks keep them off each other's batch.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	tx      repository.TxManager
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	tx repository.TxManager,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("outbox batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("outbox poll interval must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("outbox retry delay must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return nil, fmt.Errorf("outbox max retries must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		tx:      tx,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor", "batch_size", p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox events")
			}
		}
	}
}

// ProcessBatch publishes one batch inside a single transaction and reports
// how many events were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	delivered := 0
	err := p.tx.RunInTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
			return err
		}
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

		for _, evt := range events {
			ok, err := p.processEvent(ctx, evt)
			if err != nil {
				return err
			}
			if ok {
				delivered++
			}
		}
		return nil
	})
	if err != nil {
		return delivered, fmt.Errorf("failed to process outbox batch: %w", err)
	}
	return delivered, nil
}

// processEvent returns an error only when the event status could not be
// written back; a failed publish is recorded on the row instead.
func (p *OutboxProcessor) processEvent(ctx context.Context, evt *model.OutboxEvent) (bool, error) {
	msg := messaging.Message{
		ID:      evt.ID.String(),
		Type:    evt.EventType,
		Payload: evt.Payload,
	}

	if pubErr := p.broker.Publish(ctx, messaging.EventsChannel, msg); pubErr != nil {
		attempt := evt.RetryCount + 1
		p.metrics.OutboxRetries.WithLabelValues(evt.EventType).Inc()

		if attempt >= p.config.MaxRetries {
			p.metrics.OutboxEventsFailed.Inc()
			p.logger.Error(pubErr, "giving up on outbox event",
				"event_id", evt.ID.String(),
				"event_type", evt.EventType,
				"attempts", attempt)
			return false, p.repo.MarkFailed(ctx, evt.ID, attempt, pubErr.Error())
		}

		retryAt := p.now().Add(time.Duration(attempt) * p.config.RetryDelay)
		p.logger.Warn("outbox publish failed, scheduling retry",
			"event_id", evt.ID.String(),
			"attempt", attempt,
			"retry_at", retryAt,
			"error", pubErr.Error())
		return false, p.repo.MarkRetry(ctx, evt.ID, attempt, pubErr.Error(), retryAt)
	}

	if err := p.repo.MarkProcessed(ctx, evt.ID); err != nil {
		return false, err
	}
	p.metrics.OutboxEventsProcessed.Inc()
	p.metrics.OutboxEventLag.WithLabelValues(evt.EventType).Observe(p.now().Sub(evt.CreatedAt).Seconds())
	return true, nil
}
