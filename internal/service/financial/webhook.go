package financial

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/payment"
)

// Processor event types applied to local rows.
const (
	EventIntentSucceeded     = "payment_intent.succeeded"
	EventIntentFailed        = "payment_intent.payment_failed"
	EventIntentCanceled      = "payment_intent.canceled"
	EventChargeRefunded      = "charge.refunded"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// HandleWebhook verifies and applies a processor notification. Events for
// unknown payments or subscriptions are acknowledged and ignored so the
// processor stops redelivering them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return apperrors.BadRequest("invalid webhook signature", err)
		}
		return fmt.Errorf("failed to parse webhook: %w", err)
	}

	logger := log.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()

	switch evt.Type {
	case EventIntentSucceeded:
		err = s.applyIntent(ctx, evt.Object, model.PaymentStatusSucceeded)
	case EventIntentFailed:
		err = s.applyIntent(ctx, evt.Object, model.PaymentStatusFailed)
	case EventIntentCanceled:
		err = s.applyIntent(ctx, evt.Object, model.PaymentStatusCanceled)
	case EventChargeRefunded:
		err = s.applyChargeRefund(ctx, evt.Object)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		err = s.applySubscription(ctx, evt.Object, evt.Type == EventSubscriptionDeleted)
	default:
		logger.Debug().Msg("ignoring webhook event")
		return nil
	}

	if apperrors.Is(err, apperrors.ErrNotFound) {
		logger.Warn().Err(err).Msg("webhook references unknown record")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info().Msg("webhook applied")
	return nil
}

func (s *Service) applyIntent(ctx context.Context, object []byte, status model.PaymentStatus) error {
	intentID := gjson.GetBytes(object, "id").String()
	if intentID == "" {
		return apperrors.BadRequest("webhook payload has no payment intent id", nil)
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Payments.GetByIntentID(ctx, intentID, true)
		if err != nil {
			return err
		}
		if !canApply(p.Status, status) {
			return nil
		}
		before := p.Status

		p.Status = status
		if method := gjson.GetBytes(object, "payment_method_types.0").String(); method != "" {
			p.Method = &method
		}
		if status == model.PaymentStatusFailed {
			msg := gjson.GetBytes(object, "last_payment_error.message").String()
			if msg == "" {
				msg = gjson.GetBytes(object, "last_payment_error.code").String()
			}
			if msg != "" {
				p.FailureMessage = &msg
			}
		}

		if err := s.repos.Payments.UpdateStatus(ctx, p); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		if err := s.auditor.Log(ctx, p.ClinicID, model.AuditActionUpdate, model.AuditEntityPayment, p.ID, &audit.LogOptions{
			Changes:  audit.Diff(map[string]interface{}{"status": before}, map[string]interface{}{"status": p.Status}),
			Metadata: map[string]string{"source": "webhook"},
		}); err != nil {
			return err
		}

		eventType := event.PaymentSucceeded
		switch status {
		case model.PaymentStatusFailed:
			eventType = event.PaymentFailed
		case model.PaymentStatusCanceled:
			return nil
		}
		return s.events.Emit(ctx, eventType, newPaymentEvent(p))
	})
}

// applyChargeRefund mirrors refunds issued outside the API, such as from the
// processor dashboard. The processor total is authoritative when higher.
func (s *Service) applyChargeRefund(ctx context.Context, object []byte) error {
	intentID := gjson.GetBytes(object, "payment_intent").String()
	refunded := gjson.GetBytes(object, "amount_refunded").Int()
	if intentID == "" {
		return apperrors.BadRequest("webhook payload has no payment intent id", nil)
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.repos.Payments.GetByIntentID(ctx, intentID, true)
		if err != nil {
			return err
		}
		if refunded <= p.RefundedCents {
			return nil
		}
		before := p.RefundedCents

		applyRefunded(p, refunded)
		if err := s.repos.Payments.UpdateRefund(ctx, p); err != nil {
			return fmt.Errorf("failed to update payment refund: %w", err)
		}
		if err := s.auditor.Log(ctx, p.ClinicID, model.AuditActionRefund, model.AuditEntityPayment, p.ID, &audit.LogOptions{
			Changes:  audit.Diff(map[string]int64{"refunded_cents": before}, map[string]int64{"refunded_cents": p.RefundedCents}),
			Metadata: map[string]string{"source": "webhook"},
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, event.PaymentRefunded, newPaymentEvent(p))
	})
}

func (s *Service) applySubscription(ctx context.Context, object []byte, deleted bool) error {
	subID := gjson.GetBytes(object, "id").String()
	status := gjson.GetBytes(object, "status").String()
	if deleted {
		status = "canceled"
	}
	if subID == "" || status == "" {
		return apperrors.BadRequest("webhook payload has no subscription state", nil)
	}

	clinic, err := s.repos.Clinics.GetBySubscriptionID(ctx, subID)
	if err != nil {
		return err
	}
	if clinic.SubscriptionStatus != nil && *clinic.SubscriptionStatus == status {
		return nil
	}
	before := *clinic
	clinic.SubscriptionStatus = &status

	return s.saveBilling(ctx, &before, clinic, &payment.Subscription{
		ID:               subID,
		Status:           status,
		CurrentPeriodEnd: gjson.GetBytes(object, "current_period_end").Int(),
	})
}

// canApply rejects stale or repeated intent notifications. Settled payments
// never move back to a pending or failed state.
func canApply(current, next model.PaymentStatus) bool {
	if current == next {
		return false
	}
	switch current {
	case model.PaymentStatusSucceeded, model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded, model.PaymentStatusCanceled:
		return false
	}
	return true
}
