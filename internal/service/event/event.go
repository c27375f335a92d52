package event

import (
	"context"

	pkgevent "github.com/jwalitptl/clinic-api/pkg/event"
)

// Domain event types emitted by services rather than the HTTP tracker.
const (
	PaymentSucceeded       = "PAYMENT_SUCCEEDED"
	PaymentFailed          = "PAYMENT_FAILED"
	PaymentRefunded        = "PAYMENT_REFUNDED"
	SubscriptionChanged    = "SUBSCRIPTION_CHANGED"
	InvitationAccepted     = "INVITATION_ACCEPTED"
	AppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

// Emitter appends domain events to the outbox.
type Emitter interface {
	pkgevent.Recorder
	Emit(ctx context.Context, eventType string, payload interface{}) error
}
