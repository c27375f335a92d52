package financial

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/payment"
)

func (f *fixture) deliver(eventType, object string) error {
	payload := []byte(`{"raw":true}`)
	f.gateway.On("ParseWebhook", payload, "sig").
		Return(&payment.WebhookEvent{ID: "evt_1", Type: eventType, Object: []byte(object)}, nil).Once()
	return f.svc.HandleWebhook(context.Background(), payload, "sig")
}

func TestWebhookInvalidSignature(t *testing.T) {
	f := newFixture()
	f.gateway.On("ParseWebhook", mock.Anything, "bad").
		Return(nil, fmt.Errorf("%w: mismatch", payment.ErrInvalidSignature))

	err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "bad")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestWebhookIntentSucceeded(t *testing.T) {
	f := newFixture()
	p := settledPayment(f.clinic.ID)
	p.Status = model.PaymentStatusPending
	f.payments.On("GetByIntentID", mock.Anything, "pi_settled", true).Return(p, nil)
	f.payments.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(p *model.Payment) bool {
		return p.Status == model.PaymentStatusSucceeded && p.Method != nil && *p.Method == "card"
	})).Return(nil)

	err := f.deliver(EventIntentSucceeded, `{"id":"pi_settled","payment_method_types":["card"]}`)
	require.NoError(t, err)
	f.outbox.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		return e.EventType == event.PaymentSucceeded
	}))
}

func TestWebhookIntentFailedStoresMessage(t *testing.T) {
	f := newFixture()
	p := settledPayment(f.clinic.ID)
	p.Status = model.PaymentStatusRequiresAction
	f.payments.On("GetByIntentID", mock.Anything, "pi_settled", true).Return(p, nil)
	f.payments.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)

	err := f.deliver(EventIntentFailed, `{"id":"pi_settled","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, p.Status)
	assert.Equal(t, "Your card was declined.", *p.FailureMessage)
}

func TestWebhookRepeatedSuccessIsIgnored(t *testing.T) {
	f := newFixture()
	p := settledPayment(f.clinic.ID)
	f.payments.On("GetByIntentID", mock.Anything, "pi_settled", true).Return(p, nil)

	require.NoError(t, f.deliver(EventIntentSucceeded, `{"id":"pi_settled"}`))
	f.payments.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWebhookUnknownPaymentIsAcknowledged(t *testing.T) {
	f := newFixture()
	f.payments.On("GetByIntentID", mock.Anything, "pi_other", true).Return(nil, apperrors.NotFound("payment", nil))

	assert.NoError(t, f.deliver(EventIntentSucceeded, `{"id":"pi_other"}`))
}

func TestWebhookChargeRefunded(t *testing.T) {
	f := newFixture()
	p := settledPayment(f.clinic.ID)
	f.payments.On("GetByIntentID", mock.Anything, "pi_settled", true).Return(p, nil)
	f.payments.On("UpdateRefund", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.deliver(EventChargeRefunded, `{"id":"ch_1","payment_intent":"pi_settled","amount_refunded":3000}`))
	assert.Equal(t, int64(3000), p.RefundedCents)
	assert.Equal(t, model.PaymentStatusPartiallyRefunded, p.Status)
}

func TestWebhookChargeRefundAlreadyApplied(t *testing.T) {
	f := newFixture()
	p := settledPayment(f.clinic.ID)
	p.RefundedCents = 3000
	p.Status = model.PaymentStatusPartiallyRefunded
	f.payments.On("GetByIntentID", mock.Anything, "pi_settled", true).Return(p, nil)

	require.NoError(t, f.deliver(EventChargeRefunded, `{"payment_intent":"pi_settled","amount_refunded":3000}`))
	f.payments.AssertNotCalled(t, "UpdateRefund", mock.Anything, mock.Anything)
}

func TestWebhookSubscriptionDeleted(t *testing.T) {
	f := newFixture()
	subID, status := "sub_1", "active"
	f.clinic.SubscriptionID = &subID
	f.clinic.SubscriptionStatus = &status
	f.clinics.On("GetBySubscriptionID", mock.Anything, subID).Return(f.clinic, nil)
	f.clinics.On("UpdateBilling", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.deliver(EventSubscriptionDeleted, `{"id":"sub_1","status":"active"}`))
	assert.Equal(t, "canceled", *f.clinic.SubscriptionStatus)
	f.outbox.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		return e.EventType == event.SubscriptionChanged
	}))
}

func TestWebhookUnhandledTypeIsIgnored(t *testing.T) {
	f := newFixture()
	assert.NoError(t, f.deliver("invoice.created", `{"id":"in_1"}`))
}
