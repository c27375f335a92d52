package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned for webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Gateway is the hosted payment processor. Amounts are in minor units.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error)
	Refund(ctx context.Context, params RefundParams) (*Refund, error)
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

type CustomerParams struct {
	Name     string
	Email    string
	Phone    string
	Metadata map[string]string
}

type Customer struct {
	ID string
}

type PaymentIntentParams struct {
	AmountCents    int64
	Currency       string
	CustomerID     string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
}

type RefundParams struct {
	PaymentIntentID string
	AmountCents     int64
	Reason          string
	IdempotencyKey  string
}

type Refund struct {
	ID          string
	Status      string
	AmountCents int64
}

type SubscriptionParams struct {
	CustomerID     string
	PriceID        string
	IdempotencyKey string
	Metadata       map[string]string
}

type Subscription struct {
	ID               string
	Status           string
	CurrentPeriodEnd int64
}

// WebhookEvent is a verified processor notification. Object holds the raw
// JSON of the affected resource.
type WebhookEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

type ErrorKind string

const (
	KindCard           ErrorKind = "card"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindUnavailable    ErrorKind = "unavailable"
	KindUnknown        ErrorKind = "unknown"
)

// Error is a processor failure translated out of the SDK's error type.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment %s error (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("payment %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
