package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jwalitptl/clinic-api/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/payment"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL overrides the API endpoint; used against local fakes.
	BaseURL string
}

type Gateway struct {
	api           *client.API
	webhookSecret string
	cb            *circuitbreaker.CircuitBreaker
	metrics       *metrics.Metrics
}

func NewGateway(cfg Config, m *metrics.Metrics) *Gateway {
	var backends *stripe.Backends
	if cfg.BaseURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.BaseURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &Gateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "stripe",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			IsFailure:   isOutage,
		}),
		metrics: m,
	}
}

func (g *Gateway) CreateCustomer(ctx context.Context, p payment.CustomerParams) (*payment.Customer, error) {
	params := &stripe.CustomerParams{
		Name:  optional(p.Name),
		Email: optional(p.Email),
		Phone: optional(p.Phone),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	var cust *stripe.Customer
	err := g.call("create_customer", func() (err error) {
		cust, err = g.api.Customers.New(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &payment.Customer{ID: cust.ID}, nil
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, p payment.PaymentIntentParams) (*payment.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(p.AmountCents),
		Currency:    stripe.String(p.Currency),
		Customer:    optional(p.CustomerID),
		Description: optional(p.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	var pi *stripe.PaymentIntent
	err := g.call("create_payment_intent", func() (err error) {
		pi, err = g.api.PaymentIntents.New(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &payment.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *Gateway) Refund(ctx context.Context, p payment.RefundParams) (*payment.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(p.PaymentIntentID),
	}
	params.Context = ctx
	if p.AmountCents > 0 {
		params.Amount = stripe.Int64(p.AmountCents)
	}
	if p.Reason != "" {
		params.Reason = stripe.String(p.Reason)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	var r *stripe.Refund
	err := g.call("refund", func() (err error) {
		r, err = g.api.Refunds.New(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &payment.Refund{ID: r.ID, Status: string(r.Status), AmountCents: r.Amount}, nil
}

func (g *Gateway) CreateSubscription(ctx context.Context, p payment.SubscriptionParams) (*payment.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(p.PriceID)},
		},
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	var sub *stripe.Subscription
	err := g.call("create_subscription", func() (err error) {
		sub, err = g.api.Subscriptions.New(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toSubscription(sub), nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	var sub *stripe.Subscription
	err := g.call("cancel_subscription", func() (err error) {
		sub, err = g.api.Subscriptions.Cancel(subscriptionID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toSubscription(sub), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidSignature, err)
	}

	out := &payment.WebhookEvent{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data != nil {
		out.Object = evt.Data.Raw
	}
	return out, nil
}

func (g *Gateway) call(op string, fn func() error) error {
	start := time.Now()
	err := g.cb.Execute(fn)

	if g.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		g.metrics.GatewayRequests.WithLabelValues(op, status).Inc()
		g.metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return translateError(err)
	}
	return nil
}

func toSubscription(sub *stripe.Subscription) *payment.Subscription {
	return &payment.Subscription{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}

// translateError converts SDK and breaker errors into *payment.Error.
func translateError(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return &payment.Error{Kind: payment.KindUnavailable, Message: "payment processor unavailable", Err: err}
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return &payment.Error{Kind: payment.KindUnavailable, Message: err.Error(), Err: err}
	}

	pe := &payment.Error{Code: string(se.Code), Message: se.Msg, Err: err}
	if se.DeclineCode != "" {
		pe.Code = string(se.DeclineCode)
	}

	switch {
	case se.Type == stripe.ErrorTypeCard:
		pe.Kind = payment.KindCard
	case se.Type == stripe.ErrorTypeInvalidRequest:
		pe.Kind = payment.KindInvalidRequest
	case se.HTTPStatusCode == 0 || se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 429:
		pe.Kind = payment.KindUnavailable
	default:
		pe.Kind = payment.KindUnknown
	}
	return pe
}

// isOutage keeps card declines and bad requests from tripping the breaker.
func isOutage(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode == 0 || se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 429
	}
	return true
}

var _ payment.Gateway = (*Gateway)(nil)
