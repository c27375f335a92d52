package financial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/payment"
)

// Subscription states that still bill the clinic.
var liveSubscription = map[string]bool{
	"active":   true,
	"trialing": true,
	"past_due": true,
	"unpaid":   true,
}

type subscriptionEvent struct {
	ClinicID         uuid.UUID  `json:"clinic_id"`
	SubscriptionID   string     `json:"subscription_id"`
	Status           string     `json:"status"`
	Plan             string     `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// Subscribe starts a platform subscription for the clinic.
func (s *Service) Subscribe(ctx context.Context, clinicID uuid.UUID, req *model.SubscribeRequest) (*model.Clinic, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	clinic, err := s.repos.Clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if clinic.SubscriptionID != nil && clinic.SubscriptionStatus != nil && liveSubscription[*clinic.SubscriptionStatus] {
		return nil, apperrors.Conflict("clinic already has an active subscription", nil)
	}
	before := *clinic

	if clinic.PaymentCustomerID == nil || *clinic.PaymentCustomerID == "" {
		params := payment.CustomerParams{
			Name:     clinic.Name,
			Metadata: map[string]string{"clinic_id": clinicID.String()},
		}
		if clinic.Email != nil {
			params.Email = *clinic.Email
		}
		if clinic.Phone != nil {
			params.Phone = *clinic.Phone
		}
		customer, err := s.gateway.CreateCustomer(ctx, params)
		if err != nil {
			return nil, s.gatewayError(ctx, err)
		}
		clinic.PaymentCustomerID = &customer.ID
		// Stored right away so a failed subscription does not orphan the customer.
		if err := s.repos.Clinics.UpdateBilling(ctx, clinic); err != nil {
			return nil, fmt.Errorf("failed to store payment customer: %w", err)
		}
	}

	sub, err := s.gateway.CreateSubscription(ctx, payment.SubscriptionParams{
		CustomerID:     *clinic.PaymentCustomerID,
		PriceID:        req.PriceID,
		IdempotencyKey: "sub:" + clinicID.String() + ":" + s.newKey(),
		Metadata:       map[string]string{"clinic_id": clinicID.String()},
	})
	if err != nil {
		return nil, s.gatewayError(ctx, err)
	}

	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		plan = req.PriceID
	}
	clinic.Plan = plan
	clinic.SubscriptionID = &sub.ID
	clinic.SubscriptionStatus = &sub.Status

	if err := s.saveBilling(ctx, &before, clinic, sub); err != nil {
		return nil, err
	}
	return clinic, nil
}

// CancelSubscription ends the clinic's subscription immediately.
func (s *Service) CancelSubscription(ctx context.Context, clinicID uuid.UUID) (*model.Clinic, error) {
	clinic, err := s.repos.Clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if clinic.SubscriptionID == nil || clinic.SubscriptionStatus == nil || !liveSubscription[*clinic.SubscriptionStatus] {
		return nil, apperrors.Conflict("clinic has no active subscription", nil)
	}
	before := *clinic

	sub, err := s.gateway.CancelSubscription(ctx, *clinic.SubscriptionID)
	if err != nil {
		return nil, s.gatewayError(ctx, err)
	}
	clinic.SubscriptionStatus = &sub.Status

	if err := s.saveBilling(ctx, &before, clinic, sub); err != nil {
		return nil, err
	}
	return clinic, nil
}

func (s *Service) saveBilling(ctx context.Context, before, clinic *model.Clinic, sub *payment.Subscription) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Clinics.UpdateBilling(ctx, clinic); err != nil {
			return fmt.Errorf("failed to update clinic billing: %w", err)
		}
		if err := s.auditor.Log(ctx, clinic.ID, model.AuditActionUpdate, model.AuditEntitySubscription, clinic.ID, &audit.LogOptions{
			Changes: audit.Diff(billingView(before), billingView(clinic)),
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, event.SubscriptionChanged, newSubscriptionEvent(clinic, sub))
	})
}

func newSubscriptionEvent(clinic *model.Clinic, sub *payment.Subscription) subscriptionEvent {
	evt := subscriptionEvent{ClinicID: clinic.ID, Plan: clinic.Plan}
	if clinic.SubscriptionID != nil {
		evt.SubscriptionID = *clinic.SubscriptionID
	}
	if clinic.SubscriptionStatus != nil {
		evt.Status = *clinic.SubscriptionStatus
	}
	if sub != nil && sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		evt.CurrentPeriodEnd = &end
	}
	return evt
}

func billingView(c *model.Clinic) map[string]interface{} {
	return map[string]interface{}{
		"plan":                c.Plan,
		"subscription_id":     c.SubscriptionID,
		"subscription_status": c.SubscriptionStatus,
	}
}
