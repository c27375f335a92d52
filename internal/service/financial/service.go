package financial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/i18n"
	"github.com/jwalitptl/clinic-api/pkg/payment"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Repositories struct {
	Payments     repository.PaymentRepository
	Clients      repository.ClientRepository
	Clinics      repository.ClinicRepository
	Appointments repository.AppointmentRepository
}

type Service struct {
	tx        repository.TxManager
	repos     Repositories
	gateway   payment.Gateway
	validator validator.Validator
	events    event.Emitter
	auditor   *audit.Service
	newKey    func() string
	now       func() time.Time
}

func NewService(tx repository.TxManager, repos Repositories, gateway payment.Gateway, v validator.Validator,
	events event.Emitter, auditor *audit.Service) *Service {
	return &Service{
		tx:        tx,
		repos:     repos,
		gateway:   gateway,
		validator: v,
		events:    events,
		auditor:   auditor,
		newKey:    uuid.NewString,
		now:       time.Now,
	}
}

type paymentEvent struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	ClinicID      uuid.UUID           `json:"clinic_id"`
	ClientID      *uuid.UUID          `json:"client_id,omitempty"`
	AppointmentID *uuid.UUID          `json:"appointment_id,omitempty"`
	AmountCents   int64               `json:"amount_cents"`
	RefundedCents int64               `json:"refunded_cents"`
	Currency      string              `json:"currency"`
	Status        model.PaymentStatus `json:"status"`
}

func newPaymentEvent(p *model.Payment) paymentEvent {
	return paymentEvent{
		PaymentID:     p.ID,
		ClinicID:      p.ClinicID,
		ClientID:      p.ClientID,
		AppointmentID: p.AppointmentID,
		AmountCents:   p.AmountCents,
		RefundedCents: p.RefundedCents,
		Currency:      p.Currency,
		Status:        p.Status,
	}
}

// CreatePaymentIntent opens a processor payment intent and records it
// locally. The client secret is handed back for client-side confirmation.
func (s *Service) CreatePaymentIntent(ctx context.Context, clinicID uuid.UUID, req *model.CreatePaymentIntentRequest) (*model.PaymentIntentResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	clinic, err := s.repos.Clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = strings.ToLower(clinic.Currency)
	}

	clientID := req.ClientID
	if req.AppointmentID != nil {
		appt, err := s.repos.Appointments.Get(ctx, clinicID, *req.AppointmentID)
		if err != nil {
			return nil, referenceError("appointment", err)
		}
		if clientID == nil {
			clientID = &appt.ClientID
		} else if *clientID != appt.ClientID {
			return nil, apperrors.Validation("appointment belongs to another client")
		}
	}

	metadata := map[string]string{"clinic_id": clinicID.String()}
	params := payment.PaymentIntentParams{
		AmountCents:    req.AmountCents,
		Currency:       currency,
		IdempotencyKey: "pi:" + clinicID.String() + ":" + s.idempotencyKey(req.IdempotencyKey),
		Metadata:       metadata,
	}
	if req.Description != nil {
		params.Description = *req.Description
	}
	if req.AppointmentID != nil {
		metadata["appointment_id"] = req.AppointmentID.String()
	}
	if clientID != nil {
		metadata["client_id"] = clientID.String()
		if params.CustomerID, err = s.ensureClientCustomer(ctx, clinicID, *clientID); err != nil {
			return nil, err
		}
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, s.gatewayError(ctx, err)
	}

	p := &model.Payment{
		ClinicID:         clinicID,
		ClientID:         clientID,
		AppointmentID:    req.AppointmentID,
		AmountCents:      req.AmountCents,
		Currency:         currency,
		Status:           intentStatus(intent.Status),
		ProviderIntentID: intent.ID,
		Description:      req.Description,
	}
	if actor := audit.ActorID(ctx); actor != uuid.Nil {
		p.CreatedBy = &actor
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Payments.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionCreate, model.AuditEntityPayment, p.ID, &audit.LogOptions{
			Changes: p,
		})
	})
	if err != nil {
		return nil, err
	}
	return &model.PaymentIntentResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

// Refund returns part or all of a settled payment. The row stays locked
// while the processor is called so concurrent refunds cannot overdraw it.
func (s *Service) Refund(ctx context.Context, clinicID, id uuid.UUID, req *model.RefundRequest) (*model.Payment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	current, err := s.repos.Payments.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}

	var p *model.Payment
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.repos.Payments.GetByIntentID(ctx, current.ProviderIntentID, true)
		if err != nil {
			return err
		}
		refundable := locked.Refundable()
		if refundable <= 0 {
			return apperrors.Conflict("payment has no refundable balance", nil)
		}
		amount := refundable
		if req.AmountCents != nil {
			amount = *req.AmountCents
		}
		if amount > refundable {
			return apperrors.BadRequest(s.translate(ctx, i18n.MsgRefundExceedsAmount), nil)
		}

		params := payment.RefundParams{
			PaymentIntentID: locked.ProviderIntentID,
			AmountCents:     amount,
			IdempotencyKey:  fmt.Sprintf("refund:%s:%d:%d", locked.ID, locked.RefundedCents, amount),
		}
		if req.Reason != nil {
			params.Reason = *req.Reason
		}
		if _, err := s.gateway.Refund(ctx, params); err != nil {
			return s.gatewayError(ctx, err)
		}

		before := locked.RefundedCents
		applyRefunded(locked, locked.RefundedCents+amount)
		if err := s.repos.Payments.UpdateRefund(ctx, locked); err != nil {
			return fmt.Errorf("failed to update payment refund: %w", err)
		}
		if err := s.auditor.Log(ctx, clinicID, model.AuditActionRefund, model.AuditEntityPayment, locked.ID, &audit.LogOptions{
			Changes:  audit.Diff(map[string]int64{"refunded_cents": before}, map[string]int64{"refunded_cents": locked.RefundedCents}),
			Metadata: map[string]interface{}{"amount_cents": amount, "reason": params.Reason},
		}); err != nil {
			return err
		}
		if err := s.events.Emit(ctx, event.PaymentRefunded, newPaymentEvent(locked)); err != nil {
			return err
		}
		p = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, clinicID, id uuid.UUID) (*model.Payment, error) {
	return s.repos.Payments.Get(ctx, clinicID, id)
}

func (s *Service) ListPayments(ctx context.Context, filters *model.PaymentFilters) ([]*model.Payment, int64, error) {
	items, total, err := s.repos.Payments.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return items, total, nil
}

// Summary totals settled and refunded amounts in [from, to) per currency.
// The clinic's own currency always comes first, zeroed when unused.
func (s *Service) Summary(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) (*model.FinancialSummary, error) {
	if from != nil && to != nil && !to.After(*from) {
		return nil, apperrors.Validation("to must be after from")
	}
	clinic, err := s.repos.Clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	summary, err := s.repos.Payments.Summary(ctx, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize payments: %w", err)
	}
	home := strings.ToLower(clinic.Currency)
	totals := []model.CurrencyTotal{{Currency: home}}
	for _, t := range summary.Totals {
		t.Currency = strings.ToLower(t.Currency)
		if t.Currency == home {
			totals[0] = t
			continue
		}
		totals = append(totals, t)
	}
	summary.Totals = totals
	return summary, nil
}

// ensureClientCustomer returns the processor customer for the client,
// creating and storing one on first use.
func (s *Service) ensureClientCustomer(ctx context.Context, clinicID, clientID uuid.UUID) (string, error) {
	client, err := s.repos.Clients.Get(ctx, clinicID, clientID)
	if err != nil {
		return "", referenceError("client", err)
	}
	if client.PaymentCustomerID != nil && *client.PaymentCustomerID != "" {
		return *client.PaymentCustomerID, nil
	}

	params := payment.CustomerParams{
		Name:     client.Name,
		Metadata: map[string]string{"clinic_id": clinicID.String(), "client_id": clientID.String()},
	}
	if client.Email != nil {
		params.Email = *client.Email
	}
	if client.Phone != nil {
		params.Phone = *client.Phone
	}
	customer, err := s.gateway.CreateCustomer(ctx, params)
	if err != nil {
		return "", s.gatewayError(ctx, err)
	}
	if err := s.repos.Clients.SetPaymentCustomerID(ctx, clinicID, clientID, customer.ID); err != nil {
		return "", fmt.Errorf("failed to store payment customer: %w", err)
	}
	return customer.ID, nil
}

func (s *Service) idempotencyKey(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return s.newKey()
}

func (s *Service) translate(ctx context.Context, key string) string {
	return i18n.T(key, audit.RequestInfoFrom(ctx).Language)
}

// gatewayError maps a processor failure to an application error carrying a
// message in the caller's language.
func (s *Service) gatewayError(ctx context.Context, err error) error {
	pe, ok := payment.AsError(err)
	if !ok {
		return apperrors.Internal(err)
	}

	switch pe.Kind {
	case payment.KindCard:
		return apperrors.PaymentFailed(s.translate(ctx, cardMessage(pe.Code)), err)
	case payment.KindInvalidRequest:
		return apperrors.BadRequest(s.translate(ctx, i18n.MsgInvalidRequest), err)
	case payment.KindUnavailable:
		return apperrors.Unavailable(s.translate(ctx, i18n.MsgGatewayUnavailable), err)
	default:
		return apperrors.PaymentFailed(s.translate(ctx, i18n.MsgProcessingError), err)
	}
}

func cardMessage(code string) string {
	switch code {
	case "insufficient_funds":
		return i18n.MsgInsufficientFunds
	case "expired_card":
		return i18n.MsgExpiredCard
	case "incorrect_cvc", "invalid_cvc":
		return i18n.MsgIncorrectCVC
	case "processing_error":
		return i18n.MsgProcessingError
	default:
		return i18n.MsgCardDeclined
	}
}

// intentStatus maps processor intent states onto local payment states.
func intentStatus(status string) model.PaymentStatus {
	switch status {
	case "succeeded":
		return model.PaymentStatusSucceeded
	case "canceled":
		return model.PaymentStatusCanceled
	case "requires_action", "requires_confirmation":
		return model.PaymentStatusRequiresAction
	default:
		return model.PaymentStatusPending
	}
}

func applyRefunded(p *model.Payment, refunded int64) {
	if refunded > p.AmountCents {
		refunded = p.AmountCents
	}
	p.RefundedCents = refunded
	if refunded == p.AmountCents {
		p.Status = model.PaymentStatusRefunded
	} else if refunded > 0 {
		p.Status = model.PaymentStatusPartiallyRefunded
	}
}

func referenceError(resource string, err error) error {
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.BadRequest(resource+" does not exist in this clinic", err)
	}
	return err
}
