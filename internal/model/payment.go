package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusRequiresAction    PaymentStatus = "requires_action"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCanceled          PaymentStatus = "canceled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Payment mirrors a processor payment intent for a clinic.
type Payment struct {
	Base
	ClinicID         uuid.UUID     `db:"clinic_id" json:"clinic_id"`
	ClientID         *uuid.UUID    `db:"client_id" json:"client_id,omitempty"`
	AppointmentID    *uuid.UUID    `db:"appointment_id" json:"appointment_id,omitempty"`
	AmountCents      int64         `db:"amount_cents" json:"amount_cents"`
	Currency         string        `db:"currency" json:"currency"`
	Status           PaymentStatus `db:"status" json:"status"`
	Method           *string       `db:"method" json:"method,omitempty"`
	ProviderIntentID string        `db:"provider_intent_id" json:"provider_intent_id"`
	RefundedCents    int64         `db:"refunded_cents" json:"refunded_cents"`
	Description      *string       `db:"description" json:"description,omitempty"`
	FailureMessage   *string       `db:"failure_message" json:"failure_message,omitempty"`
	CreatedBy        *uuid.UUID    `db:"created_by" json:"created_by,omitempty"`
}

// Refundable is the amount still available for refunds.
func (p *Payment) Refundable() int64 {
	if p.Status != PaymentStatusSucceeded && p.Status != PaymentStatusPartiallyRefunded {
		return 0
	}
	return p.AmountCents - p.RefundedCents
}

type CreatePaymentIntentRequest struct {
	AmountCents   int64      `json:"amount_cents" binding:"required,min=1"`
	Currency      string     `json:"currency" binding:"omitempty,currency"`
	ClientID      *uuid.UUID `json:"client_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Description   *string    `json:"description" binding:"omitempty,max=500"`
	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-" binding:"omitempty,max=255"`
}

// PaymentIntentResult is returned to the caller that confirms the payment client-side.
type PaymentIntentResult struct {
	Payment      *Payment `json:"payment"`
	ClientSecret string   `json:"client_secret"`
}

type RefundRequest struct {
	AmountCents *int64  `json:"amount_cents" binding:"omitempty,min=1"`
	Reason      *string `json:"reason" binding:"omitempty,oneof=duplicate fraudulent requested_by_customer"`
}

type PaymentFilters struct {
	ClinicID      uuid.UUID
	ClientID      *uuid.UUID
	AppointmentID *uuid.UUID
	Status        PaymentStatus
	From          *time.Time
	To            *time.Time
	ListParams
}

// FinancialSummary totals payments in a period, one entry per currency.
type FinancialSummary struct {
	From   *time.Time      `json:"from,omitempty"`
	To     *time.Time      `json:"to,omitempty"`
	Totals []CurrencyTotal `json:"totals"`
}

// CurrencyTotal holds the amounts, in cents, of a single currency.
type CurrencyTotal struct {
	Currency       string `db:"currency" json:"currency"`
	SucceededCents int64  `db:"succeeded_cents" json:"succeeded_cents"`
	RefundedCents  int64  `db:"refunded_cents" json:"refunded_cents"`
	NetCents       int64  `json:"net_cents"`
	PaymentCount   int64  `db:"payment_count" json:"payment_count"`
}

type SubscribeRequest struct {
	PriceID string `json:"price_id" binding:"required,max=100"`
	Plan    string `json:"plan" binding:"omitempty,max=50"`
}
