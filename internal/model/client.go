package model

import (
	"time"

	"github.com/google/uuid"
)

// Client status constants
const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
	ClientStatusArchived = "archived"
)

// Client is a customer of a clinic.
type Client struct {
	Base
	ClinicID          uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Name              string     `db:"name" json:"name"`
	Email             *string    `db:"email" json:"email,omitempty"`
	Phone             *string    `db:"phone" json:"phone,omitempty"`
	Document          *string    `db:"document" json:"document,omitempty"`
	BirthDate         *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender            *string    `db:"gender" json:"gender,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	Status            string     `db:"status" json:"status"`
	PaymentCustomerID *string    `db:"payment_customer_id" json:"-"`
}

type CreateClientRequest struct {
	Name      string     `json:"name" binding:"required,max=200"`
	Email     *string    `json:"email" binding:"omitempty,email"`
	Phone     *string    `json:"phone" binding:"omitempty,max=30"`
	Document  *string    `json:"document" binding:"omitempty,max=30"`
	BirthDate *time.Time `json:"birth_date"`
	Gender    *string    `json:"gender" binding:"omitempty,oneof=female male other"`
	Notes     *string    `json:"notes" binding:"omitempty,max=2000"`
}

type UpdateClientRequest struct {
	Name      *string    `json:"name" binding:"omitempty,min=1,max=200"`
	Email     *string    `json:"email" binding:"omitempty,email"`
	Phone     *string    `json:"phone" binding:"omitempty,max=30"`
	Document  *string    `json:"document" binding:"omitempty,max=30"`
	BirthDate *time.Time `json:"birth_date"`
	Gender    *string    `json:"gender" binding:"omitempty,oneof=female male other"`
	Notes     *string    `json:"notes" binding:"omitempty,max=2000"`
	Status    *string    `json:"status" binding:"omitempty,oneof=active inactive"`
}

type ClientFilters struct {
	ClinicID uuid.UUID
	Status   string
	ListParams
}
