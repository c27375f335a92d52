package model

import (
	"github.com/google/uuid"
)

// Service status constants
const (
	ServiceStatusActive   = "active"
	ServiceStatusInactive = "inactive"
)

// Service is a procedure offered by a clinic. Prices are integer cents.
type Service struct {
	Base
	ClinicID        uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	PriceCents      int64     `db:"price_cents" json:"price_cents"`
	Status          string    `db:"status" json:"status"`
}

type CreateServiceRequest struct {
	Name            string  `json:"name" binding:"required,max=200"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=5,max=600"`
	PriceCents      int64   `json:"price_cents" binding:"min=0"`
}

type UpdateServiceRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=5,max=600"`
	PriceCents      *int64  `json:"price_cents" binding:"omitempty,min=0"`
	Status          *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type ServiceFilters struct {
	ClinicID uuid.UUID
	Status   string
	ListParams
}
