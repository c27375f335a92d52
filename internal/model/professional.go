package model

import (
	"github.com/google/uuid"
)

// Professional status constants
const (
	ProfessionalStatusActive   = "active"
	ProfessionalStatusInactive = "inactive"
)

// Professional performs procedures. It may be linked to a clinic member.
type Professional struct {
	Base
	ClinicID     uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	UserID       *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Name         string     `db:"name" json:"name"`
	Specialty    *string    `db:"specialty" json:"specialty,omitempty"`
	Registration *string    `db:"registration" json:"registration,omitempty"`
	Email        *string    `db:"email" json:"email,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Color        *string    `db:"color" json:"color,omitempty"`
	Status       string     `db:"status" json:"status"`
}

type CreateProfessionalRequest struct {
	UserID       *uuid.UUID `json:"user_id"`
	Name         string     `json:"name" binding:"required,max=200"`
	Specialty    *string    `json:"specialty" binding:"omitempty,max=100"`
	Registration *string    `json:"registration" binding:"omitempty,max=50"`
	Email        *string    `json:"email" binding:"omitempty,email"`
	Phone        *string    `json:"phone" binding:"omitempty,max=30"`
	Color        *string    `json:"color" binding:"omitempty,hexcolor"`
}

type UpdateProfessionalRequest struct {
	UserID       *uuid.UUID `json:"user_id"`
	Name         *string    `json:"name" binding:"omitempty,min=1,max=200"`
	Specialty    *string    `json:"specialty" binding:"omitempty,max=100"`
	Registration *string    `json:"registration" binding:"omitempty,max=50"`
	Email        *string    `json:"email" binding:"omitempty,email"`
	Phone        *string    `json:"phone" binding:"omitempty,max=30"`
	Color        *string    `json:"color" binding:"omitempty,hexcolor"`
	Status       *string    `json:"status" binding:"omitempty,oneof=active inactive"`
}

type ProfessionalFilters struct {
	ClinicID uuid.UUID
	Status   string
	ListParams
}
