package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusNoShow},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow},
}

// CanTransition reports whether an appointment may move from s to next.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return len(appointmentTransitions[s]) == 0
}

// AppointmentStatuses lists every status.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusCompleted,
	AppointmentStatusCancelled, AppointmentStatusNoShow,
}

// HoldsSlot reports whether an appointment in status s occupies its
// professional's time. Only cancellation frees the slot; a no-show keeps it.
func (s AppointmentStatus) HoldsSlot() bool {
	return s != AppointmentStatusCancelled
}

func IsValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	Base
	ClinicID       uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	ClientID       uuid.UUID         `db:"client_id" json:"client_id"`
	ProfessionalID uuid.UUID         `db:"professional_id" json:"professional_id"`
	ServiceID      *uuid.UUID        `db:"service_id" json:"service_id,omitempty"`
	StartTime      time.Time         `db:"start_time" json:"start_time"`
	EndTime        time.Time         `db:"end_time" json:"end_time"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	PriceCents     *int64            `db:"price_cents" json:"price_cents,omitempty"`
	CreatedBy      *uuid.UUID        `db:"created_by" json:"created_by,omitempty"`
}

type CreateAppointmentRequest struct {
	ClientID       uuid.UUID  `json:"client_id" binding:"required"`
	ProfessionalID uuid.UUID  `json:"professional_id" binding:"required"`
	ServiceID      *uuid.UUID `json:"service_id"`
	StartTime      time.Time  `json:"start_time" binding:"required"`
	EndTime        *time.Time `json:"end_time"`
	Notes          *string    `json:"notes" binding:"omitempty,max=2000"`
	PriceCents     *int64     `json:"price_cents" binding:"omitempty,min=0"`
}

type UpdateAppointmentRequest struct {
	ProfessionalID *uuid.UUID `json:"professional_id"`
	ServiceID      *uuid.UUID `json:"service_id"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Notes          *string    `json:"notes" binding:"omitempty,max=2000"`
	PriceCents     *int64     `json:"price_cents" binding:"omitempty,min=0"`
}

type UpdateAppointmentStatusRequest struct {
	Status       AppointmentStatus `json:"status" binding:"required,apptstatus"`
	CancelReason *string           `json:"cancel_reason" binding:"omitempty,max=500"`
}

// AppointmentFilters selects appointments; the time range is half-open [From, To).
type AppointmentFilters struct {
	ClinicID       uuid.UUID
	ProfessionalID *uuid.UUID
	ClientID       *uuid.UUID
	Status         AppointmentStatus
	From           *time.Time
	To             *time.Time
	ListParams
}
