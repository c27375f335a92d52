package model

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRevoked  InvitationStatus = "revoked"
	InvitationStatusExpired  InvitationStatus = "expired"
)

// Invitation grants access to exactly one clinic, once. Only the token hash is stored.
type Invitation struct {
	Base
	ClinicID   uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Email      string     `db:"email" json:"email"`
	Role       Role       `db:"role" json:"role"`
	TokenHash  string     `db:"token_hash" json:"-"`
	InvitedBy  uuid.UUID  `db:"invited_by" json:"invited_by"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	AcceptedBy *uuid.UUID `db:"accepted_by" json:"accepted_by,omitempty"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// StatusAt derives the invitation state from its timestamps.
func (i *Invitation) StatusAt(now time.Time) InvitationStatus {
	switch {
	case i.AcceptedAt != nil:
		return InvitationStatusAccepted
	case i.RevokedAt != nil:
		return InvitationStatusRevoked
	case !now.Before(i.ExpiresAt):
		return InvitationStatusExpired
	default:
		return InvitationStatusPending
	}
}

type CreateInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  Role   `json:"role" binding:"required,clinicrole"`
}

type AcceptInvitationRequest struct {
	Name     string `json:"name" binding:"omitempty,max=200"`
	Password string `json:"password" binding:"omitempty,min=8,max=72"`
}

// InvitationPreview is the public view shown on the accept screen.
type InvitationPreview struct {
	ClinicName string           `json:"clinic_name"`
	Email      string           `json:"email"`
	Role       Role             `json:"role"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// CreatedInvitation carries the plaintext token, which is never persisted.
type CreatedInvitation struct {
	Invitation *Invitation `json:"invitation"`
	Token      string      `json:"-"`
	AcceptURL  string      `json:"-"`
}

type InvitationFilters struct {
	ClinicID uuid.UUID
	Status   InvitationStatus
}
