package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	ClinicID   *uuid.UUID      `json:"clinic_id,omitempty" db:"clinic_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   *uuid.UUID      `json:"entity_id,omitempty" db:"entity_id"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionLogin  = "login"
	AuditActionLogout = "logout"
	AuditActionAccept = "accept"
	AuditActionRevoke = "revoke"
	AuditActionRefund = "refund"

	// Entity types
	AuditEntityUser         = "user"
	AuditEntityClinic       = "clinic"
	AuditEntityMember       = "member"
	AuditEntityPermission   = "permission"
	AuditEntityInvitation   = "invitation"
	AuditEntityClient       = "client"
	AuditEntityProfessional = "professional"
	AuditEntityService      = "service"
	AuditEntityAppointment  = "appointment"
	AuditEntityPayment      = "payment"
	AuditEntitySubscription = "subscription"
)

type AuditLogFilters struct {
	ClinicID   uuid.UUID
	UserID     *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	Action     string
	From       *time.Time
	To         *time.Time
	ListParams
}
