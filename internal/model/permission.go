package model

import (
	"time"

	"github.com/google/uuid"
)

type Module string

const (
	ModuleClients       Module = "clients"
	ModuleAppointments  Module = "appointments"
	ModuleProfessionals Module = "professionals"
	ModuleServices      Module = "services"
	ModuleFinancial     Module = "financial"
	ModuleMembers       Module = "members"
	ModuleInvitations   Module = "invitations"
	ModuleSettings      Module = "settings"
	ModuleReports       Module = "reports"
)

var Modules = []Module{
	ModuleClients, ModuleAppointments, ModuleProfessionals, ModuleServices,
	ModuleFinancial, ModuleMembers, ModuleInvitations, ModuleSettings, ModuleReports,
}

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

// Permission grants one (module, action) pair to a clinic user.
type Permission struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ClinicUserID uuid.UUID `db:"clinic_user_id" json:"clinic_user_id"`
	Module       Module    `db:"module" json:"module"`
	Action       Action    `db:"action" json:"action"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Grant is a (module, action) pair.
type Grant struct {
	Module Module `json:"module" binding:"required,module"`
	Action Action `json:"action" binding:"required,action"`
}

func (g Grant) Key() string {
	return string(g.Module) + ":" + string(g.Action)
}

type ReplacePermissionsRequest struct {
	Permissions []Grant `json:"permissions" binding:"dive"`
}

// PermissionSet is the set of grants held by a clinic user.
type PermissionSet map[string]struct{}

func NewPermissionSet(grants []Grant) PermissionSet {
	set := make(PermissionSet, len(grants))
	for _, g := range grants {
		set[g.Key()] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(module Module, action Action) bool {
	_, ok := s[Grant{Module: module, Action: action}.Key()]
	return ok
}

// AllGrants is every (module, action) pair.
func AllGrants() []Grant {
	grants := make([]Grant, 0, len(Modules)*len(Actions))
	for _, m := range Modules {
		for _, a := range Actions {
			grants = append(grants, Grant{Module: m, Action: a})
		}
	}
	return grants
}

// DefaultGrants returns the permission set a role starts with.
func DefaultGrants(role Role) []Grant {
	switch role {
	case RoleOwner, RoleAdmin:
		return AllGrants()
	case RoleProfessional:
		return []Grant{
			{ModuleClients, ActionView}, {ModuleClients, ActionCreate}, {ModuleClients, ActionEdit},
			{ModuleAppointments, ActionView}, {ModuleAppointments, ActionCreate}, {ModuleAppointments, ActionEdit},
			{ModuleServices, ActionView},
			{ModuleProfessionals, ActionView},
		}
	case RoleReceptionist:
		return []Grant{
			{ModuleClients, ActionView}, {ModuleClients, ActionCreate}, {ModuleClients, ActionEdit},
			{ModuleAppointments, ActionView}, {ModuleAppointments, ActionCreate},
			{ModuleAppointments, ActionEdit}, {ModuleAppointments, ActionDelete},
			{ModuleServices, ActionView},
			{ModuleProfessionals, ActionView},
			{ModuleFinancial, ActionView}, {ModuleFinancial, ActionCreate},
		}
	default:
		return nil
	}
}

func IsValidModule(m Module) bool {
	for _, v := range Modules {
		if v == m {
			return true
		}
	}
	return false
}

func IsValidAction(a Action) bool {
	for _, v := range Actions {
		if v == a {
			return true
		}
	}
	return false
}

func IsValidRole(r Role) bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}
