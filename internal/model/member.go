package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner        Role = "owner"
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RoleReceptionist Role = "receptionist"
)

var Roles = []Role{RoleOwner, RoleAdmin, RoleProfessional, RoleReceptionist}

// Professionals and receptionists are peers.
var roleRank = map[Role]int{
	RoleOwner:        3,
	RoleAdmin:        2,
	RoleProfessional: 1,
	RoleReceptionist: 1,
}

// CanManage reports whether a member holding r may assign role other or
// change a membership that holds it. Only owners manage owners.
func (r Role) CanManage(other Role) bool {
	if other == RoleOwner {
		return r == RoleOwner
	}
	rank, ok := roleRank[r]
	return ok && rank >= roleRank[other]
}

// Member status constants
const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// ClinicUser links a user to a clinic with a role. (clinic_id, user_id) is unique.
type ClinicUser struct {
	Base
	ClinicID  uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Role      Role       `db:"role" json:"role"`
	Status    string     `db:"status" json:"status"`
	InvitedBy *uuid.UUID `db:"invited_by" json:"invited_by,omitempty"`
	JoinedAt  time.Time  `db:"joined_at" json:"joined_at"`
}

// Member is a clinic user joined with the user's profile.
type Member struct {
	ClinicUser
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

type UpdateMemberRoleRequest struct {
	Role Role `json:"role" binding:"required,clinicrole"`
}

type MemberFilters struct {
	ClinicID uuid.UUID
	Role     Role
	Status   string
}
