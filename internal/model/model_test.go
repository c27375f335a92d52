package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGrants(t *testing.T) {
	owner := NewPermissionSet(DefaultGrants(RoleOwner))
	assert.Len(t, owner, len(Modules)*len(Actions))

	pro := NewPermissionSet(DefaultGrants(RoleProfessional))
	assert.True(t, pro.Has(ModuleClients, ActionEdit))
	assert.False(t, pro.Has(ModuleClients, ActionDelete))
	assert.False(t, pro.Has(ModuleFinancial, ActionView))

	rec := NewPermissionSet(DefaultGrants(RoleReceptionist))
	assert.True(t, rec.Has(ModuleAppointments, ActionDelete))
	assert.True(t, rec.Has(ModuleFinancial, ActionCreate))
	assert.False(t, rec.Has(ModuleFinancial, ActionDelete))

	assert.Empty(t, DefaultGrants(Role("guest")))
}

func TestRoleCanManage(t *testing.T) {
	tests := []struct {
		actor, target Role
		want          bool
	}{
		{RoleOwner, RoleOwner, true},
		{RoleOwner, RoleReceptionist, true},
		{RoleAdmin, RoleOwner, false},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleProfessional, true},
		{RoleProfessional, RoleAdmin, false},
		{RoleProfessional, RoleReceptionist, true},
		{RoleReceptionist, RoleProfessional, true},
		{Role("guest"), RoleReceptionist, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.actor.CanManage(tt.target), "%s -> %s", tt.actor, tt.target)
	}
}

func TestAppointmentStatusHoldsSlot(t *testing.T) {
	want := map[AppointmentStatus]bool{
		AppointmentStatusScheduled: true,
		AppointmentStatusConfirmed: true,
		AppointmentStatusCompleted: true,
		AppointmentStatusNoShow:    true,
		AppointmentStatusCancelled: false,
	}
	require.Len(t, AppointmentStatuses, len(want))
	for _, st := range AppointmentStatuses {
		assert.Equal(t, want[st], st.HoldsSlot(), string(st))
	}
}

func TestAppointmentTransitions(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		ok       bool
	}{
		{AppointmentStatusScheduled, AppointmentStatusConfirmed, true},
		{AppointmentStatusScheduled, AppointmentStatusCompleted, false},
		{AppointmentStatusConfirmed, AppointmentStatusCompleted, true},
		{AppointmentStatusConfirmed, AppointmentStatusNoShow, true},
		{AppointmentStatusScheduled, AppointmentStatusCancelled, true},
		{AppointmentStatusCompleted, AppointmentStatusCancelled, false},
		{AppointmentStatusCancelled, AppointmentStatusScheduled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
	assert.True(t, AppointmentStatusNoShow.Terminal())
	assert.False(t, AppointmentStatusScheduled.Terminal())
}

func TestInvitationStatusAt(t *testing.T) {
	now := time.Now()
	inv := &Invitation{ExpiresAt: now.Add(time.Hour)}
	assert.Equal(t, InvitationStatusPending, inv.StatusAt(now))
	assert.Equal(t, InvitationStatusExpired, inv.StatusAt(now.Add(2*time.Hour)))

	inv.RevokedAt = &now
	assert.Equal(t, InvitationStatusRevoked, inv.StatusAt(now))

	inv.AcceptedAt = &now
	assert.Equal(t, InvitationStatusAccepted, inv.StatusAt(now))
}

func TestPaymentRefundable(t *testing.T) {
	p := &Payment{AmountCents: 10000, RefundedCents: 2500, Status: PaymentStatusPartiallyRefunded}
	assert.Equal(t, int64(7500), p.Refundable())

	p.Status = PaymentStatusPending
	assert.Zero(t, p.Refundable())
}

func TestUserIsLocked(t *testing.T) {
	now := time.Now()
	u := &User{}
	assert.False(t, u.IsLocked(now))
	until := now.Add(time.Minute)
	u.LockedUntil = &until
	assert.True(t, u.IsLocked(now))
	assert.False(t, u.IsLocked(now.Add(2*time.Minute)))
}

func TestListParamsOffset(t *testing.T) {
	assert.Equal(t, 40, ListParams{Page: 3, PageSize: 20}.Offset())
	assert.Equal(t, 0, ListParams{Page: 0, PageSize: 20}.Offset())
}
