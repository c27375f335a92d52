// Package mocks holds testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// TxManager runs fn inline without a database.
type TxManager struct{}

func (TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func err(args mock.Arguments, i int) error {
	return args.Error(i)
}

type UserRepository struct{ mock.Mock }

func (m *UserRepository) Create(ctx context.Context, user *model.User) error {
	return err(m.Called(ctx, user), 0)
}

func (m *UserRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	return err(m.Called(ctx, user), 0)
}

func (m *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return err(m.Called(ctx, id, passwordHash), 0)
}

func (m *UserRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	return err(m.Called(ctx, id, attempts, lockedUntil), 0)
}

func (m *UserRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	return err(m.Called(ctx, id, at), 0)
}

func (m *UserRepository) SetMFA(ctx context.Context, id uuid.UUID, enabled bool, secret *string) error {
	return err(m.Called(ctx, id, enabled, secret), 0)
}

type SessionRepository struct{ mock.Mock }

func (m *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return err(m.Called(ctx, s), 0)
}

func (m *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*model.Session)
	return s, args.Error(1)
}

func (m *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	args := m.Called(ctx, tokenHash)
	s, _ := args.Get(0).(*model.Session)
	return s, args.Error(1)
}

func (m *SessionRepository) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*model.Session, error) {
	args := m.Called(ctx, userID, now)
	s, _ := args.Get(0).([]*model.Session)
	return s, args.Error(1)
}

func (m *SessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return err(m.Called(ctx, id, at), 0)
}

func (m *SessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	return err(m.Called(ctx, id, at), 0)
}

func (m *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, except *uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, userID, except, at)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func (m *SessionRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type ClinicRepository struct{ mock.Mock }

func (m *ClinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	return err(m.Called(ctx, clinic), 0)
}

func (m *ClinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*model.Clinic)
	return c, args.Error(1)
}

func (m *ClinicRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *ClinicRepository) Update(ctx context.Context, clinic *model.Clinic) error {
	return err(m.Called(ctx, clinic), 0)
}

func (m *ClinicRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return err(m.Called(ctx, id, status), 0)
}

func (m *ClinicRepository) UpdateBilling(ctx context.Context, clinic *model.Clinic) error {
	return err(m.Called(ctx, clinic), 0)
}

func (m *ClinicRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Clinic, error) {
	args := m.Called(ctx, subscriptionID)
	c, _ := args.Get(0).(*model.Clinic)
	return c, args.Error(1)
}

func (m *ClinicRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.ClinicMembership, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).([]*model.ClinicMembership)
	return c, args.Error(1)
}

type MemberRepository struct{ mock.Mock }

func (m *MemberRepository) Create(ctx context.Context, member *model.ClinicUser) error {
	return err(m.Called(ctx, member), 0)
}

func (m *MemberRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Member, error) {
	args := m.Called(ctx, clinicID, id)
	mem, _ := args.Get(0).(*model.Member)
	return mem, args.Error(1)
}

func (m *MemberRepository) GetByUser(ctx context.Context, clinicID, userID uuid.UUID) (*model.ClinicUser, error) {
	args := m.Called(ctx, clinicID, userID)
	mem, _ := args.Get(0).(*model.ClinicUser)
	return mem, args.Error(1)
}

func (m *MemberRepository) ExistsByEmail(ctx context.Context, clinicID uuid.UUID, email string) (bool, error) {
	args := m.Called(ctx, clinicID, email)
	return args.Bool(0), args.Error(1)
}

func (m *MemberRepository) List(ctx context.Context, filters *model.MemberFilters) ([]*model.Member, error) {
	args := m.Called(ctx, filters)
	mem, _ := args.Get(0).([]*model.Member)
	return mem, args.Error(1)
}

func (m *MemberRepository) UpdateRole(ctx context.Context, clinicID, id uuid.UUID, role model.Role) error {
	return err(m.Called(ctx, clinicID, id, role), 0)
}

func (m *MemberRepository) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status string) error {
	return err(m.Called(ctx, clinicID, id, status), 0)
}

func (m *MemberRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	return err(m.Called(ctx, clinicID, id), 0)
}

func (m *MemberRepository) CountActiveOwners(ctx context.Context, clinicID uuid.UUID) (int, error) {
	args := m.Called(ctx, clinicID)
	return args.Int(0), args.Error(1)
}

type PermissionRepository struct{ mock.Mock }

func (m *PermissionRepository) Grant(ctx context.Context, clinicUserID uuid.UUID, grants ...model.Grant) error {
	return err(m.Called(ctx, clinicUserID, grants), 0)
}

func (m *PermissionRepository) Revoke(ctx context.Context, clinicUserID uuid.UUID, grant model.Grant) error {
	return err(m.Called(ctx, clinicUserID, grant), 0)
}

func (m *PermissionRepository) DeleteAll(ctx context.Context, clinicUserID uuid.UUID) error {
	return err(m.Called(ctx, clinicUserID), 0)
}

func (m *PermissionRepository) List(ctx context.Context, clinicUserID uuid.UUID) ([]model.Grant, error) {
	args := m.Called(ctx, clinicUserID)
	g, _ := args.Get(0).([]model.Grant)
	return g, args.Error(1)
}

type InvitationRepository struct{ mock.Mock }

func (m *InvitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	return err(m.Called(ctx, inv), 0)
}

func (m *InvitationRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Invitation, error) {
	args := m.Called(ctx, clinicID, id)
	inv, _ := args.Get(0).(*model.Invitation)
	return inv, args.Error(1)
}

func (m *InvitationRepository) GetByTokenHash(ctx context.Context, tokenHash string, forUpdate bool) (*model.Invitation, error) {
	args := m.Called(ctx, tokenHash, forUpdate)
	inv, _ := args.Get(0).(*model.Invitation)
	return inv, args.Error(1)
}

func (m *InvitationRepository) List(ctx context.Context, filters *model.InvitationFilters) ([]*model.Invitation, error) {
	args := m.Called(ctx, filters)
	inv, _ := args.Get(0).([]*model.Invitation)
	return inv, args.Error(1)
}

func (m *InvitationRepository) RevokePending(ctx context.Context, clinicID uuid.UUID, email string, at time.Time) (int64, error) {
	args := m.Called(ctx, clinicID, email, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *InvitationRepository) Revoke(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error {
	return err(m.Called(ctx, clinicID, id, at), 0)
}

func (m *InvitationRepository) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	return err(m.Called(ctx, id, userID, at), 0)
}

func (m *InvitationRepository) UpdateToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return err(m.Called(ctx, id, tokenHash, expiresAt), 0)
}

func (m *InvitationRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type ClientRepository struct{ mock.Mock }

func (m *ClientRepository) Create(ctx context.Context, client *model.Client) error {
	return err(m.Called(ctx, client), 0)
}

func (m *ClientRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Client, error) {
	args := m.Called(ctx, clinicID, id)
	c, _ := args.Get(0).(*model.Client)
	return c, args.Error(1)
}

func (m *ClientRepository) Update(ctx context.Context, client *model.Client) error {
	return err(m.Called(ctx, client), 0)
}

func (m *ClientRepository) Archive(ctx context.Context, clinicID, id uuid.UUID) error {
	return err(m.Called(ctx, clinicID, id), 0)
}

func (m *ClientRepository) List(ctx context.Context, filters *model.ClientFilters) ([]*model.Client, int64, error) {
	args := m.Called(ctx, filters)
	c, _ := args.Get(0).([]*model.Client)
	return c, args.Get(1).(int64), args.Error(2)
}

func (m *ClientRepository) SetPaymentCustomerID(ctx context.Context, clinicID, id uuid.UUID, customerID string) error {
	return err(m.Called(ctx, clinicID, id, customerID), 0)
}

type ProfessionalRepository struct{ mock.Mock }

func (m *ProfessionalRepository) Create(ctx context.Context, p *model.Professional) error {
	return err(m.Called(ctx, p), 0)
}

func (m *ProfessionalRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Professional, error) {
	args := m.Called(ctx, clinicID, id)
	p, _ := args.Get(0).(*model.Professional)
	return p, args.Error(1)
}

func (m *ProfessionalRepository) Update(ctx context.Context, p *model.Professional) error {
	return err(m.Called(ctx, p), 0)
}

func (m *ProfessionalRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	return err(m.Called(ctx, clinicID, id), 0)
}

func (m *ProfessionalRepository) List(ctx context.Context, filters *model.ProfessionalFilters) ([]*model.Professional, int64, error) {
	args := m.Called(ctx, filters)
	p, _ := args.Get(0).([]*model.Professional)
	return p, args.Get(1).(int64), args.Error(2)
}

func (m *ProfessionalRepository) Lock(ctx context.Context, clinicID, id uuid.UUID) error {
	return err(m.Called(ctx, clinicID, id), 0)
}

type ServiceRepository struct{ mock.Mock }

func (m *ServiceRepository) Create(ctx context.Context, s *model.Service) error {
	return err(m.Called(ctx, s), 0)
}

func (m *ServiceRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error) {
	args := m.Called(ctx, clinicID, id)
	s, _ := args.Get(0).(*model.Service)
	return s, args.Error(1)
}

func (m *ServiceRepository) Update(ctx context.Context, s *model.Service) error {
	return err(m.Called(ctx, s), 0)
}

func (m *ServiceRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	return err(m.Called(ctx, clinicID, id), 0)
}

func (m *ServiceRepository) List(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int64, error) {
	args := m.Called(ctx, filters)
	s, _ := args.Get(0).([]*model.Service)
	return s, args.Get(1).(int64), args.Error(2)
}

type AppointmentRepository struct{ mock.Mock }

func (m *AppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	return err(m.Called(ctx, a), 0)
}

func (m *AppointmentRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	args := m.Called(ctx, clinicID, id)
	a, _ := args.Get(0).(*model.Appointment)
	return a, args.Error(1)
}

func (m *AppointmentRepository) Update(ctx context.Context, a *model.Appointment) error {
	return err(m.Called(ctx, a), 0)
}

func (m *AppointmentRepository) UpdateStatus(ctx context.Context, a *model.Appointment) error {
	return err(m.Called(ctx, a), 0)
}

func (m *AppointmentRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	return err(m.Called(ctx, clinicID, id), 0)
}

func (m *AppointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	args := m.Called(ctx, filters)
	a, _ := args.Get(0).([]*model.Appointment)
	return a, args.Get(1).(int64), args.Error(2)
}

func (m *AppointmentRepository) HasOverlap(ctx context.Context, clinicID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, clinicID, professionalID, start, end, excludeID)
	return args.Bool(0), args.Error(1)
}

type PaymentRepository struct{ mock.Mock }

func (m *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return err(m.Called(ctx, p), 0)
}

func (m *PaymentRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, clinicID, id)
	p, _ := args.Get(0).(*model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepository) GetByIntentID(ctx context.Context, intentID string, forUpdate bool) (*model.Payment, error) {
	args := m.Called(ctx, intentID, forUpdate)
	p, _ := args.Get(0).(*model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepository) UpdateStatus(ctx context.Context, p *model.Payment) error {
	return err(m.Called(ctx, p), 0)
}

func (m *PaymentRepository) UpdateRefund(ctx context.Context, p *model.Payment) error {
	return err(m.Called(ctx, p), 0)
}

func (m *PaymentRepository) List(ctx context.Context, filters *model.PaymentFilters) ([]*model.Payment, int64, error) {
	args := m.Called(ctx, filters)
	p, _ := args.Get(0).([]*model.Payment)
	return p, args.Get(1).(int64), args.Error(2)
}

func (m *PaymentRepository) Summary(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) (*model.FinancialSummary, error) {
	args := m.Called(ctx, clinicID, from, to)
	s, _ := args.Get(0).(*model.FinancialSummary)
	return s, args.Error(1)
}

type AuditRepository struct{ mock.Mock }

func (m *AuditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	return err(m.Called(ctx, log), 0)
}

func (m *AuditRepository) List(ctx context.Context, filters *model.AuditLogFilters) ([]*model.AuditLog, int64, error) {
	args := m.Called(ctx, filters)
	l, _ := args.Get(0).([]*model.AuditLog)
	return l, args.Get(1).(int64), args.Error(2)
}

func (m *AuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type OutboxRepository struct{ mock.Mock }

func (m *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	return err(m.Called(ctx, event), 0)
}

func (m *OutboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	e, _ := args.Get(0).([]*model.OutboxEvent)
	return e, args.Error(1)
}

func (m *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return err(m.Called(ctx, id), 0)
}

func (m *OutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errMsg string, retryAt time.Time) error {
	return err(m.Called(ctx, id, retryCount, errMsg, retryAt), 0)
}

func (m *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	return err(m.Called(ctx, id, retryCount, errMsg), 0)
}

func (m *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
