package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	// TxManager runs fn in a transaction. Repositories called with the
	// ctx handed to fn join that transaction.
	TxManager interface {
		RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateProfile(ctx context.Context, user *model.User) error
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
		RecordLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error
		RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
		SetMFA(ctx context.Context, id uuid.UUID, enabled bool, secret *string) error
	}

	SessionRepository interface {
		Create(ctx context.Context, session *model.Session) error
		Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
		GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
		ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]*model.Session, error)
		Touch(ctx context.Context, id uuid.UUID, at time.Time) error
		Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
		RevokeAllForUser(ctx context.Context, userID uuid.UUID, except *uuid.UUID, at time.Time) ([]uuid.UUID, error)
		DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		SlugExists(ctx context.Context, slug string) (bool, error)
		Update(ctx context.Context, clinic *model.Clinic) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
		UpdateBilling(ctx context.Context, clinic *model.Clinic) error
		GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Clinic, error)
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.ClinicMembership, error)
	}

	MemberRepository interface {
		Create(ctx context.Context, member *model.ClinicUser) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Member, error)
		GetByUser(ctx context.Context, clinicID, userID uuid.UUID) (*model.ClinicUser, error)
		ExistsByEmail(ctx context.Context, clinicID uuid.UUID, email string) (bool, error)
		List(ctx context.Context, filters *model.MemberFilters) ([]*model.Member, error)
		UpdateRole(ctx context.Context, clinicID, id uuid.UUID, role model.Role) error
		UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status string) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		CountActiveOwners(ctx context.Context, clinicID uuid.UUID) (int, error)
	}

	PermissionRepository interface {
		Grant(ctx context.Context, clinicUserID uuid.UUID, grants ...model.Grant) error
		Revoke(ctx context.Context, clinicUserID uuid.UUID, grant model.Grant) error
		DeleteAll(ctx context.Context, clinicUserID uuid.UUID) error
		List(ctx context.Context, clinicUserID uuid.UUID) ([]model.Grant, error)
	}

	InvitationRepository interface {
		Create(ctx context.Context, invitation *model.Invitation) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Invitation, error)
		GetByTokenHash(ctx context.Context, tokenHash string, forUpdate bool) (*model.Invitation, error)
		List(ctx context.Context, filters *model.InvitationFilters) ([]*model.Invitation, error)
		RevokePending(ctx context.Context, clinicID uuid.UUID, email string, at time.Time) (int64, error)
		Revoke(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error
		MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error
		UpdateToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
		DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	ClientRepository interface {
		Create(ctx context.Context, client *model.Client) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Client, error)
		Update(ctx context.Context, client *model.Client) error
		Archive(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, filters *model.ClientFilters) ([]*model.Client, int64, error)
		SetPaymentCustomerID(ctx context.Context, clinicID, id uuid.UUID, customerID string) error
	}

	ProfessionalRepository interface {
		Create(ctx context.Context, professional *model.Professional) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Professional, error)
		Update(ctx context.Context, professional *model.Professional) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, filters *model.ProfessionalFilters) ([]*model.Professional, int64, error)
		Lock(ctx context.Context, clinicID, id uuid.UUID) error
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int64, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		UpdateStatus(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error)
		HasOverlap(ctx context.Context, clinicID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.Payment) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Payment, error)
		GetByIntentID(ctx context.Context, intentID string, forUpdate bool) (*model.Payment, error)
		UpdateStatus(ctx context.Context, payment *model.Payment) error
		UpdateRefund(ctx context.Context, payment *model.Payment) error
		List(ctx context.Context, filters *model.PaymentFilters) ([]*model.Payment, int64, error)
		Summary(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) (*model.FinancialSummary, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters *model.AuditLogFilters) ([]*model.AuditLog, int64, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
