package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

var ErrOverlap = apperrors.Conflict("professional already has an appointment in this time range", nil)

type Repositories struct {
	Appointments  repository.AppointmentRepository
	Clients       repository.ClientRepository
	Professionals repository.ProfessionalRepository
	Services      repository.ServiceRepository
}

type Service struct {
	tx        repository.TxManager
	repos     Repositories
	validator validator.Validator
	events    event.Emitter
	auditor   *audit.Service
	now       func() time.Time
}

func NewService(tx repository.TxManager, repos Repositories, v validator.Validator, events event.Emitter, auditor *audit.Service) *Service {
	return &Service{
		tx:        tx,
		repos:     repos,
		validator: v,
		events:    events,
		auditor:   auditor,
		now:       time.Now,
	}
}

type rescheduled struct {
	AppointmentID  uuid.UUID `json:"appointment_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	OldStart       time.Time `json:"old_start"`
	OldEnd         time.Time `json:"old_end"`
	NewStart       time.Time `json:"new_start"`
	NewEnd         time.Time `json:"new_end"`
}

func (s *Service) CreateAppointment(ctx context.Context, clinicID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		ClinicID:       clinicID,
		ClientID:       req.ClientID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		StartTime:      req.StartTime.UTC(),
		Status:         model.AppointmentStatusScheduled,
		Notes:          req.Notes,
		PriceCents:     req.PriceCents,
	}
	if actor := audit.ActorID(ctx); actor != uuid.Nil {
		appt.CreatedBy = &actor
	}

	client, err := s.repos.Clients.Get(ctx, clinicID, req.ClientID)
	if err != nil {
		return nil, referenceError("client", err)
	}
	if client.Status == model.ClientStatusArchived {
		return nil, apperrors.Validation("client is archived")
	}
	if err := s.checkProfessional(ctx, clinicID, req.ProfessionalID); err != nil {
		return nil, err
	}

	var svc *model.Service
	if req.ServiceID != nil {
		if svc, err = s.loadService(ctx, clinicID, *req.ServiceID); err != nil {
			return nil, err
		}
		if appt.PriceCents == nil {
			price := svc.PriceCents
			appt.PriceCents = &price
		}
	}

	switch {
	case req.EndTime != nil:
		appt.EndTime = req.EndTime.UTC()
	case svc != nil:
		appt.EndTime = appt.StartTime.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	default:
		return nil, apperrors.Validation("end_time is required when no service is given")
	}
	if !appt.EndTime.After(appt.StartTime) {
		return nil, apperrors.Validation("end_time must be after start_time")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.reserve(ctx, appt, nil); err != nil {
			return err
		}
		if err := s.repos.Appointments.Create(ctx, appt); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionCreate, model.AuditEntityAppointment, appt.ID, &audit.LogOptions{
			Changes: appt,
		})
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	return s.repos.Appointments.Get(ctx, clinicID, id)
}

func (s *Service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	if filters.From != nil && filters.To != nil && !filters.To.After(*filters.From) {
		return nil, 0, apperrors.Validation("to must be after from")
	}
	items, total, err := s.repos.Appointments.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return items, total, nil
}

// UpdateAppointment edits or reschedules an open appointment. Moving the
// start without an end keeps the current duration.
func (s *Service) UpdateAppointment(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var appt *model.Appointment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.repos.Appointments.Get(ctx, clinicID, id)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			return apperrors.Conflict(fmt.Sprintf("%s appointments cannot be changed", current.Status), nil)
		}
		before := *current
		next := *current

		if req.ProfessionalID != nil && *req.ProfessionalID != next.ProfessionalID {
			if err := s.checkProfessional(ctx, clinicID, *req.ProfessionalID); err != nil {
				return err
			}
			next.ProfessionalID = *req.ProfessionalID
		}

		duration := next.EndTime.Sub(next.StartTime)
		if req.ServiceID != nil {
			svc, err := s.loadService(ctx, clinicID, *req.ServiceID)
			if err != nil {
				return err
			}
			next.ServiceID = req.ServiceID
			duration = time.Duration(svc.DurationMinutes) * time.Minute
			if req.PriceCents == nil {
				price := svc.PriceCents
				next.PriceCents = &price
			}
		}
		if req.StartTime != nil {
			next.StartTime = req.StartTime.UTC()
		}
		if req.EndTime != nil {
			next.EndTime = req.EndTime.UTC()
		} else if req.StartTime != nil || req.ServiceID != nil {
			next.EndTime = next.StartTime.Add(duration)
		}
		if !next.EndTime.After(next.StartTime) {
			return apperrors.Validation("end_time must be after start_time")
		}
		if req.Notes != nil {
			next.Notes = req.Notes
		}
		if req.PriceCents != nil {
			next.PriceCents = req.PriceCents
		}

		moved := !next.StartTime.Equal(before.StartTime) || !next.EndTime.Equal(before.EndTime) ||
			next.ProfessionalID != before.ProfessionalID
		if moved {
			if err := s.reserve(ctx, &next, &next.ID); err != nil {
				return err
			}
		}

		if err := s.repos.Appointments.Update(ctx, &next); err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		if err := s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityAppointment, id, &audit.LogOptions{
			Changes: audit.Diff(before, next),
		}); err != nil {
			return err
		}
		if moved {
			if err := s.events.Emit(ctx, event.AppointmentRescheduled, rescheduled{
				AppointmentID:  id,
				ClinicID:       clinicID,
				ProfessionalID: next.ProfessionalID,
				OldStart:       before.StartTime,
				OldEnd:         before.EndTime,
				NewStart:       next.StartTime,
				NewEnd:         next.EndTime,
			}); err != nil {
				return err
			}
		}
		appt = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateAppointmentStatusRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var appt *model.Appointment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.repos.Appointments.Get(ctx, clinicID, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(req.Status) {
			return apperrors.Conflict(fmt.Sprintf("cannot change appointment from %s to %s", current.Status, req.Status), nil)
		}
		before := current.Status

		current.Status = req.Status
		if req.Status == model.AppointmentStatusCancelled {
			if req.CancelReason == nil || strings.TrimSpace(*req.CancelReason) == "" {
				return apperrors.Validation("cancel_reason is required to cancel an appointment")
			}
			reason := strings.TrimSpace(*req.CancelReason)
			at := s.now().UTC()
			current.CancelReason = &reason
			current.CancelledAt = &at
		}

		if err := s.repos.Appointments.UpdateStatus(ctx, current); err != nil {
			return fmt.Errorf("failed to update appointment status: %w", err)
		}
		if err := s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityAppointment, id, &audit.LogOptions{
			Changes: audit.Diff(map[string]interface{}{"status": before}, map[string]interface{}{
				"status":        current.Status,
				"cancel_reason": current.CancelReason,
			}),
		}); err != nil {
			return err
		}
		appt = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// DeleteAppointment removes a cancelled appointment.
func (s *Service) DeleteAppointment(ctx context.Context, clinicID, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		appt, err := s.repos.Appointments.Get(ctx, clinicID, id)
		if err != nil {
			return err
		}
		if appt.Status != model.AppointmentStatusCancelled {
			return apperrors.Conflict("only cancelled appointments can be deleted", nil)
		}
		if err := s.repos.Appointments.Delete(ctx, clinicID, id); err != nil {
			return err
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionDelete, model.AuditEntityAppointment, id, nil)
	})
}

// reserve locks the professional row so concurrent bookings serialize, then
// rejects the slot when it intersects another active appointment.
func (s *Service) reserve(ctx context.Context, appt *model.Appointment, excludeID *uuid.UUID) error {
	if err := s.repos.Professionals.Lock(ctx, appt.ClinicID, appt.ProfessionalID); err != nil {
		return referenceError("professional", err)
	}
	overlap, err := s.repos.Appointments.HasOverlap(ctx, appt.ClinicID, appt.ProfessionalID, appt.StartTime, appt.EndTime, excludeID)
	if err != nil {
		return err
	}
	if overlap {
		return ErrOverlap
	}
	return nil
}

func (s *Service) checkProfessional(ctx context.Context, clinicID, id uuid.UUID) error {
	p, err := s.repos.Professionals.Get(ctx, clinicID, id)
	if err != nil {
		return referenceError("professional", err)
	}
	if p.Status != model.ProfessionalStatusActive {
		return apperrors.Validation("professional is inactive")
	}
	return nil
}

func (s *Service) loadService(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error) {
	svc, err := s.repos.Services.Get(ctx, clinicID, id)
	if err != nil {
		return nil, referenceError("service", err)
	}
	if svc.Status != model.ServiceStatusActive {
		return nil, apperrors.Validation("service is inactive")
	}
	return svc, nil
}

// referenceError reports a missing referenced record as a bad request rather
// than a missing appointment.
func referenceError(resource string, err error) error {
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.BadRequest(resource+" does not exist in this clinic", err)
	}
	return err
}
