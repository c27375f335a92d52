package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/mocks"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	pkgvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type fixture struct {
	svc           *Service
	appointments  *mocks.AppointmentRepository
	clients       *mocks.ClientRepository
	professionals *mocks.ProfessionalRepository
	services      *mocks.ServiceRepository
	outbox        *mocks.OutboxRepository

	clinicID       uuid.UUID
	clientID       uuid.UUID
	professionalID uuid.UUID
	serviceID      uuid.UUID
}

var start = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		appointments:   new(mocks.AppointmentRepository),
		clients:        new(mocks.ClientRepository),
		professionals:  new(mocks.ProfessionalRepository),
		services:       new(mocks.ServiceRepository),
		outbox:         new(mocks.OutboxRepository),
		clinicID:       uuid.New(),
		clientID:       uuid.New(),
		professionalID: uuid.New(),
		serviceID:      uuid.New(),
	}
	audits := new(mocks.AuditRepository)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.outbox.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.svc = NewService(mocks.TxManager{}, Repositories{
		Appointments:  f.appointments,
		Clients:       f.clients,
		Professionals: f.professionals,
		Services:      f.services,
	}, pkgvalidator.NewBinding(model.Validators()), event.NewService(f.outbox), audit.NewService(audits))
	f.svc.now = func() time.Time { return start.Add(-24 * time.Hour) }
	return f
}

func (f *fixture) expectReferences() {
	f.clients.On("Get", mock.Anything, f.clinicID, f.clientID).
		Return(&model.Client{ClinicID: f.clinicID, Status: model.ClientStatusActive}, nil)
	f.professionals.On("Get", mock.Anything, f.clinicID, f.professionalID).
		Return(&model.Professional{ClinicID: f.clinicID, Status: model.ProfessionalStatusActive}, nil)
	f.services.On("Get", mock.Anything, f.clinicID, f.serviceID).
		Return(&model.Service{ClinicID: f.clinicID, DurationMinutes: 45, PriceCents: 20000, Status: model.ServiceStatusActive}, nil)
	f.professionals.On("Lock", mock.Anything, f.clinicID, f.professionalID).Return(nil)
}

func (f *fixture) createRequest() *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		ClientID:       f.clientID,
		ProfessionalID: f.professionalID,
		ServiceID:      &f.serviceID,
		StartTime:      start,
	}
}

func TestCreateAppointmentDerivesEndAndPriceFromService(t *testing.T) {
	f := newFixture()
	f.expectReferences()
	f.appointments.On("HasOverlap", mock.Anything, f.clinicID, f.professionalID, start, start.Add(45*time.Minute), (*uuid.UUID)(nil)).
		Return(false, nil)
	f.appointments.On("Create", mock.Anything, mock.Anything).Return(nil)

	appt, err := f.svc.CreateAppointment(context.Background(), f.clinicID, f.createRequest())
	require.NoError(t, err)
	assert.Equal(t, start.Add(45*time.Minute), appt.EndTime)
	require.NotNil(t, appt.PriceCents)
	assert.Equal(t, int64(20000), *appt.PriceCents)
	assert.Equal(t, model.AppointmentStatusScheduled, appt.Status)
	f.appointments.AssertExpectations(t)
}

func TestCreateAppointmentExplicitPriceWins(t *testing.T) {
	f := newFixture()
	f.expectReferences()
	f.appointments.On("HasOverlap", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.appointments.On("Create", mock.Anything, mock.Anything).Return(nil)

	req := f.createRequest()
	price := int64(15000)
	req.PriceCents = &price

	appt, err := f.svc.CreateAppointment(context.Background(), f.clinicID, req)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), *appt.PriceCents)
}

func TestCreateAppointmentOverlapConflicts(t *testing.T) {
	f := newFixture()
	f.expectReferences()
	f.appointments.On("HasOverlap", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	_, err := f.svc.CreateAppointment(context.Background(), f.clinicID, f.createRequest())
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	f.appointments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateAppointmentEndBeforeStart(t *testing.T) {
	f := newFixture()
	f.expectReferences()

	req := f.createRequest()
	end := start.Add(-time.Minute)
	req.EndTime = &end

	_, err := f.svc.CreateAppointment(context.Background(), f.clinicID, req)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestCreateAppointmentNeedsEndWithoutService(t *testing.T) {
	f := newFixture()
	f.expectReferences()

	req := f.createRequest()
	req.ServiceID = nil

	_, err := f.svc.CreateAppointment(context.Background(), f.clinicID, req)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestCreateAppointmentForeignClient(t *testing.T) {
	f := newFixture()
	f.clients.On("Get", mock.Anything, f.clinicID, f.clientID).Return(nil, apperrors.NotFound("client", nil))

	_, err := f.svc.CreateAppointment(context.Background(), f.clinicID, f.createRequest())
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestRescheduleKeepsDurationAndEmitsEvent(t *testing.T) {
	f := newFixture()
	existing := &model.Appointment{
		Base:           model.NewBase(),
		ClinicID:       f.clinicID,
		ClientID:       f.clientID,
		ProfessionalID: f.professionalID,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Status:         model.AppointmentStatusConfirmed,
	}
	newStart := start.Add(3 * time.Hour)

	f.appointments.On("Get", mock.Anything, f.clinicID, existing.ID).Return(existing, nil)
	f.professionals.On("Lock", mock.Anything, f.clinicID, f.professionalID).Return(nil)
	f.appointments.On("HasOverlap", mock.Anything, f.clinicID, f.professionalID, newStart, newStart.Add(time.Hour), &existing.ID).
		Return(false, nil)
	f.appointments.On("Update", mock.Anything, mock.Anything).Return(nil)

	appt, err := f.svc.UpdateAppointment(context.Background(), f.clinicID, existing.ID, &model.UpdateAppointmentRequest{StartTime: &newStart})
	require.NoError(t, err)
	assert.Equal(t, newStart.Add(time.Hour), appt.EndTime)
	f.outbox.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		return e.EventType == event.AppointmentRescheduled
	}))
}

func TestUpdateNotesSkipsOverlapCheck(t *testing.T) {
	f := newFixture()
	existing := &model.Appointment{
		Base:           model.NewBase(),
		ClinicID:       f.clinicID,
		ProfessionalID: f.professionalID,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Status:         model.AppointmentStatusScheduled,
	}
	f.appointments.On("Get", mock.Anything, f.clinicID, existing.ID).Return(existing, nil)
	f.appointments.On("Update", mock.Anything, mock.Anything).Return(nil)

	notes := "bring previous exams"
	appt, err := f.svc.UpdateAppointment(context.Background(), f.clinicID, existing.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, *appt.Notes)
	f.appointments.AssertNotCalled(t, "HasOverlap", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateTerminalAppointmentConflicts(t *testing.T) {
	f := newFixture()
	existing := &model.Appointment{Base: model.NewBase(), ClinicID: f.clinicID, Status: model.AppointmentStatusCompleted}
	f.appointments.On("Get", mock.Anything, f.clinicID, existing.ID).Return(existing, nil)

	notes := "x"
	_, err := f.svc.UpdateAppointment(context.Background(), f.clinicID, existing.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestUpdateStatusTransitions(t *testing.T) {
	reason := "client asked"
	tests := []struct {
		name    string
		from    model.AppointmentStatus
		to      model.AppointmentStatus
		reason  *string
		errCode apperrors.ErrorCode
	}{
		{"confirm", model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed, nil, 0},
		{"complete", model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted, nil, 0},
		{"no show", model.AppointmentStatusScheduled, model.AppointmentStatusNoShow, nil, 0},
		{"cancel", model.AppointmentStatusConfirmed, model.AppointmentStatusCancelled, &reason, 0},
		{"cancel without reason", model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, nil, apperrors.ErrValidation},
		{"complete unconfirmed", model.AppointmentStatusScheduled, model.AppointmentStatusCompleted, nil, apperrors.ErrConflict},
		{"reopen cancelled", model.AppointmentStatusCancelled, model.AppointmentStatusScheduled, nil, apperrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			existing := &model.Appointment{Base: model.NewBase(), ClinicID: f.clinicID, Status: tt.from}
			f.appointments.On("Get", mock.Anything, f.clinicID, existing.ID).Return(existing, nil)
			f.appointments.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil).Maybe()

			appt, err := f.svc.UpdateStatus(context.Background(), f.clinicID, existing.ID, &model.UpdateAppointmentStatusRequest{
				Status:       tt.to,
				CancelReason: tt.reason,
			})
			if tt.errCode != 0 {
				assert.True(t, apperrors.Is(err, tt.errCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, appt.Status)
			if tt.to == model.AppointmentStatusCancelled {
				assert.NotNil(t, appt.CancelledAt)
				assert.Equal(t, reason, *appt.CancelReason)
			}
		})
	}
}

func TestDeleteOnlyCancelled(t *testing.T) {
	f := newFixture()
	open := &model.Appointment{Base: model.NewBase(), ClinicID: f.clinicID, Status: model.AppointmentStatusScheduled}
	cancelled := &model.Appointment{Base: model.NewBase(), ClinicID: f.clinicID, Status: model.AppointmentStatusCancelled}
	f.appointments.On("Get", mock.Anything, f.clinicID, open.ID).Return(open, nil)
	f.appointments.On("Get", mock.Anything, f.clinicID, cancelled.ID).Return(cancelled, nil)
	f.appointments.On("Delete", mock.Anything, f.clinicID, cancelled.ID).Return(nil)

	err := f.svc.DeleteAppointment(context.Background(), f.clinicID, open.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	require.NoError(t, f.svc.DeleteAppointment(context.Background(), f.clinicID, cancelled.ID))
	f.appointments.AssertNumberOfCalls(t, "Delete", 1)
}

func TestListRejectsEmptyRange(t *testing.T) {
	f := newFixture()
	from := start
	to := start

	_, _, err := f.svc.ListAppointments(context.Background(), &model.AppointmentFilters{ClinicID: f.clinicID, From: &from, To: &to})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
