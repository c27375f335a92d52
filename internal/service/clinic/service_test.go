package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/cache"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/mocks"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type fixture struct {
	svc     *Service
	clinics *mocks.ClinicRepository
	members *mocks.MemberRepository
	perms   *mocks.PermissionRepository
	audits  *mocks.AuditRepository
}

func newFixture() *fixture {
	f := &fixture{
		clinics: new(mocks.ClinicRepository),
		members: new(mocks.MemberRepository),
		perms:   new(mocks.PermissionRepository),
		audits:  new(mocks.AuditRepository),
	}
	f.audits.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	auditor := audit.NewService(f.audits)
	store := cache.New("permissions", time.Minute, time.Minute, nil)
	perms := permission.NewService(mocks.TxManager{}, f.perms, f.members, store, auditor)
	f.svc = NewService(mocks.TxManager{}, f.clinics, f.members, perms, auditor, "BRL")
	return f
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Clínica Estética Bella", "clinica-estetica-bella"},
		{"  Dr. Ana & Co.  ", "dr-ana-co"},
		{"São João 24h", "sao-joao-24h"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestCreateClinicMakesCallerOwner(t *testing.T) {
	f := newFixture()
	ownerID := uuid.New()

	var owner *model.ClinicUser
	f.clinics.On("SlugExists", mock.Anything, "clinica-bella").Return(false, nil)
	f.clinics.On("Create", mock.Anything, mock.AnythingOfType("*model.Clinic")).Return(nil)
	f.members.On("Create", mock.Anything, mock.AnythingOfType("*model.ClinicUser")).
		Run(func(args mock.Arguments) { owner = args.Get(1).(*model.ClinicUser) }).
		Return(nil)
	f.perms.On("DeleteAll", mock.Anything, mock.Anything).Return(nil)
	f.perms.On("Grant", mock.Anything, mock.Anything, model.AllGrants()).Return(nil)

	clinic, err := f.svc.CreateClinic(context.Background(), ownerID, &model.CreateClinicRequest{Name: "Clínica Bella"})
	require.NoError(t, err)

	assert.Equal(t, "clinica-bella", clinic.Slug)
	assert.Equal(t, "brl", clinic.Currency)
	assert.Equal(t, "UTC", clinic.Timezone)
	assert.Equal(t, model.ClinicStatusActive, clinic.Status)

	require.NotNil(t, owner)
	assert.Equal(t, ownerID, owner.UserID)
	assert.Equal(t, clinic.ID, owner.ClinicID)
	assert.Equal(t, model.RoleOwner, owner.Role)
	f.perms.AssertExpectations(t)
}

func TestCreateClinicAddsSuffixWhenSlugTaken(t *testing.T) {
	f := newFixture()
	f.clinics.On("SlugExists", mock.Anything, "bella").Return(true, nil).Once()
	f.clinics.On("SlugExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	f.clinics.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.members.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.perms.On("DeleteAll", mock.Anything, mock.Anything).Return(nil)
	f.perms.On("Grant", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clinic, err := f.svc.CreateClinic(context.Background(), uuid.New(), &model.CreateClinicRequest{Name: "Bella"})
	require.NoError(t, err)
	assert.Regexp(t, `^bella-[0-9a-f]{6}$`, clinic.Slug)
}

func TestCreateClinicValidation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateClinic(context.Background(), uuid.New(), &model.CreateClinicRequest{Name: "  "})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.CreateClinic(context.Background(), uuid.New(), &model.CreateClinicRequest{Name: "A", Timezone: "Mars/Olympus"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	f.clinics.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateClinicAppliesFields(t *testing.T) {
	f := newFixture()
	existing := &model.Clinic{Base: model.NewBase(), Name: "Old", Timezone: "UTC", Currency: "brl"}
	name, tz := "New", "America/Sao_Paulo"

	f.clinics.On("Get", mock.Anything, existing.ID).Return(existing, nil)
	f.clinics.On("Update", mock.Anything, mock.MatchedBy(func(c *model.Clinic) bool {
		return c.Name == "New" && c.Timezone == "America/Sao_Paulo"
	})).Return(nil)

	clinic, err := f.svc.UpdateClinic(context.Background(), existing.ID, &model.UpdateClinicRequest{Name: &name, Timezone: &tz})
	require.NoError(t, err)
	assert.Equal(t, "New", clinic.Name)
	f.clinics.AssertExpectations(t)
}

func TestSuspendRequiresOwner(t *testing.T) {
	f := newFixture()
	clinicID, userID := uuid.New(), uuid.New()
	ctx := audit.WithRequestInfo(context.Background(), audit.RequestInfo{UserID: userID})

	f.members.On("GetByUser", mock.Anything, clinicID, userID).
		Return(&model.ClinicUser{Role: model.RoleAdmin, Status: model.MemberStatusActive}, nil)

	_, err := f.svc.SuspendClinic(ctx, clinicID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	f.clinics.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSuspendAndReactivate(t *testing.T) {
	f := newFixture()
	clinic := &model.Clinic{Base: model.NewBase(), Status: model.ClinicStatusActive}
	userID := uuid.New()
	ctx := audit.WithRequestInfo(context.Background(), audit.RequestInfo{UserID: userID})

	f.members.On("GetByUser", mock.Anything, clinic.ID, userID).
		Return(&model.ClinicUser{Role: model.RoleOwner, Status: model.MemberStatusActive}, nil)
	f.clinics.On("Get", mock.Anything, clinic.ID).Return(clinic, nil)
	f.clinics.On("UpdateStatus", mock.Anything, clinic.ID, model.ClinicStatusSuspended).Return(nil)
	f.clinics.On("UpdateStatus", mock.Anything, clinic.ID, model.ClinicStatusActive).Return(nil)

	got, err := f.svc.SuspendClinic(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClinicStatusSuspended, got.Status)

	got, err = f.svc.ReactivateClinic(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClinicStatusActive, got.Status)
	f.clinics.AssertExpectations(t)
}
