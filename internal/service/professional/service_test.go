package professional

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/mocks"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	pkgvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type fixture struct {
	svc     *Service
	repo    *mocks.ProfessionalRepository
	members *mocks.MemberRepository
}

func newFixture() *fixture {
	f := &fixture{
		repo:    new(mocks.ProfessionalRepository),
		members: new(mocks.MemberRepository),
	}
	audits := new(mocks.AuditRepository)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewService(mocks.TxManager{}, f.repo, f.members, pkgvalidator.NewBinding(model.Validators()), audit.NewService(audits))
	return f
}

func strPtr(s string) *string { return &s }

func TestCreateProfessional(t *testing.T) {
	f := newFixture()
	clinicID := uuid.New()
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Professional")).Return(nil)

	p, err := f.svc.CreateProfessional(context.Background(), clinicID, &model.CreateProfessionalRequest{
		Name:  "Dra. Ana",
		Color: strPtr("#ff8800"),
	})
	require.NoError(t, err)
	assert.Equal(t, clinicID, p.ClinicID)
	assert.Equal(t, model.ProfessionalStatusActive, p.Status)
	f.members.AssertNotCalled(t, "GetByUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateProfessionalRejectsBadColor(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateProfessional(context.Background(), uuid.New(), &model.CreateProfessionalRequest{
		Name:  "Dra. Ana",
		Color: strPtr("orange"),
	})
	assert.Error(t, err)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProfessionalLinkedUserMustBeMember(t *testing.T) {
	f := newFixture()
	clinicID, userID := uuid.New(), uuid.New()
	f.members.On("GetByUser", mock.Anything, clinicID, userID).Return(nil, apperrors.NotFound("member", nil))

	_, err := f.svc.CreateProfessional(context.Background(), clinicID, &model.CreateProfessionalRequest{
		Name:   "Dra. Ana",
		UserID: &userID,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestCreateProfessionalLinkedMember(t *testing.T) {
	f := newFixture()
	clinicID, userID := uuid.New(), uuid.New()
	f.members.On("GetByUser", mock.Anything, clinicID, userID).Return(&model.ClinicUser{ClinicID: clinicID, UserID: userID}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	p, err := f.svc.CreateProfessional(context.Background(), clinicID, &model.CreateProfessionalRequest{
		Name:   "Dra. Ana",
		UserID: &userID,
	})
	require.NoError(t, err)
	assert.Equal(t, userID, *p.UserID)
}

func TestUpdateProfessional(t *testing.T) {
	f := newFixture()
	existing := &model.Professional{Base: model.NewBase(), ClinicID: uuid.New(), Name: "Ana", Status: model.ProfessionalStatusActive}
	f.repo.On("Get", mock.Anything, existing.ClinicID, existing.ID).Return(existing, nil)
	f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	inactive := model.ProfessionalStatusInactive
	p, err := f.svc.UpdateProfessional(context.Background(), existing.ClinicID, existing.ID, &model.UpdateProfessionalRequest{
		Specialty: strPtr("Dermatology"),
		Status:    &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dermatology", *p.Specialty)
	assert.Equal(t, model.ProfessionalStatusInactive, p.Status)
}

func TestDeleteProfessional(t *testing.T) {
	f := newFixture()
	clinicID, id := uuid.New(), uuid.New()
	f.repo.On("Delete", mock.Anything, clinicID, id).Return(nil)

	require.NoError(t, f.svc.DeleteProfessional(context.Background(), clinicID, id))
	f.repo.AssertExpectations(t)
}
