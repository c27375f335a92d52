package invitation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/cache"
	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/mocks"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type fakeMail struct {
	sent []email.Invitation
}

func (f *fakeMail) SendInvitation(_ context.Context, inv email.Invitation) error {
	f.sent = append(f.sent, inv)
	return nil
}

type fixture struct {
	svc         *Service
	invitations *mocks.InvitationRepository
	clinics     *mocks.ClinicRepository
	members     *mocks.MemberRepository
	users       *mocks.UserRepository
	perms       *mocks.PermissionRepository
	outbox      *mocks.OutboxRepository
	mail        *fakeMail
	now         time.Time
}

func newFixture() *fixture {
	f := &fixture{
		invitations: new(mocks.InvitationRepository),
		clinics:     new(mocks.ClinicRepository),
		members:     new(mocks.MemberRepository),
		users:       new(mocks.UserRepository),
		perms:       new(mocks.PermissionRepository),
		outbox:      new(mocks.OutboxRepository),
		mail:        &fakeMail{},
		now:         time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	audits := new(mocks.AuditRepository)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.outbox.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()

	auditor := audit.NewService(audits)
	store := cache.New("permissions", time.Minute, time.Minute, nil)
	perms := permission.NewService(mocks.TxManager{}, f.perms, f.members, store, auditor)
	repos := Repositories{Invitations: f.invitations, Clinics: f.clinics, Members: f.members, Users: f.users}

	f.svc = NewService(mocks.TxManager{}, repos, perms, security.NewBcryptHasher(bcrypt.MinCost), f.mail,
		event.NewService(f.outbox), auditor, Config{AcceptURL: "https://app.example.com/accept"})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func pending(clinicID uuid.UUID, addr string, expires time.Time) *model.Invitation {
	return &model.Invitation{
		Base:      model.NewBase(),
		ClinicID:  clinicID,
		Email:     addr,
		Role:      model.RoleReceptionist,
		InvitedBy: uuid.New(),
		ExpiresAt: expires,
	}
}

// actingAs puts a caller holding role into ctx.
func (f *fixture) actingAs(clinicID uuid.UUID, role model.Role) (context.Context, uuid.UUID) {
	userID := uuid.New()
	f.members.On("GetByUser", mock.Anything, clinicID, userID).
		Return(&model.ClinicUser{ClinicID: clinicID, UserID: userID, Role: role, Status: model.MemberStatusActive}, nil)
	return audit.WithRequestInfo(context.Background(), audit.RequestInfo{UserID: userID}), userID
}

func TestCreateStoresHashAndEmailsLink(t *testing.T) {
	f := newFixture()
	clinicID, inviterID := uuid.New(), uuid.New()
	ctx := audit.WithRequestInfo(context.Background(), audit.RequestInfo{UserID: inviterID, Language: "es"})
	f.members.On("GetByUser", mock.Anything, clinicID, inviterID).
		Return(&model.ClinicUser{Role: model.RoleAdmin, Status: model.MemberStatusActive}, nil)

	var saved *model.Invitation
	f.members.On("ExistsByEmail", mock.Anything, clinicID, "bia@example.com").Return(false, nil)
	f.invitations.On("RevokePending", mock.Anything, clinicID, "bia@example.com", f.now).Return(int64(1), nil)
	f.invitations.On("Create", mock.Anything, mock.AnythingOfType("*model.Invitation")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*model.Invitation) }).
		Return(nil)
	f.clinics.On("Get", mock.Anything, clinicID).Return(&model.Clinic{Name: "Bella"}, nil)
	f.users.On("Get", mock.Anything, inviterID).Return(&model.User{Name: "Ana"}, nil)

	created, err := f.svc.Create(ctx, clinicID, &model.CreateInvitationRequest{
		Email: " Bia@Example.com ",
		Role:  model.RoleReceptionist,
	})
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.Equal(t, security.HashToken(created.Token), saved.TokenHash)
	assert.NotEqual(t, created.Token, saved.TokenHash)
	assert.Equal(t, f.now.Add(DefaultTTL), saved.ExpiresAt)
	assert.Equal(t, inviterID, saved.InvitedBy)
	assert.Contains(t, created.AcceptURL, "https://app.example.com/accept?token=")

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "bia@example.com", f.mail.sent[0].To)
	assert.Equal(t, "Bella", f.mail.sent[0].ClinicName)
	assert.Equal(t, "Ana", f.mail.sent[0].InviterName)
	assert.Equal(t, "es", f.mail.sent[0].Language)
}

func TestCreateRejectsExistingMember(t *testing.T) {
	f := newFixture()
	clinicID := uuid.New()
	ctx, _ := f.actingAs(clinicID, model.RoleOwner)
	f.members.On("ExistsByEmail", mock.Anything, clinicID, "ana@example.com").Return(true, nil)

	_, err := f.svc.Create(ctx, clinicID, &model.CreateInvitationRequest{Email: "ana@example.com", Role: model.RoleAdmin})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	f.invitations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOnlyOwnersInviteOwners(t *testing.T) {
	f := newFixture()
	clinicID, adminID := uuid.New(), uuid.New()
	ctx := audit.WithRequestInfo(context.Background(), audit.RequestInfo{UserID: adminID})
	f.members.On("GetByUser", mock.Anything, clinicID, adminID).
		Return(&model.ClinicUser{Role: model.RoleAdmin, Status: model.MemberStatusActive}, nil)

	_, err := f.svc.Create(ctx, clinicID, &model.CreateInvitationRequest{Email: "x@example.com", Role: model.RoleOwner})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestCannotInviteAboveOwnRole(t *testing.T) {
	f := newFixture()
	clinicID := uuid.New()
	ctx, _ := f.actingAs(clinicID, model.RoleReceptionist)

	_, err := f.svc.Create(ctx, clinicID, &model.CreateInvitationRequest{Email: "x@example.com", Role: model.RoleAdmin})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	f.members.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything, mock.Anything)
	f.invitations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateByNonMemberIsForbidden(t *testing.T) {
	f := newFixture()
	clinicID := uuid.New()
	f.members.On("GetByUser", mock.Anything, clinicID, uuid.Nil).Return(nil, apperrors.NotFound("clinic member", nil))

	_, err := f.svc.Create(context.Background(), clinicID, &model.CreateInvitationRequest{Email: "x@example.com", Role: model.RoleReceptionist})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestAcceptCreatesUserAndMembership(t *testing.T) {
	f := newFixture()
	clinicID := uuid.New()
	token := "plain-token"
	inv := pending(clinicID, "new@example.com", f.now.Add(time.Hour))

	f.invitations.On("GetByTokenHash", mock.Anything, security.HashToken(token), true).Return(inv, nil)
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, apperrors.NotFound("user", nil))
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.User).ID = uuid.New() }).
		Return(nil)
	f.members.On("GetByUser", mock.Anything, clinicID, mock.Anything).Return(nil, apperrors.NotFound("clinic member", nil))
	f.members.On("Create", mock.Anything, mock.AnythingOfType("*model.ClinicUser")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.ClinicUser).ID = uuid.New() }).
		Return(nil)
	f.perms.On("DeleteAll", mock.Anything, mock.Anything).Return(nil)
	f.perms.On("Grant", mock.Anything, mock.Anything, model.DefaultGrants(model.RoleReceptionist)).Return(nil)
	f.invitations.On("MarkAccepted", mock.Anything, inv.ID, mock.Anything, f.now).Return(nil)

	member, err := f.svc.Accept(context.Background(), token, &model.AcceptInvitationRequest{Name: "Bia", Password: "s3cret-pass"})
	require.NoError(t, err)

	assert.Equal(t, clinicID, member.ClinicID)
	assert.Equal(t, model.RoleReceptionist, member.Role)
	require.NotNil(t, member.InvitedBy)
	assert.Equal(t, inv.InvitedBy, *member.InvitedBy)
	f.invitations.AssertExpectations(t)
	f.outbox.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		return e.EventType == event.InvitationAccepted
	}))
}

func TestAcceptNewUserRequiresNameAndPassword(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "new@example.com", f.now.Add(time.Hour))

	f.invitations.On("GetByTokenHash", mock.Anything, mock.Anything, true).Return(inv, nil)
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, apperrors.NotFound("user", nil))

	_, err := f.svc.Accept(context.Background(), "t", &model.AcceptInvitationRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	f.invitations.AssertNotCalled(t, "MarkAccepted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptTwiceIsGone(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "a@example.com", f.now.Add(time.Hour))
	accepted := f.now.Add(-time.Minute)
	inv.AcceptedAt = &accepted

	f.invitations.On("GetByTokenHash", mock.Anything, mock.Anything, true).Return(inv, nil)

	_, err := f.svc.Accept(context.Background(), "t", &model.AcceptInvitationRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrGone))
}

func TestAcceptExpiredIsGone(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "a@example.com", f.now)

	f.invitations.On("GetByTokenHash", mock.Anything, mock.Anything, true).Return(inv, nil)

	_, err := f.svc.Accept(context.Background(), "t", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrGone))
}

func TestAcceptByActiveMemberConflicts(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "a@example.com", f.now.Add(time.Hour))
	user := &model.User{Base: model.NewBase(), Email: "a@example.com"}

	f.invitations.On("GetByTokenHash", mock.Anything, mock.Anything, true).Return(inv, nil)
	f.users.On("GetByEmail", mock.Anything, "a@example.com").Return(user, nil)
	f.members.On("GetByUser", mock.Anything, inv.ClinicID, user.ID).
		Return(&model.ClinicUser{Status: model.MemberStatusActive}, nil)

	_, err := f.svc.Accept(context.Background(), "t", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestLookup(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "a@example.com", f.now.Add(time.Hour))

	f.invitations.On("GetByTokenHash", mock.Anything, security.HashToken("tok"), false).Return(inv, nil)
	f.clinics.On("Get", mock.Anything, inv.ClinicID).Return(&model.Clinic{Name: "Bella"}, nil)

	preview, err := f.svc.Lookup(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Bella", preview.ClinicName)
	assert.Equal(t, model.InvitationStatusPending, preview.Status)
}

func TestRevokeOnlyPending(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "a@example.com", f.now.Add(-time.Hour))
	f.invitations.On("Get", mock.Anything, inv.ClinicID, inv.ID).Return(inv, nil)

	err := f.svc.Revoke(context.Background(), inv.ClinicID, inv.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestResendRefreshesExpiredInvitation(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "a@example.com", f.now.Add(-time.Hour))
	oldHash := inv.TokenHash
	ctx, _ := f.actingAs(inv.ClinicID, model.RoleAdmin)

	f.invitations.On("Get", mock.Anything, inv.ClinicID, inv.ID).Return(inv, nil)
	f.invitations.On("UpdateToken", mock.Anything, inv.ID, mock.AnythingOfType("string"), f.now.Add(DefaultTTL)).Return(nil)
	f.clinics.On("Get", mock.Anything, inv.ClinicID).Return(&model.Clinic{Name: "Bella"}, nil)
	f.users.On("Get", mock.Anything, inv.InvitedBy).Return(nil, apperrors.NotFound("user", nil))

	created, err := f.svc.Resend(ctx, inv.ClinicID, inv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, created.Invitation.TokenHash)
	assert.Equal(t, security.HashToken(created.Token), created.Invitation.TokenHash)
	assert.Len(t, f.mail.sent, 1)
}

func TestResendChecksInviterRole(t *testing.T) {
	f := newFixture()
	inv := pending(uuid.New(), "a@example.com", f.now.Add(time.Hour))
	inv.Role = model.RoleOwner
	ctx, _ := f.actingAs(inv.ClinicID, model.RoleAdmin)
	f.invitations.On("Get", mock.Anything, inv.ClinicID, inv.ID).Return(inv, nil)

	_, err := f.svc.Resend(ctx, inv.ClinicID, inv.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	f.invitations.AssertNotCalled(t, "UpdateToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
