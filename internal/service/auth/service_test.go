package auth

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
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/mocks"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

// fakeTOTP accepts "123456" for any secret.
type fakeTOTP struct{}

func (fakeTOTP) Generate(account string) (*security.TOTPKey, error) {
	return &security.TOTPKey{Secret: "JBSWY3DPEHPK3PXP", URL: "otpauth://totp/clinic:" + account}, nil
}

func (fakeTOTP) Validate(code, secret string) bool {
	return code == "123456" && secret != ""
}

type fixture struct {
	svc       *Service
	users     *mocks.UserRepository
	sessions  *mocks.SessionRepository
	hasher    security.PasswordHasher
	encryptor security.Encryptor
	jwt       auth.JWTService
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	enc, err := security.NewAESEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	audits := new(mocks.AuditRepository)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()

	f := &fixture{
		users:     new(mocks.UserRepository),
		sessions:  new(mocks.SessionRepository),
		hasher:    security.NewBcryptHasher(bcrypt.MinCost),
		encryptor: enc,
		jwt:       auth.NewJWTService("secret", "clinic-api", 15*time.Minute),
		now:       time.Now().UTC(),
	}
	f.svc = NewService(Deps{
		Users:     f.users,
		Sessions:  f.sessions,
		JWT:       f.jwt,
		Hasher:    f.hasher,
		TOTP:      fakeTOTP{},
		Encryptor: enc,
		Cache:     cache.New("sessions", time.Minute, time.Minute, nil),
		Auditor:   audit.NewService(audits),
	}, Config{})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) user(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return &model.User{
		Base:              model.NewBase(),
		Email:             "ana@example.com",
		Name:              "Ana",
		PasswordHash:      hash,
		Status:            model.UserStatusActive,
		PreferredLanguage: "pt-BR",
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(nil, apperrors.NotFound("user", nil))
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

	user, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Name: "Ana", Email: "Ana@Example.com", Password: "long-enough",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NoError(t, f.hasher.Compare(user.PasswordHash, "long-enough"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(&model.User{}, nil)

	_, err := f.svc.Register(context.Background(), &model.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "long-enough"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestLoginCreatesSessionAndToken(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	ctx := audit.WithRequestInfo(context.Background(), audit.RequestInfo{IPAddress: "10.0.0.1", UserAgent: "test"})

	var session *model.Session
	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
	f.users.On("RecordLoginSuccess", mock.Anything, user.ID, f.now).Return(nil)
	f.sessions.On("Create", mock.Anything, mock.AnythingOfType("*model.Session")).
		Run(func(args mock.Arguments) {
			session = args.Get(1).(*model.Session)
			session.ID = uuid.New()
		}).
		Return(nil)

	result, err := f.svc.Login(ctx, &model.LoginRequest{Email: "ana@example.com", Password: "correct-pass"})
	require.NoError(t, err)

	require.NotNil(t, session)
	assert.Equal(t, security.HashToken(result.SessionToken), session.TokenHash)
	assert.Equal(t, "10.0.0.1", session.IPAddress)
	assert.Equal(t, f.now.Add(defaultSessionTTL), result.SessionExpires)

	claims, err := f.jwt.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.ID, claims.SessionID)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestLoginWrongPasswordCountsFailure(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	user.FailedLoginAttempts = 2

	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
	f.users.On("RecordLoginFailure", mock.Anything, user.ID, 3, (*time.Time)(nil)).Return(nil)

	_, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
	assert.Equal(t, ErrInvalidCredentials, err)
	f.users.AssertExpectations(t)
}

func TestFifthFailureLocksAccount(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	user.FailedLoginAttempts = 4
	until := f.now.Add(lockoutDuration)

	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
	f.users.On("RecordLoginFailure", mock.Anything, user.ID, 5, &until).Return(nil)

	_, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
	assert.Equal(t, ErrAccountLocked, err)
	f.users.AssertExpectations(t)
}

func TestLockedAccountRejectsEvenCorrectPassword(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	until := f.now.Add(5 * time.Minute)
	user.LockedUntil = &until

	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)

	_, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "correct-pass"})
	assert.Equal(t, ErrAccountLocked, err)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFailureAfterLockExpiryRestartsCount(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	user.FailedLoginAttempts = 5
	expired := f.now.Add(-time.Minute)
	user.LockedUntil = &expired

	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
	f.users.On("RecordLoginFailure", mock.Anything, user.ID, 1, (*time.Time)(nil)).Return(nil)

	_, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
	assert.Equal(t, ErrInvalidCredentials, err)
}

func TestLoginWithMFA(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	sealed, err := f.encryptor.EncryptString("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	user.MFAEnabled = true
	user.MFASecret = &sealed

	f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)

	_, err = f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "correct-pass"})
	assert.Equal(t, ErrMFARequired, err)

	f.users.On("RecordLoginFailure", mock.Anything, user.ID, 1, (*time.Time)(nil)).Return(nil).Once()
	_, err = f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "correct-pass", TOTPCode: "000000"})
	assert.Equal(t, ErrInvalidCredentials, err)

	f.users.On("RecordLoginSuccess", mock.Anything, user.ID, f.now).Return(nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	_, err = f.svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "correct-pass", TOTPCode: "123456"})
	assert.NoError(t, err)
}

func TestAuthenticateWithCookieAndBearer(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	session := &model.Session{
		Base:       model.NewBase(),
		UserID:     user.ID,
		TokenHash:  security.HashToken("cookie-token"),
		ExpiresAt:  f.now.Add(time.Hour),
		LastSeenAt: f.now,
	}

	f.sessions.On("GetByTokenHash", mock.Anything, session.TokenHash).Return(session, nil)
	f.sessions.On("Get", mock.Anything, session.ID).Return(session, nil).Once()
	f.users.On("Get", mock.Anything, user.ID).Return(user, nil).Once()

	principal, err := f.svc.Authenticate(context.Background(), "cookie-token", "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, session.ID, principal.SessionID)
	assert.Equal(t, "pt-BR", principal.Language)

	bearer, _, err := f.jwt.GenerateAccessToken(user.ID, session.ID, user.Email)
	require.NoError(t, err)
	principal, err = f.svc.Authenticate(context.Background(), "", bearer)
	require.NoError(t, err)
	assert.Equal(t, session.ID, principal.SessionID)

	// the second call was served from cache
	f.sessions.AssertNumberOfCalls(t, "Get", 1)
}

func TestAuthenticateRejectsRevokedSession(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	revoked := f.now.Add(-time.Minute)
	session := &model.Session{Base: model.NewBase(), UserID: user.ID, ExpiresAt: f.now.Add(time.Hour), RevokedAt: &revoked}

	f.sessions.On("Get", mock.Anything, session.ID).Return(session, nil)
	f.users.On("Get", mock.Anything, user.ID).Return(user, nil)

	bearer, _, err := f.jwt.GenerateAccessToken(user.ID, session.ID, user.Email)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), "", bearer)
	assert.Equal(t, ErrInvalidSession, err)
}

func TestAuthenticateRejectsInactiveUser(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	user.Status = model.UserStatusInactive
	session := &model.Session{Base: model.NewBase(), UserID: user.ID, ExpiresAt: f.now.Add(time.Hour), LastSeenAt: f.now}

	f.sessions.On("Get", mock.Anything, session.ID).Return(session, nil)
	f.users.On("Get", mock.Anything, user.ID).Return(user, nil)

	bearer, _, err := f.jwt.GenerateAccessToken(user.ID, session.ID, user.Email)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), "", bearer)
	assert.Equal(t, ErrAccountDisabled, err)
}

func TestAuthenticateWithoutCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Authenticate(context.Background(), "", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLogoutEvictsCachedSession(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	session := &model.Session{Base: model.NewBase(), UserID: user.ID, ExpiresAt: f.now.Add(time.Hour), LastSeenAt: f.now}

	f.sessions.On("Get", mock.Anything, session.ID).Return(session, nil)
	f.users.On("Get", mock.Anything, user.ID).Return(user, nil)
	bearer, _, err := f.jwt.GenerateAccessToken(user.ID, session.ID, user.Email)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), "", bearer)
	require.NoError(t, err)

	f.sessions.On("Revoke", mock.Anything, session.ID, f.now).
		Run(func(mock.Arguments) { session.RevokedAt = &f.now }).
		Return(nil)
	require.NoError(t, f.svc.Logout(context.Background(), session.ID))

	_, err = f.svc.Authenticate(context.Background(), "", bearer)
	assert.Equal(t, ErrInvalidSession, err)
	f.sessions.AssertNumberOfCalls(t, "Get", 2)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "old-password")
	current := uuid.New()

	f.users.On("Get", mock.Anything, user.ID).Return(user, nil)
	f.users.On("UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil)
	f.sessions.On("RevokeAllForUser", mock.Anything, user.ID, &current, f.now).Return([]uuid.UUID{uuid.New()}, nil)

	err := f.svc.ChangePassword(context.Background(), &model.Principal{UserID: user.ID, SessionID: current},
		&model.ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "new-password"})
	require.NoError(t, err)
	f.sessions.AssertExpectations(t)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "old-password")
	f.users.On("Get", mock.Anything, user.ID).Return(user, nil)

	err := f.svc.ChangePassword(context.Background(), &model.Principal{UserID: user.ID},
		&model.ChangePasswordRequest{CurrentPassword: "wrong-one", NewPassword: "new-password"})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	f.users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestMFAEnrollConfirmDisable(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "correct-pass")
	f.users.On("Get", mock.Anything, user.ID).Return(user, nil)

	f.users.On("SetMFA", mock.Anything, user.ID, false, mock.AnythingOfType("*string")).
		Run(func(args mock.Arguments) { user.MFASecret = args.Get(3).(*string) }).
		Return(nil).Once()
	enrollment, err := f.svc.EnrollMFA(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", enrollment.Secret)
	require.NotNil(t, user.MFASecret)
	assert.NotEqual(t, enrollment.Secret, *user.MFASecret)

	assert.True(t, apperrors.Is(f.svc.ConfirmMFA(context.Background(), user.ID, "999999"), apperrors.ErrValidation))

	f.users.On("SetMFA", mock.Anything, user.ID, true, user.MFASecret).
		Run(func(mock.Arguments) { user.MFAEnabled = true }).
		Return(nil).Once()
	require.NoError(t, f.svc.ConfirmMFA(context.Background(), user.ID, "123456"))

	f.users.On("SetMFA", mock.Anything, user.ID, false, (*string)(nil)).Return(nil).Once()
	require.NoError(t, f.svc.DisableMFA(context.Background(), user.ID, "123456"))
	f.users.AssertExpectations(t)
}
