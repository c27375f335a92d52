package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/cache"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var (
	ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials", nil)
	ErrAccountLocked      = apperrors.Unauthorized("account is locked, please try again later", nil)
	ErrAccountDisabled    = apperrors.Unauthorized("account is disabled", nil)
	ErrMFARequired        = apperrors.Unauthorized("mfa code required", nil)
	ErrInvalidSession     = apperrors.Unauthorized("session is invalid or has expired", nil)
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	maxLoginAttempts  = 5
	lockoutDuration   = 15 * time.Minute
	touchInterval     = time.Minute
)

type Config struct {
	SessionTTL       time.Duration
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

// Deps groups the collaborators of Service.
type Deps struct {
	Users     repository.UserRepository
	Sessions  repository.SessionRepository
	JWT       auth.JWTService
	Hasher    security.PasswordHasher
	TOTP      security.TOTP
	Encryptor security.Encryptor
	// Cache holds resolved sessions keyed by session ID.
	Cache   *cache.Store
	Auditor *audit.Service
}

type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

// cachedSession is what Authenticate keeps in the session cache.
type cachedSession struct {
	session *model.Session
	user    *model.User
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = maxLoginAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = lockoutDuration
	}
	return &Service{Deps: deps, cfg: cfg, now: time.Now}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.Users.GetByEmail(ctx, addr); err == nil {
		return nil, apperrors.Conflict("email is already registered", nil)
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrHashingFailed) {
			return nil, apperrors.Internal(err)
		}
		return nil, apperrors.Validation(err.Error())
	}

	user := &model.User{
		Email:             addr,
		Name:              strings.TrimSpace(req.Name),
		PasswordHash:      hash,
		Status:            model.UserStatusActive,
		PreferredLanguage: req.PreferredLanguage,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	ctx = audit.WithRequestInfo(ctx, withUser(audit.RequestInfoFrom(ctx), user.ID))
	if err := s.Auditor.Log(ctx, uuid.Nil, model.AuditActionCreate, model.AuditEntityUser, user.ID, nil); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and opens a session. Repeated failures lock the
// account; a wrong TOTP code counts as a failure.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResult, error) {
	now := s.now().UTC()

	user, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status == model.UserStatusInactive {
		return nil, ErrAccountDisabled
	}
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}

	if err := s.Hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, s.recordFailure(ctx, user, now)
	}

	if user.MFAEnabled {
		if req.TOTPCode == "" {
			return nil, ErrMFARequired
		}
		ok, err := s.validateTOTP(user, req.TOTPCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.recordFailure(ctx, user, now)
		}
	}

	if err := s.Users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	token, err := security.GenerateToken(security.DefaultTokenBytes)
	if err != nil {
		return nil, err
	}
	info := audit.RequestInfoFrom(ctx)
	session := &model.Session{
		UserID:    user.ID,
		TokenHash: security.HashToken(token),
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	accessToken, accessExpires, err := s.JWT.GenerateAccessToken(user.ID, session.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ctx = audit.WithRequestInfo(ctx, withUser(info, user.ID))
	if err := s.Auditor.Log(ctx, uuid.Nil, model.AuditActionLogin, model.AuditEntityUser, user.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"session_id": session.ID},
	}); err != nil {
		return nil, err
	}

	return &model.LoginResult{
		User:           user,
		SessionID:      session.ID,
		SessionToken:   token,
		SessionExpires: session.ExpiresAt,
		AccessToken:    accessToken,
		AccessExpires:  accessExpires,
	}, nil
}

// Authenticate resolves a session cookie token or a bearer access token to
// the calling principal. The bearer token wins when both are present.
func (s *Service) Authenticate(ctx context.Context, sessionToken, bearer string) (*model.Principal, error) {
	var sessionID uuid.UUID
	switch {
	case bearer != "":
		claims, err := s.JWT.ValidateToken(bearer)
		if err != nil {
			return nil, apperrors.Unauthorized("invalid access token", err)
		}
		sessionID = claims.SessionID
	case sessionToken != "":
		session, err := s.Sessions.GetByTokenHash(ctx, security.HashToken(sessionToken))
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, ErrInvalidSession
			}
			return nil, err
		}
		sessionID = session.ID
	default:
		return nil, apperrors.Unauthorized("authentication required", nil)
	}

	entry, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !entry.session.Active(now) {
		s.Cache.Delete(ctx, sessionID.String())
		return nil, ErrInvalidSession
	}
	if entry.user.Status != model.UserStatusActive {
		return nil, ErrAccountDisabled
	}

	if now.Sub(entry.session.LastSeenAt) > touchInterval {
		if err := s.Sessions.Touch(ctx, sessionID, now); err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
		touched := *entry.session
		touched.LastSeenAt = now
		s.Cache.Set(sessionID.String(), &cachedSession{session: &touched, user: entry.user})
	}

	return &model.Principal{
		UserID:    entry.user.ID,
		SessionID: sessionID,
		Email:     entry.user.Email,
		Language:  entry.user.PreferredLanguage,
	}, nil
}

func (s *Service) resolve(ctx context.Context, sessionID uuid.UUID) (*cachedSession, error) {
	key := sessionID.String()
	if v, ok := s.Cache.Get(key); ok {
		if entry, ok := v.(*cachedSession); ok {
			return entry, nil
		}
	}

	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	user, err := s.Users.Get(ctx, session.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	entry := &cachedSession{session: session, user: user}
	s.Cache.Set(key, entry)
	return entry, nil
}

func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.Sessions.Revoke(ctx, sessionID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.Cache.Delete(ctx, sessionID.String())

	return s.Auditor.Log(ctx, uuid.Nil, model.AuditActionLogout, model.AuditEntityUser, audit.ActorID(ctx), &audit.LogOptions{
		Metadata: map[string]interface{}{"session_id": sessionID},
	})
}

// LogoutAll revokes every session of the user, including the current one.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int, error) {
	revoked, err := s.revokeSessions(ctx, userID, nil)
	if err != nil {
		return 0, err
	}
	if err := s.Auditor.Log(ctx, uuid.Nil, model.AuditActionLogout, model.AuditEntityUser, userID, &audit.LogOptions{
		Metadata: map[string]interface{}{"revoked_sessions": revoked},
	}); err != nil {
		return 0, err
	}
	return revoked, nil
}

func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]*model.Session, error) {
	sessions, err := s.Sessions.ListActive(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.Users.Get(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	before := *user

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.PreferredLanguage != nil {
		user.PreferredLanguage = *req.PreferredLanguage
	}
	if err := s.Users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := s.Auditor.Log(ctx, uuid.Nil, model.AuditActionUpdate, model.AuditEntityUser, userID, &audit.LogOptions{
		Changes: audit.Diff(before, user),
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password and signs out every other session.
func (s *Service) ChangePassword(ctx context.Context, principal *model.Principal, req *model.ChangePasswordRequest) error {
	user, err := s.Users.Get(ctx, principal.UserID)
	if err != nil {
		return err
	}
	if err := s.Hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.Unauthorized("current password is incorrect", nil)
	}

	hash, err := s.Hasher.Hash(req.NewPassword)
	if err != nil {
		return apperrors.Validation(err.Error())
	}
	if err := s.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	current := principal.SessionID
	revoked, err := s.revokeSessions(ctx, user.ID, &current)
	if err != nil {
		return err
	}
	return s.Auditor.Log(ctx, uuid.Nil, model.AuditActionUpdate, model.AuditEntityUser, user.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"password_changed": true, "revoked_sessions": revoked},
	})
}

// EnrollMFA starts TOTP setup. The secret is stored encrypted and only
// takes effect after ConfirmMFA.
func (s *Service) EnrollMFA(ctx context.Context, userID uuid.UUID) (*model.MFAEnrollment, error) {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, apperrors.Conflict("mfa is already enabled", nil)
	}

	key, err := s.TOTP.Generate(user.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	sealed, err := s.Encryptor.EncryptString(key.Secret)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.Users.SetMFA(ctx, user.ID, false, &sealed); err != nil {
		return nil, err
	}
	return &model.MFAEnrollment{Secret: key.Secret, OTPAuthURL: key.URL}, nil
}

func (s *Service) ConfirmMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		return apperrors.Conflict("mfa is already enabled", nil)
	}
	if user.MFASecret == nil {
		return apperrors.BadRequest("mfa enrollment has not been started", nil)
	}

	ok, err := s.validateTOTP(user, code)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Validation("invalid mfa code")
	}
	if err := s.Users.SetMFA(ctx, user.ID, true, user.MFASecret); err != nil {
		return err
	}
	return s.Auditor.Log(ctx, uuid.Nil, model.AuditActionUpdate, model.AuditEntityUser, user.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"mfa_enabled": true},
	})
}

func (s *Service) DisableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return apperrors.BadRequest("mfa is not enabled", nil)
	}

	ok, err := s.validateTOTP(user, code)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Validation("invalid mfa code")
	}
	if err := s.Users.SetMFA(ctx, user.ID, false, nil); err != nil {
		return err
	}
	return s.Auditor.Log(ctx, uuid.Nil, model.AuditActionUpdate, model.AuditEntityUser, user.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"mfa_enabled": false},
	})
}

// PurgeExpiredSessions deletes sessions that expired before cutoff.
func (s *Service) PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.Sessions.DeleteExpiredBefore(ctx, cutoff)
}

func (s *Service) recordFailure(ctx context.Context, user *model.User, now time.Time) error {
	attempts := user.FailedLoginAttempts
	if user.LockedUntil != nil {
		// the previous lock has run out; start counting again
		attempts = 0
	}
	attempts++

	var lockedUntil *time.Time
	if attempts >= s.cfg.MaxLoginAttempts {
		until := now.Add(s.cfg.LockoutDuration)
		lockedUntil = &until
	}
	if err := s.Users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	if lockedUntil != nil {
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

func (s *Service) validateTOTP(user *model.User, code string) (bool, error) {
	if user.MFASecret == nil {
		return false, nil
	}
	secret, err := s.Encryptor.DecryptString(*user.MFASecret)
	if err != nil {
		return false, apperrors.Internal(fmt.Errorf("failed to decrypt mfa secret: %w", err))
	}
	return s.TOTP.Validate(code, secret), nil
}

func (s *Service) revokeSessions(ctx context.Context, userID uuid.UUID, except *uuid.UUID) (int, error) {
	ids, err := s.Sessions.RevokeAllForUser(ctx, userID, except, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	for _, id := range ids {
		s.Cache.Delete(ctx, id.String())
	}
	return len(ids), nil
}

func withUser(info audit.RequestInfo, userID uuid.UUID) audit.RequestInfo {
	info.UserID = userID
	return info
}
