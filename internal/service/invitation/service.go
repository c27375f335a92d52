package invitation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const DefaultTTL = 7 * 24 * time.Hour

type Config struct {
	TTL       time.Duration
	AcceptURL string
}

type Repositories struct {
	Invitations repository.InvitationRepository
	Clinics     repository.ClinicRepository
	Members     repository.MemberRepository
	Users       repository.UserRepository
}

type Service struct {
	tx          repository.TxManager
	repos       Repositories
	permissions *permission.Service
	hasher      security.PasswordHasher
	mail        email.Service
	events      event.Emitter
	auditor     *audit.Service
	cfg         Config
	now         func() time.Time
}

func NewService(tx repository.TxManager, repos Repositories, permissions *permission.Service, hasher security.PasswordHasher,
	mail email.Service, events event.Emitter, auditor *audit.Service, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Service{
		tx:          tx,
		repos:       repos,
		permissions: permissions,
		hasher:      hasher,
		mail:        mail,
		events:      events,
		auditor:     auditor,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Create invites email to the clinic. A pending invitation for the same
// email is revoked first.
func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, req *model.CreateInvitationRequest) (*model.CreatedInvitation, error) {
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if !model.IsValidRole(req.Role) {
		return nil, apperrors.Validation(fmt.Sprintf("unknown role %q", req.Role))
	}

	inviterID := audit.ActorID(ctx)
	if err := s.authorizeRole(ctx, clinicID, req.Role); err != nil {
		return nil, err
	}

	member, err := s.repos.Members.ExistsByEmail(ctx, clinicID, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if member {
		return nil, apperrors.Conflict("this email already belongs to a clinic member", nil)
	}

	token, err := security.GenerateToken(security.DefaultTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inv := &model.Invitation{
		ClinicID:  clinicID,
		Email:     addr,
		Role:      req.Role,
		TokenHash: security.HashToken(token),
		InvitedBy: inviterID,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repos.Invitations.RevokePending(ctx, clinicID, addr, now); err != nil {
			return fmt.Errorf("failed to revoke earlier invitations: %w", err)
		}
		if err := s.repos.Invitations.Create(ctx, inv); err != nil {
			return fmt.Errorf("failed to create invitation: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionCreate, model.AuditEntityInvitation, inv.ID, &audit.LogOptions{
			Changes: inv,
		})
	})
	if err != nil {
		return nil, err
	}

	created := &model.CreatedInvitation{Invitation: inv, Token: token, AcceptURL: s.acceptURL(token)}
	s.notify(ctx, created)
	return created, nil
}

// Lookup returns the public preview of an invitation.
func (s *Service) Lookup(ctx context.Context, token string) (*model.InvitationPreview, error) {
	inv, err := s.repos.Invitations.GetByTokenHash(ctx, security.HashToken(token), false)
	if err != nil {
		return nil, err
	}
	clinic, err := s.repos.Clinics.Get(ctx, inv.ClinicID)
	if err != nil {
		return nil, err
	}
	return &model.InvitationPreview{
		ClinicName: clinic.Name,
		Email:      inv.Email,
		Role:       inv.Role,
		Status:     inv.StatusAt(s.now()),
		ExpiresAt:  inv.ExpiresAt,
	}, nil
}

// Accept redeems token. An unknown email becomes a new user, which requires
// name and password. The token works exactly once.
func (s *Service) Accept(ctx context.Context, token string, req *model.AcceptInvitationRequest) (*model.ClinicUser, error) {
	hash := security.HashToken(token)
	var membership *model.ClinicUser

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		inv, err := s.repos.Invitations.GetByTokenHash(ctx, hash, true)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if status := inv.StatusAt(now); status != model.InvitationStatusPending {
			return apperrors.Gone(fmt.Sprintf("invitation is %s", status))
		}

		user, err := s.findOrCreateUser(ctx, inv.Email, req)
		if err != nil {
			return err
		}

		if membership, err = s.join(ctx, inv, user.ID); err != nil {
			return err
		}
		if err := s.repos.Invitations.MarkAccepted(ctx, inv.ID, user.ID, now); err != nil {
			return fmt.Errorf("failed to mark invitation accepted: %w", err)
		}

		ctx = audit.WithRequestInfo(ctx, withActor(audit.RequestInfoFrom(ctx), user.ID))
		if err := s.auditor.Log(ctx, inv.ClinicID, model.AuditActionAccept, model.AuditEntityInvitation, inv.ID, nil); err != nil {
			return err
		}
		return s.events.Emit(ctx, event.InvitationAccepted, map[string]string{
			"invitation_id":  inv.ID.String(),
			"clinic_id":      inv.ClinicID.String(),
			"user_id":        user.ID.String(),
			"clinic_user_id": membership.ID.String(),
			"role":           string(inv.Role),
		})
	})
	if err != nil {
		return nil, err
	}

	s.permissions.Invalidate(ctx, membership.ID)
	return membership, nil
}

func (s *Service) List(ctx context.Context, filters *model.InvitationFilters) ([]*model.Invitation, error) {
	invitations, err := s.repos.Invitations.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

func (s *Service) Revoke(ctx context.Context, clinicID, id uuid.UUID) error {
	inv, err := s.repos.Invitations.Get(ctx, clinicID, id)
	if err != nil {
		return err
	}
	if status := inv.StatusAt(s.now()); status != model.InvitationStatusPending {
		return apperrors.Conflict(fmt.Sprintf("cannot revoke an invitation that is %s", status), nil)
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Invitations.Revoke(ctx, clinicID, id, s.now().UTC()); err != nil {
			return fmt.Errorf("failed to revoke invitation: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionRevoke, model.AuditEntityInvitation, id, nil)
	})
}

// Resend issues a fresh token and expiry and emails it again. Expired
// invitations can be resent; accepted or revoked ones cannot.
func (s *Service) Resend(ctx context.Context, clinicID, id uuid.UUID) (*model.CreatedInvitation, error) {
	inv, err := s.repos.Invitations.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	switch status := inv.StatusAt(s.now()); status {
	case model.InvitationStatusAccepted, model.InvitationStatusRevoked:
		return nil, apperrors.Conflict(fmt.Sprintf("cannot resend an invitation that is %s", status), nil)
	}
	if err := s.authorizeRole(ctx, clinicID, inv.Role); err != nil {
		return nil, err
	}

	token, err := security.GenerateToken(security.DefaultTokenBytes)
	if err != nil {
		return nil, err
	}
	inv.TokenHash = security.HashToken(token)
	inv.ExpiresAt = s.now().UTC().Add(s.cfg.TTL)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Invitations.UpdateToken(ctx, id, inv.TokenHash, inv.ExpiresAt); err != nil {
			return fmt.Errorf("failed to refresh invitation: %w", err)
		}
		return s.auditor.Log(ctx, clinicID, model.AuditActionUpdate, model.AuditEntityInvitation, id, &audit.LogOptions{
			Metadata: map[string]interface{}{"resent": true, "expires_at": inv.ExpiresAt},
		})
	})
	if err != nil {
		return nil, err
	}

	created := &model.CreatedInvitation{Invitation: inv, Token: token, AcceptURL: s.acceptURL(token)}
	s.notify(ctx, created)
	return created, nil
}

// authorizeRole checks the caller may hand out role: only owners invite
// owners and nobody invites above their own role.
func (s *Service) authorizeRole(ctx context.Context, clinicID uuid.UUID, role model.Role) error {
	inviter, err := s.repos.Members.GetByUser(ctx, clinicID, audit.ActorID(ctx))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Forbidden("not a member of this clinic")
		}
		return fmt.Errorf("failed to resolve inviter membership: %w", err)
	}
	if inviter.Status != model.MemberStatusActive || !inviter.Role.CanManage(role) {
		return apperrors.Forbidden(fmt.Sprintf("cannot invite members as %s", role))
	}
	return nil
}

// ExpireStale deletes invitations that expired before cutoff without being accepted.
func (s *Service) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repos.Invitations.DeleteExpiredBefore(ctx, cutoff)
}

func (s *Service) findOrCreateUser(ctx context.Context, addr string, req *model.AcceptInvitationRequest) (*model.User, error) {
	user, err := s.repos.Users.GetByEmail(ctx, addr)
	if err == nil {
		return user, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if req == nil || strings.TrimSpace(req.Name) == "" || req.Password == "" {
		return nil, apperrors.Validation("name and password are required to create an account")
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	user = &model.User{
		Email:        addr,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Status:       model.UserStatusActive,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// join adds userID to the invitation's clinic, reactivating a former
// membership instead of inserting a second row.
func (s *Service) join(ctx context.Context, inv *model.Invitation, userID uuid.UUID) (*model.ClinicUser, error) {
	existing, err := s.repos.Members.GetByUser(ctx, inv.ClinicID, userID)
	switch {
	case err == nil && existing.Status == model.MemberStatusActive:
		return nil, apperrors.Conflict("user is already a member of this clinic", nil)
	case err == nil:
		if err := s.repos.Members.UpdateStatus(ctx, inv.ClinicID, existing.ID, model.MemberStatusActive); err != nil {
			return nil, fmt.Errorf("failed to reactivate member: %w", err)
		}
		if err := s.repos.Members.UpdateRole(ctx, inv.ClinicID, existing.ID, inv.Role); err != nil {
			return nil, fmt.Errorf("failed to update member role: %w", err)
		}
		existing.Status = model.MemberStatusActive
		existing.Role = inv.Role
		return existing, s.permissions.ApplyRoleDefaults(ctx, existing.ID, inv.Role)
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	invitedBy := inv.InvitedBy
	member := &model.ClinicUser{
		ClinicID:  inv.ClinicID,
		UserID:    userID,
		Role:      inv.Role,
		Status:    model.MemberStatusActive,
		InvitedBy: &invitedBy,
	}
	if err := s.repos.Members.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return member, s.permissions.ApplyRoleDefaults(ctx, member.ID, inv.Role)
}

// notify emails the accept link. Delivery failures are logged; the
// invitation stays valid and can be resent.
func (s *Service) notify(ctx context.Context, created *model.CreatedInvitation) {
	inv := created.Invitation
	msg := email.Invitation{
		To:        inv.Email,
		Role:      string(inv.Role),
		AcceptURL: created.AcceptURL,
		ExpiresAt: inv.ExpiresAt,
		Language:  audit.RequestInfoFrom(ctx).Language,
	}
	if clinic, err := s.repos.Clinics.Get(ctx, inv.ClinicID); err == nil {
		msg.ClinicName = clinic.Name
	}
	if inviter, err := s.repos.Users.Get(ctx, inv.InvitedBy); err == nil {
		msg.InviterName = inviter.Name
	}

	if err := s.mail.SendInvitation(ctx, msg); err != nil {
		log.Warn().Err(err).Str("invitation_id", inv.ID.String()).Msg("failed to send invitation email")
	}
}

func (s *Service) acceptURL(token string) string {
	u, err := url.Parse(s.cfg.AcceptURL)
	if err != nil {
		return s.cfg.AcceptURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func withActor(info audit.RequestInfo, userID uuid.UUID) audit.RequestInfo {
	info.UserID = userID
	return info
}
