package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// Context keys set by the auth middleware.
const (
	ContextUserID     = "user_id"
	ContextPrincipal  = "principal"
	ContextMembership = "membership"
	ContextClinicID   = "clinic_id"
)

type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken, bearer string) (*model.Principal, error)
}

type MembershipResolver interface {
	GetMembership(ctx context.Context, clinicID, userID uuid.UUID) (*model.ClinicUser, error)
}

type ClinicGetter interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
}

type AuthMiddleware struct {
	auth        Authenticator
	members     MembershipResolver
	clinics     ClinicGetter
	permissions permission.Checker
	cookieName  string
}

func NewAuthMiddleware(auth Authenticator, members MembershipResolver, clinics ClinicGetter, permissions permission.Checker, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		auth:        auth,
		members:     members,
		clinics:     clinics,
		permissions: permissions,
		cookieName:  cookieName,
	}
}

// Authenticate accepts a bearer access token or the session cookie and
// stores the principal on the gin and request contexts.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var bearer string
		if header := c.GetHeader("Authorization"); header != "" {
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				httputil.RespondWithError(c, apperrors.Unauthorized("invalid authorization format", nil))
				return
			}
			bearer = token
		}
		cookie, _ := c.Cookie(m.cookieName)
		if bearer == "" && cookie == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
			return
		}

		principal, err := m.auth.Authenticate(c.Request.Context(), cookie, bearer)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		info := audit.RequestInfoFrom(c.Request.Context())
		info.UserID = principal.UserID
		if info.IPAddress == "" {
			info.IPAddress = c.ClientIP()
			info.UserAgent = c.Request.UserAgent()
		}
		// An explicit Accept-Language wins over the profile preference.
		if info.Language == "" {
			info.Language = principal.Language
		}
		c.Request = c.Request.WithContext(audit.WithRequestInfo(c.Request.Context(), info))

		c.Set(ContextUserID, principal.UserID.String())
		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// RequireClinicMember resolves the caller's membership in :clinicID. Non
// members and inactive members get 403, as do members of suspended clinics.
func (m *AuthMiddleware) RequireClinicMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
			return
		}
		clinicID, err := uuid.Parse(c.Param("clinicID"))
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid clinic id", err))
			return
		}

		ctx := c.Request.Context()
		member, err := m.members.GetMembership(ctx, clinicID, principal.UserID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				httputil.RespondWithError(c, apperrors.Forbidden("not a member of this clinic"))
				return
			}
			httputil.RespondWithError(c, err)
			return
		}
		if member.Status != model.MemberStatusActive {
			httputil.RespondWithError(c, apperrors.Forbidden("membership is inactive"))
			return
		}

		clinic, err := m.clinics.GetClinic(ctx, clinicID)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		if clinic.Status == model.ClinicStatusSuspended {
			httputil.RespondWithError(c, apperrors.Forbidden("clinic is suspended"))
			return
		}

		c.Set(ContextClinicID, clinicID)
		c.Set(ContextMembership, member)
		c.Next()
	}
}

// RequirePermission must run after RequireClinicMember.
func (m *AuthMiddleware) RequirePermission(module model.Module, action model.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := MembershipFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Forbidden("clinic membership required"))
			return
		}

		allowed, err := m.permissions.Check(c.Request.Context(), member, module, action)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		if !allowed {
			httputil.RespondWithError(c, apperrors.Forbidden("missing permission "+string(module)+":"+string(action)))
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (*model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Principal)
	return p, ok
}

func MembershipFrom(c *gin.Context) (*model.ClinicUser, bool) {
	v, ok := c.Get(ContextMembership)
	if !ok {
		return nil, false
	}
	m, ok := v.(*model.ClinicUser)
	return m, ok
}

// ClinicID returns the clinic resolved by RequireClinicMember.
func ClinicID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextClinicID)
	clinicID, _ := id.(uuid.UUID)
	return clinicID
}
