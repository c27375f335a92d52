package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResult, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*model.Session, error)
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req *model.UpdateProfileRequest) (*model.User, error)
	ChangePassword(ctx context.Context, principal *model.Principal, req *model.ChangePasswordRequest) error
	EnrollMFA(ctx context.Context, userID uuid.UUID) (*model.MFAEnrollment, error)
	ConfirmMFA(ctx context.Context, userID uuid.UUID, code string) error
	DisableMFA(ctx context.Context, userID uuid.UUID, code string) error
}

// CookieConfig describes the session cookie set on login.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

type Handler struct {
	svc    Service
	cookie CookieConfig
}

func NewHandler(svc Service, cookie CookieConfig) *Handler {
	return &Handler{svc: svc, cookie: cookie}
}

// RegisterPublicRoutes mounts register and login. guard runs before both,
// normally a stricter rate limiter.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	auth := r.Group("/auth", guard...)
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

// RegisterRoutes mounts the routes that need an authenticated caller.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/logout", h.Logout)
		auth.POST("/logout-all", h.LogoutAll)
		auth.GET("/sessions", h.ListSessions)
		auth.POST("/password", h.ChangePassword)
		auth.POST("/mfa/enroll", h.EnrollMFA)
		auth.POST("/mfa/confirm", h.ConfirmMFA)
		auth.POST("/mfa/disable", h.DisableMFA)
	}
	r.GET("/me", h.Me)
	r.PATCH("/me", h.UpdateProfile)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.setSessionCookie(c, result.SessionToken, time.Until(result.SessionExpires))
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) Logout(c *gin.Context) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	if err := h.svc.Logout(c.Request.Context(), principal.SessionID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *Handler) LogoutAll(c *gin.Context) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	revoked, err := h.svc.LogoutAll(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	httputil.RespondWithSuccess(c, gin.H{"revoked": revoked})
}

func (h *Handler) ListSessions(c *gin.Context) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	sessions, err := h.svc.ListSessions(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sessions)
}

func (h *Handler) Me(c *gin.Context) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	user, err := h.svc.Me(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	var req model.UpdateProfileRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	user, err := h.svc.UpdateProfile(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	var req model.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), principal, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) EnrollMFA(c *gin.Context) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	enrollment, err := h.svc.EnrollMFA(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, enrollment)
}

func (h *Handler) ConfirmMFA(c *gin.Context) {
	h.mfaCode(c, h.svc.ConfirmMFA)
}

func (h *Handler) DisableMFA(c *gin.Context) {
	h.mfaCode(c, h.svc.DisableMFA)
}

func (h *Handler) mfaCode(c *gin.Context, apply func(context.Context, uuid.UUID, string) error) {
	principal, ok := principal(c)
	if !ok {
		return
	}
	var req model.MFACodeRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if err := apply(c.Request.Context(), principal.UserID, req.Code); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}

func principal(c *gin.Context) (*model.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
	}
	return p, ok
}
