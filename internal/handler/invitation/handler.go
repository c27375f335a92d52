package invitation

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/event"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type InvitationServicer interface {
	Create(ctx context.Context, clinicID uuid.UUID, req *model.CreateInvitationRequest) (*model.CreatedInvitation, error)
	Lookup(ctx context.Context, token string) (*model.InvitationPreview, error)
	Accept(ctx context.Context, token string, req *model.AcceptInvitationRequest) (*model.ClinicUser, error)
	List(ctx context.Context, filters *model.InvitationFilters) ([]*model.Invitation, error)
	Revoke(ctx context.Context, clinicID, id uuid.UUID) error
	Resend(ctx context.Context, clinicID, id uuid.UUID) (*model.CreatedInvitation, error)
}

type Handler struct {
	service InvitationServicer
}

func NewHandler(service InvitationServicer) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts the token routes used by the accept screen.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	invitations := r.Group("/invitations", guard...)
	{
		invitations.GET("/:token", h.Lookup)
		invitations.POST("/:token/accept", h.Accept)
	}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	invitations := clinic.Group("/invitations")
	{
		invitations.GET("", auth.RequirePermission(model.ModuleInvitations, model.ActionView), h.List)
		invitations.POST("", auth.RequirePermission(model.ModuleInvitations, model.ActionCreate),
			tracker.TrackEvent("invitation", "create"), h.Create)
		invitations.POST("/:invitationID/resend", auth.RequirePermission(model.ModuleInvitations, model.ActionCreate),
			tracker.TrackEvent("invitation", "resend"), h.Resend)
		invitations.DELETE("/:invitationID", auth.RequirePermission(model.ModuleInvitations, model.ActionDelete),
			tracker.TrackEvent("invitation", "revoke"), h.Revoke)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateInvitationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), middleware.ClinicID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, created.Invitation, nil)
	httputil.RespondWithCreated(c, created.Invitation)
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.InvitationFilters{
		ClinicID: middleware.ClinicID(c),
		Status:   model.InvitationStatus(c.Query("status")),
	}

	invitations, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, invitations)
}

func (h *Handler) Resend(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "invitationID")
	if !ok {
		return
	}

	created, err := h.service.Resend(c.Request.Context(), middleware.ClinicID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, created.Invitation, nil)
	httputil.RespondWithSuccess(c, created.Invitation)
}

func (h *Handler) Revoke(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "invitationID")
	if !ok {
		return
	}
	if err := h.service.Revoke(c.Request.Context(), middleware.ClinicID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, gin.H{"id": id}, nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Lookup(c *gin.Context) {
	preview, err := h.service.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, preview)
}

// Accept takes an optional body; existing users accept with none.
func (h *Handler) Accept(c *gin.Context) {
	var req model.AcceptInvitationRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	membership, err := h.service.Accept(c.Request.Context(), c.Param("token"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, membership)
}
