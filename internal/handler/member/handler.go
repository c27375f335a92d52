package member

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

type MemberServicer interface {
	ListMembers(ctx context.Context, filters *model.MemberFilters) ([]*model.Member, error)
	GetMember(ctx context.Context, clinicID, id uuid.UUID) (*model.Member, error)
	UpdateMemberRole(ctx context.Context, clinicID, id uuid.UUID, role model.Role) (*model.Member, error)
	DeactivateMember(ctx context.Context, clinicID, id uuid.UUID) error
	RemoveMember(ctx context.Context, clinicID, id uuid.UUID) error
}

type Handler struct {
	service MemberServicer
}

func NewHandler(service MemberServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	members := clinic.Group("/members")
	{
		members.GET("", auth.RequirePermission(model.ModuleMembers, model.ActionView), h.ListMembers)
		members.GET("/:memberID", auth.RequirePermission(model.ModuleMembers, model.ActionView), h.GetMember)
		members.PATCH("/:memberID/role", auth.RequirePermission(model.ModuleMembers, model.ActionEdit),
			tracker.TrackEvent("member", "role_change"), h.UpdateRole)
		members.POST("/:memberID/deactivate", auth.RequirePermission(model.ModuleMembers, model.ActionEdit),
			tracker.TrackEvent("member", "deactivate"), h.DeactivateMember)
		members.DELETE("/:memberID", auth.RequirePermission(model.ModuleMembers, model.ActionDelete),
			tracker.TrackEvent("member", "delete"), h.RemoveMember)
	}
}

func (h *Handler) ListMembers(c *gin.Context) {
	filters := &model.MemberFilters{
		ClinicID: middleware.ClinicID(c),
		Role:     model.Role(c.Query("role")),
		Status:   c.Query("status"),
	}

	members, err := h.service.ListMembers(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, members)
}

func (h *Handler) GetMember(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}

	member, err := h.service.GetMember(c.Request.Context(), middleware.ClinicID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, member)
}

func (h *Handler) UpdateRole(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}
	var req model.UpdateMemberRoleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	member, err := h.service.UpdateMemberRole(c.Request.Context(), middleware.ClinicID(c), id, req.Role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, member, map[string]interface{}{"role": req.Role})
	httputil.RespondWithSuccess(c, member)
}

func (h *Handler) DeactivateMember(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}
	if err := h.service.DeactivateMember(c.Request.Context(), middleware.ClinicID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, gin.H{"id": id, "status": model.MemberStatusInactive}, nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), middleware.ClinicID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, gin.H{"id": id}, nil)
	c.Status(http.StatusNoContent)
}
