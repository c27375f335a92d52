package permission

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

type PermissionServicer interface {
	List(ctx context.Context, clinicID, memberID uuid.UUID) ([]model.Grant, error)
	Grant(ctx context.Context, clinicID, memberID uuid.UUID, grant model.Grant) error
	Revoke(ctx context.Context, clinicID, memberID uuid.UUID, grant model.Grant) error
	Replace(ctx context.Context, clinicID, memberID uuid.UUID, grants []model.Grant) error
}

type Handler struct {
	service PermissionServicer
}

func NewHandler(service PermissionServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	perms := clinic.Group("/members/:memberID/permissions")
	{
		perms.GET("", auth.RequirePermission(model.ModuleMembers, model.ActionView), h.ListPermissions)
		perms.PUT("", auth.RequirePermission(model.ModuleMembers, model.ActionEdit),
			tracker.TrackEvent("permission", "replace"), h.ReplacePermissions)
		perms.POST("", auth.RequirePermission(model.ModuleMembers, model.ActionEdit),
			tracker.TrackEvent("permission", "grant"), h.GrantPermission)
		perms.DELETE("/:module/:action", auth.RequirePermission(model.ModuleMembers, model.ActionEdit),
			tracker.TrackEvent("permission", "revoke"), h.RevokePermission)
	}
}

func (h *Handler) ListPermissions(c *gin.Context) {
	memberID, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}

	grants, err := h.service.List(c.Request.Context(), middleware.ClinicID(c), memberID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if grants == nil {
		grants = []model.Grant{}
	}
	httputil.RespondWithSuccess(c, grants)
}

func (h *Handler) GrantPermission(c *gin.Context) {
	memberID, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}
	var grant model.Grant
	if !handler.BindJSON(c, &grant) {
		return
	}

	if err := h.service.Grant(c.Request.Context(), middleware.ClinicID(c), memberID, grant); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, grant, map[string]interface{}{"member_id": memberID})
	httputil.RespondWithCreated(c, grant)
}

func (h *Handler) RevokePermission(c *gin.Context) {
	memberID, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}
	grant := model.Grant{
		Module: model.Module(c.Param("module")),
		Action: model.Action(c.Param("action")),
	}

	if err := h.service.Revoke(c.Request.Context(), middleware.ClinicID(c), memberID, grant); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, grant, map[string]interface{}{"member_id": memberID})
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReplacePermissions(c *gin.Context) {
	memberID, ok := handler.ParamUUID(c, "memberID")
	if !ok {
		return
	}
	var req model.ReplacePermissionsRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.service.Replace(c.Request.Context(), middleware.ClinicID(c), memberID, req.Permissions); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, req.Permissions, map[string]interface{}{"member_id": memberID})
	httputil.RespondWithSuccess(c, req.Permissions)
}
