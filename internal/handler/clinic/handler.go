package clinic

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/event"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type ClinicServicer interface {
	CreateClinic(ctx context.Context, ownerID uuid.UUID, req *model.CreateClinicRequest) (*model.Clinic, error)
	GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	ListClinicsForUser(ctx context.Context, userID uuid.UUID) ([]*model.ClinicMembership, error)
	UpdateClinic(ctx context.Context, id uuid.UUID, req *model.UpdateClinicRequest) (*model.Clinic, error)
	SuspendClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	ReactivateClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
}

type Handler struct {
	service ClinicServicer
}

func NewHandler(service ClinicServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the clinic list and creation on the authenticated
// group. Reactivation lives there too because RequireClinicMember turns
// suspended clinics away; the service restricts it to owners.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, tracker *event.Tracker) {
	clinics := r.Group("/clinics")
	{
		clinics.GET("", h.ListClinics)
		clinics.POST("", tracker.TrackEvent("clinic", "create"), h.CreateClinic)
		clinics.POST("/:clinicID/reactivate", tracker.TrackEvent("clinic", "reactivate"), h.ReactivateClinic)
	}
}

// RegisterClinicRoutes mounts settings routes on the /clinics/:clinicID group.
func (h *Handler) RegisterClinicRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	clinic.GET("", auth.RequirePermission(model.ModuleSettings, model.ActionView), h.GetClinic)
	clinic.PATCH("", auth.RequirePermission(model.ModuleSettings, model.ActionEdit),
		tracker.TrackEvent("clinic", "update"), h.UpdateClinic)
	clinic.POST("/suspend", auth.RequirePermission(model.ModuleSettings, model.ActionEdit),
		tracker.TrackEvent("clinic", "suspend"), h.SuspendClinic)
}

func (h *Handler) CreateClinic(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
		return
	}

	var req model.CreateClinicRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	clinic, err := h.service.CreateClinic(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, clinic, nil)
	httputil.RespondWithCreated(c, clinic)
}

func (h *Handler) ListClinics(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
		return
	}

	clinics, err := h.service.ListClinicsForUser(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinics)
}

func (h *Handler) GetClinic(c *gin.Context) {
	clinic, err := h.service.GetClinic(c.Request.Context(), middleware.ClinicID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) UpdateClinic(c *gin.Context) {
	clinicID := middleware.ClinicID(c)

	var req model.UpdateClinicRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	before, err := h.service.GetClinic(ctx, clinicID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	clinic, err := h.service.UpdateClinic(ctx, clinicID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetChange(c, before, clinic)
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) SuspendClinic(c *gin.Context) {
	clinic, err := h.service.SuspendClinic(c.Request.Context(), middleware.ClinicID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, clinic, nil)
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) ReactivateClinic(c *gin.Context) {
	clinicID, ok := handler.ParamUUID(c, "clinicID")
	if !ok {
		return
	}
	clinic, err := h.service.ReactivateClinic(c.Request.Context(), clinicID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, clinic, nil)
	httputil.RespondWithSuccess(c, clinic)
}
