package professional

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

type ProfessionalServicer interface {
	CreateProfessional(ctx context.Context, clinicID uuid.UUID, req *model.CreateProfessionalRequest) (*model.Professional, error)
	GetProfessional(ctx context.Context, clinicID, id uuid.UUID) (*model.Professional, error)
	UpdateProfessional(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateProfessionalRequest) (*model.Professional, error)
	DeleteProfessional(ctx context.Context, clinicID, id uuid.UUID) error
	ListProfessionals(ctx context.Context, filters *model.ProfessionalFilters) ([]*model.Professional, int64, error)
}

type Handler struct {
	service ProfessionalServicer
}

func NewHandler(service ProfessionalServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	professionals := clinic.Group("/professionals")
	{
		professionals.GET("", auth.RequirePermission(model.ModuleProfessionals, model.ActionView), h.ListProfessionals)
		professionals.GET("/:professionalID", auth.RequirePermission(model.ModuleProfessionals, model.ActionView), h.GetProfessional)
		professionals.POST("", auth.RequirePermission(model.ModuleProfessionals, model.ActionCreate),
			tracker.TrackEvent("professional", "create"), h.CreateProfessional)
		professionals.PUT("/:professionalID", auth.RequirePermission(model.ModuleProfessionals, model.ActionEdit),
			tracker.TrackEvent("professional", "update"), h.UpdateProfessional)
		professionals.DELETE("/:professionalID", auth.RequirePermission(model.ModuleProfessionals, model.ActionDelete),
			tracker.TrackEvent("professional", "delete"), h.DeleteProfessional)
	}
}

func (h *Handler) CreateProfessional(c *gin.Context) {
	var req model.CreateProfessionalRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	professional, err := h.service.CreateProfessional(c.Request.Context(), middleware.ClinicID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, professional, nil)
	httputil.RespondWithCreated(c, professional)
}

func (h *Handler) GetProfessional(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "professionalID")
	if !ok {
		return
	}

	professional, err := h.service.GetProfessional(c.Request.Context(), middleware.ClinicID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, professional)
}

func (h *Handler) UpdateProfessional(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "professionalID")
	if !ok {
		return
	}
	var req model.UpdateProfessionalRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	clinicID := middleware.ClinicID(c)
	before, err := h.service.GetProfessional(ctx, clinicID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	professional, err := h.service.UpdateProfessional(ctx, clinicID, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetChange(c, before, professional)
	httputil.RespondWithSuccess(c, professional)
}

func (h *Handler) DeleteProfessional(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "professionalID")
	if !ok {
		return
	}
	if err := h.service.DeleteProfessional(c.Request.Context(), middleware.ClinicID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, gin.H{"id": id}, nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListProfessionals(c *gin.Context) {
	filters := &model.ProfessionalFilters{
		ClinicID:   middleware.ClinicID(c),
		Status:     c.Query("status"),
		ListParams: handler.ListParams(c),
	}

	professionals, total, err := h.service.ListProfessionals(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, professionals, filters.ListParams, total)
}
