package catalog

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

type CatalogServicer interface {
	CreateService(ctx context.Context, clinicID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, error)
	GetService(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error)
	UpdateService(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error)
	DeleteService(ctx context.Context, clinicID, id uuid.UUID) error
	ListServices(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int64, error)
}

type Handler struct {
	service CatalogServicer
}

func NewHandler(service CatalogServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	services := clinic.Group("/services")
	{
		services.GET("", auth.RequirePermission(model.ModuleServices, model.ActionView), h.ListServices)
		services.GET("/:serviceID", auth.RequirePermission(model.ModuleServices, model.ActionView), h.GetService)
		services.POST("", auth.RequirePermission(model.ModuleServices, model.ActionCreate),
			tracker.TrackEvent("service", "create"), h.CreateService)
		services.PUT("/:serviceID", auth.RequirePermission(model.ModuleServices, model.ActionEdit),
			tracker.TrackEvent("service", "update"), h.UpdateService)
		services.DELETE("/:serviceID", auth.RequirePermission(model.ModuleServices, model.ActionDelete),
			tracker.TrackEvent("service", "delete"), h.DeleteService)
	}
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.CreateServiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	svc, err := h.service.CreateService(c.Request.Context(), middleware.ClinicID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, svc, nil)
	httputil.RespondWithCreated(c, svc)
}

func (h *Handler) GetService(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "serviceID")
	if !ok {
		return
	}

	svc, err := h.service.GetService(c.Request.Context(), middleware.ClinicID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, svc)
}

func (h *Handler) UpdateService(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "serviceID")
	if !ok {
		return
	}
	var req model.UpdateServiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	clinicID := middleware.ClinicID(c)
	before, err := h.service.GetService(ctx, clinicID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	svc, err := h.service.UpdateService(ctx, clinicID, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetChange(c, before, svc)
	httputil.RespondWithSuccess(c, svc)
}

func (h *Handler) DeleteService(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "serviceID")
	if !ok {
		return
	}
	if err := h.service.DeleteService(c.Request.Context(), middleware.ClinicID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, gin.H{"id": id}, nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListServices(c *gin.Context) {
	filters := &model.ServiceFilters{
		ClinicID:   middleware.ClinicID(c),
		Status:     c.Query("status"),
		ListParams: handler.ListParams(c),
	}

	services, total, err := h.service.ListServices(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, services, filters.ListParams, total)
}
