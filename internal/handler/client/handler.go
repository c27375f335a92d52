package client

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

type ClientServicer interface {
	CreateClient(ctx context.Context, clinicID uuid.UUID, req *model.CreateClientRequest) (*model.Client, error)
	GetClient(ctx context.Context, clinicID, id uuid.UUID) (*model.Client, error)
	UpdateClient(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateClientRequest) (*model.Client, error)
	DeleteClient(ctx context.Context, clinicID, id uuid.UUID) error
	ListClients(ctx context.Context, filters *model.ClientFilters) ([]*model.Client, int64, error)
}

type Handler struct {
	service ClientServicer
}

func NewHandler(service ClientServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	clients := clinic.Group("/clients")
	{
		clients.GET("", auth.RequirePermission(model.ModuleClients, model.ActionView), h.ListClients)
		clients.GET("/:clientID", auth.RequirePermission(model.ModuleClients, model.ActionView), h.GetClient)
		clients.POST("", auth.RequirePermission(model.ModuleClients, model.ActionCreate),
			tracker.TrackEvent("client", "create"), h.CreateClient)
		clients.PUT("/:clientID", auth.RequirePermission(model.ModuleClients, model.ActionEdit),
			tracker.TrackEvent("client", "update"), h.UpdateClient)
		clients.DELETE("/:clientID", auth.RequirePermission(model.ModuleClients, model.ActionDelete),
			tracker.TrackEvent("client", "delete"), h.DeleteClient)
	}
}

func (h *Handler) CreateClient(c *gin.Context) {
	var req model.CreateClientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	client, err := h.service.CreateClient(c.Request.Context(), middleware.ClinicID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, client, nil)
	httputil.RespondWithCreated(c, client)
}

func (h *Handler) GetClient(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "clientID")
	if !ok {
		return
	}

	client, err := h.service.GetClient(c.Request.Context(), middleware.ClinicID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, client)
}

func (h *Handler) UpdateClient(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "clientID")
	if !ok {
		return
	}
	var req model.UpdateClientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	clinicID := middleware.ClinicID(c)
	before, err := h.service.GetClient(ctx, clinicID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	client, err := h.service.UpdateClient(ctx, clinicID, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetChange(c, before, client)
	httputil.RespondWithSuccess(c, client)
}

// DeleteClient archives the client; history stays attached.
func (h *Handler) DeleteClient(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "clientID")
	if !ok {
		return
	}
	if err := h.service.DeleteClient(c.Request.Context(), middleware.ClinicID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, gin.H{"id": id, "status": model.ClientStatusArchived}, nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListClients(c *gin.Context) {
	filters := &model.ClientFilters{
		ClinicID:   middleware.ClinicID(c),
		Status:     c.Query("status"),
		ListParams: handler.ListParams(c),
	}

	clients, total, err := h.service.ListClients(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, clients, filters.ListParams, total)
}
