package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/event"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type AppointmentServicer interface {
	CreateAppointment(ctx context.Context, clinicID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error)
	ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error)
	UpdateAppointment(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateAppointmentStatusRequest) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, clinicID, id uuid.UUID) error
}

type Handler struct {
	service AppointmentServicer
}

func NewHandler(service AppointmentServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	appointments := clinic.Group("/appointments")
	{
		appointments.GET("", auth.RequirePermission(model.ModuleAppointments, model.ActionView), h.ListAppointments)
		appointments.GET("/:appointmentID", auth.RequirePermission(model.ModuleAppointments, model.ActionView), h.GetAppointment)
		appointments.POST("", auth.RequirePermission(model.ModuleAppointments, model.ActionCreate),
			tracker.TrackEvent("appointment", "create"), h.CreateAppointment)
		appointments.PUT("/:appointmentID", auth.RequirePermission(model.ModuleAppointments, model.ActionEdit),
			tracker.TrackEvent("appointment", "update"), h.UpdateAppointment)
		appointments.PATCH("/:appointmentID/status", auth.RequirePermission(model.ModuleAppointments, model.ActionEdit),
			tracker.TrackEvent("appointment", "status_change"), h.UpdateStatus)
		appointments.DELETE("/:appointmentID", auth.RequirePermission(model.ModuleAppointments, model.ActionDelete),
			tracker.TrackEvent("appointment", "delete"), h.DeleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.CreateAppointment(c.Request.Context(), middleware.ClinicID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, appointment, nil)
	httputil.RespondWithCreated(c, appointment)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "appointmentID")
	if !ok {
		return
	}

	appointment, err := h.service.GetAppointment(c.Request.Context(), middleware.ClinicID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

// ListAppointments filters by professional_id, client_id, status and the
// half-open range [from, to) on start time.
func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{
		ClinicID:   middleware.ClinicID(c),
		Status:     model.AppointmentStatus(c.Query("status")),
		ListParams: handler.ListParams(c),
	}
	if filters.Status != "" && !model.IsValidAppointmentStatus(filters.Status) {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid status", nil))
		return
	}

	var ok bool
	if filters.ProfessionalID, ok = handler.QueryUUID(c, "professional_id"); !ok {
		return
	}
	if filters.ClientID, ok = handler.QueryUUID(c, "client_id"); !ok {
		return
	}
	if filters.From, ok = handler.QueryTime(c, "from"); !ok {
		return
	}
	if filters.To, ok = handler.QueryTime(c, "to"); !ok {
		return
	}

	appointments, total, err := h.service.ListAppointments(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, appointments, filters.ListParams, total)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "appointmentID")
	if !ok {
		return
	}
	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	clinicID := middleware.ClinicID(c)
	before, err := h.service.GetAppointment(ctx, clinicID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	appointment, err := h.service.UpdateAppointment(ctx, clinicID, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetChange(c, before, appointment)
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "appointmentID")
	if !ok {
		return
	}
	var req model.UpdateAppointmentStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.UpdateStatus(c.Request.Context(), middleware.ClinicID(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, appointment, map[string]interface{}{"status": req.Status})
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "appointmentID")
	if !ok {
		return
	}
	if err := h.service.DeleteAppointment(c.Request.Context(), middleware.ClinicID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	event.SetNewData(c, gin.H{"id": id}, nil)
	c.Status(http.StatusNoContent)
}
