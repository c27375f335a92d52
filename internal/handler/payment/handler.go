package payment

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/event"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type FinancialServicer interface {
	CreatePaymentIntent(ctx context.Context, clinicID uuid.UUID, req *model.CreatePaymentIntentRequest) (*model.PaymentIntentResult, error)
	Refund(ctx context.Context, clinicID, id uuid.UUID, req *model.RefundRequest) (*model.Payment, error)
	GetPayment(ctx context.Context, clinicID, id uuid.UUID) (*model.Payment, error)
	ListPayments(ctx context.Context, filters *model.PaymentFilters) ([]*model.Payment, int64, error)
	Summary(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) (*model.FinancialSummary, error)
	Subscribe(ctx context.Context, clinicID uuid.UUID, req *model.SubscribeRequest) (*model.Clinic, error)
	CancelSubscription(ctx context.Context, clinicID uuid.UUID) (*model.Clinic, error)
}

type Handler struct {
	service FinancialServicer
}

func NewHandler(service FinancialServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware, tracker *event.Tracker) {
	payments := clinic.Group("/payments")
	{
		payments.GET("", auth.RequirePermission(model.ModuleFinancial, model.ActionView), h.ListPayments)
		payments.GET("/summary", auth.RequirePermission(model.ModuleFinancial, model.ActionView), h.Summary)
		payments.GET("/:paymentID", auth.RequirePermission(model.ModuleFinancial, model.ActionView), h.GetPayment)
		payments.POST("", auth.RequirePermission(model.ModuleFinancial, model.ActionCreate),
			tracker.TrackEvent("payment", "create"), h.CreatePaymentIntent)
		payments.POST("/:paymentID/refund", auth.RequirePermission(model.ModuleFinancial, model.ActionEdit),
			tracker.TrackEvent("payment", "refund"), h.Refund)
	}

	subscription := clinic.Group("/subscription")
	{
		subscription.POST("", auth.RequirePermission(model.ModuleSettings, model.ActionEdit),
			tracker.TrackEvent("subscription", "create"), h.Subscribe)
		subscription.DELETE("", auth.RequirePermission(model.ModuleSettings, model.ActionEdit),
			tracker.TrackEvent("subscription", "cancel"), h.CancelSubscription)
	}
}

// CreatePaymentIntent honours an Idempotency-Key header so client retries
// reuse the processor intent.
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var req model.CreatePaymentIntentRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(req.IdempotencyKey) > 255 {
		req.IdempotencyKey = req.IdempotencyKey[:255]
	}

	result, err := h.service.CreatePaymentIntent(c.Request.Context(), middleware.ClinicID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, result.Payment, nil)
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "paymentID")
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(c.Request.Context(), middleware.ClinicID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, payment)
}

func (h *Handler) ListPayments(c *gin.Context) {
	filters := &model.PaymentFilters{
		ClinicID:   middleware.ClinicID(c),
		Status:     model.PaymentStatus(c.Query("status")),
		ListParams: handler.ListParams(c),
	}

	var ok bool
	if filters.ClientID, ok = handler.QueryUUID(c, "client_id"); !ok {
		return
	}
	if filters.AppointmentID, ok = handler.QueryUUID(c, "appointment_id"); !ok {
		return
	}
	if filters.From, ok = handler.QueryTime(c, "from"); !ok {
		return
	}
	if filters.To, ok = handler.QueryTime(c, "to"); !ok {
		return
	}

	payments, total, err := h.service.ListPayments(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, payments, filters.ListParams, total)
}

func (h *Handler) Summary(c *gin.Context) {
	from, ok := handler.QueryTime(c, "from")
	if !ok {
		return
	}
	to, ok := handler.QueryTime(c, "to")
	if !ok {
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), middleware.ClinicID(c), from, to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

// Refund takes an optional body; without one the remaining balance is refunded.
func (h *Handler) Refund(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "paymentID")
	if !ok {
		return
	}
	var req model.RefundRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	payment, err := h.service.Refund(c.Request.Context(), middleware.ClinicID(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, payment, map[string]interface{}{"refunded_cents": payment.RefundedCents})
	httputil.RespondWithSuccess(c, payment)
}

func (h *Handler) Subscribe(c *gin.Context) {
	var req model.SubscribeRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	clinic, err := h.service.Subscribe(c.Request.Context(), middleware.ClinicID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, clinic, nil)
	httputil.RespondWithCreated(c, clinic)
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	clinic, err := h.service.CancelSubscription(c.Request.Context(), middleware.ClinicID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	event.SetNewData(c, clinic, nil)
	httputil.RespondWithSuccess(c, clinic)
}
