package webhook

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

const HeaderSignature = "Stripe-Signature"

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type Handler struct {
	processor WebhookProcessor
}

func NewHandler(processor WebhookProcessor) *Handler {
	return &Handler{processor: processor}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/payments", h.PaymentEvents)
}

// PaymentEvents needs the raw body: the signature covers the exact bytes.
func (h *Handler) PaymentEvents(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("failed to read request body", err))
		return
	}

	if err := h.processor.HandleWebhook(c.Request.Context(), payload, c.GetHeader(HeaderSignature)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
