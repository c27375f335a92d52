package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// exportLimit caps a single CSV export.
const exportLimit = 10000

type AuditLister interface {
	List(ctx context.Context, filters *model.AuditLogFilters) ([]*model.AuditLog, int64, error)
}

type Handler struct {
	service AuditLister
}

func NewHandler(service AuditLister) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(clinic *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	logs := clinic.Group("/audit-logs", auth.RequirePermission(model.ModuleSettings, model.ActionView))
	{
		logs.GET("", h.ListLogs)
		logs.GET("/export", h.ExportLogs)
	}
}

func (h *Handler) ListLogs(c *gin.Context) {
	filters, ok := parseFilters(c)
	if !ok {
		return
	}

	logs, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, logs, filters.ListParams, total)
}

// ExportLogs streams matching rows as CSV, newest first.
func (h *Handler) ExportLogs(c *gin.Context) {
	filters, ok := parseFilters(c)
	if !ok {
		return
	}
	filters.ListParams = model.ListParams{Page: 1, PageSize: exportLimit}

	logs, _, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filename := fmt.Sprintf("audit-logs-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"id", "created_at", "user_id", "action", "entity_type", "entity_id", "ip_address", "user_agent", "changes"})
	for _, l := range logs {
		w.Write([]string{
			l.ID.String(),
			l.CreatedAt.Format(time.RFC3339),
			optionalID(l.UserID),
			l.Action,
			l.EntityType,
			optionalID(l.EntityID),
			l.IPAddress,
			l.UserAgent,
			string(l.Changes),
		})
	}
	w.Flush()
}

func parseFilters(c *gin.Context) (*model.AuditLogFilters, bool) {
	filters := &model.AuditLogFilters{
		ClinicID:   middleware.ClinicID(c),
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
		ListParams: handler.ListParams(c),
	}

	var ok bool
	if filters.UserID, ok = handler.QueryUUID(c, "user_id"); !ok {
		return nil, false
	}
	if filters.EntityID, ok = handler.QueryUUID(c, "entity_id"); !ok {
		return nil, false
	}
	if filters.From, ok = handler.QueryTime(c, "from"); !ok {
		return nil, false
	}
	if filters.To, ok = handler.QueryTime(c, "to"); !ok {
		return nil, false
	}
	return filters, true
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
