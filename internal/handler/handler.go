// Package handler holds helpers shared by the HTTP handlers.
package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// ParamUUID parses a path parameter, answering 400 when it is malformed.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON binds and validates the body, answering 400 on failure.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithError(c, err)
		return false
	}
	return true
}

// QueryUUID parses an optional UUID query parameter.
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return nil, false
	}
	return &id, true
}

// QueryTime parses an optional RFC 3339 query parameter.
func QueryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(name+" must be an RFC 3339 timestamp", err))
		return nil, false
	}
	return &t, true
}

// ListParams reads page, page_size and search from the query string.
func ListParams(c *gin.Context) model.ListParams {
	page, pageSize := httputil.ParsePagination(c)
	return model.ListParams{Page: page, PageSize: pageSize, Search: c.Query("search")}
}

// RespondWithList sends a page of results with pagination metadata.
func RespondWithList(c *gin.Context, data interface{}, params model.ListParams, total int64) {
	httputil.RespondWithPagination(c, data, params.Page, params.PageSize, int(total))
}
