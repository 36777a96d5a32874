// Package handler provides the gin handlers behind the edge function routes
// and the supplementary /api/v1 routes.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/middleware"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PaginatedResponse contains common pagination metadata.
type PaginatedResponse struct {
	Count  int `json:"count"`
	Total  int `json:"total,omitempty"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrQuotaExceeded), errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errs.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// sendError writes the standard error body. Internal errors are logged and
// their detail is kept out of the response.
func sendError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		if !errors.Is(err, errs.ErrMisconfigured) {
			msg = "internal server error"
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: errs.Code(err), Message: msg})
}

// bindJSON decodes the request body into dst.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errs.ErrInvalidInput, err)
	}
	return nil
}

// currentUser returns the user set by the JWT middleware.
func currentUser(c *gin.Context) (uuid.UUID, error) {
	id, ok := middleware.UserID(c)
	if !ok || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: no authenticated user", errs.ErrUnauthenticated)
	}
	return id, nil
}

// queryInt reads an integer query parameter, returning def when it is absent
// or malformed.
func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseBool(c *gin.Context, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: invalid boolean value for %s", errs.ErrInvalidInput, key)
	}
	return b, nil
}

func parseUUIDParam(c *gin.Context, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errs.ErrInvalidInput, key)
	}
	return id, nil
}

// clamp bounds n to [1, max], substituting def for non-positive values.
func clamp(n, def, max int64) int64 {
	if n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}
