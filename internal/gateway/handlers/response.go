package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"caisse-system/internal/apperr"
	"caisse-system/internal/gateway/middleware"
	"caisse-system/internal/permissions"
)

const requestTimeout = 10 * time.Second

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

// handleError writes the status matching the error kind. Storage details stay
// in the logs; clients only see a generic message.
func handleError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	resp := errorResponse(err.Error())

	var ae *apperr.Error
	if errors.As(err, &ae) {
		if len(ae.Violations) > 0 {
			resp.Message = "Validation failed"
			resp.Errors = ae.Violations
		}
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		resp.Message = "Service temporarily unavailable"
	}
	c.AbortWithStatusJSON(status, resp)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func parseIDParam(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid "+param))
		return 0, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, param string, def int) int {
	if v, err := strconv.Atoi(c.Query(param)); err == nil && v > 0 {
		return v
	}
	return def
}

func callerOf(c *gin.Context) permissions.Caller {
	caller, _ := middleware.CallerFrom(c)
	return caller
}
