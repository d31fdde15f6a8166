package handlers

import (
	"errors"
	"net/http"

	"receiptmaker/internal/auth"
	"receiptmaker/internal/editor"
	"receiptmaker/internal/logger"
	"receiptmaker/internal/receipt"
	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to status codes. Anything unrecognised is
// logged and answered with a generic 500.
func respondError(c *gin.Context, funcName string, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		logger.LogError(logger.Get(), "handlers", funcName, c.FullPath(), nil, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrAIUnavailable):
		return http.StatusServiceUnavailable, services.ErrAIUnavailable.Error()
	case errors.Is(err, services.ErrAIUnreadable):
		return http.StatusUnprocessableEntity, services.ErrAIUnreadable.Error()
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, receipt.ErrInvalidSection),
		errors.Is(err, receipt.ErrUnknownKind),
		errors.Is(err, receipt.ErrInvalidSetting),
		errors.Is(err, editor.ErrInvalidOperation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, services.ErrForbidden), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func currentUserID(c *gin.Context) string {
	if u, ok := auth.CurrentUser(c); ok {
		return u.ID
	}
	return ""
}
