package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/payment-ledger/internal/catalog"
	"github.com/richardliu001/payment-ledger/internal/service"
	"go.uber.org/zap"
)

// writeError maps ledger errors onto HTTP statuses.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.FullPath(), "error", err, "request_id", c.GetString("request_id"))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func classify(err error) (int, string) {
	switch {
	case service.IsValidation(err),
		errors.Is(err, catalog.ErrApiNameRequired),
		errors.Is(err, catalog.ErrNoSupportedType):
		return http.StatusBadRequest, "invalid_argument"
	case service.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, service.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case service.IsHandlerFailure(err):
		return http.StatusBadGateway, "handler_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "invalid_argument"})
}
