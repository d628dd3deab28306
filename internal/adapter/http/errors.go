package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, usecase.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, usecase.ErrExternal):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error", "op"}. extra carries partial results,
// e.g. the order after a source write whose pack sync failed.
func writeError(c *gin.Context, err error, extra gin.H) {
	status := statusOf(err)
	body := gin.H{"error": err.Error()}
	var oe *usecase.OpError
	if errors.As(err, &oe) {
		body["error"] = oe.Op + ": " + oe.Msg
		body["op"] = oe.Op
	}
	for k, v := range extra {
		body[k] = v
	}
	if status >= http.StatusInternalServerError {
		logging.From(c).Error("request failed", "err", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
