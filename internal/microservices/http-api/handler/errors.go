package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"taskhub/internal/microservices/http-api/dto"
	"taskhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to status codes. Internal failures get a generic
// message; the detail goes to the log.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "forbidden"})
	default:
		logger.Error(op+"_failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}
