package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskhub/internal/microservices/http-api/dto"
	"taskhub/internal/microservices/http-api/middleware"
	"taskhub/internal/microservices/http-api/models"
	"taskhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const storeTimeout = 5 * time.Second

type NotificationHandler struct {
	svc    service.NotificationService
	logger *slog.Logger
}

func NewNotificationHandler(svc service.NotificationService, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{svc: svc, logger: logger}
}

func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.PATCH("/read-all", h.MarkAllAsRead)
		notifications.PATCH("/:id/read", h.MarkAsRead)
	}
}

// List returns the caller's notifications, enriched, newest first.
// GET /api/notifications?isRead=false
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "user not authenticated"})
		return
	}

	// only isRead=false narrows the list; any other value lists everything
	unreadOnly := c.Query("isRead") == "false"

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	var (
		notifications []models.Notification
		err           error
	)
	if unreadOnly {
		notifications, err = h.svc.ListUnread(ctx, userID)
	} else {
		notifications, err = h.svc.ListAll(ctx, userID)
	}
	if err != nil {
		respondError(c, h.logger, "notification_list", err)
		return
	}

	enriched, err := h.svc.EnrichAll(ctx, notifications)
	if err != nil {
		respondError(c, h.logger, "notification_list", err)
		return
	}
	c.JSON(http.StatusOK, enriched)
}

// MarkAsRead marks one of the caller's notifications read and returns the stored record.
// PATCH /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "user not authenticated"})
		return
	}

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid notification id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	notification, err := h.svc.MarkRead(ctx, userID, id)
	if err != nil {
		respondError(c, h.logger, "notification_mark_read", err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

// MarkAllAsRead marks every unread notification of the caller read.
// PATCH /api/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "user not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	updated, err := h.svc.MarkAllRead(ctx, userID)
	if err != nil {
		respondError(c, h.logger, "notification_mark_all_read", err)
		return
	}
	c.JSON(http.StatusOK, dto.MarkAllReadResponse{Updated: updated})
}
