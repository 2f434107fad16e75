package handler

import (
	"context"
	"log/slog"
	"net/http"

	"taskhub/internal/microservices/http-api/dto"
	"taskhub/internal/microservices/http-api/middleware"
	"taskhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentHandler struct {
	commentService service.CommentService
	logger         *slog.Logger
}

func NewCommentHandler(commentService service.CommentService, logger *slog.Logger) *CommentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentHandler{
		commentService: commentService,
		logger:         logger,
	}
}

// RegisterRoutes registers comment-related routes
func (h *CommentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/tasks/:id/comments", h.Create)
}

// Create adds a comment to a task and notifies the task's assignees.
// POST /api/tasks/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	taskID := c.Param("id")
	if _, err := uuid.Parse(taskID); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid task id"})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req dto.CreateCommentDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	// fan-out runs to completion even if the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	comment, result, err := h.commentService.CreateComment(ctx, userID, taskID, req.Content)
	if err != nil {
		respondError(c, h.logger, "comment_create", err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateCommentResponse{
		Comment:       dto.FromModelToCommentResponse(comment),
		Notifications: dto.FromFanoutResult(result),
	})
}
