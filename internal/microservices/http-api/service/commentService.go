package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskhub/internal/microservices/http-api/models"
	"taskhub/internal/microservices/http-api/repository"
)

type CommentService interface {
	// CreateComment stores a comment on a task and fans out notifications for it.
	CreateComment(ctx context.Context, authorID, taskID, content string) (*models.Comment, *FanoutResult, error)
}

type commentService struct {
	commentRepo repository.CommentRepository
	taskRepo    repository.TaskRepository
	fanout      FanoutService
	logger      *slog.Logger
}

func NewCommentService(commentRepo repository.CommentRepository, taskRepo repository.TaskRepository, fanout FanoutService, logger *slog.Logger) CommentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &commentService{
		commentRepo: commentRepo,
		taskRepo:    taskRepo,
		fanout:      fanout,
		logger:      logger,
	}
}

func (s *commentService) CreateComment(ctx context.Context, authorID, taskID, content string) (*models.Comment, *FanoutResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, fmt.Errorf("create comment: %w: content is required", ErrValidation)
	}

	// Check if task exists
	if _, err := s.taskRepo.GetWithProject(ctx, taskID); err != nil {
		return nil, nil, classifyReadErr("create comment", err)
	}

	comment := &models.Comment{
		TaskID:   taskID,
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		s.logger.Error("comment_create_failed", "task_id", taskID, "author_id", authorID, "error", err)
		return nil, nil, classifyWriteErr("create comment", err)
	}

	result, err := s.fanout.NotifyComment(ctx, CommentEvent{
		TaskID:    taskID,
		AuthorID:  authorID,
		CommentID: comment.ID,
		Content:   comment.Content,
	})
	if err != nil {
		// the comment is committed; notifications are best effort
		s.logger.Error("comment_fanout_failed", "comment_id", comment.ID, "task_id", taskID, "error", err)
		return comment, &FanoutResult{}, nil
	}
	return comment, result, nil
}
