package dto

import (
	"time"

	"taskhub/internal/microservices/http-api/models"
	"taskhub/internal/microservices/http-api/service"
)

// CreateCommentDTO for creating a comment
type CreateCommentDTO struct {
	Content string `json:"content" binding:"required,min=1,max=5000"`
}

// CommentResponse for returning a created comment
type CommentResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// FanoutSummary tells the author how many recipients were notified.
type FanoutSummary struct {
	Recipients int      `json:"recipients"`
	Created    int      `json:"created"`
	Delivered  int      `json:"delivered"`
	Failed     []string `json:"failed,omitempty"`
}

type CreateCommentResponse struct {
	Comment       CommentResponse `json:"comment"`
	Notifications FanoutSummary   `json:"notifications"`
}

// FromModelToCommentResponse converts a Comment model to CommentResponse DTO
func FromModelToCommentResponse(comment *models.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}
}

func FromFanoutResult(result *service.FanoutResult) FanoutSummary {
	if result == nil {
		return FanoutSummary{}
	}
	return FanoutSummary{
		Recipients: len(result.Recipients),
		Created:    result.Created,
		Delivered:  result.Delivered,
		Failed:     result.Failed,
	}
}
