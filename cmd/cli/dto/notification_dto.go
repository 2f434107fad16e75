package dto

import "time"

// request/response shapes of the taskhub API as seen by the CLI

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type CommentResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

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

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
