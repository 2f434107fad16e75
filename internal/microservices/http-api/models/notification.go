package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType is the closed set of events that produce notifications.
type NotificationType string

const (
	NotificationNewComment NotificationType = "NEW_COMMENT"
)

// MaxMessageLength is the width of the message snapshot column.
const MaxMessageLength = 255

// Valid reports whether t belongs to the known set.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNewComment:
		return true
	}
	return false
}

// Notification is immutable once stored except for the IsRead false->true transition.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string           `gorm:"type:uuid;not null;index:idx_notifications_user_read,priority:1" json:"userId"` // recipient
	AuthorID  *string          `gorm:"type:uuid" json:"authorId,omitempty"`
	Type      NotificationType `gorm:"not null" json:"type"`
	CommentID *string          `gorm:"type:uuid" json:"commentId,omitempty"`
	TaskID    *string          `gorm:"type:uuid" json:"taskId,omitempty"`
	ProjectID *string          `gorm:"type:uuid" json:"projectId,omitempty"`
	Message   string           `gorm:"type:varchar(255)" json:"message"` // snapshot of the source text
	IsRead    bool             `gorm:"default:false;not null;index:idx_notifications_user_read,priority:2" json:"isRead"`
	CreatedAt time.Time        `gorm:"not null;index" json:"createdAt"`
}

// BeforeCreate hook to set UUID before creating a Notification
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}

func (Notification) TableName() string {
	return "notifications"
}

// EnrichedNotification is the read-time view pushed to clients and returned by the API.
// Display fields are resolved from current task/project/author state and are left
// empty when the referenced entity no longer exists.
type EnrichedNotification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	UserID      string           `json:"userId"`
	AuthorID    string           `json:"authorId,omitempty"`
	UserName    string           `json:"userName,omitempty"` // author display name
	CommentID   string           `json:"commentId,omitempty"`
	TaskID      string           `json:"taskId,omitempty"`
	TaskTitle   string           `json:"taskTitle,omitempty"`
	ProjectID   string           `json:"projectId,omitempty"`
	ProjectName string           `json:"projectName,omitempty"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
