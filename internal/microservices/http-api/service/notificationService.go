package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"taskhub/internal/microservices/http-api/models"
	"taskhub/internal/microservices/http-api/repository"
)

// TaskLookup resolves a task and its project for enrichment.
type TaskLookup interface {
	GetWithProject(ctx context.Context, taskID string) (*models.Task, error)
}

// UserLookup resolves display fields for a user.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateNotificationInput carries the fields of a new notification record.
type CreateNotificationInput struct {
	RecipientID string
	AuthorID    string
	Type        models.NotificationType
	CommentID   string
	TaskID      string
	ProjectID   string
	Message     string
}

type NotificationService interface {
	Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]models.Notification, error)
	ListAll(ctx context.Context, userID string) ([]models.Notification, error)
	// MarkRead marks one notification read. An empty callerID skips the ownership check.
	MarkRead(ctx context.Context, callerID, notificationID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Enrich(ctx context.Context, n models.Notification) (models.EnrichedNotification, error)
	EnrichAll(ctx context.Context, ns []models.Notification) ([]models.EnrichedNotification, error)
}

type notificationService struct {
	repo   repository.NotificationRepository
	tasks  TaskLookup
	users  UserLookup
	logger *slog.Logger
	now    func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, tasks TaskLookup, users UserLookup, logger *slog.Logger) NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &notificationService{
		repo:   repo,
		tasks:  tasks,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *notificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	if strings.TrimSpace(in.RecipientID) == "" {
		return nil, fmt.Errorf("create notification: %w: recipient is required", ErrValidation)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("create notification: %w: unknown type %q", ErrValidation, in.Type)
	}

	notification := &models.Notification{
		UserID:    in.RecipientID,
		AuthorID:  models.StringPtr(in.AuthorID),
		Type:      in.Type,
		CommentID: models.StringPtr(in.CommentID),
		TaskID:    models.StringPtr(in.TaskID),
		ProjectID: models.StringPtr(in.ProjectID),
		Message:   truncateMessage(in.Message),
		CreatedAt: s.now(),
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Error("notification_create_failed",
			"recipient_id", in.RecipientID,
			"type", in.Type,
			"comment_id", in.CommentID,
			"error", err,
		)
		return nil, classifyWriteErr("create notification", err)
	}
	return notification, nil
}

func (s *notificationService) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListUnreadByUser(ctx, userID)
	if err != nil {
		s.logger.Error("notification_list_unread_failed", "user_id", userID, "error", err)
		return nil, classifyReadErr("list unread notifications", err)
	}
	return notifications, nil
}

func (s *notificationService) ListAll(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("notification_list_failed", "user_id", userID, "error", err)
		return nil, classifyReadErr("list notifications", err)
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, callerID, notificationID string) (*models.Notification, error) {
	if callerID != "" {
		existing, err := s.repo.GetByID(ctx, notificationID)
		if err != nil {
			if !repository.IsNotFound(err) {
				s.logger.Error("notification_lookup_failed", "notification_id", notificationID, "error", err)
			}
			return nil, classifyReadErr("mark notification read", err)
		}
		if existing.UserID != callerID {
			return nil, fmt.Errorf("mark notification read: %w", ErrForbidden)
		}
	}

	notification, err := s.repo.MarkAsRead(ctx, notificationID)
	if err != nil {
		if !repository.IsNotFound(err) {
			s.logger.Error("notification_mark_read_failed", "notification_id", notificationID, "error", err)
		}
		return nil, classifyReadErr("mark notification read", err)
	}
	s.logger.Info("notification_marked_read", "notification_id", notificationID, "user_id", notification.UserID)
	return notification, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		s.logger.Error("notification_mark_all_read_failed", "user_id", userID, "error", err)
		return 0, classifyWriteErr("mark all notifications read", err)
	}
	return updated, nil
}

func (s *notificationService) Enrich(ctx context.Context, n models.Notification) (models.EnrichedNotification, error) {
	return newEnricher(s.tasks, s.users).enrich(ctx, n)
}

func (s *notificationService) EnrichAll(ctx context.Context, ns []models.Notification) ([]models.EnrichedNotification, error) {
	e := newEnricher(s.tasks, s.users)
	enriched := make([]models.EnrichedNotification, 0, len(ns))
	for _, n := range ns {
		view, err := e.enrich(ctx, n)
		if err != nil {
			s.logger.Error("notification_enrich_failed", "notification_id", n.ID, "error", err)
			return nil, err
		}
		enriched = append(enriched, view)
	}
	return enriched, nil
}

// enricher memoises task and author lookups for one batch. A nil entry records a
// reference that no longer resolves.
type enricher struct {
	tasks  TaskLookup
	users  UserLookup
	taskBy map[string]*models.Task
	userBy map[string]*models.User
}

func newEnricher(tasks TaskLookup, users UserLookup) *enricher {
	return &enricher{
		tasks:  tasks,
		users:  users,
		taskBy: make(map[string]*models.Task),
		userBy: make(map[string]*models.User),
	}
}

func (e *enricher) enrich(ctx context.Context, n models.Notification) (models.EnrichedNotification, error) {
	var task *models.Task
	if taskID := models.Deref(n.TaskID); taskID != "" {
		cached, ok := e.taskBy[taskID]
		if !ok {
			found, err := e.tasks.GetWithProject(ctx, taskID)
			if err != nil && !repository.IsNotFound(err) {
				return models.EnrichedNotification{}, classifyReadErr("enrich notification task", err)
			}
			cached = found
			e.taskBy[taskID] = cached
		}
		task = cached
	}

	var author *models.User
	if authorID := models.Deref(n.AuthorID); authorID != "" {
		cached, ok := e.userBy[authorID]
		if !ok {
			found, err := e.users.FindByID(ctx, authorID)
			if err != nil && !repository.IsNotFound(err) {
				return models.EnrichedNotification{}, classifyReadErr("enrich notification author", err)
			}
			cached = found
			e.userBy[authorID] = cached
		}
		author = cached
	}

	return buildEnriched(n, task, author), nil
}

// buildEnriched joins n with whatever of task (and its project) and author exist.
func buildEnriched(n models.Notification, task *models.Task, author *models.User) models.EnrichedNotification {
	view := models.EnrichedNotification{
		ID:        n.ID,
		Type:      n.Type,
		UserID:    n.UserID,
		AuthorID:  models.Deref(n.AuthorID),
		CommentID: models.Deref(n.CommentID),
		TaskID:    models.Deref(n.TaskID),
		ProjectID: models.Deref(n.ProjectID),
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if author != nil {
		view.UserName = author.DisplayName()
	}
	if task != nil {
		view.TaskTitle = task.Title
		if task.Project != nil {
			view.ProjectID = task.Project.ID
			view.ProjectName = task.Project.Title
		}
	}
	return view
}

func truncateMessage(message string) string {
	if utf8.RuneCountInString(message) <= models.MaxMessageLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:models.MaxMessageLength])
}
