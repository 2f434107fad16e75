package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"taskhub/internal/microservices/http-api/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNotificationService(repo *MockNotificationRepository, tasks *MockTaskRepository, users *MockUserRepository) *notificationService {
	svc := NewNotificationService(repo, tasks, users, discardLogger()).(*notificationService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestNotificationService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores record with snapshot fields", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))

		repo.On("Create", ctx, mock.AnythingOfType("*models.Notification")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Notification).ID = "n-1"
			}).
			Return(nil)

		n, err := svc.Create(ctx, CreateNotificationInput{
			RecipientID: "user-a",
			AuthorID:    "user-c",
			Type:        models.NotificationNewComment,
			CommentID:   "comment-1",
			TaskID:      "task-1",
			ProjectID:   "project-1",
			Message:     "looks good",
		})

		require.NoError(t, err)
		assert.Equal(t, "n-1", n.ID)
		assert.Equal(t, "user-a", n.UserID)
		assert.Equal(t, "user-c", models.Deref(n.AuthorID))
		assert.Equal(t, "task-1", models.Deref(n.TaskID))
		assert.Equal(t, "looks good", n.Message)
		assert.False(t, n.IsRead)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), n.CreatedAt)
		repo.AssertExpectations(t)
	})

	t.Run("truncates message to column width", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
		repo.On("Create", ctx, mock.AnythingOfType("*models.Notification")).Return(nil)

		n, err := svc.Create(ctx, CreateNotificationInput{
			RecipientID: "user-a",
			Type:        models.NotificationNewComment,
			Message:     strings.Repeat("é", 300),
		})

		require.NoError(t, err)
		assert.Equal(t, models.MaxMessageLength, len([]rune(n.Message)))
	})

	t.Run("rejects missing recipient", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))

		_, err := svc.Create(ctx, CreateNotificationInput{Type: models.NotificationNewComment})

		assert.ErrorIs(t, err, ErrValidation)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))

		_, err := svc.Create(ctx, CreateNotificationInput{RecipientID: "user-a", Type: "TASK_MOVED"})

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("foreign key violation is a validation error", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
		repo.On("Create", ctx, mock.AnythingOfType("*models.Notification")).
			Return(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

		_, err := svc.Create(ctx, CreateNotificationInput{RecipientID: "ghost", Type: models.NotificationNewComment})

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("other storage errors are persistence failures", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
		repo.On("Create", ctx, mock.AnythingOfType("*models.Notification")).Return(errors.New("connection reset"))

		_, err := svc.Create(ctx, CreateNotificationInput{RecipientID: "user-a", Type: models.NotificationNewComment})

		assert.ErrorIs(t, err, ErrPersistence)
	})
}

func TestNotificationService_ListUnread(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))

	t.Run("returns empty list for user with nothing unread", func(t *testing.T) {
		repo.On("ListUnreadByUser", ctx, "quiet-user").Return([]models.Notification{}, nil).Once()

		list, err := svc.ListUnread(ctx, "quiet-user")

		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo.On("ListUnreadByUser", ctx, "user-a").Return(nil, errors.New("timeout")).Once()

		_, err := svc.ListUnread(ctx, "user-a")

		assert.ErrorIs(t, err, ErrPersistence)
	})
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("is idempotent", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
		read := &models.Notification{ID: "n-1", UserID: "user-a", IsRead: true}
		repo.On("GetByID", ctx, "n-1").Return(&models.Notification{ID: "n-1", UserID: "user-a"}, nil)
		repo.On("MarkAsRead", ctx, "n-1").Return(read, nil).Twice()

		first, err := svc.MarkRead(ctx, "user-a", "n-1")
		require.NoError(t, err)
		second, err := svc.MarkRead(ctx, "user-a", "n-1")
		require.NoError(t, err)

		assert.True(t, first.IsRead)
		assert.Equal(t, first, second)
		repo.AssertExpectations(t)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
		repo.On("GetByID", ctx, "missing").Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.MarkRead(ctx, "user-a", "missing")

		assert.ErrorIs(t, err, ErrNotFound)
		repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
	})

	t.Run("another user's notification is forbidden", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
		repo.On("GetByID", ctx, "n-1").Return(&models.Notification{ID: "n-1", UserID: "user-a"}, nil)

		_, err := svc.MarkRead(ctx, "user-b", "n-1")

		assert.ErrorIs(t, err, ErrForbidden)
		repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
	})

	t.Run("empty caller skips ownership check", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
		repo.On("MarkAsRead", ctx, "n-1").Return(&models.Notification{ID: "n-1", UserID: "user-a", IsRead: true}, nil)

		n, err := svc.MarkRead(ctx, "", "n-1")

		require.NoError(t, err)
		assert.True(t, n.IsRead)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	svc := newTestNotificationService(repo, new(MockTaskRepository), new(MockUserRepository))
	repo.On("MarkAllAsRead", ctx, "user-a").Return(int64(3), nil)

	updated, err := svc.MarkAllRead(ctx, "user-a")

	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
}

func TestNotificationService_Enrich(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	base := models.Notification{
		ID:        "n-1",
		UserID:    "user-a",
		AuthorID:  models.StringPtr("user-c"),
		Type:      models.NotificationNewComment,
		CommentID: models.StringPtr("comment-1"),
		TaskID:    models.StringPtr("task-1"),
		ProjectID: models.StringPtr("project-1"),
		Message:   "please review",
		CreatedAt: createdAt,
	}

	t.Run("joins task project and author", func(t *testing.T) {
		tasks := new(MockTaskRepository)
		users := new(MockUserRepository)
		svc := newTestNotificationService(new(MockNotificationRepository), tasks, users)
		tasks.On("GetWithProject", ctx, "task-1").Return(&models.Task{
			ID:        "task-1",
			Title:     "Fix login",
			ProjectID: "project-1",
			Project:   &models.Project{ID: "project-1", Title: "Web"},
		}, nil)
		users.On("FindByID", ctx, "user-c").Return(&models.User{ID: "user-c", Username: "cara", FirstName: "Cara", LastName: "Diaz"}, nil)

		view, err := svc.Enrich(ctx, base)

		require.NoError(t, err)
		assert.Equal(t, "Fix login", view.TaskTitle)
		assert.Equal(t, "Web", view.ProjectName)
		assert.Equal(t, "Cara Diaz", view.UserName)
		assert.Equal(t, "please review", view.Message)
		assert.Equal(t, createdAt, view.CreatedAt)
	})

	t.Run("missing references degrade to absent fields", func(t *testing.T) {
		tasks := new(MockTaskRepository)
		users := new(MockUserRepository)
		svc := newTestNotificationService(new(MockNotificationRepository), tasks, users)
		tasks.On("GetWithProject", ctx, "task-1").Return(nil, gorm.ErrRecordNotFound)
		users.On("FindByID", ctx, "user-c").Return(nil, gorm.ErrRecordNotFound)

		view, err := svc.Enrich(ctx, base)

		require.NoError(t, err)
		assert.Empty(t, view.TaskTitle)
		assert.Empty(t, view.ProjectName)
		assert.Empty(t, view.UserName)
		assert.Equal(t, "project-1", view.ProjectID)
		assert.Equal(t, "please review", view.Message)
	})

	t.Run("storage failure is surfaced", func(t *testing.T) {
		tasks := new(MockTaskRepository)
		svc := newTestNotificationService(new(MockNotificationRepository), tasks, new(MockUserRepository))
		tasks.On("GetWithProject", ctx, "task-1").Return(nil, errors.New("connection refused"))

		_, err := svc.Enrich(ctx, base)

		assert.ErrorIs(t, err, ErrPersistence)
	})

	t.Run("batch looks each reference up once", func(t *testing.T) {
		tasks := new(MockTaskRepository)
		users := new(MockUserRepository)
		svc := newTestNotificationService(new(MockNotificationRepository), tasks, users)
		tasks.On("GetWithProject", ctx, "task-1").Return(&models.Task{ID: "task-1", Title: "Fix login"}, nil).Once()
		users.On("FindByID", ctx, "user-c").Return(&models.User{ID: "user-c", Username: "cara"}, nil).Once()

		second := base
		second.ID = "n-2"
		views, err := svc.EnrichAll(ctx, []models.Notification{base, second})

		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "n-1", views[0].ID)
		assert.Equal(t, "n-2", views[1].ID)
		assert.Equal(t, "cara", views[1].UserName)
		tasks.AssertExpectations(t)
		users.AssertExpectations(t)
	})
}
