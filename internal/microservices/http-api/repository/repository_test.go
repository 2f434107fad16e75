package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskhub/internal/microservices/http-api/models"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type RepositorySuite struct {
	suite.Suite
	ctx           context.Context
	db            *gorm.DB
	notifications NotificationRepository
	tasks         TaskRepository
	users         UserRepository
	comments      CommentRepository
}

func (s *RepositorySuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	// every pooled connection would otherwise get its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.CollaboratorGroup{},
		&models.Task{},
		&models.Comment{},
		&models.Notification{},
	))

	s.ctx = context.Background()
	s.db = db
	s.notifications = NewNotificationRepository(db)
	s.tasks = NewTaskRepository(db)
	s.users = NewUserRepository(db)
	s.comments = NewCommentRepository(db)
}

func (s *RepositorySuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (s *RepositorySuite) createUser(name string) *models.User {
	user := &models.User{Username: name, Email: fmt.Sprintf("%s@example.com", name), FirstName: name}
	s.Require().NoError(s.users.Create(s.ctx, user))
	return user
}

func (s *RepositorySuite) createNotification(userID, message string, createdAt time.Time) *models.Notification {
	n := &models.Notification{
		UserID:    userID,
		Type:      models.NotificationNewComment,
		Message:   message,
		CreatedAt: createdAt,
	}
	s.Require().NoError(s.notifications.Create(s.ctx, n))
	return n
}

func (s *RepositorySuite) TestListUnreadByUser_NewestFirstAndScopedToUser() {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := s.createNotification("user-a", "first", base)
	newer := s.createNotification("user-a", "second", base.Add(time.Minute))
	s.createNotification("user-b", "not mine", base.Add(2*time.Minute))
	read := s.createNotification("user-a", "already read", base.Add(3*time.Minute))
	_, err := s.notifications.MarkAsRead(s.ctx, read.ID)
	s.Require().NoError(err)

	unread, err := s.notifications.ListUnreadByUser(s.ctx, "user-a")

	s.Require().NoError(err)
	s.Require().Len(unread, 2)
	s.Equal(newer.ID, unread[0].ID)
	s.Equal(older.ID, unread[1].ID)

	all, err := s.notifications.ListByUser(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(read.ID, all[0].ID)
}

func (s *RepositorySuite) TestListUnreadByUser_EmptyIsNotNil() {
	unread, err := s.notifications.ListUnreadByUser(s.ctx, "nobody")

	s.Require().NoError(err)
	s.NotNil(unread)
	s.Empty(unread)
}

func (s *RepositorySuite) TestMarkAsRead_Idempotent() {
	n := s.createNotification("user-a", "hello", time.Now().UTC())

	first, err := s.notifications.MarkAsRead(s.ctx, n.ID)
	s.Require().NoError(err)
	second, err := s.notifications.MarkAsRead(s.ctx, n.ID)
	s.Require().NoError(err)

	s.True(first.IsRead)
	s.True(second.IsRead)
	s.Equal(first.ID, second.ID)
	s.Equal("hello", second.Message)
}

func (s *RepositorySuite) TestMarkAsRead_UnknownID() {
	_, err := s.notifications.MarkAsRead(s.ctx, "00000000-0000-0000-0000-000000000000")

	s.True(IsNotFound(err))
}

func (s *RepositorySuite) TestMarkAllAsRead() {
	now := time.Now().UTC()
	s.createNotification("user-a", "one", now)
	s.createNotification("user-a", "two", now.Add(time.Second))
	s.createNotification("user-b", "other", now)

	updated, err := s.notifications.MarkAllAsRead(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Equal(int64(2), updated)

	unread, err := s.notifications.ListUnreadByUser(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Empty(unread)

	others, err := s.notifications.ListUnreadByUser(s.ctx, "user-b")
	s.Require().NoError(err)
	s.Len(others, 1)
}

func (s *RepositorySuite) TestTaskGetWithAssignees() {
	a := s.createUser("alice")
	b := s.createUser("bob")
	c := s.createUser("cara")

	project := &models.Project{Title: "Web"}
	s.Require().NoError(s.db.Create(project).Error)
	group := &models.CollaboratorGroup{Name: "reviewers", Users: []models.User{*b, *c}}
	s.Require().NoError(s.db.Create(group).Error)

	task := &models.Task{
		Title:     "Fix login",
		ProjectID: project.ID,
		Users:     []models.User{*a},
		Groups:    []models.CollaboratorGroup{*group},
	}
	s.Require().NoError(s.tasks.Create(s.ctx, task))

	loaded, err := s.tasks.GetWithAssignees(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("Fix login", loaded.Title)
	s.Require().NotNil(loaded.Project)
	s.Equal("Web", loaded.Project.Title)
	s.Require().Len(loaded.Users, 1)
	s.Equal(a.ID, loaded.Users[0].ID)
	s.Require().Len(loaded.Groups, 1)
	s.Len(loaded.Groups[0].Users, 2)

	withProject, err := s.tasks.GetWithProject(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Empty(withProject.Users)
	s.Equal("Web", withProject.Project.Title)

	_, err = s.tasks.GetWithProject(s.ctx, "missing")
	s.True(IsNotFound(err))
}

func (s *RepositorySuite) TestCommentCreate() {
	author := s.createUser("dana")
	project := &models.Project{Title: "Ops"}
	s.Require().NoError(s.db.Create(project).Error)
	task := &models.Task{Title: "Rotate keys", ProjectID: project.ID}
	s.Require().NoError(s.tasks.Create(s.ctx, task))

	comment := &models.Comment{TaskID: task.ID, AuthorID: author.ID, Content: "done"}
	s.Require().NoError(s.comments.Create(s.ctx, comment))
	s.NotEmpty(comment.ID)

	found, err := s.users.FindByID(s.ctx, author.ID)
	s.Require().NoError(err)
	s.Equal("dana", found.DisplayName())
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}
