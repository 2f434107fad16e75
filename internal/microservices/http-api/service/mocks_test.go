package service

import (
	"context"
	"sort"
	"sync"

	"taskhub/internal/microservices/http-api/models"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockNotificationRepository mocks the NotificationRepository interface
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListUnreadByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkAsRead(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockTaskRepository mocks the task lookups
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) GetWithAssignees(ctx context.Context, taskID string) (*models.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepository) GetWithProject(ctx context.Context, taskID string) (*models.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// memNotificationRepository is an in-memory store for fan-out tests that run
// recipients concurrently.
type memNotificationRepository struct {
	mu      sync.Mutex
	rows    map[string]models.Notification
	failFor map[string]error
	creates int
}

func newMemNotificationRepository() *memNotificationRepository {
	return &memNotificationRepository{
		rows:    make(map[string]models.Notification),
		failFor: make(map[string]error),
	}
}

func (r *memNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if err, ok := r.failFor[n.UserID]; ok {
		return err
	}
	if err := n.BeforeCreate(nil); err != nil {
		return err
	}
	r.rows[n.ID] = *n
	return nil
}

func (r *memNotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &n, nil
}

func (r *memNotificationRepository) list(userID string, unreadOnly bool) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.rows {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *memNotificationRepository) ListUnreadByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return r.list(userID, true), nil
}

func (r *memNotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return r.list(userID, false), nil
}

func (r *memNotificationRepository) MarkAsRead(ctx context.Context, id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	n.IsRead = true
	r.rows[id] = n
	return &n, nil
}

func (r *memNotificationRepository) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for id, n := range r.rows {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			r.rows[id] = n
			updated++
		}
	}
	return updated, nil
}

func (r *memNotificationRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// recordingDispatcher remembers every dispatch and reports users in online as delivered.
type recordingDispatcher struct {
	mu     sync.Mutex
	online map[string]bool
	calls  map[string][]models.EnrichedNotification
}

func newRecordingDispatcher(online ...string) *recordingDispatcher {
	d := &recordingDispatcher{online: make(map[string]bool), calls: make(map[string][]models.EnrichedNotification)}
	for _, id := range online {
		d.online[id] = true
	}
	return d
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, recipientID string, n models.EnrichedNotification) DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[recipientID] = append(d.calls[recipientID], n)
	if d.online[recipientID] {
		return DispatchDelivered
	}
	return DispatchMissed
}

func (d *recordingDispatcher) sent(recipientID string) []models.EnrichedNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[recipientID]
}
