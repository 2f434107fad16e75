package repository

import (
	"context"

	"taskhub/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// TaskRepository exposes the task reads used by recipient resolution and enrichment.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	// GetWithAssignees loads the task with its project, direct users and groups with members.
	GetWithAssignees(ctx context.Context, taskID string) (*models.Task, error)
	// GetWithProject loads the task and its project only.
	GetWithProject(ctx context.Context, taskID string) (*models.Task, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepository) GetWithAssignees(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Preload("Project").
		Preload("Users").
		Preload("Groups.Users").
		First(&task, "id = ?", taskID).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) GetWithProject(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Preload("Project").First(&task, "id = ?", taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}
