package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is assigned to users directly and to collaborator groups.
type Task struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	ProjectID string    `gorm:"type:uuid;not null;index" json:"projectId"`
	CreatedAt time.Time `json:"created_at"`

	// Associations
	Project *Project            `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Users   []User              `gorm:"many2many:task_users;" json:"users,omitempty"`
	Groups  []CollaboratorGroup `gorm:"many2many:task_groups;" json:"groups,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return
}

func (Task) TableName() string {
	return "tasks"
}

// CollaboratorGroup is a named set of users that can be assigned to tasks as a unit.
type CollaboratorGroup struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Name  string `gorm:"not null" json:"name"`
	Users []User `gorm:"many2many:group_users;" json:"users,omitempty"`
}

func (g *CollaboratorGroup) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return
}

func (CollaboratorGroup) TableName() string {
	return "collaborator_groups"
}
