package storage

import (
	"github.com/ignatij/taskboard/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a referenced task, dependency or project
// member does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the storage operations for the task engine. Begin returns a
// transaction-backed Store so that check-then-act sequences (cycle check +
// edge insert, depth check + parent update) execute as one atomic unit.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Task operations
	GetTask(id int64) (models.Task, error)
	GetTasksByProject(projectID int64) ([]models.Task, error)
	GetChildren(parentID int64) ([]models.Task, error)
	UpdateTaskParent(taskID int64, parentID *int64) error
	UpdateTaskStatus(taskID int64, status models.TaskStatus) error

	// Dependency operations
	SaveDependency(d models.TaskDependency) (int64, error)
	GetDependency(id int64) (models.TaskDependency, error)
	DeleteDependency(id int64) error
	GetDependenciesForTask(taskID int64) ([]models.TaskDependency, error)
	GetDependenciesByProject(projectID int64) ([]models.TaskDependency, error)

	// Workflow and membership operations
	GetWorkflowRules(projectID int64) ([]models.TransitionRule, error)
	GetProjectRole(projectID, userID int64) (models.ProjectRole, error)
}

// ActivitySink receives audit events for hierarchy and status mutations.
// Recording is fire-and-forget: failures are logged by callers and never
// abort the primary operation.
type ActivitySink interface {
	Record(event models.ActivityEvent) error
}
