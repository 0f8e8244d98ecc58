package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignatij/taskboard/pkg/models"
	"github.com/ignatij/taskboard/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// GetTask retrieves a task by ID
func (s *PostgresStore) GetTask(id int64) (models.Task, error) {
	var task models.Task
	err := s.db.Get(&task, "SELECT * FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// GetTasksByProject retrieves all tasks belonging to a project
func (s *PostgresStore) GetTasksByProject(projectID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks WHERE project_id = $1 ORDER BY created_at", projectID)
	if err != nil {
		return nil, fmt.Errorf("get tasks for project %d: %w", projectID, err)
	}
	return tasks, nil
}

// GetChildren retrieves the direct children of a task ordered by creation time
func (s *PostgresStore) GetChildren(parentID int64) ([]models.Task, error) {
	children := []models.Task{}
	err := s.db.Select(&children, "SELECT * FROM tasks WHERE parent_id = $1 ORDER BY created_at", parentID)
	if err != nil {
		return nil, fmt.Errorf("get children of task %d: %w", parentID, err)
	}
	return children, nil
}

// UpdateTaskParent re-parents a task; a nil parent detaches it
func (s *PostgresStore) UpdateTaskParent(taskID int64, parentID *int64) error {
	res, err := s.db.Exec("UPDATE tasks SET parent_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", parentID, taskID)
	if err != nil {
		return fmt.Errorf("update parent of task %d: %w", taskID, err)
	}
	return requireRowsAffected(res)
}

// UpdateTaskStatus updates the status of a task
func (s *PostgresStore) UpdateTaskStatus(taskID int64, status models.TaskStatus) error {
	res, err := s.db.Exec("UPDATE tasks SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", status, taskID)
	if err != nil {
		return fmt.Errorf("update status of task %d: %w", taskID, err)
	}
	return requireRowsAffected(res)
}

// SaveDependency inserts a new dependency edge and returns its ID
func (s *PostgresStore) SaveDependency(d models.TaskDependency) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO task_dependencies (dependent_task_id, blocking_task_id, dep_type, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		d.DependentTaskID, d.BlockingTaskID, d.Type, d.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save dependency: %w", err)
	}
	return id, nil
}

// GetDependency retrieves a dependency edge by ID
func (s *PostgresStore) GetDependency(id int64) (models.TaskDependency, error) {
	var dep models.TaskDependency
	err := s.db.Get(&dep, "SELECT * FROM task_dependencies WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.TaskDependency{}, storage.ErrNotFound
	}
	if err != nil {
		return models.TaskDependency{}, fmt.Errorf("get dependency %d: %w", id, err)
	}
	return dep, nil
}

// DeleteDependency removes a dependency edge by ID
func (s *PostgresStore) DeleteDependency(id int64) error {
	res, err := s.db.Exec("DELETE FROM task_dependencies WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete dependency %d: %w", id, err)
	}
	return requireRowsAffected(res)
}

// GetDependenciesForTask retrieves all edges touching a task, either side
func (s *PostgresStore) GetDependenciesForTask(taskID int64) ([]models.TaskDependency, error) {
	deps := []models.TaskDependency{}
	err := s.db.Select(&deps,
		"SELECT * FROM task_dependencies WHERE dependent_task_id = $1 OR blocking_task_id = $1 ORDER BY id", taskID)
	if err != nil {
		return nil, fmt.Errorf("get dependencies for task %d: %w", taskID, err)
	}
	return deps, nil
}

// GetDependenciesByProject retrieves all edges touching a project's tasks
func (s *PostgresStore) GetDependenciesByProject(projectID int64) ([]models.TaskDependency, error) {
	deps := []models.TaskDependency{}
	err := s.db.Select(&deps, `
		SELECT d.* FROM task_dependencies d
		JOIN tasks t ON t.id = d.dependent_task_id OR t.id = d.blocking_task_id
		WHERE t.project_id = $1
		GROUP BY d.id
		ORDER BY d.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("get dependencies for project %d: %w", projectID, err)
	}
	return deps, nil
}

// GetWorkflowRules retrieves the CUSTOM workflow rule set for a project
func (s *PostgresStore) GetWorkflowRules(projectID int64) ([]models.TransitionRule, error) {
	rules := []models.TransitionRule{}
	err := s.db.Select(&rules, `
		SELECT name, from_status, to_status, required_role
		FROM workflow_rules WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("get workflow rules for project %d: %w", projectID, err)
	}
	return rules, nil
}

// GetProjectRole retrieves a member's role within a project
func (s *PostgresStore) GetProjectRole(projectID, userID int64) (models.ProjectRole, error) {
	var role models.ProjectRole
	err := s.db.Get(&role, "SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2", projectID, userID)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get role for user %d in project %d: %w", userID, projectID, err)
	}
	return role, nil
}

// Record appends an audit event to the activity log. The payload is the
// JSON form of the event's explicit record type.
func (s *PostgresStore) Record(event models.ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s activity: %w", event.Kind(), err)
	}
	_, err = s.db.Exec(
		"INSERT INTO activity_log (kind, payload, occurred_at) VALUES ($1, $2, $3)",
		event.Kind(), payload, event.OccurredAt())
	if err != nil {
		return fmt.Errorf("record %s activity: %w", event.Kind(), err)
	}
	return nil
}

// requireRowsAffected maps a zero-row update/delete to ErrNotFound.
func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
