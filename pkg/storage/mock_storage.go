package storage

import (
	"time"

	"github.com/ignatij/taskboard/pkg/models"
	"github.com/pkg/errors"
)

// MockStore implements Store with in-memory storage
type MockStore struct {
	tasks        []models.Task
	dependencies []models.TaskDependency
	rules        map[int64][]models.TransitionRule
	roles        map[[2]int64]models.ProjectRole
	activities   []models.ActivityEvent
	nextTaskID   int64
	nextDepID    int64
}

// NewMockStore returns an empty in-memory store for tests and examples.
func NewMockStore() *MockStore {
	return &MockStore{
		rules: make(map[int64][]models.TransitionRule),
		roles: make(map[[2]int64]models.ProjectRole),
	}
}

func (m *MockStore) Begin() (Store, error) {
	return m, nil
}

func (m *MockStore) Commit() error {
	// The mock applies writes immediately; Commit is a no-op so one store
	// instance can span several service calls in a test.
	return nil
}

func (m *MockStore) Rollback() error {
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

// AddTask seeds a task, assigning an ID when unset. Test helper, not part of
// the Store interface.
func (m *MockStore) AddTask(t models.Task) models.Task {
	if t.ID == 0 {
		m.nextTaskID++
		t.ID = m.nextTaskID
	} else if t.ID > m.nextTaskID {
		m.nextTaskID = t.ID
	}
	if t.Status == "" {
		t.Status = models.InitialStatus(false)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	m.tasks = append(m.tasks, t)
	return t
}

// AddWorkflowRules seeds CUSTOM workflow rules for a project.
func (m *MockStore) AddWorkflowRules(projectID int64, rules []models.TransitionRule) {
	m.rules[projectID] = rules
}

// AddProjectRole seeds a membership role.
func (m *MockStore) AddProjectRole(projectID, userID int64, role models.ProjectRole) {
	m.roles[[2]int64{projectID, userID}] = role
}

// Activities returns the recorded audit events.
func (m *MockStore) Activities() []models.ActivityEvent {
	return m.activities
}

func (m *MockStore) GetTask(id int64) (models.Task, error) {
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrNotFound
}

func (m *MockStore) GetTasksByProject(projectID int64) ([]models.Task, error) {
	var tasks []models.Task
	for _, t := range m.tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (m *MockStore) GetChildren(parentID int64) ([]models.Task, error) {
	var children []models.Task
	for _, t := range m.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			children = append(children, t)
		}
	}
	return children, nil
}

func (m *MockStore) UpdateTaskParent(taskID int64, parentID *int64) error {
	for i, t := range m.tasks {
		if t.ID == taskID {
			m.tasks[i].ParentID = parentID
			m.tasks[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) UpdateTaskStatus(taskID int64, status models.TaskStatus) error {
	for i, t := range m.tasks {
		if t.ID == taskID {
			m.tasks[i].Status = status
			m.tasks[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) SaveDependency(d models.TaskDependency) (int64, error) {
	// Check for duplicate edge
	for _, existing := range m.dependencies {
		if existing.DependentTaskID == d.DependentTaskID &&
			existing.BlockingTaskID == d.BlockingTaskID &&
			existing.Type == d.Type {
			return 0, errors.New("dependency already exists")
		}
	}
	m.nextDepID++
	d.ID = m.nextDepID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	m.dependencies = append(m.dependencies, d)
	return d.ID, nil
}

func (m *MockStore) GetDependency(id int64) (models.TaskDependency, error) {
	for _, d := range m.dependencies {
		if d.ID == id {
			return d, nil
		}
	}
	return models.TaskDependency{}, ErrNotFound
}

func (m *MockStore) DeleteDependency(id int64) error {
	for i, d := range m.dependencies {
		if d.ID == id {
			m.dependencies = append(m.dependencies[:i], m.dependencies[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) GetDependenciesForTask(taskID int64) ([]models.TaskDependency, error) {
	var deps []models.TaskDependency
	for _, d := range m.dependencies {
		if d.DependentTaskID == taskID || d.BlockingTaskID == taskID {
			deps = append(deps, d)
		}
	}
	return deps, nil
}

func (m *MockStore) GetDependenciesByProject(projectID int64) ([]models.TaskDependency, error) {
	inProject := make(map[int64]bool)
	for _, t := range m.tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID {
			inProject[t.ID] = true
		}
	}
	var deps []models.TaskDependency
	for _, d := range m.dependencies {
		if inProject[d.DependentTaskID] || inProject[d.BlockingTaskID] {
			deps = append(deps, d)
		}
	}
	return deps, nil
}

func (m *MockStore) GetWorkflowRules(projectID int64) ([]models.TransitionRule, error) {
	return m.rules[projectID], nil
}

func (m *MockStore) GetProjectRole(projectID, userID int64) (models.ProjectRole, error) {
	role, ok := m.roles[[2]int64{projectID, userID}]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

// Record implements ActivitySink so tests can assert on audit events.
func (m *MockStore) Record(event models.ActivityEvent) error {
	m.activities = append(m.activities, event)
	return nil
}
