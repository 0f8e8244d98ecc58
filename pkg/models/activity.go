package models

import "time"

// ActivityEvent is implemented by the closed set of audit event types below.
// Each mutation kind carries an explicit record rather than an untyped
// metadata map, so the audit trail stays type-safe.
type ActivityEvent interface {
	Kind() string
	OccurredAt() time.Time
}

// DependencyCreatedActivity records a new dependency edge.
type DependencyCreatedActivity struct {
	DependencyID    int64          `json:"dependency_id"`
	DependentTaskID int64          `json:"dependent_task_id"`
	BlockingTaskID  int64          `json:"blocking_task_id"`
	Type            DependencyType `json:"type"`
	At              time.Time      `json:"at"`
}

func (a DependencyCreatedActivity) Kind() string          { return "DEPENDENCY_CREATED" }
func (a DependencyCreatedActivity) OccurredAt() time.Time { return a.At }

// DependencyDeletedActivity records the removal of a dependency edge.
type DependencyDeletedActivity struct {
	DependencyID    int64     `json:"dependency_id"`
	DependentTaskID int64     `json:"dependent_task_id"`
	BlockingTaskID  int64     `json:"blocking_task_id"`
	At              time.Time `json:"at"`
}

func (a DependencyDeletedActivity) Kind() string          { return "DEPENDENCY_DELETED" }
func (a DependencyDeletedActivity) OccurredAt() time.Time { return a.At }

// TaskMovedActivity records a parent change in the task hierarchy.
type TaskMovedActivity struct {
	TaskID      int64     `json:"task_id"`
	OldParentID *int64    `json:"old_parent_id,omitempty"`
	NewParentID *int64    `json:"new_parent_id,omitempty"`
	At          time.Time `json:"at"`
}

func (a TaskMovedActivity) Kind() string          { return "TASK_MOVED" }
func (a TaskMovedActivity) OccurredAt() time.Time { return a.At }

// StatusChangedActivity records a workflow status transition.
type StatusChangedActivity struct {
	TaskID     int64        `json:"task_id"`
	FromStatus TaskStatus   `json:"from_status"`
	ToStatus   TaskStatus   `json:"to_status"`
	Workflow   WorkflowType `json:"workflow"`
	Role       ProjectRole  `json:"role"`
	At         time.Time    `json:"at"`
}

func (a StatusChangedActivity) Kind() string          { return "STATUS_CHANGED" }
func (a StatusChangedActivity) OccurredAt() time.Time { return a.At }
