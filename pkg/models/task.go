package models

import "time"

type TaskStatus string

const (
	DraftTaskStatus      TaskStatus = "DRAFT"
	AssignedTaskStatus   TaskStatus = "ASSIGNED"
	InProgressTaskStatus TaskStatus = "IN_PROGRESS"
	PausedTaskStatus     TaskStatus = "PAUSED"
	ReviewTaskStatus     TaskStatus = "REVIEW"
	RejectedTaskStatus   TaskStatus = "REJECTED"
	CompletedTaskStatus  TaskStatus = "COMPLETED"
	ClosedTaskStatus     TaskStatus = "CLOSED"
)

// StatusCategory groups raw statuses into board columns. Categories drive
// display and aggregation, never transition enforcement.
type StatusCategory string

const (
	TodoCategory       StatusCategory = "TO_DO"
	InProgressCategory StatusCategory = "IN_PROGRESS"
	ReviewCategory     StatusCategory = "REVIEW"
	DoneCategory       StatusCategory = "DONE"
)

// Category maps a status to its board column.
func (s TaskStatus) Category() StatusCategory {
	switch s {
	case DraftTaskStatus, AssignedTaskStatus, RejectedTaskStatus:
		return TodoCategory
	case InProgressTaskStatus, PausedTaskStatus:
		return InProgressCategory
	case ReviewTaskStatus:
		return ReviewCategory
	case CompletedTaskStatus, ClosedTaskStatus:
		return DoneCategory
	default:
		return TodoCategory
	}
}

// IsValid reports whether the status is one of the known values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case DraftTaskStatus, AssignedTaskStatus, InProgressTaskStatus, PausedTaskStatus,
		ReviewTaskStatus, RejectedTaskStatus, CompletedTaskStatus, ClosedTaskStatus:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status counts as "done" for blocking
// and completion purposes.
func (s TaskStatus) IsTerminal() bool {
	return s == CompletedTaskStatus || s == ClosedTaskStatus
}

// InitialStatus returns the status a newly created task starts in.
func InitialStatus(hasAssignees bool) TaskStatus {
	if hasAssignees {
		return AssignedTaskStatus
	}
	return DraftTaskStatus
}

// Task represents a unit of work tracked by the engine.
type Task struct {
	ID             int64      `json:"id" db:"id"`                           // Unique identifier (auto-increment)
	Key            string     `json:"key" db:"key"`                         // Human-readable key (e.g., "PROJ-42")
	Title          string     `json:"title" db:"title"`                     // Descriptive title
	Status         TaskStatus `json:"status" db:"status"`                   // Current workflow status
	ProjectID      *int64     `json:"project_id,omitempty" db:"project_id"` // Owning project (optional)
	ParentID       *int64     `json:"parent_id,omitempty" db:"parent_id"`   // Parent task for subtasks (optional)
	Type           string     `json:"type,omitempty" db:"type"`             // Task type (e.g., "STORY", "BUG")
	Priority       string     `json:"priority,omitempty" db:"priority"`     // Priority label
	EstimatedHours float64    `json:"estimated_hours" db:"estimated_hours"` // Planned effort
	LoggedHours    float64    `json:"logged_hours" db:"logged_hours"`       // Effort logged so far
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`           // Creation timestamp
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`           // Last update timestamp
}

// TaskSummary is the denormalized view of a task embedded in dependency
// payloads and graph nodes.
type TaskSummary struct {
	ID     int64      `json:"id"`
	Key    string     `json:"key"`
	Title  string     `json:"title"`
	Status TaskStatus `json:"status"`
}

// Summary builds the denormalized view of the task.
func (t Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Key: t.Key, Title: t.Title, Status: t.Status}
}
