package models

import "time"

type DependencyType string

const (
	BlocksDependency      DependencyType = "BLOCKS"
	IsBlockedByDependency DependencyType = "IS_BLOCKED_BY"
	RelatesToDependency   DependencyType = "RELATES_TO"
)

// IsValid reports whether the type is one of the known dependency kinds.
func (dt DependencyType) IsValid() bool {
	switch dt {
	case BlocksDependency, IsBlockedByDependency, RelatesToDependency:
		return true
	default:
		return false
	}
}

// IsBlocking reports whether edges of this type participate in the
// blocking graph. RELATES_TO is a non-blocking "see also" relation.
func (dt DependencyType) IsBlocking() bool {
	return dt == BlocksDependency || dt == IsBlockedByDependency
}

// TaskDependency is a directed edge meaning the blocking task must complete
// before the dependent task may proceed.
type TaskDependency struct {
	ID              int64          `json:"id" db:"id"`                                // Unique identifier (auto-increment)
	DependentTaskID int64          `json:"dependent_task_id" db:"dependent_task_id"`  // Task that is blocked
	BlockingTaskID  int64          `json:"blocking_task_id" db:"blocking_task_id"`    // Task that must complete first
	Type            DependencyType `json:"type" db:"dep_type"`                        // BLOCKS, IS_BLOCKED_BY or RELATES_TO
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`                // Creation timestamp
}

// DependencyInfo is a dependency edge with denormalized task summaries,
// the shape returned to callers.
type DependencyInfo struct {
	TaskDependency
	DependentTask TaskSummary `json:"dependent_task"`
	BlockingTask  TaskSummary `json:"blocking_task"`
}

// TaskRelations groups a task's dependencies by direction and kind.
type TaskRelations struct {
	Blocking  []DependencyInfo `json:"blocking"`   // edges where the task is the blocker
	BlockedBy []DependencyInfo `json:"blocked_by"` // edges where the task is blocked
	RelatedTo []DependencyInfo `json:"related_to"` // non-blocking relations, either side
}

// BlockingInfo answers whether a task may start given its open blockers.
type BlockingInfo struct {
	IsBlocked bool          `json:"is_blocked"`
	BlockedBy []TaskSummary `json:"blocked_by"`
	Blocking  []TaskSummary `json:"blocking"`
	CanStart  bool          `json:"can_start"`
	Reason    string        `json:"reason,omitempty"`
}

// SubtaskSummary aggregates the direct children of a parent task.
type SubtaskSummary struct {
	Total                int     `json:"total"`
	Completed            int     `json:"completed"`
	InProgress           int     `json:"in_progress"`
	Todo                 int     `json:"todo"`
	CompletionPercentage int     `json:"completion_percentage"`
	EstimatedHours       float64 `json:"estimated_hours"`
	LoggedHours          float64 `json:"logged_hours"`
	RemainingHours       float64 `json:"remaining_hours"`
}

// GraphNode is a task annotated with its blocking neighborhood, used by the
// project-wide dependency graph view.
type GraphNode struct {
	TaskSummary
	BlockedBy []int64 `json:"blocked_by"`
	Blocking  []int64 `json:"blocking"`
}

// DependencyGraph is the diagnostic view of a project's full dependency
// graph, including any cycles found by full-graph enumeration.
type DependencyGraph struct {
	Nodes  []GraphNode      `json:"nodes"`
	Edges  []TaskDependency `json:"edges"`
	Cycles [][]int64        `json:"cycles"`
}

// TaskTreeNode is a task plus its recursively built children, bounded by the
// requested depth. Not persisted.
type TaskTreeNode struct {
	Task
	Children             []*TaskTreeNode `json:"children"`
	HasChildren          bool            `json:"has_children"`
	CompletionPercentage int             `json:"completion_percentage"`
}
