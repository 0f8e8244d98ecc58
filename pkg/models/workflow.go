package models

type WorkflowType string

const (
	BasicWorkflow       WorkflowType = "BASIC"
	AgileWorkflow       WorkflowType = "AGILE"
	BugTrackingWorkflow WorkflowType = "BUG_TRACKING"
	CustomWorkflow      WorkflowType = "CUSTOM"
)

// IsValid reports whether the workflow type is known.
func (wt WorkflowType) IsValid() bool {
	switch wt {
	case BasicWorkflow, AgileWorkflow, BugTrackingWorkflow, CustomWorkflow:
		return true
	default:
		return false
	}
}

// ProjectRole ranks a member's authority within a project. Transition rules
// that declare a required role gate on an exact match.
type ProjectRole string

const (
	ViewerRole    ProjectRole = "VIEWER"
	DeveloperRole ProjectRole = "DEVELOPER"
	ManagerRole   ProjectRole = "MANAGER"
	AdminRole     ProjectRole = "ADMIN"
)

// Rank orders roles by authority, lowest first. Unknown roles rank below
// VIEWER.
func (r ProjectRole) Rank() int {
	switch r {
	case ViewerRole:
		return 1
	case DeveloperRole:
		return 2
	case ManagerRole:
		return 3
	case AdminRole:
		return 4
	default:
		return 0
	}
}

// TransitionRule permits one status change, optionally gated by a project
// role.
type TransitionRule struct {
	Name         string       `json:"name" db:"name"`                             // Display name (e.g., "Start Work")
	From         TaskStatus   `json:"from" db:"from_status"`                      // Current status
	To           TaskStatus   `json:"to" db:"to_status"`                          // Target status
	RequiredRole *ProjectRole `json:"required_role,omitempty" db:"required_role"` // Exact role required, if any
}

// WorkflowDefinition is a typed, ordered table of permitted transitions.
// Built-in definitions are compiled in and immutable; CUSTOM definitions are
// resolved from the store at runtime.
type WorkflowDefinition struct {
	Type  WorkflowType     `json:"type"`
	Rules []TransitionRule `json:"rules"`
}
