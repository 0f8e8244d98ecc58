package service

import "github.com/ignatij/taskboard/pkg/models"

// boardTransitions is the linear board flow shared by all built-in workflow
// types: DRAFT/ASSIGNED -> IN_PROGRESS -> REVIEW -> COMPLETED, with explicit
// backward transitions for corrections and recovery paths out of PAUSED and
// REJECTED. REJECTED deliberately only reopens to ASSIGNED; there is no
// direct path back into IN_PROGRESS.
var boardTransitions = []models.TransitionRule{
	{Name: "Start Work", From: models.DraftTaskStatus, To: models.InProgressTaskStatus},
	{Name: "Assign", From: models.DraftTaskStatus, To: models.AssignedTaskStatus},
	{Name: "Start Work", From: models.AssignedTaskStatus, To: models.InProgressTaskStatus},
	{Name: "Pause Work", From: models.InProgressTaskStatus, To: models.PausedTaskStatus},
	{Name: "Resume Work", From: models.PausedTaskStatus, To: models.InProgressTaskStatus},
	{Name: "Submit for Review", From: models.InProgressTaskStatus, To: models.ReviewTaskStatus},
	{Name: "Back to Assigned", From: models.InProgressTaskStatus, To: models.AssignedTaskStatus},
	{Name: "Request Changes", From: models.ReviewTaskStatus, To: models.InProgressTaskStatus},
	{Name: "Approve", From: models.ReviewTaskStatus, To: models.CompletedTaskStatus, RequiredRole: rolePtr(models.ManagerRole)},
	{Name: "Reject", From: models.ReviewTaskStatus, To: models.RejectedTaskStatus, RequiredRole: rolePtr(models.ManagerRole)},
	{Name: "Reopen", From: models.RejectedTaskStatus, To: models.AssignedTaskStatus},
	{Name: "Close", From: models.CompletedTaskStatus, To: models.ClosedTaskStatus, RequiredRole: rolePtr(models.ManagerRole)},
	{Name: "Reopen Completed", From: models.CompletedTaskStatus, To: models.InProgressTaskStatus, RequiredRole: rolePtr(models.AdminRole)},
	{Name: "Reopen Closed", From: models.ClosedTaskStatus, To: models.AssignedTaskStatus, RequiredRole: rolePtr(models.AdminRole)},
}

func rolePtr(r models.ProjectRole) *models.ProjectRole {
	return &r
}

// WorkflowRegistry holds one immutable transition table per workflow type.
// It is constructed once at process start and passed by reference; nothing
// mutates it at runtime. CUSTOM has an empty table and always defers to
// externally stored definitions.
type WorkflowRegistry struct {
	tables map[models.WorkflowType][]models.TransitionRule
}

func NewWorkflowRegistry() *WorkflowRegistry {
	return &WorkflowRegistry{
		tables: map[models.WorkflowType][]models.TransitionRule{
			models.BasicWorkflow:       boardTransitions,
			models.AgileWorkflow:       boardTransitions,
			models.BugTrackingWorkflow: boardTransitions,
			models.CustomWorkflow:      nil,
		},
	}
}

// Definition returns a copy of the static table for a workflow type.
func (r *WorkflowRegistry) Definition(wt models.WorkflowType) models.WorkflowDefinition {
	rules := r.tables[wt]
	out := make([]models.TransitionRule, len(rules))
	copy(out, rules)
	return models.WorkflowDefinition{Type: wt, Rules: out}
}

// IsTransitionAllowed decides whether a status change is permitted. CUSTOM
// always returns true, signaling "defer to the externally stored rule set";
// server-side CUSTOM enforcement happens in TaskService against the store.
func (r *WorkflowRegistry) IsTransitionAllowed(wt models.WorkflowType, from, to models.TaskStatus, role models.ProjectRole) bool {
	if wt == models.CustomWorkflow {
		return true
	}
	return transitionAllowed(r.tables[wt], from, to, role)
}

// GetAvailableTransitions filters the static table to the rules applicable
// from the current status for the given role. Used to drive "what can I do
// next" affordances.
func (r *WorkflowRegistry) GetAvailableTransitions(wt models.WorkflowType, current models.TaskStatus, role models.ProjectRole) []models.TransitionRule {
	return availableTransitions(r.tables[wt], current, role)
}

// transitionAllowed looks up a rule matching (from, to). A gated rule
// requires the caller's role to match exactly.
func transitionAllowed(rules []models.TransitionRule, from, to models.TaskStatus, role models.ProjectRole) bool {
	for _, rule := range rules {
		if rule.From != from || rule.To != to {
			continue
		}
		return rule.RequiredRole == nil || *rule.RequiredRole == role
	}
	return false
}

func availableTransitions(rules []models.TransitionRule, current models.TaskStatus, role models.ProjectRole) []models.TransitionRule {
	var out []models.TransitionRule
	for _, rule := range rules {
		if rule.From != current {
			continue
		}
		if rule.RequiredRole != nil && *rule.RequiredRole != role {
			continue
		}
		out = append(out, rule)
	}
	return out
}
