package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ignatij/taskboard/pkg/models"
)

// ValidationError reports malformed or self-referential input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NotFoundError reports a missing task, dependency or project.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// CircularDependencyError carries the dependency path that would close a
// cycle, in traversal order.
type CircularDependencyError struct {
	Path []int64
}

func (e *CircularDependencyError) Error() string {
	ids := make([]string, len(e.Path))
	for i, id := range e.Path {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(ids, " -> "))
}

// Hierarchy validation rule identifiers, carried by HierarchyValidationError
// so callers can render which constraint was violated.
const (
	RuleSameProject     = "SAME_PROJECT"
	RuleDescendantCycle = "DESCENDANT_CYCLE"
	RuleMaxDepth        = "MAX_DEPTH"
	RuleSelfParent      = "SELF_PARENT"
)

// HierarchyValidationError reports an invalid task move.
type HierarchyValidationError struct {
	Rule   string
	Detail string
	Limit  int
}

func (e *HierarchyValidationError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("hierarchy rule %s violated: %s (limit %d)", e.Rule, e.Detail, e.Limit)
	}
	return fmt.Sprintf("hierarchy rule %s violated: %s", e.Rule, e.Detail)
}

// InvalidTransitionError reports a status change with no matching workflow
// rule, or a role mismatch on a gated rule.
type InvalidTransitionError struct {
	Workflow models.WorkflowType
	From     models.TaskStatus
	To       models.TaskStatus
	Role     models.ProjectRole
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s not allowed in %s workflow for role %s",
		e.From, e.To, e.Workflow, e.Role)
}
