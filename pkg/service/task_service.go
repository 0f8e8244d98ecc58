package service

import (
	"fmt"
	"time"

	"github.com/ignatij/taskboard/pkg/models"
	"github.com/ignatij/taskboard/pkg/storage"
	"github.com/pkg/errors"
)

// TaskService performs validated status transitions. The transition check
// and the status write run in one transaction: either the full change
// happens or none of it does.
type TaskService struct {
	store    storage.Store
	registry *WorkflowRegistry
	sink     storage.ActivitySink
	logger   Logger
}

func NewTaskService(store storage.Store, registry *WorkflowRegistry, sink storage.ActivitySink, logger Logger) *TaskService {
	return &TaskService{
		store:    store,
		registry: registry,
		sink:     sink,
		logger:   logger,
	}
}

// TransitionStatus moves a task to a new status when the workflow permits
// it for the acting role. CUSTOM workflows are validated against the rules
// stored for the task's project.
func (ts *TaskService) TransitionStatus(taskID int64, to models.TaskStatus, wt models.WorkflowType, role models.ProjectRole) (err error) {
	if !wt.IsValid() {
		return &ValidationError{Msg: fmt.Sprintf("invalid workflow type %q", wt)}
	}
	if !to.IsValid() {
		return &ValidationError{Msg: fmt.Sprintf("invalid task status %q", to)}
	}

	txStore, err := ts.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			ts.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	task, err := txStore.GetTask(taskID)
	if err != nil {
		return taskLookupErr(taskID, err)
	}

	allowed := false
	if wt == models.CustomWorkflow {
		rules, rerr := ts.customRules(txStore, task)
		if rerr != nil {
			return rerr
		}
		allowed = transitionAllowed(rules, task.Status, to, role)
	} else {
		allowed = ts.registry.IsTransitionAllowed(wt, task.Status, to, role)
	}
	if !allowed {
		return &InvalidTransitionError{Workflow: wt, From: task.Status, To: to, Role: role}
	}

	if err = txStore.UpdateTaskStatus(taskID, to); err != nil {
		return errors.Wrapf(err, "failed to update status of task %d", taskID)
	}

	ts.recordActivity(txStore, models.StatusChangedActivity{
		TaskID:     taskID,
		FromStatus: task.Status,
		ToStatus:   to,
		Workflow:   wt,
		Role:       role,
		At:         time.Now(),
	})
	ts.logger.Infof("Transitioned task %d from %s to %s (%s workflow)", taskID, task.Status, to, wt)
	return nil
}

// AvailableTransitions lists the rules applicable to a task's current status
// for the acting role, resolving CUSTOM rules from the store.
func (ts *TaskService) AvailableTransitions(taskID int64, wt models.WorkflowType, role models.ProjectRole) ([]models.TransitionRule, error) {
	if !wt.IsValid() {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid workflow type %q", wt)}
	}
	task, err := ts.store.GetTask(taskID)
	if err != nil {
		return nil, taskLookupErr(taskID, err)
	}
	if wt == models.CustomWorkflow {
		rules, err := ts.customRules(ts.store, task)
		if err != nil {
			return nil, err
		}
		return availableTransitions(rules, task.Status, role), nil
	}
	return ts.registry.GetAvailableTransitions(wt, task.Status, role), nil
}

// customRules resolves the dynamic rule set for a task's project. A task
// without a project has no custom rules, so every transition is disallowed.
func (ts *TaskService) customRules(store storage.Store, task models.Task) ([]models.TransitionRule, error) {
	if task.ProjectID == nil {
		return nil, nil
	}
	rules, err := store.GetWorkflowRules(*task.ProjectID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load workflow rules for project %d", *task.ProjectID)
	}
	return rules, nil
}

// recordActivity writes the event through the transaction store when it is
// also a sink, so the audit row commits or rolls back with the mutation.
func (ts *TaskService) recordActivity(store storage.Store, event models.ActivityEvent) {
	sink := ts.sink
	if txSink, ok := store.(storage.ActivitySink); ok {
		sink = txSink
	}
	if sink == nil {
		return
	}
	if err := sink.Record(event); err != nil {
		ts.logger.Errorf("Failed to record %s activity: %v", event.Kind(), err)
	}
}
