package service

import (
	"errors"

	"github.com/ignatij/taskboard/internal/log"
	"github.com/ignatij/taskboard/pkg/models"
	"github.com/ignatij/taskboard/pkg/service"
	"github.com/ignatij/taskboard/pkg/storage"
)

// Engine bundles the relationship and transition services over one store,
// wired with the shared logger. The HTTP and CLI layers construct one Engine
// per store and dispatch into it.
type Engine struct {
	Dependencies *service.DependencyService
	Hierarchy    *service.HierarchyService
	Tasks        *service.TaskService
	Workflows    *service.WorkflowRegistry
	store        storage.Store
}

// NewEngine wires the services over the given store. When the store also
// implements ActivitySink (the Postgres store and the mock both do), audit
// events are recorded through it; otherwise they are dropped.
func NewEngine(store storage.Store) *Engine {
	logger := log.GetLogger()
	sink, _ := store.(storage.ActivitySink)
	registry := service.NewWorkflowRegistry()
	return &Engine{
		Dependencies: service.NewDependencyService(store, sink, logger),
		Hierarchy:    service.NewHierarchyService(store, sink, logger),
		Tasks:        service.NewTaskService(store, registry, sink, logger),
		Workflows:    registry,
		store:        store,
	}
}

// RoleForTask resolves a member's role within a task's project. The outer
// layers use it to derive the acting role for transition checks when the
// caller supplies a user instead of an explicit role.
func (e *Engine) RoleForTask(taskID, userID int64) (models.ProjectRole, error) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", &service.NotFoundError{Resource: "task", ID: taskID}
		}
		return "", err
	}
	if task.ProjectID == nil {
		return "", &service.NotFoundError{Resource: "project membership", ID: taskID}
	}
	role, err := e.store.GetProjectRole(*task.ProjectID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", &service.NotFoundError{Resource: "project membership", ID: userID}
		}
		return "", err
	}
	return role, nil
}
