package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ignatij/taskboard/pkg/models"
	"github.com/ignatij/taskboard/pkg/storage"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for the engine services
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// DependencyService manages the directed graph of inter-task dependencies.
// Mutations run their precondition checks and writes inside a single store
// transaction so that two concurrent inserts cannot jointly close a cycle.
type DependencyService struct {
	store  storage.Store
	sink   storage.ActivitySink
	logger Logger
}

func NewDependencyService(store storage.Store, sink storage.ActivitySink, logger Logger) *DependencyService {
	return &DependencyService{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

// CreateDependency validates and persists a new dependency edge. The cycle
// check and the insert execute within one transaction.
func (s *DependencyService) CreateDependency(dependentID, blockingID int64, depType models.DependencyType) (dep models.DependencyInfo, err error) {
	if !depType.IsValid() {
		return models.DependencyInfo{}, &ValidationError{Msg: fmt.Sprintf("invalid dependency type %q", depType)}
	}
	if dependentID == blockingID {
		return models.DependencyInfo{}, &ValidationError{Msg: "a task cannot depend on itself"}
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.DependencyInfo{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	dependent, err := txStore.GetTask(dependentID)
	if err != nil {
		return models.DependencyInfo{}, taskLookupErr(dependentID, err)
	}
	blocking, err := txStore.GetTask(blockingID)
	if err != nil {
		return models.DependencyInfo{}, taskLookupErr(blockingID, err)
	}

	existing, err := txStore.GetDependenciesForTask(dependentID)
	if err != nil {
		return models.DependencyInfo{}, errors.Wrap(err, "failed to load existing dependencies")
	}
	for _, d := range existing {
		if d.DependentTaskID == dependentID && d.BlockingTaskID == blockingID && d.Type == depType {
			return models.DependencyInfo{}, &ValidationError{
				Msg: fmt.Sprintf("dependency %d -> %d (%s) already exists", dependentID, blockingID, depType),
			}
		}
	}

	// RELATES_TO is a non-blocking relation and cannot create a blocking cycle.
	if depType.IsBlocking() {
		adj, adjErr := s.loadBlockingAdjacency(txStore, blockingID)
		if adjErr != nil {
			return models.DependencyInfo{}, adjErr
		}
		if path := findDependencyPath(adj, blockingID, dependentID); path != nil {
			return models.DependencyInfo{}, &CircularDependencyError{
				Path: append([]int64{dependentID}, path...),
			}
		}
	}

	record := models.TaskDependency{
		DependentTaskID: dependentID,
		BlockingTaskID:  blockingID,
		Type:            depType,
		CreatedAt:       time.Now(),
	}
	record.ID, err = txStore.SaveDependency(record)
	if err != nil {
		return models.DependencyInfo{}, errors.Wrap(err, "failed to save dependency")
	}

	s.recordActivity(txStore, models.DependencyCreatedActivity{
		DependencyID:    record.ID,
		DependentTaskID: dependentID,
		BlockingTaskID:  blockingID,
		Type:            depType,
		At:              record.CreatedAt,
	})
	s.logger.Infof("Created %s dependency %d: task %d waits on task %d", depType, record.ID, dependentID, blockingID)
	return models.DependencyInfo{
		TaskDependency: record,
		DependentTask:  dependent.Summary(),
		BlockingTask:   blocking.Summary(),
	}, nil
}

// DeleteDependency removes an edge by ID. Deleting a missing (or already
// deleted) ID fails with NotFoundError; the second delete is an error, not a
// silent no-op.
func (s *DependencyService) DeleteDependency(id int64) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	dep, err := txStore.GetDependency(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Resource: "dependency", ID: id}
		}
		return errors.Wrapf(err, "failed to load dependency %d", id)
	}
	if err = txStore.DeleteDependency(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Resource: "dependency", ID: id}
		}
		return errors.Wrapf(err, "failed to delete dependency %d", id)
	}

	s.recordActivity(txStore, models.DependencyDeletedActivity{
		DependencyID:    id,
		DependentTaskID: dep.DependentTaskID,
		BlockingTaskID:  dep.BlockingTaskID,
		At:              time.Now(),
	})
	s.logger.Infof("Deleted dependency %d", id)
	return nil
}

// GetTaskDependencies groups a task's edges by direction and kind.
func (s *DependencyService) GetTaskDependencies(taskID int64) (models.TaskRelations, error) {
	if _, err := s.store.GetTask(taskID); err != nil {
		return models.TaskRelations{}, taskLookupErr(taskID, err)
	}
	deps, err := s.store.GetDependenciesForTask(taskID)
	if err != nil {
		return models.TaskRelations{}, errors.Wrapf(err, "failed to load dependencies for task %d", taskID)
	}

	summaries := make(map[int64]models.TaskSummary)
	summarize := func(id int64) (models.TaskSummary, error) {
		if sum, ok := summaries[id]; ok {
			return sum, nil
		}
		t, err := s.store.GetTask(id)
		if err != nil {
			return models.TaskSummary{}, taskLookupErr(id, err)
		}
		summaries[id] = t.Summary()
		return summaries[id], nil
	}

	var relations models.TaskRelations
	for _, d := range deps {
		dependent, err := summarize(d.DependentTaskID)
		if err != nil {
			return models.TaskRelations{}, err
		}
		blocking, err := summarize(d.BlockingTaskID)
		if err != nil {
			return models.TaskRelations{}, err
		}
		info := models.DependencyInfo{TaskDependency: d, DependentTask: dependent, BlockingTask: blocking}
		switch {
		case !d.Type.IsBlocking():
			relations.RelatedTo = append(relations.RelatedTo, info)
		case d.DependentTaskID == taskID:
			relations.BlockedBy = append(relations.BlockedBy, info)
		default:
			relations.Blocking = append(relations.Blocking, info)
		}
	}
	return relations, nil
}

// GetBlockingInfo reports whether a task may start. A task is blocked when
// any blocking edge points at it from a task that is not yet terminal.
func (s *DependencyService) GetBlockingInfo(taskID int64) (models.BlockingInfo, error) {
	if _, err := s.store.GetTask(taskID); err != nil {
		return models.BlockingInfo{}, taskLookupErr(taskID, err)
	}
	deps, err := s.store.GetDependenciesForTask(taskID)
	if err != nil {
		return models.BlockingInfo{}, errors.Wrapf(err, "failed to load dependencies for task %d", taskID)
	}

	info := models.BlockingInfo{}
	var open []string
	for _, d := range deps {
		if !d.Type.IsBlocking() {
			continue
		}
		if d.DependentTaskID == taskID {
			blocker, err := s.store.GetTask(d.BlockingTaskID)
			if err != nil {
				return models.BlockingInfo{}, taskLookupErr(d.BlockingTaskID, err)
			}
			info.BlockedBy = append(info.BlockedBy, blocker.Summary())
			if !blocker.Status.IsTerminal() {
				open = append(open, blocker.Key)
			}
		} else {
			dependent, err := s.store.GetTask(d.DependentTaskID)
			if err != nil {
				return models.BlockingInfo{}, taskLookupErr(d.DependentTaskID, err)
			}
			info.Blocking = append(info.Blocking, dependent.Summary())
		}
	}
	info.IsBlocked = len(open) > 0
	info.CanStart = !info.IsBlocked
	if info.IsBlocked {
		info.Reason = fmt.Sprintf("waiting on %s", strings.Join(open, ", "))
	}
	return info, nil
}

// GetSubtaskSummary aggregates the direct children of a parent task, one
// level deep, classifying each child by its status category.
func (s *DependencyService) GetSubtaskSummary(parentID int64) (models.SubtaskSummary, error) {
	if _, err := s.store.GetTask(parentID); err != nil {
		return models.SubtaskSummary{}, taskLookupErr(parentID, err)
	}
	children, err := s.store.GetChildren(parentID)
	if err != nil {
		return models.SubtaskSummary{}, errors.Wrapf(err, "failed to load children of task %d", parentID)
	}

	summary := models.SubtaskSummary{Total: len(children)}
	for _, child := range children {
		switch child.Status.Category() {
		case models.DoneCategory:
			summary.Completed++
		case models.InProgressCategory, models.ReviewCategory:
			summary.InProgress++
		default:
			summary.Todo++
		}
		summary.EstimatedHours += child.EstimatedHours
		summary.LoggedHours += child.LoggedHours
	}
	if summary.Total > 0 {
		summary.CompletionPercentage = int(math.Round(float64(summary.Completed) / float64(summary.Total) * 100))
	}
	if remaining := summary.EstimatedHours - summary.LoggedHours; remaining > 0 {
		summary.RemainingHours = remaining
	}
	return summary, nil
}

// GenerateDependencyGraph builds the diagnostic view of a project's full
// dependency graph: one node per task with its blocking neighborhood, one
// edge per dependency, plus full-graph cycle enumeration. Live data should
// never contain cycles; this path exists for visualization and debugging.
func (s *DependencyService) GenerateDependencyGraph(projectID int64) (models.DependencyGraph, error) {
	tasks, err := s.store.GetTasksByProject(projectID)
	if err != nil {
		return models.DependencyGraph{}, errors.Wrapf(err, "failed to load tasks for project %d", projectID)
	}
	if len(tasks) == 0 {
		return models.DependencyGraph{}, &NotFoundError{Resource: "project", ID: projectID}
	}
	deps, err := s.store.GetDependenciesByProject(projectID)
	if err != nil {
		return models.DependencyGraph{}, errors.Wrapf(err, "failed to load dependencies for project %d", projectID)
	}

	adj := blockingAdjacency(deps)
	rev := make(map[int64][]int64)
	for from, tos := range adj {
		for _, to := range tos {
			rev[to] = append(rev[to], from)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	graph := models.DependencyGraph{Edges: deps}
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
		graph.Nodes = append(graph.Nodes, models.GraphNode{
			TaskSummary: t.Summary(),
			BlockedBy:   adj[t.ID],
			Blocking:    rev[t.ID],
		})
	}
	graph.Cycles = detectCycles(adj, ids)
	return graph, nil
}

// loadBlockingAdjacency materializes the blocking edges relevant to a cycle
// check by crawling outward from the prospective blocker with a visited set,
// one task at a time. Edges may cross project boundaries, so the crawl
// follows them wherever they lead; only edges reachable from the blocker can
// close a cycle with the new edge.
func (s *DependencyService) loadBlockingAdjacency(txStore storage.Store, blockingID int64) (map[int64][]int64, error) {
	var edges []models.TaskDependency
	visited := map[int64]bool{}
	queue := []int64{blockingID}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true
		deps, err := txStore.GetDependenciesForTask(node)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load dependencies for task %d", node)
		}
		for _, d := range deps {
			if d.Type.IsBlocking() && d.DependentTaskID == node {
				edges = append(edges, d)
				if !visited[d.BlockingTaskID] {
					queue = append(queue, d.BlockingTaskID)
				}
			}
		}
	}
	return blockingAdjacency(edges), nil
}

// recordActivity writes the event through the transaction store when it is
// also a sink, so the audit row commits or rolls back with the mutation it
// describes.
func (s *DependencyService) recordActivity(store storage.Store, event models.ActivityEvent) {
	sink := s.sink
	if txSink, ok := store.(storage.ActivitySink); ok {
		sink = txSink
	}
	if sink == nil {
		return
	}
	if err := sink.Record(event); err != nil {
		s.logger.Errorf("Failed to record %s activity: %v", event.Kind(), err)
	}
}

// taskLookupErr converts a store error on task lookup into the engine's
// error taxonomy.
func taskLookupErr(id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Resource: "task", ID: id}
	}
	return errors.Wrapf(err, "failed to load task %d", id)
}
