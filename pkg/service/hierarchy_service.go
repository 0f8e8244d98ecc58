package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ignatij/taskboard/pkg/models"
	"github.com/ignatij/taskboard/pkg/storage"
	"github.com/pkg/errors"
)

const (
	// DefaultTreeDepth bounds BuildTaskTree when the caller passes no limit.
	DefaultTreeDepth = 5
	// MaxHierarchyDepth is the hard limit on a task's depth from its root.
	MaxHierarchyDepth = 10
	// maxAncestorHops caps upward walks so corrupted parent pointers cannot
	// loop forever.
	maxAncestorHops = 20
)

// HierarchyService validates and performs parent/child operations on the
// task tree. The parent/child graph is separate from the dependency graph
// but must likewise stay acyclic.
type HierarchyService struct {
	store  storage.Store
	sink   storage.ActivitySink
	logger Logger
}

func NewHierarchyService(store storage.Store, sink storage.ActivitySink, logger Logger) *HierarchyService {
	return &HierarchyService{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

// BuildTaskTree returns the task and its recursively fetched children down
// to maxDepth levels (DefaultTreeDepth when maxDepth <= 0). Nodes at the
// bound report HasChildren with an empty child list rather than silently
// omitting the subtree.
func (s *HierarchyService) BuildTaskTree(rootID int64, maxDepth int) (*models.TaskTreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}
	root, err := s.store.GetTask(rootID)
	if err != nil {
		return nil, taskLookupErr(rootID, err)
	}
	children, err := s.loadChildMap(s.store, root)
	if err != nil {
		return nil, err
	}

	var build func(task models.Task, depth int) *models.TaskTreeNode
	build = func(task models.Task, depth int) *models.TaskTreeNode {
		node := &models.TaskTreeNode{Task: task}
		kids := children[task.ID]
		node.HasChildren = len(kids) > 0
		if !node.HasChildren {
			if task.Status.IsTerminal() {
				node.CompletionPercentage = 100
			}
			return node
		}
		node.CompletionPercentage = childCompletion(kids)
		if depth >= maxDepth {
			// Depth bound reached: report the cut, keep children empty
			return node
		}
		for _, kid := range kids {
			node.Children = append(node.Children, build(kid, depth+1))
		}
		return node
	}
	return build(root, 1), nil
}

// MoveTask re-parents a task after validating the move. A nil newParentID
// detaches the task to the top level. Validation and the parent update run
// in one transaction; the move is logged as an activity event afterwards.
func (s *HierarchyService) MoveTask(taskID int64, newParentID *int64) (err error) {
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

	task, err := txStore.GetTask(taskID)
	if err != nil {
		return taskLookupErr(taskID, err)
	}

	if newParentID != nil {
		if *newParentID == taskID {
			return &HierarchyValidationError{Rule: RuleSelfParent, Detail: "a task cannot be its own parent"}
		}
		parent, perr := txStore.GetTask(*newParentID)
		if perr != nil {
			return taskLookupErr(*newParentID, perr)
		}
		if !sameProject(task.ProjectID, parent.ProjectID) {
			return &HierarchyValidationError{
				Rule:   RuleSameProject,
				Detail: fmt.Sprintf("task %d and parent %d belong to different projects", taskID, *newParentID),
			}
		}

		descendants, height, derr := s.descendantsOf(txStore, taskID)
		if derr != nil {
			return derr
		}
		if descendants[*newParentID] {
			return &HierarchyValidationError{
				Rule:   RuleDescendantCycle,
				Detail: fmt.Sprintf("task %d is a descendant of task %d", *newParentID, taskID),
			}
		}

		parentDepth, derr := s.depthOf(txStore, parent)
		if derr != nil {
			return derr
		}
		if resulting := parentDepth + 1 + height; resulting > MaxHierarchyDepth {
			return &HierarchyValidationError{
				Rule:   RuleMaxDepth,
				Detail: fmt.Sprintf("move would nest task %d at depth %d", taskID, resulting),
				Limit:  MaxHierarchyDepth,
			}
		}
	}

	if err = txStore.UpdateTaskParent(taskID, newParentID); err != nil {
		return errors.Wrapf(err, "failed to update parent of task %d", taskID)
	}

	s.recordActivity(txStore, models.TaskMovedActivity{
		TaskID:      taskID,
		OldParentID: task.ParentID,
		NewParentID: newParentID,
		At:          time.Now(),
	})
	s.logger.Infof("Moved task %d under parent %v", taskID, formatParent(newParentID))
	return nil
}

// Depth returns the number of ancestors above a task. The walk is capped at
// maxAncestorHops; a corrupted parent chain yields the cap rather than an
// unbounded loop.
func (s *HierarchyService) Depth(taskID int64) (int, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return 0, taskLookupErr(taskID, err)
	}
	return s.depthOf(s.store, task)
}

func (s *HierarchyService) depthOf(store storage.Store, task models.Task) (int, error) {
	depth := 0
	current := task
	for current.ParentID != nil && depth < maxAncestorHops {
		parent, err := store.GetTask(*current.ParentID)
		if err != nil {
			return 0, taskLookupErr(*current.ParentID, err)
		}
		depth++
		current = parent
	}
	return depth, nil
}

// descendantsOf enumerates the full subtree under a task with an iterative
// queue and visited set, returning the descendant ID set and the subtree
// height (0 for a leaf).
func (s *HierarchyService) descendantsOf(store storage.Store, taskID int64) (map[int64]bool, int, error) {
	descendants := make(map[int64]bool)
	height := 0
	type entry struct {
		id    int64
		level int
	}
	queue := []entry{{id: taskID, level: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := store.GetChildren(cur.id)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to load children of task %d", cur.id)
		}
		for _, child := range children {
			if descendants[child.ID] {
				continue
			}
			descendants[child.ID] = true
			if cur.level+1 > height {
				height = cur.level + 1
			}
			queue = append(queue, entry{id: child.ID, level: cur.level + 1})
		}
	}
	return descendants, height, nil
}

// loadChildMap materializes parent -> children ordered by creation time.
// With a project at hand the project's tasks are fetched in one call;
// otherwise the subtree is crawled level by level.
func (s *HierarchyService) loadChildMap(store storage.Store, root models.Task) (map[int64][]models.Task, error) {
	children := make(map[int64][]models.Task)
	if root.ProjectID != nil {
		tasks, err := store.GetTasksByProject(*root.ProjectID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load tasks for project %d", *root.ProjectID)
		}
		for _, t := range tasks {
			if t.ParentID != nil {
				children[*t.ParentID] = append(children[*t.ParentID], t)
			}
		}
		for id := range children {
			kids := children[id]
			sort.Slice(kids, func(i, j int) bool { return kids[i].CreatedAt.Before(kids[j].CreatedAt) })
		}
		return children, nil
	}

	visited := map[int64]bool{root.ID: true}
	queue := []int64{root.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		kids, err := store.GetChildren(id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load children of task %d", id)
		}
		sort.Slice(kids, func(i, j int) bool { return kids[i].CreatedAt.Before(kids[j].CreatedAt) })
		children[id] = kids
		for _, kid := range kids {
			if !visited[kid.ID] {
				visited[kid.ID] = true
				queue = append(queue, kid.ID)
			}
		}
	}
	return children, nil
}

// childCompletion is the subtask-summary completion formula over direct
// children: round(done / total * 100).
func childCompletion(children []models.Task) int {
	if len(children) == 0 {
		return 0
	}
	done := 0
	for _, c := range children {
		if c.Status.Category() == models.DoneCategory {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(children)) * 100))
}

func sameProject(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatParent(id *int64) string {
	if id == nil {
		return "<root>"
	}
	return fmt.Sprintf("%d", *id)
}

// recordActivity writes the event through the transaction store when it is
// also a sink, so the audit row commits or rolls back with the mutation.
func (s *HierarchyService) recordActivity(store storage.Store, event models.ActivityEvent) {
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
