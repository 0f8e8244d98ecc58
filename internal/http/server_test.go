package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	internal_http "github.com/ignatij/taskboard/internal/http"
	"github.com/ignatij/taskboard/internal/service"
	"github.com/ignatij/taskboard/pkg/models"
	"github.com/ignatij/taskboard/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestServer(t *testing.T) {
	newServer := func(store storage.Store) *httptest.Server {
		eng := service.NewEngine(store)
		mux := http.NewServeMux()
		mux.HandleFunc("/health", internal_http.HealthHandler)
		mux.HandleFunc("/dependencies", internal_http.DependenciesHandler(eng))
		mux.HandleFunc("/tasks/dependencies", internal_http.TaskDependenciesHandler(eng))
		mux.HandleFunc("/tasks/blocking", internal_http.BlockingHandler(eng))
		mux.HandleFunc("/tasks/subtasks", internal_http.SubtasksHandler(eng))
		mux.HandleFunc("/tasks/tree", internal_http.TreeHandler(eng))
		mux.HandleFunc("/tasks/move", internal_http.MoveHandler(eng))
		mux.HandleFunc("/tasks/transition", internal_http.TransitionHandler(eng))
		mux.HandleFunc("/workflows/transitions", internal_http.WorkflowTransitionsHandler(eng))
		mux.HandleFunc("/projects/graph", internal_http.GraphHandler(eng))
		return httptest.NewServer(mux)
	}

	projectID := int64(1)
	seedTask := func(store *storage.MockStore, id int64, key string, status models.TaskStatus) models.Task {
		return store.AddTask(models.Task{ID: id, Key: key, Title: key, Status: status, ProjectID: &projectID})
	}

	postJSON := func(t *testing.T, srv *httptest.Server, path string, body interface{}) *http.Response {
		payload, err := json.Marshal(body)
		assert.NoError(t, err)
		resp, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(payload))
		assert.NoError(t, err)
		return resp
	}

	t.Run("HealthCheck", func(t *testing.T) {
		srv := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/health")
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "taskboard server is running", string(body))
	})

	t.Run("CreateDependency", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		seedTask(store, 2, "PROJ-2", models.InProgressTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		resp := postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 1,
			"blocking_task_id":  2,
			"type":              "BLOCKS",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var dep models.DependencyInfo
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&dep))
		assert.NotZero(t, dep.ID)
		assert.Equal(t, "PROJ-1", dep.DependentTask.Key)
		assert.Equal(t, "PROJ-2", dep.BlockingTask.Key)
	})

	t.Run("CreateDependencyValidation", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		// Self-dependency
		resp := postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 1,
			"blocking_task_id":  1,
			"type":              "BLOCKS",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		// Unknown task
		resp = postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 1,
			"blocking_task_id":  99,
			"type":              "BLOCKS",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("CircularDependencyConflict", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		seedTask(store, 2, "PROJ-2", models.DraftTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		resp := postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 1, "blocking_task_id": 2, "type": "BLOCKS",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 2, "blocking_task_id": 1, "type": "BLOCKS",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var body struct {
			Error string  `json:"error"`
			Path  []int64 `json:"path"`
		}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body.Path, int64(1))
		assert.Contains(t, body.Path, int64(2))
	})

	t.Run("DeleteDependency", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		seedTask(store, 2, "PROJ-2", models.DraftTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		resp := postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 1, "blocking_task_id": 2, "type": "RELATES_TO",
		})
		var dep models.DependencyInfo
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&dep))
		resp.Body.Close()

		req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/dependencies?id=%d", srv.URL, dep.ID), nil)
		assert.NoError(t, err)
		resp, err = srv.Client().Do(req)
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		// Deleting again is 404
		resp, err = srv.Client().Do(req)
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("BlockingInfo", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		seedTask(store, 2, "PROJ-2", models.InProgressTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		resp := postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 1, "blocking_task_id": 2, "type": "IS_BLOCKED_BY",
		})
		resp.Body.Close()

		resp, err := srv.Client().Get(srv.URL + "/tasks/blocking?task_id=1")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var info models.BlockingInfo
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		assert.True(t, info.IsBlocked)
		assert.False(t, info.CanStart)
	})

	t.Run("TaskTree", func(t *testing.T) {
		store := storage.NewMockStore()
		root := seedTask(store, 1, "PROJ-1", models.InProgressTaskStatus)
		store.AddTask(models.Task{ID: 2, Key: "PROJ-2", Status: models.CompletedTaskStatus, ProjectID: &projectID, ParentID: &root.ID})
		srv := newServer(store)
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/tasks/tree?root_id=1&depth=3")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var tree models.TaskTreeNode
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&tree))
		assert.True(t, tree.HasChildren)
		assert.Len(t, tree.Children, 1)
		assert.Equal(t, 100, tree.CompletionPercentage)

		// Missing root_id
		resp, err = srv.Client().Get(srv.URL + "/tasks/tree")
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MoveTask", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		seedTask(store, 2, "PROJ-2", models.DraftTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		resp := postJSON(t, srv, "/tasks/move", map[string]interface{}{
			"task_id": 2, "new_parent_id": 1,
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		moved, err := store.GetTask(2)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), *moved.ParentID)

		// Self-parent rejections surface the violated rule
		resp = postJSON(t, srv, "/tasks/move", map[string]interface{}{
			"task_id": 1, "new_parent_id": 1,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body struct {
			Rule string `json:"rule"`
		}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "SELF_PARENT", body.Rule)
	})

	t.Run("TransitionStatus", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		resp := postJSON(t, srv, "/tasks/transition", map[string]interface{}{
			"task_id": 1, "to_status": "IN_PROGRESS", "workflow_type": "BASIC", "role": "DEVELOPER",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		task, err := store.GetTask(1)
		assert.NoError(t, err)
		assert.Equal(t, models.InProgressTaskStatus, task.Status)

		// Now IN_PROGRESS -> COMPLETED skips REVIEW
		resp = postJSON(t, srv, "/tasks/transition", map[string]interface{}{
			"task_id": 1, "to_status": "COMPLETED", "workflow_type": "BASIC", "role": "MANAGER",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("TransitionStatusResolvesRoleFromUser", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.ReviewTaskStatus)
		store.AddProjectRole(projectID, 7, models.ManagerRole)
		srv := newServer(store)
		defer srv.Close()

		// User 7 is a manager, so the approval goes through
		resp := postJSON(t, srv, "/tasks/transition", map[string]interface{}{
			"task_id": 1, "to_status": "COMPLETED", "workflow_type": "BASIC", "user_id": 7,
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		// An unknown member cannot act at all
		resp = postJSON(t, srv, "/tasks/transition", map[string]interface{}{
			"task_id": 1, "to_status": "CLOSED", "workflow_type": "BASIC", "user_id": 8,
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("WorkflowTransitions", func(t *testing.T) {
		srv := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/workflows/transitions?type=BASIC&status=REVIEW&role=MANAGER")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var rules []models.TransitionRule
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&rules))
		assert.Len(t, rules, 3)
	})

	t.Run("ProjectGraph", func(t *testing.T) {
		store := storage.NewMockStore()
		seedTask(store, 1, "PROJ-1", models.DraftTaskStatus)
		seedTask(store, 2, "PROJ-2", models.DraftTaskStatus)
		srv := newServer(store)
		defer srv.Close()

		resp := postJSON(t, srv, "/dependencies", map[string]interface{}{
			"dependent_task_id": 1, "blocking_task_id": 2, "type": "BLOCKS",
		})
		resp.Body.Close()

		resp, err := srv.Client().Get(srv.URL + fmt.Sprintf("/projects/graph?project_id=%d", projectID))
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var graph models.DependencyGraph
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&graph))
		assert.Len(t, graph.Nodes, 2)
		assert.Len(t, graph.Edges, 1)
		assert.Empty(t, graph.Cycles)

		resp, err = srv.Client().Get(srv.URL + "/projects/graph?project_id=999")
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		srv := newServer(storage.NewMockStore())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/tasks/move")
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

		resp, err = srv.Client().Post(srv.URL+"/tasks/blocking", "application/json", nil)
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
