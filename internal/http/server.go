package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ignatij/taskboard/internal/log"
	"github.com/ignatij/taskboard/internal/service"
	"github.com/ignatij/taskboard/pkg/models"
	engine "github.com/ignatij/taskboard/pkg/service"
	"github.com/ignatij/taskboard/pkg/storage"
)

func StartServer(port string, store storage.Store) error {
	eng := service.NewEngine(store)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/dependencies", DependenciesHandler(eng))
	mux.HandleFunc("/tasks/dependencies", TaskDependenciesHandler(eng))
	mux.HandleFunc("/tasks/blocking", BlockingHandler(eng))
	mux.HandleFunc("/tasks/subtasks", SubtasksHandler(eng))
	mux.HandleFunc("/tasks/tree", TreeHandler(eng))
	mux.HandleFunc("/tasks/move", MoveHandler(eng))
	mux.HandleFunc("/tasks/transition", TransitionHandler(eng))
	mux.HandleFunc("/workflows/transitions", WorkflowTransitionsHandler(eng))
	mux.HandleFunc("/projects/graph", GraphHandler(eng))

	log.GetLogger().Infof("Starting taskboard server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "taskboard server is running")
}

func DependenciesHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				DependentTaskID int64  `json:"dependent_task_id"`
				BlockingTaskID  int64  `json:"blocking_task_id"`
				Type            string `json:"type"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}
			dep, err := eng.Dependencies.CreateDependency(req.DependentTaskID, req.BlockingTaskID, models.DependencyType(req.Type))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, dep)
		case http.MethodDelete:
			id, err := queryInt64(r, "id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := eng.Dependencies.DeleteDependency(id); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func TaskDependenciesHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		taskID, err := queryInt64(r, "task_id")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		relations, err := eng.Dependencies.GetTaskDependencies(taskID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, relations)
	}
}

func BlockingHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		taskID, err := queryInt64(r, "task_id")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		info, err := eng.Dependencies.GetBlockingInfo(taskID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func SubtasksHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		parentID, err := queryInt64(r, "parent_id")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		summary, err := eng.Dependencies.GetSubtaskSummary(parentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func TreeHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rootID, err := queryInt64(r, "root_id")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		depth := 0
		if raw := r.URL.Query().Get("depth"); raw != "" {
			depth, err = strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "Invalid 'depth' parameter", http.StatusBadRequest)
				return
			}
		}
		tree, err := eng.Hierarchy.BuildTaskTree(rootID, depth)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tree)
	}
}

func MoveHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			TaskID      int64  `json:"task_id"`
			NewParentID *int64 `json:"new_parent_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := eng.Hierarchy.MoveTask(req.TaskID, req.NewParentID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func TransitionHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			TaskID       int64  `json:"task_id"`
			ToStatus     string `json:"to_status"`
			WorkflowType string `json:"workflow_type"`
			Role         string `json:"role"`
			UserID       *int64 `json:"user_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		role := models.ProjectRole(req.Role)
		if req.Role == "" && req.UserID != nil {
			resolved, err := eng.RoleForTask(req.TaskID, *req.UserID)
			if err != nil {
				writeError(w, err)
				return
			}
			role = resolved
		}
		err := eng.Tasks.TransitionStatus(req.TaskID,
			models.TaskStatus(req.ToStatus),
			models.WorkflowType(req.WorkflowType),
			role)
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func WorkflowTransitionsHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		rules := eng.Workflows.GetAvailableTransitions(
			models.WorkflowType(q.Get("type")),
			models.TaskStatus(q.Get("status")),
			models.ProjectRole(q.Get("role")))
		writeJSON(w, http.StatusOK, rules)
	}
}

func GraphHandler(eng *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		projectID, err := queryInt64(r, "project_id")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		graph, err := eng.Dependencies.GenerateDependencyGraph(projectID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, graph)
	}
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing '%s' parameter", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' parameter", name)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps the engine's error taxonomy onto HTTP status codes. Every
// rejection carries its structured detail in the JSON body.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *engine.NotFoundError
		validation *engine.ValidationError
		circular   *engine.CircularDependencyError
		hierarchy  *engine.HierarchyValidationError
		transition *engine.InvalidTransitionError
	)
	status := http.StatusInternalServerError
	body := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &circular):
		status = http.StatusConflict
		body["path"] = circular.Path
	case errors.As(err, &hierarchy):
		status = http.StatusBadRequest
		body["rule"] = hierarchy.Rule
		if hierarchy.Limit > 0 {
			body["limit"] = hierarchy.Limit
		}
	case errors.As(err, &transition):
		status = http.StatusUnprocessableEntity
	default:
		log.GetLogger().Errorf("Internal error: %v", err)
	}
	writeJSON(w, status, body)
}
