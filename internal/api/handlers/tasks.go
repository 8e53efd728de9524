package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/scheduler"
)

// TasksHandler triggers the scheduled passes outside their schedule
type TasksHandler struct {
	scheduler *scheduler.Scheduler
	logger    *logrus.Logger
}

// NewTasksHandler creates a new tasks handler
func NewTasksHandler(sched *scheduler.Scheduler, logger *logrus.Logger) *TasksHandler {
	return &TasksHandler{
		scheduler: sched,
		logger:    logger,
	}
}

// ServeHTTP handles POST /api/tasks/{name}/run
func (h *TasksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	name, action, _ := strings.Cut(rest, "/")
	if action != "run" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch name {
	case "rules":
		h.scheduler.TriggerRules()
	case "maintenance":
		h.scheduler.TriggerMaintenance()
	default:
		http.Error(w, "Unknown task", http.StatusNotFound)
		return
	}

	h.logger.WithField("task", name).Info("Task triggered via API")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}
