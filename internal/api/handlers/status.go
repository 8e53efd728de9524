package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	RuleGroups       int             `json:"rule_groups"`
	ActiveRuleGroups int             `json:"active_rule_groups"`
	Collections      int             `json:"collections"`
	Exclusions       int             `json:"exclusions"`
	GlobalExclusions int             `json:"global_exclusions"`
	Tasks            map[string]bool `json:"tasks"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	groups, err := h.db.GetAllRuleGroups()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get rule groups")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	collections, err := h.db.GetActiveCollections()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get collections")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	exclusions, err := h.db.GetAllExclusions()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get exclusions")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	taskMarkers, err := h.db.GetAllTaskRunning()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get task markers")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		RuleGroups:  len(groups),
		Collections: len(collections),
		Exclusions:  len(exclusions),
		Tasks:       make(map[string]bool),
	}
	for _, group := range groups {
		if group.IsActive {
			response.ActiveRuleGroups++
		}
	}
	for _, exclusion := range exclusions {
		if exclusion.IsGlobal() {
			response.GlobalExclusions++
		}
	}
	for _, task := range taskMarkers {
		response.Tasks[task.Name] = task.Running
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
