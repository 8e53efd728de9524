package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/controllers"
	"github.com/curatarr/curatarr/internal/models"
)

// ExclusionsHandler handles exclusion management requests
type ExclusionsHandler struct {
	exclusionCtrl *controllers.ExclusionController
	logger        *logrus.Logger
}

// NewExclusionsHandler creates a new exclusions handler
func NewExclusionsHandler(exclusionCtrl *controllers.ExclusionController, logger *logrus.Logger) *ExclusionsHandler {
	return &ExclusionsHandler{
		exclusionCtrl: exclusionCtrl,
		logger:        logger,
	}
}

type exclusionRequest struct {
	PlexID string `json:"plexId"`
	// RuleGroupID 0 creates a global exclusion
	RuleGroupID uint64 `json:"ruleGroupId"`
}

// ServeExclusions handles /api/exclusions: list and create
func (h *ExclusionsHandler) ServeExclusions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ruleGroupID := models.GlobalExclusion
		if raw := r.URL.Query().Get("ruleGroupId"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				http.Error(w, "Invalid rule group id", http.StatusBadRequest)
				return
			}
			ruleGroupID = id
		}
		exclusions, err := h.exclusionCtrl.List(ruleGroupID)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list exclusions")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(exclusions)

	case http.MethodPost:
		var request exclusionRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.PlexID == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.exclusionCtrl.Add(r.Context(), request.PlexID, request.RuleGroupID); err != nil {
			h.logger.WithError(err).Error("Failed to add exclusion")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServeExclusion handles DELETE /api/exclusions/{id}
func (h *ExclusionsHandler) ServeExclusion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idPart := strings.TrimPrefix(r.URL.Path, "/api/exclusions/")
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		http.Error(w, "Invalid exclusion id", http.StatusBadRequest)
		return
	}

	if err := h.exclusionCtrl.Remove(id); err != nil {
		h.logger.WithError(err).Error("Failed to remove exclusion")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
