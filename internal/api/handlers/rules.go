package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/controllers"
	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
)

// RulesHandler handles rule group management requests
type RulesHandler struct {
	db        *models.Database
	rulesCtrl *controllers.RulesController
	cfg       *config.Config
	logger    *logrus.Logger
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(db *models.Database, rulesCtrl *controllers.RulesController, cfg *config.Config, logger *logrus.Logger) *RulesHandler {
	return &RulesHandler{
		db:        db,
		rulesCtrl: rulesCtrl,
		cfg:       cfg,
		logger:    logger,
	}
}

// ServeApplications handles GET /api/rules/applications: the property
// schema available to rule authors.
func (h *RulesHandler) ServeApplications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules.ListApplications(h.cfg))
}

// ServeGroups handles /api/rules/groups: list and create/update
func (h *RulesHandler) ServeGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		groups, err := h.db.GetAllRuleGroups()
		if err != nil {
			h.logger.WithError(err).Error("Failed to get rule groups")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(groups)

	case http.MethodPost:
		var input controllers.GroupInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		group, err := h.rulesCtrl.SaveGroup(&input)
		if err != nil {
			h.logger.WithError(err).Warn("Rule group rejected")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(group)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServeGroup handles /api/rules/groups/{id}: fetch, delete and test runs
func (h *RulesHandler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rules/groups/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		http.Error(w, "Invalid rule group id", http.StatusBadRequest)
		return
	}

	switch {
	case action == "test" && r.Method == http.MethodPost:
		result, err := h.rulesCtrl.TestEvaluate(r.Context(), id, r.URL.Query().Get("ratingKey"))
		if err != nil {
			h.logger.WithError(err).Error("Test evaluation failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result.Stats)

	case action == "" && r.Method == http.MethodGet:
		group, err := h.db.GetRuleGroupByID(id)
		if err != nil {
			http.Error(w, "Rule group not found", http.StatusNotFound)
			return
		}
		ruleSet, err := h.rulesCtrl.LoadRules(id)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load rules")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"group": group,
			"rules": ruleSet,
		})

	case action == "" && r.Method == http.MethodDelete:
		if err := h.rulesCtrl.DeleteGroup(r.Context(), id); err != nil {
			h.logger.WithError(err).Error("Failed to delete rule group")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
