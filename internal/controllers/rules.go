package controllers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/services/overseerr"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/utils"
)

// GroupInput carries a rule group definition as submitted by an admin.
type GroupInput struct {
	ID              uint64        `json:"id,omitempty"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	LibraryID       string        `json:"libraryId"`
	DataType        models.DataType `json:"dataType"`
	IsActive        bool          `json:"isActive"`
	UseRules        bool          `json:"useRules"`
	ArrAction       models.ArrAction `json:"arrAction"`
	DeleteAfterDays int           `json:"deleteAfterDays"`
	RadarrInstance  string        `json:"radarrInstance,omitempty"`
	SonarrInstance  string        `json:"sonarrInstance,omitempty"`
	Rules           []*rules.Rule `json:"rules"`
}

// RulesController manages rule group definitions and ad hoc test runs.
type RulesController struct {
	db         *models.Database
	plex       *plex.Client
	comparator *rules.Comparator
	caches     *utils.CacheManager
	logger     *logrus.Logger
}

// NewRulesController creates the rule group controller
func NewRulesController(db *models.Database, plexClient *plex.Client, comparator *rules.Comparator, caches *utils.CacheManager, logger *logrus.Logger) *RulesController {
	return &RulesController{
		db:         db,
		plex:       plexClient,
		comparator: comparator,
		caches:     caches,
		logger:     logger,
	}
}

// SaveGroup validates and persists a rule group together with its collection.
// A zero input ID creates; otherwise the existing group is updated and its
// rules replaced.
func (c *RulesController) SaveGroup(input *GroupInput) (*models.RuleGroup, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("rule group needs a name")
	}
	if input.UseRules {
		if len(input.Rules) == 0 {
			return nil, fmt.Errorf("rule group %q has no rules", input.Name)
		}
		if result := rules.ValidateAll(input.Rules); !result.OK {
			return nil, fmt.Errorf("rule validation failed: %s", result.Reason)
		}
	}

	group, err := c.upsertGroup(input)
	if err != nil {
		return nil, err
	}

	if err := c.db.DeleteRulesByGroupID(group.ID); err != nil {
		return nil, fmt.Errorf("failed to replace rules of group %d: %w", group.ID, err)
	}
	for _, rule := range input.Rules {
		encoded, err := rule.Encode()
		if err != nil {
			return nil, err
		}
		record := &models.RuleRecord{
			RuleGroupID: group.ID,
			Section:     rule.Section,
			RuleJSON:    encoded,
		}
		if err := c.db.CreateRule(record); err != nil {
			return nil, fmt.Errorf("failed to persist rule of group %d: %w", group.ID, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"group": group.Name,
		"rules": len(input.Rules),
	}).Info("Saved rule group")
	return group, nil
}

func (c *RulesController) upsertGroup(input *GroupInput) (*models.RuleGroup, error) {
	if input.ID != 0 {
		group, err := c.db.GetRuleGroupByID(input.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule group %d: %w", input.ID, err)
		}
		collection, err := c.db.GetCollectionByID(group.CollectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection of group %d: %w", input.ID, err)
		}

		group.Name = input.Name
		group.Description = input.Description
		group.LibraryID = input.LibraryID
		group.DataType = input.DataType
		group.IsActive = input.IsActive
		group.UseRules = input.UseRules
		if err := c.db.UpdateRuleGroup(group); err != nil {
			return nil, fmt.Errorf("failed to update rule group %d: %w", group.ID, err)
		}

		collection.Title = input.Name
		collection.LibraryID = input.LibraryID
		collection.DataType = input.DataType
		collection.ArrAction = input.ArrAction
		collection.DeleteAfterDays = input.DeleteAfterDays
		collection.RadarrInstance = input.RadarrInstance
		collection.SonarrInstance = input.SonarrInstance
		collection.IsActive = input.IsActive
		if err := c.db.UpdateCollection(collection); err != nil {
			return nil, fmt.Errorf("failed to update collection %d: %w", collection.ID, err)
		}
		return group, nil
	}

	collection := &models.Collection{
		Title:           input.Name,
		LibraryID:       input.LibraryID,
		DataType:        input.DataType,
		ArrAction:       input.ArrAction,
		DeleteAfterDays: input.DeleteAfterDays,
		RadarrInstance:  input.RadarrInstance,
		SonarrInstance:  input.SonarrInstance,
		IsActive:        input.IsActive,
	}
	if err := c.db.CreateCollection(collection); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	group := &models.RuleGroup{
		Name:         input.Name,
		Description:  input.Description,
		LibraryID:    input.LibraryID,
		DataType:     input.DataType,
		CollectionID: collection.ID,
		IsActive:     input.IsActive,
		UseRules:     input.UseRules,
	}
	if err := c.db.CreateRuleGroup(group); err != nil {
		return nil, fmt.Errorf("failed to create rule group: %w", err)
	}
	return group, nil
}

// DeleteGroup removes a rule group, its collection and the mirrored
// library-server collection.
func (c *RulesController) DeleteGroup(ctx context.Context, id uint64) error {
	group, err := c.db.GetRuleGroupByID(id)
	if err != nil {
		return fmt.Errorf("failed to load rule group %d: %w", id, err)
	}

	collection, err := c.db.GetCollectionByID(group.CollectionID)
	if err == nil && collection.PlexCollectionKey != "" {
		if err := c.plex.DeleteCollection(ctx, collection.PlexCollectionKey); err != nil {
			c.logger.WithError(err).WithField("collection", collection.Title).
				Warn("Failed to delete mirrored collection, removing local state anyway")
		}
	}
	if collection != nil {
		if err := c.db.DeleteCollection(collection.ID); err != nil {
			return fmt.Errorf("failed to delete collection %d: %w", collection.ID, err)
		}
	}
	if err := c.db.DeleteRuleGroup(id); err != nil {
		return fmt.Errorf("failed to delete rule group %d: %w", id, err)
	}

	c.logger.WithField("group", group.Name).Info("Deleted rule group")
	return nil
}

// LoadRules rehydrates the persisted rules of a group in insertion order
func (c *RulesController) LoadRules(groupID uint64) ([]*rules.Rule, error) {
	records, err := c.db.GetRulesByGroupID(groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules of group %d: %w", groupID, err)
	}

	ruleSet := make([]*rules.Rule, 0, len(records))
	for _, record := range records {
		rule, err := rules.ParseRule(record.RuleJSON)
		if err != nil {
			return nil, fmt.Errorf("rule %d of group %d is corrupt: %w", record.ID, groupID, err)
		}
		ruleSet = append(ruleSet, rule)
	}
	return ruleSet, nil
}

// FlushVolatileCaches drops the response caches feeding any cache-resetting
// property the rule set references, so evaluation sees fresh state.
func (c *RulesController) FlushVolatileCaches(ruleSet []*rules.Rule) {
	if !referencesVolatileProperty(ruleSet) {
		return
	}
	c.plex.ResetMetadataCache()
	c.caches.Flush(overseerr.CacheName)
	c.logger.Debug("Flushed volatile response caches before evaluation")
}

func referencesVolatileProperty(ruleSet []*rules.Rule) bool {
	for _, rule := range ruleSet {
		refs := []rules.ValueRef{rule.FirstVal}
		if rule.LastVal != nil {
			refs = append(refs, *rule.LastVal)
		}
		for _, ref := range refs {
			prop, err := rules.LookupProperty(ref)
			if err == nil && prop.CacheReset {
				return true
			}
		}
	}
	return false
}

// TestEvaluate runs a group's rules in diagnostic mode without touching any
// persisted state. ratingKey narrows the run to a single item when set.
func (c *RulesController) TestEvaluate(ctx context.Context, groupID uint64, ratingKey string) (*rules.Result, error) {
	group, err := c.db.GetRuleGroupByID(groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule group %d: %w", groupID, err)
	}
	ruleSet, err := c.LoadRules(groupID)
	if err != nil {
		return nil, err
	}

	c.FlushVolatileCaches(ruleSet)

	items, err := c.plex.GetLibraryContents(ctx, group.LibraryID, group.DataType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch library %s: %w", group.LibraryID, err)
	}
	if ratingKey != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.RatingKey == ratingKey {
				filtered = append(filtered, item)
				break
			}
		}
		items = filtered
	}

	return c.comparator.Evaluate(ctx, group, ruleSet, items, true)
}
