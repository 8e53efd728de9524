// Package controllers holds the engine's orchestration layer: rule group
// management, exclusion management and the two scheduled runs.
package controllers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/services/httpapi"
	"github.com/curatarr/curatarr/internal/services/plex"
)

// ExclusionController manages the standing skip instructions. Excluding a
// composite item fans out to every descendant so narrower rule groups honor
// it too.
type ExclusionController struct {
	db     *models.Database
	plex   *plex.Client
	logger *logrus.Logger
}

// NewExclusionController creates the exclusion controller
func NewExclusionController(db *models.Database, plexClient *plex.Client, logger *logrus.Logger) *ExclusionController {
	return &ExclusionController{db: db, plex: plexClient, logger: logger}
}

// Add excludes an item, globally when ruleGroupID is models.GlobalExclusion.
// The item and all of its descendants get a row each; descendant rows carry
// the item as parent so removal stays precise.
func (c *ExclusionController) Add(ctx context.Context, plexID string, ruleGroupID uint64) error {
	expanded, err := c.plex.GetAllIDsForContextAction(ctx, plexID)
	if err != nil {
		return fmt.Errorf("failed to expand %s for exclusion: %w", plexID, err)
	}

	existing, err := c.db.GetExclusionsByItem(plexID)
	if err != nil {
		return fmt.Errorf("failed to check existing exclusions of %s: %w", plexID, err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, exclusion := range existing {
		if exclusion.RuleGroupID == ruleGroupID {
			present[exclusion.PlexID] = struct{}{}
		}
	}

	for _, item := range expanded {
		if _, ok := present[item.RatingKey]; ok {
			continue
		}
		exclusion := &models.Exclusion{
			PlexID:      item.RatingKey,
			RuleGroupID: ruleGroupID,
			MediaKind:   models.DataTypeFromMediaKind(item.Kind),
		}
		if item.RatingKey != plexID {
			exclusion.Parent = plexID
		}
		if err := c.db.CreateExclusion(exclusion); err != nil {
			return fmt.Errorf("failed to create exclusion for %s: %w", item.RatingKey, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"item":      plexID,
		"ruleGroup": ruleGroupID,
		"rows":      len(expanded),
	}).Info("Excluded item")
	return nil
}

// Remove deletes one exclusion row by id, together with the fan-out rows it
// created.
func (c *ExclusionController) Remove(id uint64) error {
	exclusion, err := c.db.GetExclusionByID(id)
	if err != nil {
		return fmt.Errorf("failed to load exclusion %d: %w", id, err)
	}
	return c.db.DeleteExclusionsByItem(exclusion.PlexID, exclusion.RuleGroupID)
}

// RemoveByItem deletes the exclusions of one item within one scope
func (c *ExclusionController) RemoveByItem(plexID string, ruleGroupID uint64) error {
	return c.db.DeleteExclusionsByItem(plexID, ruleGroupID)
}

// RemoveAllForItem deletes every exclusion of an item across all scopes.
// Used when the item leaves the library entirely.
func (c *ExclusionController) RemoveAllForItem(plexID string) error {
	return c.db.DeleteAllExclusionsByItem(plexID)
}

// List returns the exclusions applying to a rule group, or all of them when
// ruleGroupID is models.GlobalExclusion.
func (c *ExclusionController) List(ruleGroupID uint64) ([]*models.Exclusion, error) {
	if ruleGroupID == models.GlobalExclusion {
		return c.db.GetAllExclusions()
	}
	return c.db.GetExclusionsForGroup(ruleGroupID)
}

// GetExclusionsForGroup satisfies the evaluation engine's lister interface
func (c *ExclusionController) GetExclusionsForGroup(ruleGroupID uint64) ([]*models.Exclusion, error) {
	return c.db.GetExclusionsForGroup(ruleGroupID)
}

// BackfillKinds fills in the media kind of rows written before the kind was
// recorded. Runs once at boot. Rows whose item no longer exists in the
// library are dropped; transient lookup failures leave the row for the next
// boot.
func (c *ExclusionController) BackfillKinds(ctx context.Context) error {
	exclusions, err := c.db.GetAllExclusions()
	if err != nil {
		return fmt.Errorf("failed to list exclusions: %w", err)
	}

	corrected, dropped := 0, 0
	for _, exclusion := range exclusions {
		if exclusion.MediaKind != 0 {
			continue
		}
		metadata, err := c.plex.GetMetadata(ctx, exclusion.PlexID)
		if err != nil {
			if errors.Is(err, httpapi.ErrNotFound) {
				if err := c.db.DeleteExclusion(exclusion.ID); err != nil {
					return fmt.Errorf("failed to drop stale exclusion %d: %w", exclusion.ID, err)
				}
				dropped++
				continue
			}
			c.logger.WithError(err).WithField("item", exclusion.PlexID).
				Debug("Skipping kind backfill, item not resolvable right now")
			continue
		}
		exclusion.MediaKind = models.DataTypeFromMediaKind(metadata.Type)
		if exclusion.MediaKind == 0 {
			continue
		}
		if err := c.db.UpdateExclusion(exclusion); err != nil {
			return fmt.Errorf("failed to backfill exclusion %d: %w", exclusion.ID, err)
		}
		corrected++
	}

	if corrected > 0 || dropped > 0 {
		c.logger.WithFields(logrus.Fields{
			"corrected": corrected,
			"dropped":   dropped,
		}).Info("Corrected exclusion rows")
	}
	return nil
}
