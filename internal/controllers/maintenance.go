package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/observability"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/rules/getter"
	"github.com/curatarr/curatarr/internal/services/httpapi"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/servarr"
	"github.com/curatarr/curatarr/internal/tasks"
)

// MaintenanceController runs the two scheduled passes: rule evaluation,
// which reconciles collection membership with rule outcomes, and
// maintenance, which applies the configured automation-server action to
// items whose dwell time has elapsed. The two never overlap: maintenance
// waits for a running evaluation, evaluation defers to a running
// maintenance pass. Only one side blocks, so the runs cannot wedge each
// other.
type MaintenanceController struct {
	db         *models.Database
	plex       *plex.Client
	arrs       *servarr.Manager
	ids        *getter.IDResolver
	rulesCtrl  *RulesController
	comparator *rules.Comparator
	runner     *tasks.Runner
	metrics    *observability.Metrics
	logger     *logrus.Logger
	now        func() time.Time
}

// NewMaintenanceController creates the scheduled-pass controller
func NewMaintenanceController(
	db *models.Database,
	plexClient *plex.Client,
	arrs *servarr.Manager,
	ids *getter.IDResolver,
	rulesCtrl *RulesController,
	comparator *rules.Comparator,
	runner *tasks.Runner,
	metrics *observability.Metrics,
	logger *logrus.Logger,
) *MaintenanceController {
	return &MaintenanceController{
		db:         db,
		plex:       plexClient,
		arrs:       arrs,
		ids:        ids,
		rulesCtrl:  rulesCtrl,
		comparator: comparator,
		runner:     runner,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// RunRules evaluates every active rule group and reconciles collection
// membership. A run already in progress makes this a no-op.
func (c *MaintenanceController) RunRules(ctx context.Context) error {
	if err := c.runner.TryStart(tasks.TaskRuleEvaluation); err != nil {
		if errors.Is(err, tasks.ErrAlreadyRunning) {
			c.logger.Info("Rule evaluation already running, skipping")
			return nil
		}
		return err
	}
	defer c.runner.Finish(tasks.TaskRuleEvaluation)

	running, err := c.runner.IsRunning(tasks.TaskMaintenance)
	if err != nil {
		return err
	}
	if running {
		c.logger.Info("Maintenance running, deferring rule evaluation to the next schedule")
		return nil
	}

	started := c.now()
	groups, err := c.db.GetActiveRuleGroups()
	if err != nil {
		c.metrics.RuleRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to list active rule groups: %w", err)
	}

	c.logger.WithField("groups", len(groups)).Info("Starting rule evaluation run")
	for _, group := range groups {
		if err := c.evaluateGroup(ctx, group); err != nil {
			c.logger.WithError(err).WithField("group", group.Name).
				Error("Rule group evaluation failed, continuing with next group")
			continue
		}
	}

	c.metrics.RuleRuns.WithLabelValues("success").Inc()
	c.metrics.RuleRunDuration.Observe(c.now().Sub(started).Seconds())
	c.logger.WithField("duration", c.now().Sub(started).Round(time.Second)).
		Info("Rule evaluation run finished")
	return nil
}

// evaluateGroup runs one group's rules and syncs its collection
func (c *MaintenanceController) evaluateGroup(ctx context.Context, group *models.RuleGroup) error {
	collection, err := c.db.GetCollectionByID(group.CollectionID)
	if err != nil {
		return fmt.Errorf("failed to load collection of group %d: %w", group.ID, err)
	}

	ruleSet, err := c.rulesCtrl.LoadRules(group.ID)
	if err != nil {
		return err
	}
	c.rulesCtrl.FlushVolatileCaches(ruleSet)

	items, err := c.plex.GetLibraryContents(ctx, group.LibraryID, group.DataType)
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues("plex").Inc()
		return fmt.Errorf("failed to fetch library %s: %w", group.LibraryID, err)
	}

	result, err := c.comparator.Evaluate(ctx, group, ruleSet, items, false)
	if err != nil {
		return err
	}

	c.metrics.ItemsMatched.WithLabelValues(group.Name).Add(float64(len(result.Matched)))
	c.metrics.ItemsExcluded.WithLabelValues(group.Name).Add(float64(result.Excluded))
	c.logger.WithFields(logrus.Fields{
		"group":    group.Name,
		"items":    len(items),
		"matched":  len(result.Matched),
		"excluded": result.Excluded,
	}).Info("Evaluated rule group")

	return c.syncCollection(ctx, group, collection, items, result.Matched)
}

// syncCollection reconciles the collection's membership with the matched
// set, mirroring the changes on the library server.
func (c *MaintenanceController) syncCollection(ctx context.Context, group *models.RuleGroup, collection *models.Collection, libraryItems, matched []plex.LibraryItem) error {
	members, err := c.db.GetCollectionMedia(collection.ID)
	if err != nil {
		return fmt.Errorf("failed to load members of collection %d: %w", collection.ID, err)
	}

	memberSet := make(map[string]struct{}, len(members))
	for _, member := range members {
		memberSet[member.PlexID] = struct{}{}
	}
	matchedSet := make(map[string]struct{}, len(matched))
	for _, item := range matched {
		matchedSet[item.RatingKey] = struct{}{}
	}
	presentSet := make(map[string]struct{}, len(libraryItems))
	for _, item := range libraryItems {
		presentSet[item.RatingKey] = struct{}{}
	}

	for _, item := range matched {
		if _, ok := memberSet[item.RatingKey]; ok {
			continue
		}
		if err := c.addMember(ctx, collection, item); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"collection": collection.Title,
				"item":       item.RatingKey,
			}).Error("Failed to add item to collection")
			continue
		}
	}

	for _, member := range members {
		if _, ok := matchedSet[member.PlexID]; ok {
			continue
		}
		departed := false
		if _, ok := presentSet[member.PlexID]; !ok {
			departed = true
		}
		if err := c.removeMember(ctx, collection, group.ID, member, departed); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"collection": collection.Title,
				"item":       member.PlexID,
			}).Error("Failed to remove item from collection")
			continue
		}
	}
	return nil
}

func (c *MaintenanceController) addMember(ctx context.Context, collection *models.Collection, item plex.LibraryItem) error {
	// the mirrored collection is created lazily with its first member
	if collection.PlexCollectionKey == "" {
		key, err := c.plex.CreateCollection(ctx, collection.LibraryID, collection.Title, collection.DataType, item.RatingKey)
		if err != nil {
			c.metrics.UpstreamErrors.WithLabelValues("plex").Inc()
			return err
		}
		collection.PlexCollectionKey = key
		if err := c.db.UpdateCollection(collection); err != nil {
			return err
		}
		if err := c.db.AddCollectionLog(collection.ID, models.LogTypeCollection,
			fmt.Sprintf("Created collection %q on the library server", collection.Title)); err != nil {
			return err
		}
	} else {
		if err := c.plex.AddToCollection(ctx, collection.PlexCollectionKey, item.RatingKey); err != nil {
			c.metrics.UpstreamErrors.WithLabelValues("plex").Inc()
			return err
		}
	}

	if err := c.db.AddCollectionMedia(&models.CollectionMedia{
		CollectionID: collection.ID,
		PlexID:       item.RatingKey,
		AddDate:      c.now(),
	}); err != nil {
		return err
	}

	c.metrics.CollectionAdds.Inc()
	return c.db.AddCollectionLog(collection.ID, models.LogTypeMedia,
		fmt.Sprintf("Added %q (%s)", item.Title, item.RatingKey))
}

func (c *MaintenanceController) removeMember(ctx context.Context, collection *models.Collection, ruleGroupID uint64, member *models.CollectionMedia, departed bool) error {
	if collection.PlexCollectionKey != "" && !departed {
		if err := c.plex.RemoveFromCollection(ctx, collection.PlexCollectionKey, member.PlexID); err != nil {
			c.metrics.UpstreamErrors.WithLabelValues("plex").Inc()
			return err
		}
	}
	if err := c.db.RemoveCollectionMedia(collection.ID, member.PlexID); err != nil {
		return err
	}

	// the group's exclusions go with the member so a returning item is
	// re-evaluated from scratch; an item gone from the library entirely has
	// no use for exclusions in any scope
	if departed {
		if err := c.db.DeleteAllExclusionsByItem(member.PlexID); err != nil {
			return err
		}
	} else if err := c.db.DeleteExclusionsByItem(member.PlexID, ruleGroupID); err != nil {
		return err
	}

	c.metrics.CollectionRemovals.Inc()
	message := fmt.Sprintf("Removed %s, no longer matching", member.PlexID)
	if departed {
		message = fmt.Sprintf("Removed %s, item left the library", member.PlexID)
	}
	return c.db.AddCollectionLog(collection.ID, models.LogTypeMedia, message)
}

// RunMaintenance applies the configured automation-server action to every
// collection member whose dwell time has elapsed. A run already in progress
// makes this a no-op.
func (c *MaintenanceController) RunMaintenance(ctx context.Context) error {
	if err := c.runner.TryStart(tasks.TaskMaintenance); err != nil {
		if errors.Is(err, tasks.ErrAlreadyRunning) {
			c.logger.Info("Maintenance already running, skipping")
			return nil
		}
		return err
	}
	defer c.runner.Finish(tasks.TaskMaintenance)

	if err := c.runner.WaitUntilFinished(ctx, tasks.TaskRuleEvaluation); err != nil {
		return err
	}

	collections, err := c.db.GetActiveCollections()
	if err != nil {
		return fmt.Errorf("failed to list active collections: %w", err)
	}

	c.logger.WithField("collections", len(collections)).Info("Starting maintenance run")
	for _, collection := range collections {
		if err := c.maintainCollection(ctx, collection); err != nil {
			c.logger.WithError(err).WithField("collection", collection.Title).
				Error("Collection maintenance failed, continuing with next collection")
			continue
		}
	}
	c.logger.Info("Maintenance run finished")
	return nil
}

func (c *MaintenanceController) maintainCollection(ctx context.Context, collection *models.Collection) error {
	members, err := c.db.GetCollectionMedia(collection.ID)
	if err != nil {
		return fmt.Errorf("failed to load members of collection %d: %w", collection.ID, err)
	}

	cutoff := c.now().AddDate(0, 0, -collection.DeleteAfterDays)
	for _, member := range members {
		if member.AddDate.After(cutoff) {
			continue
		}
		if err := c.handleElapsed(ctx, collection, member); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"collection": collection.Title,
				"item":       member.PlexID,
			}).Error("Failed to apply action, item stays in collection")
			continue
		}
	}
	return nil
}

// handleElapsed applies the collection's action to one member and retires
// its membership. The membership row is only removed once the action
// succeeded, so a failed action is retried on the next pass.
func (c *MaintenanceController) handleElapsed(ctx context.Context, collection *models.Collection, member *models.CollectionMedia) error {
	item, err := c.plex.GetMetadata(ctx, member.PlexID)
	if err != nil {
		if errors.Is(err, httpapi.ErrNotFound) {
			// item gone from the library, just drop the membership
			c.logger.WithField("item", member.PlexID).
				Info("Member no longer in the library, dropping membership")
			return c.retireMember(ctx, collection, member, "item no longer in library")
		}
		// transient failure; keep the row and its dwell timestamp so the
		// action is retried on the next pass
		c.metrics.UpstreamErrors.WithLabelValues("plex").Inc()
		return err
	}

	if err := c.applyAction(ctx, collection, *item); err != nil {
		return err
	}

	c.metrics.MaintenanceActions.WithLabelValues(actionLabel(collection.ArrAction)).Inc()
	return c.retireMember(ctx, collection, member,
		fmt.Sprintf("applied %s after %d days", actionLabel(collection.ArrAction), collection.DeleteAfterDays))
}

func (c *MaintenanceController) retireMember(ctx context.Context, collection *models.Collection, member *models.CollectionMedia, reason string) error {
	if collection.PlexCollectionKey != "" {
		if err := c.plex.RemoveFromCollection(ctx, collection.PlexCollectionKey, member.PlexID); err != nil {
			c.logger.WithError(err).WithField("item", member.PlexID).
				Debug("Failed to remove retired member from mirrored collection")
		}
	}
	if err := c.db.RemoveCollectionMedia(collection.ID, member.PlexID); err != nil {
		return err
	}
	return c.db.AddCollectionLog(collection.ID, models.LogTypeMedia,
		fmt.Sprintf("Retired %s: %s", member.PlexID, reason))
}

// applyAction dispatches the collection's action to the owning automation
// server based on the item's kind.
func (c *MaintenanceController) applyAction(ctx context.Context, collection *models.Collection, item plex.LibraryItem) error {
	switch models.DataTypeFromMediaKind(item.Type) {
	case models.DataTypeMovie:
		return c.applyMovieAction(ctx, collection, item)
	case models.DataTypeShow:
		return c.applyShowAction(ctx, collection, item)
	case models.DataTypeSeason:
		return c.applySeasonAction(ctx, collection, item)
	case models.DataTypeEpisode:
		return c.applyEpisodeAction(ctx, collection, item)
	}
	return fmt.Errorf("unknown media kind %q for item %s", item.Type, item.RatingKey)
}

func (c *MaintenanceController) applyMovieAction(ctx context.Context, collection *models.Collection, item plex.LibraryItem) error {
	client, err := c.radarrFor(collection)
	if err != nil {
		return err
	}
	if client == nil {
		c.logger.WithField("item", item.RatingKey).
			Warn("No Radarr instance for collection, skipping action")
		return nil
	}

	tmdbID, err := c.ids.TmdbID(ctx, item)
	if err != nil {
		return err
	}
	if tmdbID == 0 {
		return fmt.Errorf("no TMDb id resolvable for %s", item.RatingKey)
	}
	movie, err := client.GetMovieByTmdbID(ctx, tmdbID)
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues("radarr").Inc()
		return err
	}
	if movie == nil {
		c.logger.WithField("item", item.RatingKey).Info("Movie not managed by Radarr, nothing to do")
		return nil
	}

	switch collection.ArrAction {
	case models.ActionDelete:
		return client.DeleteMovie(ctx, movie.ID, true)
	case models.ActionUnmonitor:
		return client.UnmonitorMovie(ctx, movie, true)
	case models.ActionUnmonitorKeepFiles:
		return client.UnmonitorMovie(ctx, movie, false)
	}
	return fmt.Errorf("unknown action %d", collection.ArrAction)
}

func (c *MaintenanceController) applyShowAction(ctx context.Context, collection *models.Collection, item plex.LibraryItem) error {
	client, series, err := c.seriesFor(ctx, collection, item)
	if err != nil || series == nil {
		return err
	}

	switch collection.ArrAction {
	case models.ActionDelete:
		return client.DeleteSeries(ctx, series.ID, true)
	case models.ActionUnmonitor:
		if err := client.UnmonitorSeries(ctx, series); err != nil {
			return err
		}
		return c.deleteSeriesFiles(ctx, client, series)
	case models.ActionUnmonitorKeepFiles:
		return client.UnmonitorSeries(ctx, series)
	}
	return fmt.Errorf("unknown action %d", collection.ArrAction)
}

// deleteSeriesFiles removes every downloaded episode file of a series
func (c *MaintenanceController) deleteSeriesFiles(ctx context.Context, client *servarr.SonarrClient, series *servarr.Series) error {
	for _, season := range series.Seasons {
		episodes, err := client.GetEpisodes(ctx, series.ID, season.SeasonNumber)
		if err != nil {
			return err
		}
		for _, episode := range episodes {
			if episode.EpisodeFileID == 0 {
				continue
			}
			if err := client.DeleteEpisodeFile(ctx, episode.EpisodeFileID); err != nil {
				c.metrics.UpstreamErrors.WithLabelValues("sonarr").Inc()
				return err
			}
		}
	}
	return nil
}

func (c *MaintenanceController) applySeasonAction(ctx context.Context, collection *models.Collection, item plex.LibraryItem) error {
	client, series, err := c.seriesFor(ctx, collection, item)
	if err != nil || series == nil {
		return err
	}
	season := item.Index

	if err := client.UnmonitorSeason(ctx, series, season); err != nil {
		return err
	}
	if collection.ArrAction == models.ActionUnmonitorKeepFiles {
		return nil
	}

	episodes, err := client.GetEpisodes(ctx, series.ID, season)
	if err != nil {
		return err
	}
	for _, episode := range episodes {
		if episode.EpisodeFileID == 0 {
			continue
		}
		if err := client.DeleteEpisodeFile(ctx, episode.EpisodeFileID); err != nil {
			c.metrics.UpstreamErrors.WithLabelValues("sonarr").Inc()
			return err
		}
	}
	return nil
}

func (c *MaintenanceController) applyEpisodeAction(ctx context.Context, collection *models.Collection, item plex.LibraryItem) error {
	client, series, err := c.seriesFor(ctx, collection, item)
	if err != nil || series == nil {
		return err
	}

	episode, err := client.GetEpisode(ctx, series.ID, item.ParentIndex, item.Index)
	if err != nil {
		return err
	}
	if episode == nil {
		c.logger.WithField("item", item.RatingKey).Info("Episode not managed by Sonarr, nothing to do")
		return nil
	}

	if err := client.UnmonitorEpisodes(ctx, []int{episode.ID}); err != nil {
		return err
	}
	if collection.ArrAction == models.ActionUnmonitorKeepFiles || episode.EpisodeFileID == 0 {
		return nil
	}
	return client.DeleteEpisodeFile(ctx, episode.EpisodeFileID)
}

// seriesFor resolves the Sonarr client and series record owning an item
func (c *MaintenanceController) seriesFor(ctx context.Context, collection *models.Collection, item plex.LibraryItem) (*servarr.SonarrClient, *servarr.Series, error) {
	client, err := c.sonarrFor(collection)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		c.logger.WithField("item", item.RatingKey).
			Warn("No Sonarr instance for collection, skipping action")
		return nil, nil, nil
	}

	show, err := c.ids.ShowItem(ctx, item)
	if err != nil {
		return nil, nil, err
	}
	tvdbID, err := c.ids.TvdbID(ctx, *show)
	if err != nil {
		return nil, nil, err
	}
	if tvdbID == 0 {
		return nil, nil, fmt.Errorf("no TVDB id resolvable for %s", item.RatingKey)
	}

	series, err := client.GetSeriesByTvdbID(ctx, tvdbID)
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues("sonarr").Inc()
		return nil, nil, err
	}
	if series == nil {
		c.logger.WithField("item", item.RatingKey).Info("Show not managed by Sonarr, nothing to do")
		return client, nil, nil
	}
	return client, series, nil
}

func (c *MaintenanceController) radarrFor(collection *models.Collection) (*servarr.RadarrClient, error) {
	if collection.RadarrInstance != "" {
		return c.arrs.Radarr(collection.RadarrInstance)
	}
	return c.arrs.DefaultRadarr(), nil
}

func (c *MaintenanceController) sonarrFor(collection *models.Collection) (*servarr.SonarrClient, error) {
	if collection.SonarrInstance != "" {
		return c.arrs.Sonarr(collection.SonarrInstance)
	}
	return c.arrs.DefaultSonarr(), nil
}

func actionLabel(action models.ArrAction) string {
	switch action {
	case models.ActionDelete:
		return "delete"
	case models.ActionUnmonitor:
		return "unmonitor"
	case models.ActionUnmonitorKeepFiles:
		return "unmonitor-keep-files"
	}
	return "unknown"
}
