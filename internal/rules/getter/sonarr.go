package getter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/servarr"
)

// SonarrGetter resolves show-automation properties. Seasons and episodes
// are resolved through their owning show's series record, then narrowed to
// the item's own season or episode where the property calls for it.
type SonarrGetter struct {
	arrs   *servarr.Manager
	db     *models.Database
	ids    *IDResolver
	logger *logrus.Logger
}

// NewSonarrGetter creates the show-automation resolver
func NewSonarrGetter(arrs *servarr.Manager, db *models.Database, ids *IDResolver, logger *logrus.Logger) *SonarrGetter {
	return &SonarrGetter{arrs: arrs, db: db, ids: ids, logger: logger}
}

// Get resolves one Sonarr property of an item
func (g *SonarrGetter) Get(ctx context.Context, propertyID int, item plex.LibraryItem, group *models.RuleGroup) (any, error) {
	client, err := g.clientFor(group)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}

	show, err := g.ids.ShowItem(ctx, item)
	if err != nil {
		return nil, err
	}
	tvdbID, err := g.ids.TvdbID(ctx, *show)
	if err != nil {
		return nil, err
	}
	if tvdbID == 0 {
		return nil, nil
	}

	series, err := client.GetSeriesByTvdbID(ctx, tvdbID)
	if err != nil {
		return nil, err
	}
	if series == nil {
		return nil, nil
	}

	switch propertyID {
	case rules.SonarrAddDate:
		return series.Added, nil

	case rules.SonarrDiskSize:
		return g.diskSize(ctx, client, series, item)

	case rules.SonarrFilePath:
		return series.Path, nil

	case rules.SonarrTags:
		return g.tagLabels(ctx, client, series.Tags)

	case rules.SonarrQualityProfileID:
		return float64(series.QualityProfileID), nil

	case rules.SonarrFirstAirDate:
		if series.FirstAired == nil {
			return nil, nil
		}
		return *series.FirstAired, nil

	case rules.SonarrSeasons:
		// show scope counts seasons, narrower scopes count episodes
		if item.Type == "show" {
			return float64(series.Statistics.SeasonCount), nil
		}
		if season := findSeason(series, seasonNumber(item)); season != nil && season.Statistics != nil {
			return float64(season.Statistics.TotalEpisodeCount), nil
		}
		return nil, nil

	case rules.SonarrStatus:
		return series.Status, nil

	case rules.SonarrEnded:
		return series.Ended, nil

	case rules.SonarrMonitored:
		return g.monitored(ctx, client, series, item)

	case rules.SonarrUnairedEpisodes:
		return g.hasUnairedEpisodes(series, item), nil

	case rules.SonarrSeasonsMonitored:
		return g.seasonsMonitored(ctx, client, series, item)

	case rules.SonarrPartOfLatestSeason:
		if item.Type != "season" && item.Type != "episode" {
			return nil, nil
		}
		return seasonNumber(item) == latestSeason(series), nil
	}
	return nil, fmt.Errorf("unknown Sonarr property %d", propertyID)
}

// clientFor picks the instance pinned on the group's collection
func (g *SonarrGetter) clientFor(group *models.RuleGroup) (*servarr.SonarrClient, error) {
	if group != nil && group.CollectionID != 0 {
		collection, err := g.db.GetCollectionByID(group.CollectionID)
		if err == nil && collection.SonarrInstance != "" {
			return g.arrs.Sonarr(collection.SonarrInstance)
		}
	}
	return g.arrs.DefaultSonarr(), nil
}

// diskSize narrows to the item's scope: show total, season total or single
// episode file, always in MiB.
func (g *SonarrGetter) diskSize(ctx context.Context, client *servarr.SonarrClient, series *servarr.Series, item plex.LibraryItem) (any, error) {
	switch item.Type {
	case "season":
		if season := findSeason(series, seasonNumber(item)); season != nil && season.Statistics != nil {
			return float64(season.Statistics.SizeOnDisk) / bytesPerMiB, nil
		}
		return nil, nil
	case "episode":
		episode, err := client.GetEpisode(ctx, series.ID, seasonNumber(item), item.Index)
		if err != nil || episode == nil {
			return nil, err
		}
		file, err := client.GetEpisodeFile(ctx, episode.EpisodeFileID)
		if err != nil || file == nil {
			return nil, err
		}
		return float64(file.Size) / bytesPerMiB, nil
	default:
		return float64(series.Statistics.SizeOnDisk) / bytesPerMiB, nil
	}
}

func (g *SonarrGetter) monitored(ctx context.Context, client *servarr.SonarrClient, series *servarr.Series, item plex.LibraryItem) (any, error) {
	switch item.Type {
	case "season":
		if season := findSeason(series, seasonNumber(item)); season != nil {
			return season.Monitored, nil
		}
		return nil, nil
	case "episode":
		episode, err := client.GetEpisode(ctx, series.ID, seasonNumber(item), item.Index)
		if err != nil || episode == nil {
			return nil, err
		}
		return episode.Monitored, nil
	default:
		return series.Monitored, nil
	}
}

// hasUnairedEpisodes reports pending airings within the item's scope
func (g *SonarrGetter) hasUnairedEpisodes(series *servarr.Series, item plex.LibraryItem) bool {
	if item.Type == "season" || item.Type == "episode" {
		season := findSeason(series, seasonNumber(item))
		return season != nil && season.Statistics != nil && season.Statistics.NextAiring != nil
	}
	for i := range series.Seasons {
		stats := series.Seasons[i].Statistics
		if stats != nil && stats.NextAiring != nil {
			return true
		}
	}
	return false
}

// seasonsMonitored counts monitored seasons of a show, or monitored
// episodes of a season.
func (g *SonarrGetter) seasonsMonitored(ctx context.Context, client *servarr.SonarrClient, series *servarr.Series, item plex.LibraryItem) (any, error) {
	if item.Type == "season" || item.Type == "episode" {
		episodes, err := client.GetEpisodes(ctx, series.ID, seasonNumber(item))
		if err != nil {
			return nil, err
		}
		count := 0
		for _, episode := range episodes {
			if episode.Monitored {
				count++
			}
		}
		return float64(count), nil
	}

	count := 0
	for i := range series.Seasons {
		if series.Seasons[i].Monitored {
			count++
		}
	}
	return float64(count), nil
}

// latestSeason finds the newest real season of a series: the highest
// non-special season that has aired or holds episodes. Falls back to the
// highest non-special season number when none qualifies.
func latestSeason(series *servarr.Series) int {
	best := 0
	fallback := 0
	for i := range series.Seasons {
		season := &series.Seasons[i]
		if season.SeasonNumber == 0 {
			continue
		}
		if season.SeasonNumber > fallback {
			fallback = season.SeasonNumber
		}
		stats := season.Statistics
		aired := stats != nil && (stats.EpisodeCount > 0 || stats.PreviousAiring != nil)
		if aired && season.SeasonNumber > best {
			best = season.SeasonNumber
		}
	}
	if best == 0 {
		return fallback
	}
	return best
}

func findSeason(series *servarr.Series, number int) *servarr.Season {
	for i := range series.Seasons {
		if series.Seasons[i].SeasonNumber == number {
			return &series.Seasons[i]
		}
	}
	return nil
}

func (g *SonarrGetter) tagLabels(ctx context.Context, client *servarr.SonarrClient, tagIDs []int) (any, error) {
	tags, err := client.GetTags(ctx)
	if err != nil {
		return nil, err
	}
	labels := make(map[int]string, len(tags))
	for _, tag := range tags {
		labels[tag.ID] = tag.Label
	}

	out := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		if label, ok := labels[id]; ok {
			out = append(out, label)
		}
	}
	return out, nil
}
