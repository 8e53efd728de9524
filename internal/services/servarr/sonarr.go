package servarr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/utils"
)

// SonarrClient talks to one Sonarr instance
type SonarrClient struct {
	baseClient
}

// NewSonarrClient creates a client for a configured Sonarr instance
func NewSonarrClient(instance config.ArrInstance, caches *utils.CacheManager, logger *logrus.Logger) *SonarrClient {
	return &SonarrClient{
		baseClient: newBaseClient(instance, SonarrCachePrefix+instance.Name, caches, logger),
	}
}

// GetSeriesByTvdbID looks up the series record by its TVDB cross-reference,
// or nil when the show is not in the library.
func (c *SonarrClient) GetSeriesByTvdbID(ctx context.Context, tvdbID int) (*Series, error) {
	var series []Series
	path := fmt.Sprintf("/series?tvdbId=%d", tvdbID)
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &series); err != nil {
		return nil, fmt.Errorf("failed to get series by tvdb id %d: %w", tvdbID, err)
	}
	if len(series) == 0 {
		return nil, nil
	}
	return &series[0], nil
}

// GetEpisodes retrieves the episode records of one season
func (c *SonarrClient) GetEpisodes(ctx context.Context, seriesID, seasonNumber int) ([]Episode, error) {
	var episodes []Episode
	path := fmt.Sprintf("/episode?seriesId=%d&seasonNumber=%d", seriesID, seasonNumber)
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &episodes); err != nil {
		return nil, fmt.Errorf("failed to get episodes of series %d season %d: %w", seriesID, seasonNumber, err)
	}
	return episodes, nil
}

// GetEpisode retrieves one episode of a season, or nil when absent
func (c *SonarrClient) GetEpisode(ctx context.Context, seriesID, seasonNumber, episodeNumber int) (*Episode, error) {
	episodes, err := c.GetEpisodes(ctx, seriesID, seasonNumber)
	if err != nil {
		return nil, err
	}
	for i := range episodes {
		if episodes[i].EpisodeNumber == episodeNumber {
			return &episodes[i], nil
		}
	}
	return nil, nil
}

// GetEpisodeFile retrieves the file record of a downloaded episode
func (c *SonarrClient) GetEpisodeFile(ctx context.Context, episodeFileID int) (*EpisodeFile, error) {
	if episodeFileID == 0 {
		return nil, nil
	}
	var file EpisodeFile
	path := fmt.Sprintf("/episodefile/%d", episodeFileID)
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &file); err != nil {
		return nil, fmt.Errorf("failed to get episode file %d: %w", episodeFileID, err)
	}
	return &file, nil
}

// DeleteSeries removes a series, optionally including its files
func (c *SonarrClient) DeleteSeries(ctx context.Context, seriesID int, deleteFiles bool) error {
	path := fmt.Sprintf("/series/%d?deleteFiles=%t", seriesID, deleteFiles)
	if err := c.api.DoJSON(ctx, "DELETE", path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete series %d: %w", seriesID, err)
	}
	return nil
}

// UnmonitorSeries stops monitoring a whole series
func (c *SonarrClient) UnmonitorSeries(ctx context.Context, series *Series) error {
	series.Monitored = false
	path := fmt.Sprintf("/series/%d", series.ID)
	if err := c.api.DoJSON(ctx, "PUT", path, series, nil); err != nil {
		return fmt.Errorf("failed to unmonitor series %d: %w", series.ID, err)
	}
	return nil
}

// UnmonitorSeason stops monitoring one season of a series
func (c *SonarrClient) UnmonitorSeason(ctx context.Context, series *Series, seasonNumber int) error {
	for i := range series.Seasons {
		if series.Seasons[i].SeasonNumber == seasonNumber {
			series.Seasons[i].Monitored = false
		}
	}
	path := fmt.Sprintf("/series/%d", series.ID)
	if err := c.api.DoJSON(ctx, "PUT", path, series, nil); err != nil {
		return fmt.Errorf("failed to unmonitor season %d of series %d: %w", seasonNumber, series.ID, err)
	}
	return nil
}

// UnmonitorEpisodes stops monitoring the given episode records
func (c *SonarrClient) UnmonitorEpisodes(ctx context.Context, episodeIDs []int) error {
	body := map[string]any{
		"episodeIds": episodeIDs,
		"monitored":  false,
	}
	if err := c.api.DoJSON(ctx, "PUT", "/episode/monitor", body, nil); err != nil {
		return fmt.Errorf("failed to unmonitor episodes: %w", err)
	}
	return nil
}

// DeleteEpisodeFile deletes one downloaded episode file
func (c *SonarrClient) DeleteEpisodeFile(ctx context.Context, episodeFileID int) error {
	path := fmt.Sprintf("/episodefile/%d", episodeFileID)
	if err := c.api.DoJSON(ctx, "DELETE", path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete episode file %d: %w", episodeFileID, err)
	}
	return nil
}
