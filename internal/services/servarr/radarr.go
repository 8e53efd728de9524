package servarr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/utils"
)

// RadarrClient talks to one Radarr instance
type RadarrClient struct {
	baseClient
}

// NewRadarrClient creates a client for a configured Radarr instance
func NewRadarrClient(instance config.ArrInstance, caches *utils.CacheManager, logger *logrus.Logger) *RadarrClient {
	return &RadarrClient{
		baseClient: newBaseClient(instance, RadarrCachePrefix+instance.Name, caches, logger),
	}
}

// GetMovieByTmdbID looks up the movie record by its TMDb cross-reference,
// or nil when the movie is not in the library.
func (c *RadarrClient) GetMovieByTmdbID(ctx context.Context, tmdbID int) (*Movie, error) {
	var movies []Movie
	path := fmt.Sprintf("/movie?tmdbId=%d", tmdbID)
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &movies); err != nil {
		return nil, fmt.Errorf("failed to get movie by tmdb id %d: %w", tmdbID, err)
	}
	if len(movies) == 0 {
		return nil, nil
	}
	return &movies[0], nil
}

// DeleteMovie removes a movie, optionally including its files
func (c *RadarrClient) DeleteMovie(ctx context.Context, movieID int, deleteFiles bool) error {
	path := fmt.Sprintf("/movie/%d?deleteFiles=%t&addImportExclusion=false", movieID, deleteFiles)
	if err := c.api.DoJSON(ctx, "DELETE", path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete movie %d: %w", movieID, err)
	}
	return nil
}

// UnmonitorMovie stops monitoring a movie, optionally deleting its files
func (c *RadarrClient) UnmonitorMovie(ctx context.Context, movie *Movie, deleteFiles bool) error {
	movie.Monitored = false
	path := fmt.Sprintf("/movie/%d", movie.ID)
	if err := c.api.DoJSON(ctx, "PUT", path, movie, nil); err != nil {
		return fmt.Errorf("failed to unmonitor movie %d: %w", movie.ID, err)
	}

	if deleteFiles && movie.MovieFile != nil {
		if err := c.api.DoJSON(ctx, "DELETE", fmt.Sprintf("/moviefile/%d", movie.MovieFile.ID), nil, nil); err != nil {
			return fmt.Errorf("failed to delete file of movie %d: %w", movie.ID, err)
		}
	}
	return nil
}
