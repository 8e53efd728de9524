// Package tmdb implements the external-id crosswalk used as last resort
// when a library item's own metadata carries no usable cross-reference.
package tmdb

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/services/httpapi"
	"github.com/curatarr/curatarr/internal/utils"
)

// CacheName is the named response cache of this client.
const CacheName = "tmdb"

type findResult struct {
	MovieResults []struct {
		ID int `json:"id"`
	} `json:"movie_results"`
	TvResults []struct {
		ID int `json:"id"`
	} `json:"tv_results"`
}

type externalIDs struct {
	TvdbID int `json:"tvdb_id"`
}

// Client handles communication with TMDb
type Client struct {
	api    *httpapi.Client
	apiKey string
	logger *logrus.Logger
}

// NewClient creates a new TMDb API client
func NewClient(cfg *config.Config, caches *utils.CacheManager, logger *logrus.Logger) *Client {
	return &Client{
		api:    httpapi.NewClient("https://api.themoviedb.org/3", nil, caches.Get(CacheName), logger),
		apiKey: cfg.TmdbAPIKey,
		logger: logger,
	}
}

// Configured reports whether an API key is available
func (c *Client) Configured() bool { return c.apiKey != "" }

// FindByImdbID resolves an IMDb id to TMDb ids. Returns (movieID, tvID);
// zero values mean no result.
func (c *Client) FindByImdbID(ctx context.Context, imdbID string) (int, int, error) {
	var result findResult
	path := fmt.Sprintf("/find/%s?external_source=imdb_id&api_key=%s",
		url.PathEscape(imdbID), url.QueryEscape(c.apiKey))
	if err := c.api.GetJSONCached(ctx, path, utils.ReferenceCacheTTL, &result); err != nil {
		return 0, 0, fmt.Errorf("failed to find by imdb id %s: %w", imdbID, err)
	}

	var movieID, tvID int
	if len(result.MovieResults) > 0 {
		movieID = result.MovieResults[0].ID
	}
	if len(result.TvResults) > 0 {
		tvID = result.TvResults[0].ID
	}
	return movieID, tvID, nil
}

// GetTvdbID resolves a TMDb show id to its TVDB id, zero when unknown
func (c *Client) GetTvdbID(ctx context.Context, tmdbTvID int) (int, error) {
	var ids externalIDs
	path := fmt.Sprintf("/tv/%d/external_ids?api_key=%s", tmdbTvID, url.QueryEscape(c.apiKey))
	if err := c.api.GetJSONCached(ctx, path, utils.ReferenceCacheTTL, &ids); err != nil {
		return 0, fmt.Errorf("failed to get external ids for tv %d: %w", tmdbTvID, err)
	}
	return ids.TvdbID, nil
}
