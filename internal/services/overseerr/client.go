// Package overseerr implements the read-only request-manager client.
package overseerr

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/services/httpapi"
	"github.com/curatarr/curatarr/internal/utils"
)

// CacheName is the named response cache of this client.
const CacheName = "overseerr"

// User is the requesting Overseerr account.
type User struct {
	ID          int    `json:"id"`
	DisplayName string `json:"displayName"`
}

// MediaRequest is one request made for an item.
type MediaRequest struct {
	ID          int        `json:"id"`
	Status      int        `json:"status"` // 1 pending, 2 approved, 3 declined
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	RequestedBy *User      `json:"requestedBy,omitempty"`
	ModifiedBy  *User      `json:"modifiedBy,omitempty"`
	Seasons     []struct { // show requests carry the requested seasons
		SeasonNumber int `json:"seasonNumber"`
	} `json:"seasons,omitempty"`
}

// MediaInfo is the Overseerr-side state of an item.
type MediaInfo struct {
	ID           int            `json:"id"`
	TmdbID       int            `json:"tmdbId"`
	MediaAddedAt *time.Time     `json:"mediaAddedAt,omitempty"`
	Requests     []MediaRequest `json:"requests"`
}

// MediaDetails is the per-title response carrying request state.
type MediaDetails struct {
	ID          int        `json:"id"`
	ReleaseDate string     `json:"releaseDate,omitempty"` // movies
	FirstAir    string     `json:"firstAirDate,omitempty"` // shows
	MediaInfo   *MediaInfo `json:"mediaInfo,omitempty"`
}

// ReleasedAt parses whichever release field the media kind carries
func (d *MediaDetails) ReleasedAt() time.Time {
	raw := d.ReleaseDate
	if raw == "" {
		raw = d.FirstAir
	}
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Client handles communication with an Overseerr server
type Client struct {
	api    *httpapi.Client
	logger *logrus.Logger
}

// NewClient creates a new Overseerr API client
func NewClient(cfg *config.Config, caches *utils.CacheManager, logger *logrus.Logger) *Client {
	headers := map[string]string{
		"X-Api-Key": cfg.OverseerrAPIKey,
	}
	return &Client{
		api:    httpapi.NewClient(cfg.OverseerrURL+"/api/v1", headers, caches.Get(CacheName), logger),
		logger: logger,
	}
}

// GetMovie retrieves request state for a movie by TMDb id
func (c *Client) GetMovie(ctx context.Context, tmdbID int) (*MediaDetails, error) {
	var details MediaDetails
	path := fmt.Sprintf("/movie/%d", tmdbID)
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &details); err != nil {
		return nil, fmt.Errorf("failed to get movie %d: %w", tmdbID, err)
	}
	return &details, nil
}

// GetTv retrieves request state for a show by TMDb id
func (c *Client) GetTv(ctx context.Context, tmdbID int) (*MediaDetails, error) {
	var details MediaDetails
	path := fmt.Sprintf("/tv/%d", tmdbID)
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &details); err != nil {
		return nil, fmt.Errorf("failed to get tv %d: %w", tmdbID, err)
	}
	return &details, nil
}
