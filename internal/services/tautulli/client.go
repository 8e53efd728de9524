// Package tautulli implements the read-only usage-statistics client.
package tautulli

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
const CacheName = "tautulli"

// HistoryRecord is one watch record of an item.
type HistoryRecord struct {
	User          string  `json:"user"`
	WatchedStatus float64 `json:"watched_status"` // 1 = fully watched
	Date          int64   `json:"date"`           // unix
}

type historyResponse struct {
	Response struct {
		Data struct {
			Data []HistoryRecord `json:"data"`
		} `json:"data"`
	} `json:"response"`
}

// Client handles communication with a Tautulli server
type Client struct {
	api    *httpapi.Client
	apiKey string
	logger *logrus.Logger
}

// NewClient creates a new Tautulli API client
func NewClient(cfg *config.Config, caches *utils.CacheManager, logger *logrus.Logger) *Client {
	return &Client{
		api:    httpapi.NewClient(cfg.TautulliURL+"/api/v2", nil, caches.Get(CacheName), logger),
		apiKey: cfg.TautulliAPIKey,
		logger: logger,
	}
}

// GetHistory retrieves the watch history of one item. Tautulli keys history
// on the library server's rating key.
func (c *Client) GetHistory(ctx context.Context, ratingKey string) ([]HistoryRecord, error) {
	var response historyResponse
	path := fmt.Sprintf("?apikey=%s&cmd=get_history&rating_key=%s&length=500",
		url.QueryEscape(c.apiKey), url.QueryEscape(ratingKey))
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &response); err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", ratingKey, err)
	}
	return response.Response.Data.Data, nil
}

// GetHistoryForParent retrieves the watch history of all children of a
// composite item (the episodes of a show or season).
func (c *Client) GetHistoryForParent(ctx context.Context, ratingKey string) ([]HistoryRecord, error) {
	var response historyResponse
	path := fmt.Sprintf("?apikey=%s&cmd=get_history&grandparent_rating_key=%s&length=1000",
		url.QueryEscape(c.apiKey), url.QueryEscape(ratingKey))
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &response); err != nil {
		return nil, fmt.Errorf("failed to get history for parent %s: %w", ratingKey, err)
	}
	return response.Response.Data.Data, nil
}
