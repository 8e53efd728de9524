package plex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/services/httpapi"
	"github.com/curatarr/curatarr/internal/utils"
)

// Cache names used by this client. Metadata lives in MetadataCache and is
// flushed when cacheReset properties force re-evaluation.
const (
	MetadataCache = "plex"
	GUIDCache     = "plexguid"
)

// Client handles communication with the Plex media server
type Client struct {
	api       *httpapi.Client
	caches    *utils.CacheManager
	logger    *logrus.Logger
	machineID string
}

// NewClient creates a new Plex API client
func NewClient(cfg *config.Config, caches *utils.CacheManager, logger *logrus.Logger) *Client {
	headers := map[string]string{
		"X-Plex-Token": cfg.PlexToken,
	}
	return &Client{
		api:    httpapi.NewClient(cfg.PlexURL, headers, caches.Get(MetadataCache), logger),
		caches: caches,
		logger: logger,
	}
}

// GetLibraries retrieves all library sections
func (c *Client) GetLibraries(ctx context.Context) ([]Library, error) {
	var container libraryContainer
	if err := c.api.GetJSON(ctx, "/library/sections", &container); err != nil {
		return nil, fmt.Errorf("failed to get libraries: %w", err)
	}
	return container.MediaContainer.Directory, nil
}

// GetLibraryContents retrieves all items of one data type in a library
func (c *Client) GetLibraryContents(ctx context.Context, libraryKey string, dataType models.DataType) ([]LibraryItem, error) {
	var container metadataContainer
	path := fmt.Sprintf("/library/sections/%s/all?type=%d", libraryKey, int(dataType))
	if err := c.api.GetJSON(ctx, path, &container); err != nil {
		return nil, fmt.Errorf("failed to get library contents: %w", err)
	}
	return container.MediaContainer.Metadata, nil
}

// GetMetadata retrieves the full metadata record of one item. Responses are
// cached; use ResetMetadataCache to force a refetch.
func (c *Client) GetMetadata(ctx context.Context, ratingKey string) (*LibraryItem, error) {
	var container metadataContainer
	path := "/library/metadata/" + url.PathEscape(ratingKey)
	if err := c.api.GetJSONCached(ctx, path, utils.DefaultCacheTTL, &container); err != nil {
		return nil, fmt.Errorf("failed to get metadata for %s: %w", ratingKey, err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("no metadata found for %s: %w", ratingKey, httpapi.ErrNotFound)
	}
	return &container.MediaContainer.Metadata[0], nil
}

// ResetMetadataCache drops every cached metadata response
func (c *Client) ResetMetadataCache() {
	c.caches.Flush(MetadataCache)
}

// GetChildren retrieves the direct children of a composite item
// (seasons of a show, episodes of a season).
func (c *Client) GetChildren(ctx context.Context, ratingKey string) ([]LibraryItem, error) {
	var container metadataContainer
	path := "/library/metadata/" + url.PathEscape(ratingKey) + "/children"
	if err := c.api.GetJSON(ctx, path, &container); err != nil {
		return nil, fmt.Errorf("failed to get children of %s: %w", ratingKey, err)
	}
	return container.MediaContainer.Metadata, nil
}

// GetAllIDsForContextAction expands a target into every descendant id plus
// the target itself: a show fans out to its seasons and episodes, a season
// to its episodes, a leaf item only to itself.
func (c *Client) GetAllIDsForContextAction(ctx context.Context, ratingKey string) ([]ExpandedItem, error) {
	metadata, err := c.GetMetadata(ctx, ratingKey)
	if err != nil {
		return nil, err
	}

	out := []ExpandedItem{{RatingKey: metadata.RatingKey, Kind: metadata.Type}}
	if metadata.Type != "show" && metadata.Type != "season" {
		return out, nil
	}

	children, err := c.GetChildren(ctx, ratingKey)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		out = append(out, ExpandedItem{RatingKey: child.RatingKey, Kind: child.Type})

		if child.Type == "season" {
			episodes, err := c.GetChildren(ctx, child.RatingKey)
			if err != nil {
				return nil, err
			}
			for _, episode := range episodes {
				out = append(out, ExpandedItem{RatingKey: episode.RatingKey, Kind: episode.Type})
			}
		}
	}
	return out, nil
}

// GetAccounts retrieves the server's accounts (owner and managed users)
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	var container accountContainer
	if err := c.api.GetJSONCached(ctx, "/accounts", utils.ReferenceCacheTTL, &container); err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	return container.MediaContainer.Account, nil
}

// GetWatchHistory retrieves the watch history of one item
func (c *Client) GetWatchHistory(ctx context.Context, ratingKey string) ([]HistoryEntry, error) {
	var container historyContainer
	path := "/status/sessions/history/all?sort=viewedAt:desc&metadataItemID=" + url.QueryEscape(ratingKey)
	if err := c.api.GetJSON(ctx, path, &container); err != nil {
		return nil, fmt.Errorf("failed to get watch history for %s: %w", ratingKey, err)
	}
	return container.MediaContainer.Metadata, nil
}

// machineIdentifier returns the server's machine id, fetched once
func (c *Client) machineIdentifier(ctx context.Context) (string, error) {
	if c.machineID != "" {
		return c.machineID, nil
	}
	var container identityContainer
	if err := c.api.GetJSON(ctx, "/identity", &container); err != nil {
		return "", fmt.Errorf("failed to get server identity: %w", err)
	}
	c.machineID = container.MediaContainer.MachineIdentifier
	return c.machineID, nil
}

// CreateCollection creates a server-side collection seeded with one item
// and returns its rating key.
func (c *Client) CreateCollection(ctx context.Context, libraryKey, title string, dataType models.DataType, firstRatingKey string) (string, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return "", err
	}

	uri := fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machineID, firstRatingKey)
	path := fmt.Sprintf("/library/collections?type=%d&title=%s&smart=0&sectionId=%s&uri=%s",
		int(dataType), url.QueryEscape(title), url.QueryEscape(libraryKey), url.QueryEscape(uri))

	var container metadataContainer
	if err := c.api.DoJSON(ctx, "POST", path, nil, &container); err != nil {
		return "", fmt.Errorf("failed to create collection %q: %w", title, err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return "", fmt.Errorf("collection %q was not returned after creation", title)
	}
	return container.MediaContainer.Metadata[0].RatingKey, nil
}

// AddToCollection adds an item to a server-side collection
func (c *Client) AddToCollection(ctx context.Context, collectionKey, ratingKey string) error {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return err
	}

	uri := fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machineID, ratingKey)
	path := fmt.Sprintf("/library/collections/%s/items?uri=%s",
		url.PathEscape(collectionKey), url.QueryEscape(uri))
	if err := c.api.DoJSON(ctx, "PUT", path, nil, nil); err != nil {
		return fmt.Errorf("failed to add %s to collection %s: %w", ratingKey, collectionKey, err)
	}
	return nil
}

// RemoveFromCollection removes an item from a server-side collection
func (c *Client) RemoveFromCollection(ctx context.Context, collectionKey, ratingKey string) error {
	path := fmt.Sprintf("/library/collections/%s/children/%s",
		url.PathEscape(collectionKey), url.PathEscape(ratingKey))
	if err := c.api.DoJSON(ctx, "DELETE", path, nil, nil); err != nil {
		return fmt.Errorf("failed to remove %s from collection %s: %w", ratingKey, collectionKey, err)
	}
	return nil
}

// DeleteCollection deletes a server-side collection
func (c *Client) DeleteCollection(ctx context.Context, collectionKey string) error {
	path := "/library/collections/" + url.PathEscape(collectionKey)
	if err := c.api.DoJSON(ctx, "DELETE", path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collectionKey, err)
	}
	return nil
}
