// Package getter implements the per-application property resolvers behind
// rule evaluation. Each resolver maps a property id to a value fetched from
// its external service, failing softly: unknown and unresolvable values
// come back as nil so a rule can never match on missing data.
package getter

import (
	"context"
	"fmt"
	"strconv"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/tmdb"
	"github.com/curatarr/curatarr/internal/utils"
)

// IDResolver maps library items to the TMDb and TVDB ids the automation
// servers key on. Resolution order: the item's own cross-references, the
// full metadata record, then the TMDb crosswalk. Results are cached since
// an id never changes for a given item.
type IDResolver struct {
	plex   *plex.Client
	tmdb   *tmdb.Client
	cache  *gocache.Cache
	logger *logrus.Logger
}

// NewIDResolver creates a resolver over the given clients. tmdbClient may be
// nil when no API key is configured; the crosswalk fallback is skipped then.
func NewIDResolver(plexClient *plex.Client, tmdbClient *tmdb.Client, caches *utils.CacheManager, logger *logrus.Logger) *IDResolver {
	return &IDResolver{
		plex:   plexClient,
		tmdb:   tmdbClient,
		cache:  caches.Get(plex.GUIDCache),
		logger: logger,
	}
}

// TmdbID resolves the TMDb id of a movie or show item, zero when unknown
func (r *IDResolver) TmdbID(ctx context.Context, item plex.LibraryItem) (int, error) {
	cacheKey := "tmdb:" + item.RatingKey
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.(int), nil
	}

	id, err := r.resolveTmdbID(ctx, item)
	if err != nil {
		return 0, err
	}
	r.cache.Set(cacheKey, id, gocache.NoExpiration)
	return id, nil
}

func (r *IDResolver) resolveTmdbID(ctx context.Context, item plex.LibraryItem) (int, error) {
	if id := parseID(item.ExternalID("tmdb")); id != 0 {
		return id, nil
	}

	// listing responses omit Guid entries, the full record carries them
	metadata, err := r.plex.GetMetadata(ctx, item.RatingKey)
	if err != nil {
		return 0, err
	}
	if id := parseID(metadata.ExternalID("tmdb")); id != 0 {
		return id, nil
	}

	if r.tmdb == nil || !r.tmdb.Configured() {
		return 0, nil
	}
	imdbID := metadata.ExternalID("imdb")
	if imdbID == "" {
		return 0, nil
	}
	movieID, tvID, err := r.tmdb.FindByImdbID(ctx, imdbID)
	if err != nil {
		return 0, err
	}
	if metadata.Type == "movie" {
		return movieID, nil
	}
	return tvID, nil
}

// TvdbID resolves the TVDB id of a show item, zero when unknown
func (r *IDResolver) TvdbID(ctx context.Context, item plex.LibraryItem) (int, error) {
	cacheKey := "tvdb:" + item.RatingKey
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.(int), nil
	}

	id, err := r.resolveTvdbID(ctx, item)
	if err != nil {
		return 0, err
	}
	r.cache.Set(cacheKey, id, gocache.NoExpiration)
	return id, nil
}

func (r *IDResolver) resolveTvdbID(ctx context.Context, item plex.LibraryItem) (int, error) {
	if id := parseID(item.ExternalID("tvdb")); id != 0 {
		return id, nil
	}

	metadata, err := r.plex.GetMetadata(ctx, item.RatingKey)
	if err != nil {
		return 0, err
	}
	if id := parseID(metadata.ExternalID("tvdb")); id != 0 {
		return id, nil
	}

	if r.tmdb == nil || !r.tmdb.Configured() {
		return 0, nil
	}
	tmdbID, err := r.TmdbID(ctx, *metadata)
	if err != nil || tmdbID == 0 {
		return 0, err
	}
	return r.tmdb.GetTvdbID(ctx, tmdbID)
}

// ShowItem walks a season or episode up to its owning show record. Movie
// and show items resolve to themselves.
func (r *IDResolver) ShowItem(ctx context.Context, item plex.LibraryItem) (*plex.LibraryItem, error) {
	showKey := showRatingKey(item)
	if showKey == item.RatingKey {
		return &item, nil
	}
	show, err := r.plex.GetMetadata(ctx, showKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve show of %s: %w", item.RatingKey, err)
	}
	return show, nil
}

// showRatingKey returns the rating key of the show an item belongs to
func showRatingKey(item plex.LibraryItem) string {
	switch item.Type {
	case "season":
		if item.ParentRatingKey != "" {
			return item.ParentRatingKey
		}
	case "episode":
		if item.GrandparentRatingKey != "" {
			return item.GrandparentRatingKey
		}
	}
	return item.RatingKey
}

// seasonNumber returns the season an item belongs to, zero for other kinds
func seasonNumber(item plex.LibraryItem) int {
	switch item.Type {
	case "season":
		return item.Index
	case "episode":
		return item.ParentIndex
	}
	return 0
}

func parseID(raw string) int {
	if raw == "" {
		return 0
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return id
}
