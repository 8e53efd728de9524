package getter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/services/plex"
)

// PlexGetter resolves library-server properties. Values present on the
// listing record are read directly; tag lists and file details need the
// full metadata record.
type PlexGetter struct {
	plex   *plex.Client
	logger *logrus.Logger
}

// NewPlexGetter creates the library-server resolver
func NewPlexGetter(plexClient *plex.Client, logger *logrus.Logger) *PlexGetter {
	return &PlexGetter{plex: plexClient, logger: logger}
}

// Get resolves one library-server property of an item
func (g *PlexGetter) Get(ctx context.Context, propertyID int, item plex.LibraryItem, group *models.RuleGroup) (any, error) {
	switch propertyID {
	case rules.PlexAddDate:
		return item.AddedDate(), nil

	case rules.PlexSeenBy:
		return g.seenBy(ctx, item)

	case rules.PlexReleaseDate:
		return item.ReleaseDate(), nil

	case rules.PlexRatingCritics:
		return item.Rating, nil

	case rules.PlexRatingAudience:
		return item.AudienceRating, nil

	case rules.PlexViewCount:
		return float64(item.ViewCount), nil

	case rules.PlexLastViewedAt:
		return item.LastViewedDate(), nil

	case rules.PlexFileVideoResolution:
		metadata, err := g.plex.GetMetadata(ctx, item.RatingKey)
		if err != nil {
			return nil, err
		}
		if len(metadata.Media) == 0 {
			return nil, nil
		}
		return metadata.Media[0].VideoResolution, nil

	case rules.PlexLabels:
		metadata, err := g.plex.GetMetadata(ctx, item.RatingKey)
		if err != nil {
			return nil, err
		}
		return tagNames(metadata.Labels), nil

	case rules.PlexCollections:
		metadata, err := g.plex.GetMetadata(ctx, item.RatingKey)
		if err != nil {
			return nil, err
		}
		return float64(len(metadata.Collections)), nil

	case rules.PlexAllEpisodesSeen:
		metadata, err := g.plex.GetMetadata(ctx, item.RatingKey)
		if err != nil {
			return nil, err
		}
		return metadata.LeafCount > 0 && metadata.ViewedLeafCount >= metadata.LeafCount, nil
	}
	return nil, fmt.Errorf("unknown Plex property %d", propertyID)
}

// seenBy resolves the account names having fully watched the item
func (g *PlexGetter) seenBy(ctx context.Context, item plex.LibraryItem) (any, error) {
	history, err := g.plex.GetWatchHistory(ctx, item.RatingKey)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return []string{}, nil
	}

	accounts, err := g.plex.GetAccounts(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(accounts))
	for _, account := range accounts {
		names[account.ID] = account.Name
	}

	seen := map[string]struct{}{}
	var out []string
	for _, entry := range history {
		name, ok := names[entry.AccountID]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func tagNames(tags []plex.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.Tag)
	}
	return out
}
