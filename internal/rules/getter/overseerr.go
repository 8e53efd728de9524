package getter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/services/overseerr"
	"github.com/curatarr/curatarr/internal/services/plex"
)

const requestStatusApproved = 2

// OverseerrGetter resolves request-manager properties. Requests are keyed
// on the title's TMDb id; seasons and episodes resolve through their show.
type OverseerrGetter struct {
	overseerr *overseerr.Client
	ids       *IDResolver
	logger    *logrus.Logger
}

// NewOverseerrGetter creates the request-manager resolver
func NewOverseerrGetter(client *overseerr.Client, ids *IDResolver, logger *logrus.Logger) *OverseerrGetter {
	return &OverseerrGetter{overseerr: client, ids: ids, logger: logger}
}

// Get resolves one Overseerr property of an item
func (g *OverseerrGetter) Get(ctx context.Context, propertyID int, item plex.LibraryItem, group *models.RuleGroup) (any, error) {
	details, err := g.details(ctx, item)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, nil
	}

	var requests []overseerr.MediaRequest
	if details.MediaInfo != nil {
		requests = details.MediaInfo.Requests
	}

	switch propertyID {
	case rules.OverseerrAddUser:
		if len(requests) == 0 || requests[0].RequestedBy == nil {
			return nil, nil
		}
		return requests[0].RequestedBy.DisplayName, nil

	case rules.OverseerrRequestDate:
		if len(requests) == 0 {
			return nil, nil
		}
		return requests[0].CreatedAt, nil

	case rules.OverseerrReleaseDate:
		return details.ReleasedAt(), nil

	case rules.OverseerrApprovalDate:
		for _, request := range requests {
			if request.Status == requestStatusApproved {
				return request.UpdatedAt, nil
			}
		}
		return nil, nil

	case rules.OverseerrMediaAddedAt:
		if details.MediaInfo == nil || details.MediaInfo.MediaAddedAt == nil {
			return nil, nil
		}
		return *details.MediaInfo.MediaAddedAt, nil

	case rules.OverseerrAmountRequested:
		return float64(len(requests)), nil

	case rules.OverseerrIsRequested:
		return len(requests) > 0, nil
	}
	return nil, fmt.Errorf("unknown Overseerr property %d", propertyID)
}

// details fetches the request state of the item's title
func (g *OverseerrGetter) details(ctx context.Context, item plex.LibraryItem) (*overseerr.MediaDetails, error) {
	show, err := g.ids.ShowItem(ctx, item)
	if err != nil {
		return nil, err
	}
	tmdbID, err := g.ids.TmdbID(ctx, *show)
	if err != nil {
		return nil, err
	}
	if tmdbID == 0 {
		return nil, nil
	}

	if show.Type == "movie" {
		return g.overseerr.GetMovie(ctx, tmdbID)
	}
	return g.overseerr.GetTv(ctx, tmdbID)
}
