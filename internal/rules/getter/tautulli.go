package getter

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/tautulli"
)

// TautulliGetter resolves usage-statistics properties from the statistics
// server's own watch history, which survives library-server history pruning.
type TautulliGetter struct {
	tautulli *tautulli.Client
	logger   *logrus.Logger
}

// NewTautulliGetter creates the usage-statistics resolver
func NewTautulliGetter(client *tautulli.Client, logger *logrus.Logger) *TautulliGetter {
	return &TautulliGetter{tautulli: client, logger: logger}
}

// Get resolves one Tautulli property of an item
func (g *TautulliGetter) Get(ctx context.Context, propertyID int, item plex.LibraryItem, group *models.RuleGroup) (any, error) {
	switch propertyID {
	case rules.TautulliSeenBy:
		records, err := g.tautulli.GetHistory(ctx, item.RatingKey)
		if err != nil {
			return nil, err
		}
		return userNames(records, true), nil

	case rules.TautulliWatchers:
		records, err := g.tautulli.GetHistoryForParent(ctx, showRatingKey(item))
		if err != nil {
			return nil, err
		}
		return userNames(records, false), nil

	case rules.TautulliViewCount:
		records, err := g.tautulli.GetHistory(ctx, item.RatingKey)
		if err != nil {
			return nil, err
		}
		return float64(len(records)), nil

	case rules.TautulliLastViewedAt:
		records, err := g.tautulli.GetHistory(ctx, item.RatingKey)
		if err != nil {
			return nil, err
		}
		var last int64
		for _, record := range records {
			if record.Date > last {
				last = record.Date
			}
		}
		if last == 0 {
			return nil, nil
		}
		return time.Unix(last, 0), nil
	}
	return nil, fmt.Errorf("unknown Tautulli property %d", propertyID)
}

// userNames collects distinct users from history records, optionally only
// those having fully watched.
func userNames(records []tautulli.HistoryRecord, fullyWatchedOnly bool) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, record := range records {
		if fullyWatchedOnly && record.WatchedStatus < 1 {
			continue
		}
		if _, dup := seen[record.User]; dup {
			continue
		}
		seen[record.User] = struct{}{}
		out = append(out, record.User)
	}
	return out
}
