package getter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/servarr"
)

const bytesPerMiB = 1024 * 1024

// RadarrGetter resolves movie-automation properties. The instance to ask
// comes from the group's collection, falling back to the single configured
// instance.
type RadarrGetter struct {
	arrs   *servarr.Manager
	db     *models.Database
	ids    *IDResolver
	logger *logrus.Logger
}

// NewRadarrGetter creates the movie-automation resolver
func NewRadarrGetter(arrs *servarr.Manager, db *models.Database, ids *IDResolver, logger *logrus.Logger) *RadarrGetter {
	return &RadarrGetter{arrs: arrs, db: db, ids: ids, logger: logger}
}

// Get resolves one Radarr property of an item
func (g *RadarrGetter) Get(ctx context.Context, propertyID int, item plex.LibraryItem, group *models.RuleGroup) (any, error) {
	client, err := g.clientFor(group)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}

	tmdbID, err := g.ids.TmdbID(ctx, item)
	if err != nil {
		return nil, err
	}
	if tmdbID == 0 {
		return nil, nil
	}

	movie, err := client.GetMovieByTmdbID(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, nil
	}

	switch propertyID {
	case rules.RadarrAddDate:
		return movie.Added, nil

	case rules.RadarrFileDate:
		if movie.MovieFile == nil {
			return nil, nil
		}
		return movie.MovieFile.DateAdded, nil

	case rules.RadarrFilePath:
		if movie.MovieFile == nil {
			return nil, nil
		}
		return movie.MovieFile.Path, nil

	case rules.RadarrFileQuality:
		if movie.MovieFile == nil {
			return nil, nil
		}
		return float64(movie.MovieFile.Quality.Quality.Resolution), nil

	case rules.RadarrFileAudioChannels:
		if movie.MovieFile == nil {
			return nil, nil
		}
		return movie.MovieFile.MediaInfo.AudioChannels, nil

	case rules.RadarrRuntime:
		if movie.MovieFile == nil {
			return nil, nil
		}
		return runtimeMinutes(movie.MovieFile.MediaInfo.RunTime), nil

	case rules.RadarrMonitored:
		return movie.Monitored, nil

	case rules.RadarrTags:
		return g.tagLabels(ctx, client, movie.Tags)

	case rules.RadarrProfile:
		return g.profileName(ctx, client, movie.QualityProfileID)

	case rules.RadarrFileSize:
		if movie.MovieFile == nil {
			return nil, nil
		}
		return float64(movie.MovieFile.Size) / bytesPerMiB, nil

	case rules.RadarrReleaseDate:
		// earlier of the two home release dates, whichever exists
		switch {
		case movie.PhysicalRelease != nil && movie.DigitalRelease != nil:
			if movie.PhysicalRelease.Before(*movie.DigitalRelease) {
				return *movie.PhysicalRelease, nil
			}
			return *movie.DigitalRelease, nil
		case movie.PhysicalRelease != nil:
			return *movie.PhysicalRelease, nil
		case movie.DigitalRelease != nil:
			return *movie.DigitalRelease, nil
		}
		return nil, nil

	case rules.RadarrInCinemas:
		if movie.InCinemas == nil {
			return nil, nil
		}
		return *movie.InCinemas, nil
	}
	return nil, fmt.Errorf("unknown Radarr property %d", propertyID)
}

// clientFor picks the instance pinned on the group's collection
func (g *RadarrGetter) clientFor(group *models.RuleGroup) (*servarr.RadarrClient, error) {
	if group != nil && group.CollectionID != 0 {
		collection, err := g.db.GetCollectionByID(group.CollectionID)
		if err == nil && collection.RadarrInstance != "" {
			return g.arrs.Radarr(collection.RadarrInstance)
		}
	}
	return g.arrs.DefaultRadarr(), nil
}

func (g *RadarrGetter) tagLabels(ctx context.Context, client *servarr.RadarrClient, tagIDs []int) (any, error) {
	tags, err := client.GetTags(ctx)
	if err != nil {
		return nil, err
	}
	labels := make(map[int]string, len(tags))
	for _, tag := range tags {
		labels[tag.ID] = tag.Label
	}

	out := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		if label, ok := labels[id]; ok {
			out = append(out, label)
		}
	}
	return out, nil
}

func (g *RadarrGetter) profileName(ctx context.Context, client *servarr.RadarrClient, profileID int) (any, error) {
	profiles, err := client.GetProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		if profile.ID == profileID {
			return profile.Name, nil
		}
	}
	return nil, nil
}

// runtimeMinutes converts a probe runtime ("HH:MM:SS" or "MM:SS") to whole
// minutes; nil when the field is empty or malformed.
func runtimeMinutes(raw string) any {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return nil
	}

	var minutes float64
	if len(parts) == 3 {
		hours, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}
		mins, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil
		}
		minutes = float64(hours*60 + mins)
	} else {
		mins, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}
		minutes = float64(mins)
	}
	return minutes
}
