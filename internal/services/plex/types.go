package plex

import (
	"strings"
	"time"
)

// Library is one library section on the Plex server.
type Library struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"` // "movie" or "show"
}

// GUID is one external cross-reference id, e.g. "tmdb://603".
type GUID struct {
	ID string `json:"id"`
}

// Tag wraps Plex's tag objects (labels, collections, genres).
type Tag struct {
	Tag string `json:"tag"`
}

// MediaInfo carries file-level details of a library item.
type MediaInfo struct {
	VideoResolution string `json:"videoResolution"`
	Bitrate         int    `json:"bitrate"`
}

// LibraryItem is a Plex metadata record: a movie, show, season or episode.
type LibraryItem struct {
	RatingKey            string      `json:"ratingKey"`
	Key                  string      `json:"key"`
	GUID                 string      `json:"guid"`
	Type                 string      `json:"type"`
	Title                string      `json:"title"`
	ParentRatingKey      string      `json:"parentRatingKey,omitempty"`
	GrandparentRatingKey string      `json:"grandparentRatingKey,omitempty"`
	Index                int         `json:"index,omitempty"`
	ParentIndex          int         `json:"parentIndex,omitempty"`
	AddedAt              int64       `json:"addedAt"`
	LastViewedAt         int64       `json:"lastViewedAt,omitempty"`
	ViewCount            int         `json:"viewCount,omitempty"`
	ViewedLeafCount      int         `json:"viewedLeafCount,omitempty"`
	LeafCount            int         `json:"leafCount,omitempty"`
	OriginallyAvailable  string      `json:"originallyAvailableAt,omitempty"`
	Rating               float64     `json:"rating,omitempty"`
	AudienceRating       float64     `json:"audienceRating,omitempty"`
	GUIDs                []GUID      `json:"Guid,omitempty"`
	Labels               []Tag       `json:"Label,omitempty"`
	Collections          []Tag       `json:"Collection,omitempty"`
	Media                []MediaInfo `json:"Media,omitempty"`
}

// AddedDate returns the add timestamp as a time, zero when unset
func (i *LibraryItem) AddedDate() time.Time {
	if i.AddedAt == 0 {
		return time.Time{}
	}
	return time.Unix(i.AddedAt, 0)
}

// LastViewedDate returns the last view timestamp as a time, zero when unset
func (i *LibraryItem) LastViewedDate() time.Time {
	if i.LastViewedAt == 0 {
		return time.Time{}
	}
	return time.Unix(i.LastViewedAt, 0)
}

// ReleaseDate parses the originallyAvailableAt field, zero when unset
func (i *LibraryItem) ReleaseDate() time.Time {
	if i.OriginallyAvailable == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", i.OriginallyAvailable)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ExternalID extracts a cross-reference id for the given source ("tmdb",
// "tvdb", "imdb") from the item's Guid entries. Empty when absent.
func (i *LibraryItem) ExternalID(source string) string {
	for _, guid := range i.GUIDs {
		if strings.HasPrefix(guid.ID, source+"://") {
			return strings.TrimPrefix(guid.ID, source+"://")
		}
	}
	// legacy single-guid agents: com.plexapp.agents.themoviedb://603?lang=en
	if strings.Contains(i.GUID, source) {
		parts := strings.SplitN(i.GUID, "://", 2)
		if len(parts) == 2 {
			return strings.SplitN(parts[1], "?", 2)[0]
		}
	}
	return ""
}

// Account is a Plex server account (owner or managed user).
type Account struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// HistoryEntry is one watch-history record of an item.
type HistoryEntry struct {
	AccountID int   `json:"accountID"`
	ViewedAt  int64 `json:"viewedAt"`
}

// ExpandedItem is one id produced by expanding a composite target into its
// descendant leaves.
type ExpandedItem struct {
	RatingKey string
	Kind      string
}

// Response envelopes. Plex wraps every payload in a MediaContainer.

type libraryContainer struct {
	MediaContainer struct {
		Directory []Library `json:"Directory"`
	} `json:"MediaContainer"`
}

type metadataContainer struct {
	MediaContainer struct {
		Metadata []LibraryItem `json:"Metadata"`
	} `json:"MediaContainer"`
}

type accountContainer struct {
	MediaContainer struct {
		Account []Account `json:"Account"`
	} `json:"MediaContainer"`
}

type historyContainer struct {
	MediaContainer struct {
		Metadata []HistoryEntry `json:"Metadata"`
	} `json:"MediaContainer"`
}

type identityContainer struct {
	MediaContainer struct {
		MachineIdentifier string `json:"machineIdentifier"`
	} `json:"MediaContainer"`
}
