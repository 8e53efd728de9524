package servarr

import "time"

// Tag is a label configured on the automation server.
type Tag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// QualityProfile is a named quality configuration.
type QualityProfile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Quality describes the resolved quality of a file.
type Quality struct {
	Quality struct {
		ID         int `json:"id"`
		Resolution int `json:"resolution"`
	} `json:"quality"`
}

// MediaFileInfo carries probe details of a downloaded file.
type MediaFileInfo struct {
	AudioChannels float64 `json:"audioChannels"`
	RunTime       string  `json:"runTime"` // "HH:MM:SS"
}

// MovieFile is the downloaded file of a Radarr movie.
type MovieFile struct {
	ID        int           `json:"id"`
	Path      string        `json:"path"`
	Size      int64         `json:"size"`
	DateAdded time.Time     `json:"dateAdded"`
	Quality   Quality       `json:"quality"`
	MediaInfo MediaFileInfo `json:"mediaInfo"`
}

// Movie is a Radarr library entry.
type Movie struct {
	ID               int        `json:"id"`
	Title            string     `json:"title"`
	TmdbID           int        `json:"tmdbId"`
	Added            time.Time  `json:"added"`
	Monitored        bool       `json:"monitored"`
	SizeOnDisk       int64      `json:"sizeOnDisk"`
	QualityProfileID int        `json:"qualityProfileId"`
	Tags             []int      `json:"tags"`
	PhysicalRelease  *time.Time `json:"physicalRelease,omitempty"`
	DigitalRelease   *time.Time `json:"digitalRelease,omitempty"`
	InCinemas        *time.Time `json:"inCinemas,omitempty"`
	MovieFile        *MovieFile `json:"movieFile,omitempty"`
}

// SeasonStatistics aggregates per-season airing and disk state.
type SeasonStatistics struct {
	SizeOnDisk        int64      `json:"sizeOnDisk"`
	EpisodeCount      int        `json:"episodeCount"`
	TotalEpisodeCount int        `json:"totalEpisodeCount"`
	NextAiring        *time.Time `json:"nextAiring,omitempty"`
	PreviousAiring    *time.Time `json:"previousAiring,omitempty"`
}

// Season is one season of a Sonarr series.
type Season struct {
	SeasonNumber int               `json:"seasonNumber"`
	Monitored    bool              `json:"monitored"`
	Statistics   *SeasonStatistics `json:"statistics,omitempty"`
}

// SeriesStatistics aggregates show-level state.
type SeriesStatistics struct {
	SeasonCount int   `json:"seasonCount"`
	SizeOnDisk  int64 `json:"sizeOnDisk"`
}

// Series is a Sonarr library entry.
type Series struct {
	ID               int              `json:"id"`
	Title            string           `json:"title"`
	TvdbID           int              `json:"tvdbId"`
	Added            time.Time        `json:"added"`
	Monitored        bool             `json:"monitored"`
	Status           string           `json:"status"`
	Ended            bool             `json:"ended"`
	Path             string           `json:"path"`
	QualityProfileID int              `json:"qualityProfileId"`
	Tags             []int            `json:"tags"`
	FirstAired       *time.Time       `json:"firstAired,omitempty"`
	Seasons          []Season         `json:"seasons"`
	Statistics       SeriesStatistics `json:"statistics"`
}

// Episode is one episode record of a series.
type Episode struct {
	ID            int        `json:"id"`
	SeriesID      int        `json:"seriesId"`
	EpisodeFileID int        `json:"episodeFileId"`
	SeasonNumber  int        `json:"seasonNumber"`
	EpisodeNumber int        `json:"episodeNumber"`
	AirDateUTC    *time.Time `json:"airDateUtc,omitempty"`
	Monitored     bool       `json:"monitored"`
}

// EpisodeFile is the downloaded file of an episode.
type EpisodeFile struct {
	ID      int     `json:"id"`
	Path    string  `json:"path"`
	Size    int64   `json:"size"`
	Quality Quality `json:"quality"`
}
