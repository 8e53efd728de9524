package rules

import (
	"fmt"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/models"
)

// Property is a declarative description of one resolvable value: identity
// and type only, no behavior. CacheReset marks properties whose upstream
// value can change without a stable "last modified" signal visible to the
// response cache; evaluating them requires a cache flush first.
type Property struct {
	ID         int
	Name       string
	HumanName  string
	Type       TypeID
	CacheReset bool
	// MediaTypes restricts the property to certain data types; empty
	// means it applies to all of them.
	MediaTypes []models.DataType
}

// Application groups the properties of one external data source.
type Application struct {
	ID         AppID
	Name       string
	Properties []Property
}

// Property returns the application's property with the given id, or nil
func (a *Application) Property(id int) *Property {
	for i := range a.Properties {
		if a.Properties[i].ID == id {
			return &a.Properties[i]
		}
	}
	return nil
}

// Plex property ids
const (
	PlexAddDate = iota
	PlexSeenBy
	PlexReleaseDate
	PlexRatingCritics
	PlexRatingAudience
	PlexViewCount
	PlexLastViewedAt
	PlexFileVideoResolution
	PlexLabels
	PlexCollections
	PlexAllEpisodesSeen
)

// Radarr property ids
const (
	RadarrAddDate = iota
	RadarrFileDate
	RadarrFilePath
	RadarrFileQuality
	RadarrFileAudioChannels
	RadarrRuntime
	RadarrMonitored
	RadarrTags
	RadarrProfile
	RadarrFileSize
	RadarrReleaseDate
	RadarrInCinemas
)

// Sonarr property ids
const (
	SonarrAddDate = iota
	SonarrDiskSize
	SonarrFilePath
	SonarrTags
	SonarrQualityProfileID
	SonarrFirstAirDate
	SonarrSeasons
	SonarrStatus
	SonarrEnded
	SonarrMonitored
	SonarrUnairedEpisodes
	SonarrSeasonsMonitored
	SonarrPartOfLatestSeason
)

// Overseerr property ids
const (
	OverseerrAddUser = iota
	OverseerrRequestDate
	OverseerrReleaseDate
	OverseerrApprovalDate
	OverseerrMediaAddedAt
	OverseerrAmountRequested
	OverseerrIsRequested
)

// Tautulli property ids
const (
	TautulliSeenBy = iota
	TautulliWatchers
	TautulliViewCount
	TautulliLastViewedAt
)

var (
	showScoped  = []models.DataType{models.DataTypeShow, models.DataTypeSeason, models.DataTypeEpisode}
	movieScoped = []models.DataType{models.DataTypeMovie}
)

// applications is the static property schema. Immutable for the process
// lifetime; ListApplications hands out filtered copies.
var applications = []Application{
	{
		ID:   AppPlex,
		Name: "Plex",
		Properties: []Property{
			{ID: PlexAddDate, Name: "addDate", HumanName: "Date added", Type: TypeDate},
			{ID: PlexSeenBy, Name: "seenBy", HumanName: "Viewed by (username)", Type: TypeTextList},
			{ID: PlexReleaseDate, Name: "releaseDate", HumanName: "Release date", Type: TypeDate},
			{ID: PlexRatingCritics, Name: "rating_critics", HumanName: "Critics rating", Type: TypeNumber},
			{ID: PlexRatingAudience, Name: "rating_audience", HumanName: "Audience rating", Type: TypeNumber},
			{ID: PlexViewCount, Name: "viewCount", HumanName: "Times viewed", Type: TypeNumber},
			{ID: PlexLastViewedAt, Name: "lastViewedAt", HumanName: "Last view date", Type: TypeDate},
			{ID: PlexFileVideoResolution, Name: "fileVideoResolution", HumanName: "Video resolution", Type: TypeText},
			{ID: PlexLabels, Name: "labels", HumanName: "Labels", Type: TypeTextList},
			// collection membership changes without touching item metadata
			{ID: PlexCollections, Name: "collections", HumanName: "Number of collections", Type: TypeNumber, CacheReset: true},
			{ID: PlexAllEpisodesSeen, Name: "sw_allEpisodesSeen", HumanName: "All episodes seen", Type: TypeBool, MediaTypes: showScoped},
		},
	},
	{
		ID:   AppRadarr,
		Name: "Radarr",
		Properties: []Property{
			{ID: RadarrAddDate, Name: "addDate", HumanName: "Date added", Type: TypeDate, MediaTypes: movieScoped},
			{ID: RadarrFileDate, Name: "fileDate", HumanName: "File download date", Type: TypeDate, MediaTypes: movieScoped},
			{ID: RadarrFilePath, Name: "filePath", HumanName: "File path", Type: TypeText, MediaTypes: movieScoped},
			{ID: RadarrFileQuality, Name: "fileQuality", HumanName: "File resolution", Type: TypeNumber, MediaTypes: movieScoped},
			{ID: RadarrFileAudioChannels, Name: "fileAudioChannels", HumanName: "File audio channels", Type: TypeNumber, MediaTypes: movieScoped},
			{ID: RadarrRuntime, Name: "runTime", HumanName: "Runtime (minutes)", Type: TypeNumber, MediaTypes: movieScoped},
			{ID: RadarrMonitored, Name: "monitored", HumanName: "Monitored", Type: TypeBool, MediaTypes: movieScoped},
			{ID: RadarrTags, Name: "tags", HumanName: "Tags", Type: TypeTextList, MediaTypes: movieScoped},
			{ID: RadarrProfile, Name: "profile", HumanName: "Quality profile", Type: TypeText, MediaTypes: movieScoped},
			{ID: RadarrFileSize, Name: "fileSize", HumanName: "File size (MB)", Type: TypeNumber, MediaTypes: movieScoped},
			{ID: RadarrReleaseDate, Name: "releaseDate", HumanName: "Release date", Type: TypeDate, MediaTypes: movieScoped},
			{ID: RadarrInCinemas, Name: "inCinemas", HumanName: "In cinemas date", Type: TypeDate, MediaTypes: movieScoped},
		},
	},
	{
		ID:   AppSonarr,
		Name: "Sonarr",
		Properties: []Property{
			{ID: SonarrAddDate, Name: "addDate", HumanName: "Date added", Type: TypeDate, MediaTypes: showScoped},
			{ID: SonarrDiskSize, Name: "diskSizeEntireShow", HumanName: "Disk size (MB)", Type: TypeNumber, MediaTypes: showScoped},
			{ID: SonarrFilePath, Name: "filePath", HumanName: "Base file path", Type: TypeText, MediaTypes: showScoped},
			{ID: SonarrTags, Name: "tags", HumanName: "Tags", Type: TypeTextList, MediaTypes: showScoped},
			{ID: SonarrQualityProfileID, Name: "qualityProfileId", HumanName: "Quality profile id", Type: TypeNumber, MediaTypes: showScoped},
			{ID: SonarrFirstAirDate, Name: "firstAirDate", HumanName: "First air date", Type: TypeDate, MediaTypes: showScoped},
			{ID: SonarrSeasons, Name: "seasons", HumanName: "Number of seasons / episodes", Type: TypeNumber, MediaTypes: showScoped},
			{ID: SonarrStatus, Name: "status", HumanName: "Status", Type: TypeText, MediaTypes: showScoped},
			{ID: SonarrEnded, Name: "ended", HumanName: "Show ended", Type: TypeBool, MediaTypes: showScoped},
			{ID: SonarrMonitored, Name: "monitored", HumanName: "Monitored", Type: TypeBool, MediaTypes: showScoped},
			{ID: SonarrUnairedEpisodes, Name: "unaired_episodes", HumanName: "Has unaired episodes", Type: TypeBool, MediaTypes: showScoped},
			{ID: SonarrSeasonsMonitored, Name: "seasons_monitored", HumanName: "Monitored seasons / episodes", Type: TypeNumber, MediaTypes: showScoped},
			{ID: SonarrPartOfLatestSeason, Name: "part_of_latest_season", HumanName: "Part of latest season", Type: TypeBool, MediaTypes: []models.DataType{models.DataTypeSeason, models.DataTypeEpisode}},
		},
	},
	{
		ID:   AppOverseerr,
		Name: "Overseerr",
		Properties: []Property{
			{ID: OverseerrAddUser, Name: "addUser", HumanName: "Requested by (username)", Type: TypeText, CacheReset: true},
			{ID: OverseerrRequestDate, Name: "requestDate", HumanName: "Request date", Type: TypeDate},
			{ID: OverseerrReleaseDate, Name: "releaseDate", HumanName: "Release date", Type: TypeDate},
			{ID: OverseerrApprovalDate, Name: "approvalDate", HumanName: "Approval date", Type: TypeDate},
			{ID: OverseerrMediaAddedAt, Name: "mediaAddedAt", HumanName: "Media downloaded date", Type: TypeDate},
			{ID: OverseerrAmountRequested, Name: "amountRequested", HumanName: "Number of requests", Type: TypeNumber},
			{ID: OverseerrIsRequested, Name: "isRequested", HumanName: "Requested in Overseerr", Type: TypeBool, CacheReset: true},
		},
	},
	{
		ID:   AppTautulli,
		Name: "Tautulli",
		Properties: []Property{
			{ID: TautulliSeenBy, Name: "seenBy", HumanName: "Viewed by (username)", Type: TypeTextList},
			{ID: TautulliWatchers, Name: "sw_watchers", HumanName: "Users that watch the show", Type: TypeTextList, MediaTypes: showScoped},
			{ID: TautulliViewCount, Name: "viewCount", HumanName: "Times viewed", Type: TypeNumber},
			{ID: TautulliLastViewedAt, Name: "lastViewedAt", HumanName: "Last view date", Type: TypeDate},
		},
	},
}

// ListApplications returns the applications available to rule authors,
// filtered down to the external services that are actually configured so a
// rule can never reference an unreachable data source.
func ListApplications(cfg *config.Config) []Application {
	out := make([]Application, 0, len(applications))
	for _, app := range applications {
		switch app.ID {
		case AppRadarr:
			if !cfg.HasRadarr() {
				continue
			}
		case AppSonarr:
			if !cfg.HasSonarr() {
				continue
			}
		case AppOverseerr:
			if !cfg.HasOverseerr() {
				continue
			}
		case AppTautulli:
			if !cfg.HasTautulli() {
				continue
			}
		}
		out = append(out, app)
	}
	return out
}

// LookupApplication returns the application with the given id regardless of
// configuration state, or nil.
func LookupApplication(id AppID) *Application {
	for i := range applications {
		if applications[i].ID == id {
			return &applications[i]
		}
	}
	return nil
}

// LookupProperty resolves a (applicationId, propertyId) reference, or an
// error when either side is unknown.
func LookupProperty(ref ValueRef) (*Property, error) {
	app := LookupApplication(ref.App())
	if app == nil {
		return nil, fmt.Errorf("unknown application id %d", ref[0])
	}
	prop := app.Property(ref.Property())
	if prop == nil {
		return nil, fmt.Errorf("unknown property id %d for application %s", ref[1], app.Name)
	}
	return prop, nil
}
