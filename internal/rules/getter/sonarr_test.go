package getter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/servarr"
)

func airedSeason(number, episodes int) servarr.Season {
	past := time.Now().AddDate(0, 0, -30)
	return servarr.Season{
		SeasonNumber: number,
		Statistics: &servarr.SeasonStatistics{
			EpisodeCount:   episodes,
			PreviousAiring: &past,
		},
	}
}

func TestLatestSeason(t *testing.T) {
	tests := []struct {
		name    string
		seasons []servarr.Season
		want    int
	}{
		{
			name: "highest aired season wins",
			seasons: []servarr.Season{
				airedSeason(1, 10),
				airedSeason(2, 10),
				airedSeason(3, 8),
			},
			want: 3,
		},
		{
			name: "announced season without episodes is skipped",
			seasons: []servarr.Season{
				airedSeason(1, 10),
				airedSeason(2, 10),
				{SeasonNumber: 3, Statistics: &servarr.SeasonStatistics{}},
			},
			want: 2,
		},
		{
			name: "specials are never the latest season",
			seasons: []servarr.Season{
				airedSeason(0, 5),
				airedSeason(1, 10),
			},
			want: 1,
		},
		{
			name: "nothing aired falls back to highest number",
			seasons: []servarr.Season{
				{SeasonNumber: 1},
				{SeasonNumber: 2},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := &servarr.Series{Seasons: tt.seasons}
			assert.Equal(t, tt.want, latestSeason(series))
		})
	}
}

func TestSeasonNumber(t *testing.T) {
	assert.Equal(t, 3, seasonNumber(plex.LibraryItem{Type: "season", Index: 3}))
	assert.Equal(t, 2, seasonNumber(plex.LibraryItem{Type: "episode", Index: 7, ParentIndex: 2}))
	assert.Equal(t, 0, seasonNumber(plex.LibraryItem{Type: "show"}))
}

func TestShowRatingKey(t *testing.T) {
	assert.Equal(t, "10", showRatingKey(plex.LibraryItem{Type: "season", RatingKey: "11", ParentRatingKey: "10"}))
	assert.Equal(t, "10", showRatingKey(plex.LibraryItem{Type: "episode", RatingKey: "12", ParentRatingKey: "11", GrandparentRatingKey: "10"}))
	assert.Equal(t, "10", showRatingKey(plex.LibraryItem{Type: "show", RatingKey: "10"}))
	assert.Equal(t, "20", showRatingKey(plex.LibraryItem{Type: "movie", RatingKey: "20"}))
}
