package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/observability"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/rules/getter"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/servarr"
	"github.com/curatarr/curatarr/internal/tasks"
	"github.com/curatarr/curatarr/internal/utils"
)

// recordingServer captures mutation requests against a fixture server
type recordingServer struct {
	mu       sync.Mutex
	requests []string
	handler  http.Handler
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
	}
	s.handler.ServeHTTP(w, r)
}

func (s *recordingServer) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func buildMaintenance(t *testing.T, cfg *config.Config, db *models.Database) *MaintenanceController {
	t.Helper()
	logger := quietLogger()
	caches := utils.NewCacheManager()

	plexClient := plex.NewClient(cfg, caches, logger)
	arrs := servarr.NewManager(cfg, caches, logger)
	ids := getter.NewIDResolver(plexClient, nil, caches, logger)
	exclusionCtrl := NewExclusionController(db, plexClient, logger)
	comparator := rules.NewComparator(nil, exclusionCtrl, logger)
	rulesCtrl := NewRulesController(db, plexClient, comparator, caches, logger)
	runner := tasks.NewRunner(db, logger)
	metrics := observability.New(prometheus.NewRegistry())

	return NewMaintenanceController(db, plexClient, arrs, ids, rulesCtrl, comparator, runner, metrics, logger)
}

func newMaintenanceFixture(t *testing.T, handler http.Handler) (*MaintenanceController, *models.Database, *recordingServer) {
	t.Helper()
	recorder := &recordingServer{handler: handler}
	server := httptest.NewServer(recorder)
	t.Cleanup(server.Close)

	db := newTestDB(t)
	cfg := &config.Config{PlexURL: server.URL, PlexToken: "token"}
	return buildMaintenance(t, cfg, db), db, recorder
}

func newGroupWithCollection(t *testing.T, db *models.Database, collection *models.Collection) *models.RuleGroup {
	t.Helper()
	require.NoError(t, db.CreateCollection(collection))
	group := &models.RuleGroup{
		Name:         collection.Title,
		LibraryID:    collection.LibraryID,
		DataType:     collection.DataType,
		CollectionID: collection.ID,
		IsActive:     true,
		UseRules:     true,
	}
	require.NoError(t, db.CreateRuleGroup(group))
	return group
}

func collectionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/identity":
			w.Write([]byte(`{"MediaContainer":{"machineIdentifier":"abc"}}`))
		case r.URL.Path == "/library/metadata/gone":
			http.NotFound(w, r)
		default:
			w.Write([]byte(`{"MediaContainer":{"Metadata":[]}}`))
		}
	})
}

func TestSyncCollection_Diff(t *testing.T) {
	ctrl, db, recorder := newMaintenanceFixture(t, collectionHandler())

	collection := &models.Collection{
		Title:             "Leaving soon",
		LibraryID:         "1",
		DataType:          models.DataTypeMovie,
		PlexCollectionKey: "500",
		IsActive:          true,
	}
	group := newGroupWithCollection(t, db, collection)

	// existing members: one still matching, one unmatched, one departed
	for _, id := range []string{"keep", "unmatched", "departed"} {
		require.NoError(t, db.AddCollectionMedia(&models.CollectionMedia{
			CollectionID: collection.ID,
			PlexID:       id,
			AddDate:      time.Now().AddDate(0, 0, -5),
		}))
	}
	require.NoError(t, db.CreateExclusion(&models.Exclusion{PlexID: "departed", RuleGroupID: models.GlobalExclusion}))

	library := []plex.LibraryItem{
		{RatingKey: "keep", Title: "Keep"},
		{RatingKey: "unmatched", Title: "Unmatched"},
		{RatingKey: "fresh", Title: "Fresh"},
	}
	matched := []plex.LibraryItem{
		{RatingKey: "keep", Title: "Keep"},
		{RatingKey: "fresh", Title: "Fresh"},
	}

	require.NoError(t, ctrl.syncCollection(context.Background(), group, collection, library, matched))

	members, err := db.GetCollectionMedia(collection.ID)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, member := range members {
		ids[member.PlexID] = true
	}
	assert.True(t, ids["keep"])
	assert.True(t, ids["fresh"])
	assert.False(t, ids["unmatched"])
	assert.False(t, ids["departed"])

	// the departed item's exclusions are gone, it left the library
	exclusions, err := db.GetAllExclusions()
	require.NoError(t, err)
	assert.Empty(t, exclusions)

	requests := recorder.recorded()
	assert.Contains(t, requests, "PUT /library/collections/500/items")
	assert.Contains(t, requests, "DELETE /library/collections/500/children/unmatched")
	// departed items are gone server-side already, no removal call
	assert.NotContains(t, requests, "DELETE /library/collections/500/children/departed")

	logs, err := db.GetCollectionLogs(collection.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestSyncCollection_UnmatchedMemberLosesScopedExclusions(t *testing.T) {
	ctrl, db, _ := newMaintenanceFixture(t, collectionHandler())

	collection := &models.Collection{
		Title:             "Leaving soon",
		LibraryID:         "1",
		DataType:          models.DataTypeMovie,
		PlexCollectionKey: "500",
		IsActive:          true,
	}
	group := newGroupWithCollection(t, db, collection)

	require.NoError(t, db.AddCollectionMedia(&models.CollectionMedia{
		CollectionID: collection.ID,
		PlexID:       "stale",
		AddDate:      time.Now().AddDate(0, 0, -5),
	}))
	require.NoError(t, db.CreateExclusion(&models.Exclusion{PlexID: "stale", RuleGroupID: group.ID}))
	require.NoError(t, db.CreateExclusion(&models.Exclusion{PlexID: "stale", RuleGroupID: models.GlobalExclusion}))

	// still in the library, just not matching anymore
	library := []plex.LibraryItem{{RatingKey: "stale", Title: "Stale"}}
	require.NoError(t, ctrl.syncCollection(context.Background(), group, collection, library, nil))

	members, err := db.GetCollectionMedia(collection.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	// a returning item is re-evaluated from scratch in this group, while the
	// global exclusion keeps applying
	remaining, err := db.GetAllExclusions()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, models.GlobalExclusion, remaining[0].RuleGroupID)
}

func TestSyncCollection_CreatesMirrorLazily(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/identity":
			w.Write([]byte(`{"MediaContainer":{"machineIdentifier":"abc"}}`))
		case r.URL.Path == "/library/collections" && r.Method == http.MethodPost:
			w.Write([]byte(`{"MediaContainer":{"Metadata":[{"ratingKey":"777"}]}}`))
		default:
			w.Write([]byte(`{"MediaContainer":{"Metadata":[]}}`))
		}
	})
	ctrl, db, _ := newMaintenanceFixture(t, handler)

	collection := &models.Collection{Title: "New", LibraryID: "1", DataType: models.DataTypeMovie, IsActive: true}
	group := newGroupWithCollection(t, db, collection)

	matched := []plex.LibraryItem{{RatingKey: "m1", Title: "First"}}
	require.NoError(t, ctrl.syncCollection(context.Background(), group, collection, matched, matched))

	stored, err := db.GetCollectionByID(collection.ID)
	require.NoError(t, err)
	assert.Equal(t, "777", stored.PlexCollectionKey)
}

func TestMaintainCollection_DwellTimeGate(t *testing.T) {
	ctrl, db, _ := newMaintenanceFixture(t, collectionHandler())

	collection := &models.Collection{
		Title:           "Purge",
		LibraryID:       "1",
		DataType:        models.DataTypeMovie,
		DeleteAfterDays: 30,
		IsActive:        true,
	}
	require.NoError(t, db.CreateCollection(collection))

	// inside the dwell window: must stay untouched
	require.NoError(t, db.AddCollectionMedia(&models.CollectionMedia{
		CollectionID: collection.ID,
		PlexID:       "young",
		AddDate:      time.Now().AddDate(0, 0, -10),
	}))
	// past the window but gone from the library: membership retired
	require.NoError(t, db.AddCollectionMedia(&models.CollectionMedia{
		CollectionID: collection.ID,
		PlexID:       "gone",
		AddDate:      time.Now().AddDate(0, 0, -40),
	}))

	require.NoError(t, ctrl.maintainCollection(context.Background(), collection))

	members, err := db.GetCollectionMedia(collection.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "young", members[0].PlexID)
}

func TestMaintainCollection_UpstreamErrorKeepsMember(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/library/metadata/flaky" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"MediaContainer":{"Metadata":[]}}`))
	})
	ctrl, db, _ := newMaintenanceFixture(t, handler)

	collection := &models.Collection{
		Title:           "Purge",
		LibraryID:       "1",
		DataType:        models.DataTypeMovie,
		DeleteAfterDays: 30,
		IsActive:        true,
	}
	require.NoError(t, db.CreateCollection(collection))

	addDate := time.Now().AddDate(0, 0, -40)
	require.NoError(t, db.AddCollectionMedia(&models.CollectionMedia{
		CollectionID: collection.ID,
		PlexID:       "flaky",
		AddDate:      addDate,
	}))

	require.NoError(t, ctrl.maintainCollection(context.Background(), collection))

	// a failed lookup is not "gone": the row and its dwell timestamp stay
	// so the action is retried on the next pass
	members, err := db.GetCollectionMedia(collection.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "flaky", members[0].PlexID)
	assert.WithinDuration(t, addDate, members[0].AddDate, time.Second)
}

func newRadarrFixture(t *testing.T, arrHandler http.Handler) (*MaintenanceController, *models.Database, *recordingServer) {
	t.Helper()
	plexServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/library/metadata/101" {
			w.Write([]byte(`{"MediaContainer":{"Metadata":[
				{"ratingKey":"101","type":"movie","title":"Old Movie","Guid":[{"id":"tmdb://603"}]}]}}`))
			return
		}
		w.Write([]byte(`{"MediaContainer":{"Metadata":[]}}`))
	}))
	t.Cleanup(plexServer.Close)

	recorder := &recordingServer{handler: arrHandler}
	arrServer := httptest.NewServer(recorder)
	t.Cleanup(arrServer.Close)

	db := newTestDB(t)
	cfg := &config.Config{
		PlexURL:         plexServer.URL,
		PlexToken:       "token",
		RadarrInstances: []config.ArrInstance{{Name: "main", URL: arrServer.URL, APIKey: "key"}},
	}
	return buildMaintenance(t, cfg, db), db, recorder
}

func TestMaintainCollection_MovieActions(t *testing.T) {
	radarr := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v3/movie" && r.Method == http.MethodGet {
			w.Write([]byte(`[{"id":55,"monitored":true,"movieFile":{"id":9}}]`))
			return
		}
		w.Write([]byte(`{}`))
	})

	tests := []struct {
		name   string
		action models.ArrAction
		want   []string
		forbid []string
	}{
		{
			name:   "delete removes the movie with files",
			action: models.ActionDelete,
			want:   []string{"DELETE /api/v3/movie/55"},
			forbid: []string{"PUT /api/v3/movie/55"},
		},
		{
			name:   "unmonitor drops the file",
			action: models.ActionUnmonitor,
			want:   []string{"PUT /api/v3/movie/55", "DELETE /api/v3/moviefile/9"},
		},
		{
			name:   "unmonitor keeping files leaves the file alone",
			action: models.ActionUnmonitorKeepFiles,
			want:   []string{"PUT /api/v3/movie/55"},
			forbid: []string{"DELETE /api/v3/moviefile/9"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl, db, arr := newRadarrFixture(t, radarr)

			collection := &models.Collection{
				Title:           "Purge",
				LibraryID:       "1",
				DataType:        models.DataTypeMovie,
				ArrAction:       tc.action,
				DeleteAfterDays: 30,
				IsActive:        true,
			}
			require.NoError(t, db.CreateCollection(collection))
			require.NoError(t, db.AddCollectionMedia(&models.CollectionMedia{
				CollectionID: collection.ID,
				PlexID:       "101",
				AddDate:      time.Now().AddDate(0, 0, -40),
			}))

			require.NoError(t, ctrl.maintainCollection(context.Background(), collection))

			requests := arr.recorded()
			for _, want := range tc.want {
				assert.Contains(t, requests, want)
			}
			for _, forbid := range tc.forbid {
				assert.NotContains(t, requests, forbid)
			}

			members, err := db.GetCollectionMedia(collection.ID)
			require.NoError(t, err)
			assert.Empty(t, members, "membership is retired once the action succeeded")

			// a second pass finds no members and fires nothing
			before := len(arr.recorded())
			require.NoError(t, ctrl.maintainCollection(context.Background(), collection))
			assert.Equal(t, before, len(arr.recorded()))
		})
	}
}

func TestMaintainCollection_EpisodeAction(t *testing.T) {
	plexServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/library/metadata/12":
			w.Write([]byte(`{"MediaContainer":{"Metadata":[
				{"ratingKey":"12","type":"episode","index":2,"parentIndex":1,"grandparentRatingKey":"10"}]}}`))
		case "/library/metadata/10":
			w.Write([]byte(`{"MediaContainer":{"Metadata":[
				{"ratingKey":"10","type":"show","Guid":[{"id":"tvdb://999"}]}]}}`))
		default:
			w.Write([]byte(`{"MediaContainer":{"Metadata":[]}}`))
		}
	}))
	t.Cleanup(plexServer.Close)

	recorder := &recordingServer{handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v3/series" && r.Method == http.MethodGet:
			w.Write([]byte(`[{"id":77,"monitored":true,"seasons":[{"seasonNumber":1,"monitored":true}]}]`))
		case r.URL.Path == "/api/v3/episode" && r.Method == http.MethodGet:
			w.Write([]byte(`[{"id":201,"seriesId":77,"episodeFileId":31,"seasonNumber":1,"episodeNumber":2,"monitored":true}]`))
		default:
			w.Write([]byte(`{}`))
		}
	})}
	sonarrServer := httptest.NewServer(recorder)
	t.Cleanup(sonarrServer.Close)

	db := newTestDB(t)
	cfg := &config.Config{
		PlexURL:         plexServer.URL,
		PlexToken:       "token",
		SonarrInstances: []config.ArrInstance{{Name: "main", URL: sonarrServer.URL, APIKey: "key"}},
	}
	ctrl := buildMaintenance(t, cfg, db)

	collection := &models.Collection{
		Title:           "Watched episodes",
		LibraryID:       "2",
		DataType:        models.DataTypeEpisode,
		ArrAction:       models.ActionUnmonitor,
		DeleteAfterDays: 7,
		IsActive:        true,
	}
	require.NoError(t, db.CreateCollection(collection))
	require.NoError(t, db.AddCollectionMedia(&models.CollectionMedia{
		CollectionID: collection.ID,
		PlexID:       "12",
		AddDate:      time.Now().AddDate(0, 0, -14),
	}))

	require.NoError(t, ctrl.maintainCollection(context.Background(), collection))

	requests := recorder.recorded()
	assert.Contains(t, requests, "PUT /api/v3/episode/monitor")
	assert.Contains(t, requests, "DELETE /api/v3/episodefile/31")

	members, err := db.GetCollectionMedia(collection.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestScheduledRuns_DoNotBlockEachOther(t *testing.T) {
	ctrl, db, _ := newMaintenanceFixture(t, collectionHandler())
	other := tasks.NewRunner(db, quietLogger())

	// rule evaluation defers to a running maintenance pass instead of
	// waiting on it
	require.NoError(t, other.TryStart(tasks.TaskMaintenance))
	done := make(chan error, 1)
	go func() { done <- ctrl.RunRules(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("rule evaluation blocked on a running maintenance pass")
	}
	running, err := other.IsRunning(tasks.TaskRuleEvaluation)
	require.NoError(t, err)
	assert.False(t, running, "the deferred run released its own marker")
	other.Finish(tasks.TaskMaintenance)

	// maintenance is the one side that waits for rule evaluation
	require.NoError(t, other.TryStart(tasks.TaskRuleEvaluation))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ctrl.RunMaintenance(ctx), context.DeadlineExceeded)
}

func TestRunRules_RefusesOverlap(t *testing.T) {
	ctrl, db, _ := newMaintenanceFixture(t, collectionHandler())

	runner := tasks.NewRunner(db, quietLogger())
	require.NoError(t, runner.TryStart(tasks.TaskRuleEvaluation))

	// the claimed marker turns the run into a no-op
	require.NoError(t, ctrl.RunRules(context.Background()))

	running, err := runner.IsRunning(tasks.TaskRuleEvaluation)
	require.NoError(t, err)
	assert.True(t, running, "the foreign marker must not be released")
}
