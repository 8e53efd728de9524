package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/utils"
)

func newRulesFixture(t *testing.T, handler http.Handler) (*RulesController, *models.Database) {
	t.Helper()
	db := newTestDB(t)
	logger := quietLogger()
	plexClient := newTestPlex(t, handler)
	exclusionCtrl := NewExclusionController(db, plexClient, logger)
	comparator := rules.NewComparator(nil, exclusionCtrl, logger)
	return NewRulesController(db, plexClient, comparator, utils.NewCacheManager(), logger), db
}

func viewCountRule(action rules.Possibility, value string) *rules.Rule {
	return &rules.Rule{
		Action:    action,
		FirstVal:  rules.ValueRef{int(rules.AppPlex), rules.PlexViewCount},
		CustomVal: &rules.CustomVal{RuleTypeID: rules.TypeNumber, Value: value},
	}
}

func TestSaveGroup_RejectsBadInput(t *testing.T) {
	ctrl, _ := newRulesFixture(t, http.NotFoundHandler())

	_, err := ctrl.SaveGroup(&GroupInput{LibraryID: "1", UseRules: true})
	assert.ErrorContains(t, err, "name")

	_, err = ctrl.SaveGroup(&GroupInput{Name: "empty", LibraryID: "1", UseRules: true})
	assert.ErrorContains(t, err, "no rules")

	// text literal against a number property fails validation
	broken := viewCountRule(rules.PossBigger, "5")
	broken.CustomVal.RuleTypeID = rules.TypeText
	_, err = ctrl.SaveGroup(&GroupInput{
		Name: "broken", LibraryID: "1", UseRules: true,
		Rules: []*rules.Rule{broken},
	})
	assert.ErrorContains(t, err, "validation failed")
}

func TestSaveGroup_CreatesGroupWithCollection(t *testing.T) {
	ctrl, db := newRulesFixture(t, http.NotFoundHandler())

	group, err := ctrl.SaveGroup(&GroupInput{
		Name:            "Unwatched movies",
		LibraryID:       "3",
		DataType:        models.DataTypeMovie,
		IsActive:        true,
		UseRules:        true,
		ArrAction:       models.ActionUnmonitor,
		DeleteAfterDays: 14,
		Rules:           []*rules.Rule{viewCountRule(rules.PossSmaller, "1")},
	})
	require.NoError(t, err)
	require.NotZero(t, group.ID)

	collection, err := db.GetCollectionByID(group.CollectionID)
	require.NoError(t, err)
	assert.Equal(t, "Unwatched movies", collection.Title)
	assert.Equal(t, models.ActionUnmonitor, collection.ArrAction)
	assert.Equal(t, 14, collection.DeleteAfterDays)

	loaded, err := ctrl.LoadRules(group.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, rules.PossSmaller, loaded[0].Action)
	assert.Equal(t, "1", loaded[0].CustomVal.Value)
}

func TestSaveGroup_UpdateReplacesRules(t *testing.T) {
	ctrl, db := newRulesFixture(t, http.NotFoundHandler())

	group, err := ctrl.SaveGroup(&GroupInput{
		Name: "before", LibraryID: "3", DataType: models.DataTypeMovie,
		IsActive: true, UseRules: true,
		Rules: []*rules.Rule{
			viewCountRule(rules.PossSmaller, "1"),
			viewCountRule(rules.PossBigger, "0"),
		},
	})
	require.NoError(t, err)

	updated, err := ctrl.SaveGroup(&GroupInput{
		ID: group.ID, Name: "after", LibraryID: "3", DataType: models.DataTypeMovie,
		IsActive: true, UseRules: true,
		Rules:    []*rules.Rule{viewCountRule(rules.PossEquals, "3")},
	})
	require.NoError(t, err)
	assert.Equal(t, group.ID, updated.ID)
	assert.Equal(t, "after", updated.Name)

	collection, err := db.GetCollectionByID(updated.CollectionID)
	require.NoError(t, err)
	assert.Equal(t, "after", collection.Title, "the mirrored title follows the group")

	loaded, err := ctrl.LoadRules(group.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1, "old rules must not linger")
	assert.Equal(t, "3", loaded[0].CustomVal.Value)
}

func TestDeleteGroup_RemovesMirror(t *testing.T) {
	var deleted []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = append(deleted, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})
	ctrl, db := newRulesFixture(t, handler)

	group, err := ctrl.SaveGroup(&GroupInput{
		Name: "doomed", LibraryID: "3", DataType: models.DataTypeMovie,
		IsActive: true, UseRules: true,
		Rules: []*rules.Rule{viewCountRule(rules.PossSmaller, "1")},
	})
	require.NoError(t, err)

	collection, err := db.GetCollectionByID(group.CollectionID)
	require.NoError(t, err)
	collection.PlexCollectionKey = "900"
	require.NoError(t, db.UpdateCollection(collection))

	require.NoError(t, ctrl.DeleteGroup(context.Background(), group.ID))

	assert.Contains(t, deleted, "/library/collections/900")
	_, err = db.GetRuleGroupByID(group.ID)
	assert.Error(t, err)
	_, err = db.GetCollectionByID(collection.ID)
	assert.Error(t, err)
	remaining, err := db.GetRulesByGroupID(group.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
