package rules

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/services/plex"
)

// fakeGetter serves property values from a per-item map
type fakeGetter struct {
	values map[string]map[int]any
}

func (f *fakeGetter) Get(ctx context.Context, propertyID int, item plex.LibraryItem, group *models.RuleGroup) (any, error) {
	props, ok := f.values[item.RatingKey]
	if !ok {
		return nil, nil
	}
	return props[propertyID], nil
}

type fakeExclusions struct {
	exclusions []*models.Exclusion
}

func (f *fakeExclusions) GetExclusionsForGroup(ruleGroupID uint64) ([]*models.Exclusion, error) {
	return f.exclusions, nil
}

func testComparator(getter PropertyGetter, exclusions ExclusionLister, now time.Time) *Comparator {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	c := NewComparator(map[AppID]PropertyGetter{AppPlex: getter}, exclusions, logger)
	c.now = func() time.Time { return now }
	return c
}

func customNumber(action Possibility, property int, days string) *Rule {
	return &Rule{
		Action:    action,
		FirstVal:  ValueRef{0, property},
		CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: days},
	}
}

func TestEvaluate_RelativeWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	getter := &fakeGetter{values: map[string]map[int]any{
		"recent": {PlexLastViewedAt: now.AddDate(0, 0, -10)},
		"stale":  {PlexLastViewedAt: now.AddDate(0, 0, -40)},
		"never":  {PlexLastViewedAt: nil},
	}}
	c := testComparator(getter, &fakeExclusions{}, now)

	group := &models.RuleGroup{ID: 1, UseRules: true}
	// viewed in the last 30 days
	ruleSet := []*Rule{customNumber(PossInLast, PlexLastViewedAt, "30")}
	items := []plex.LibraryItem{
		{RatingKey: "recent"},
		{RatingKey: "stale"},
		{RatingKey: "never"},
	}

	result, err := c.Evaluate(context.Background(), group, ruleSet, items, false)
	require.NoError(t, err)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, "recent", result.Matched[0].RatingKey)
}

func TestEvaluate_SectionChaining(t *testing.T) {
	now := time.Now()
	and := OperatorAnd
	or := OperatorOr

	getter := &fakeGetter{values: map[string]map[int]any{
		// viewCount 0 and critics 9: fails section 0, matches section 1
		"good-unwatched": {PlexViewCount: float64(0), PlexRatingCritics: float64(9)},
		// viewCount 5 and critics 3: matches section 0, fails section 1
		"watched": {PlexViewCount: float64(5), PlexRatingCritics: float64(3)},
		// viewCount 0 and critics 3: fails both sections
		"neither": {PlexViewCount: float64(0), PlexRatingCritics: float64(3)},
	}}
	c := testComparator(getter, &fakeExclusions{}, now)

	// section 0: viewCount > 0 AND viewCount < 10
	// section 1: critics > 8 OR critics < 1
	ruleSet := []*Rule{
		{Section: 0, Action: PossBigger, FirstVal: ValueRef{0, PlexViewCount}, CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: "0"}},
		{Section: 0, Operator: &and, Action: PossSmaller, FirstVal: ValueRef{0, PlexViewCount}, CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: "10"}},
		{Section: 1, Action: PossBigger, FirstVal: ValueRef{0, PlexRatingCritics}, CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: "8"}},
		{Section: 1, Operator: &or, Action: PossSmaller, FirstVal: ValueRef{0, PlexRatingCritics}, CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: "1"}},
	}

	group := &models.RuleGroup{ID: 1, UseRules: true}
	items := []plex.LibraryItem{
		{RatingKey: "good-unwatched"},
		{RatingKey: "watched"},
		{RatingKey: "neither"},
	}

	result, err := c.Evaluate(context.Background(), group, ruleSet, items, false)
	require.NoError(t, err)

	matched := map[string]bool{}
	for _, item := range result.Matched {
		matched[item.RatingKey] = true
	}
	assert.True(t, matched["good-unwatched"])
	assert.True(t, matched["watched"])
	assert.False(t, matched["neither"])
}

func TestEvaluate_MissingValueNeverMatches(t *testing.T) {
	getter := &fakeGetter{values: map[string]map[int]any{}}
	c := testComparator(getter, &fakeExclusions{}, time.Now())

	// NOT EQUALS against a missing value must stay false, a vanished value
	// must not suddenly match a negated rule
	ruleSet := []*Rule{
		{Action: PossNotEquals, FirstVal: ValueRef{0, PlexViewCount}, CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: "5"}},
	}
	group := &models.RuleGroup{ID: 1, UseRules: true}

	result, err := c.Evaluate(context.Background(), group, ruleSet, []plex.LibraryItem{{RatingKey: "ghost"}}, false)
	require.NoError(t, err)
	assert.Empty(t, result.Matched)
}

func TestEvaluate_ManualGroupMatchesEverything(t *testing.T) {
	c := testComparator(&fakeGetter{}, &fakeExclusions{}, time.Now())
	group := &models.RuleGroup{ID: 1, UseRules: false}
	items := []plex.LibraryItem{{RatingKey: "a"}, {RatingKey: "b"}}

	result, err := c.Evaluate(context.Background(), group, nil, items, false)
	require.NoError(t, err)
	assert.Len(t, result.Matched, 2)
}

func TestEvaluate_Exclusions(t *testing.T) {
	exclusions := &fakeExclusions{exclusions: []*models.Exclusion{
		{PlexID: "excluded-movie", RuleGroupID: 1},
		// fan-out row: the season row carries the show as parent
		{PlexID: "season-5", RuleGroupID: models.GlobalExclusion, Parent: "show-1"},
	}}
	c := testComparator(&fakeGetter{}, exclusions, time.Now())
	group := &models.RuleGroup{ID: 1, UseRules: false}

	items := []plex.LibraryItem{
		{RatingKey: "excluded-movie"},
		{RatingKey: "kept-movie"},
		{RatingKey: "season-5", ParentRatingKey: "show-1"},
		// episode of the excluded show, skipped through its grandparent
		{RatingKey: "episode-9", ParentRatingKey: "season-5", GrandparentRatingKey: "show-1"},
	}

	result, err := c.Evaluate(context.Background(), group, nil, items, false)
	require.NoError(t, err)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, "kept-movie", result.Matched[0].RatingKey)
	assert.Equal(t, 3, result.Excluded)
}

func TestEvaluate_Idempotent(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	getter := &fakeGetter{values: map[string]map[int]any{}}
	for i := 0; i < 20; i++ {
		key := "item-" + strconv.Itoa(i)
		getter.values[key] = map[int]any{PlexViewCount: float64(i)}
	}
	c := testComparator(getter, &fakeExclusions{}, now)

	ruleSet := []*Rule{customNumber(PossBigger, PlexViewCount, "9")}
	group := &models.RuleGroup{ID: 1, UseRules: true}
	var items []plex.LibraryItem
	for key := range getter.values {
		items = append(items, plex.LibraryItem{RatingKey: key})
	}

	first, err := c.Evaluate(context.Background(), group, ruleSet, items, false)
	require.NoError(t, err)
	second, err := c.Evaluate(context.Background(), group, ruleSet, items, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Matched, second.Matched)
	assert.Len(t, first.Matched, 10)
}

func TestEvaluate_TestModeCollectsStats(t *testing.T) {
	getter := &fakeGetter{values: map[string]map[int]any{
		"movie": {PlexViewCount: float64(3)},
	}}
	c := testComparator(getter, &fakeExclusions{}, time.Now())

	ruleSet := []*Rule{
		{Section: 0, Action: PossBigger, FirstVal: ValueRef{0, PlexViewCount}, CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: "1"}},
		{Section: 1, Action: PossSmaller, FirstVal: ValueRef{0, PlexViewCount}, CustomVal: &CustomVal{RuleTypeID: TypeNumber, Value: "1"}},
	}
	group := &models.RuleGroup{ID: 1, UseRules: true}

	result, err := c.Evaluate(context.Background(), group, ruleSet, []plex.LibraryItem{{RatingKey: "movie"}}, true)
	require.NoError(t, err)
	require.Len(t, result.Stats, 1)

	stats := result.Stats[0]
	assert.True(t, stats.Matched)
	// test mode evaluates every rule even after the outcome is decided
	require.Len(t, stats.Rules, 2)
	assert.True(t, stats.Rules[0].Result)
	assert.False(t, stats.Rules[1].Result)
	assert.Equal(t, float64(3), stats.Rules[0].FirstValue)
}

func TestCompare_Operators(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	lastWeek := now.AddDate(0, 0, -7)
	nextWeek := now.AddDate(0, 0, 7)

	tests := []struct {
		name   string
		action Possibility
		typ    TypeID
		first  any
		second any
		want   bool
	}{
		{"bigger", PossBigger, TypeNumber, float64(5), float64(3), true},
		{"smaller", PossSmaller, TypeNumber, float64(2), float64(3), true},
		{"equals number", PossEquals, TypeNumber, float64(3), float64(3), true},
		{"not equals text case-insensitive", PossNotEquals, TypeText, "Alice", "alice", false},
		{"before", PossBefore, TypeDate, lastWeek, now, true},
		{"after", PossAfter, TypeDate, nextWeek, now, true},
		{"in last with date threshold", PossInLast, TypeDate, lastWeek, now.AddDate(0, 0, -30), true},
		{"in last outside window", PossInLast, TypeDate, now.AddDate(0, 0, -60), float64(30), false},
		{"in next with days window", PossInNext, TypeDate, nextWeek, float64(30), true},
		{"in next already past", PossInNext, TypeDate, lastWeek, float64(30), false},
		{"contains", PossContains, TypeTextList, []string{"alice", "bob"}, "Bob", true},
		{"not contains", PossNotContains, TypeTextList, []string{"alice"}, "bob", true},
		{"contains partial on list", PossContainsPartial, TypeTextList, []string{"family-movies"}, "family", true},
		{"contains partial on text", PossContainsPartial, TypeText, "The Matrix Reloaded", "matrix", true},
		{"not contains partial", PossNotContainsPartial, TypeText, "Alien", "matrix", true},
		{"nil first operand", PossEquals, TypeNumber, nil, float64(1), false},
		{"nil second operand", PossEquals, TypeNumber, float64(1), nil, false},
		{"zero date never matches", PossBefore, TypeDate, time.Time{}, now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compare(tt.action, tt.typ, tt.first, tt.second, now)
			assert.Equal(t, tt.want, got, fmt.Sprintf("%s %v vs %v", tt.action, tt.first, tt.second))
		})
	}
}

func TestParseCustomVal(t *testing.T) {
	assert.Equal(t, float64(42), parseCustomVal(&CustomVal{RuleTypeID: TypeNumber, Value: "42"}))
	assert.Nil(t, parseCustomVal(&CustomVal{RuleTypeID: TypeNumber, Value: "not a number"}))
	assert.Equal(t, true, parseCustomVal(&CustomVal{RuleTypeID: TypeBool, Value: "true"}))
	assert.Equal(t, []string{"a", "b"}, parseCustomVal(&CustomVal{RuleTypeID: TypeTextList, Value: "a, b"}))

	parsed := parseCustomVal(&CustomVal{RuleTypeID: TypeDate, Value: "2024-03-01"})
	date, ok := parsed.(time.Time)
	assert.True(t, ok)
	assert.Equal(t, 2024, date.Year())
}
