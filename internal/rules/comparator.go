package rules

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/services/plex"
)

// PropertyGetter resolves a property of one application for a library item.
// Implementations fail softly: an unresolvable value is returned as nil with
// no error, upstream failures are logged and also surface as nil.
type PropertyGetter interface {
	Get(ctx context.Context, propertyID int, item plex.LibraryItem, group *models.RuleGroup) (any, error)
}

// ExclusionLister provides the exclusions applying to a rule group
// (scoped unioned with global).
type ExclusionLister interface {
	GetExclusionsForGroup(ruleGroupID uint64) ([]*models.Exclusion, error)
}

// RuleStats carries per-rule diagnostic values collected in test mode.
type RuleStats struct {
	Section     int    `json:"section"`
	Action      string `json:"action"`
	FirstValue  any    `json:"firstValue"`
	SecondValue any    `json:"secondValue"`
	Result      bool   `json:"result"`
}

// ItemStats is the per-item diagnostic result in test mode.
type ItemStats struct {
	PlexID   string      `json:"plexId"`
	Matched  bool        `json:"matched"`
	Excluded bool        `json:"excluded"`
	Rules    []RuleStats `json:"rules,omitempty"`
}

// Result is the outcome of evaluating a rule group against a set of items.
type Result struct {
	Matched  []plex.LibraryItem
	Excluded int
	Stats    []ItemStats
}

// Comparator evaluates a rule group's boolean expression against resolved
// property sets. Given identical upstream state it is a pure function of
// (group, item).
type Comparator struct {
	getters    map[AppID]PropertyGetter
	exclusions ExclusionLister
	logger     *logrus.Logger
	now        func() time.Time
}

// NewComparator creates an evaluation engine over the given resolvers
func NewComparator(getters map[AppID]PropertyGetter, exclusions ExclusionLister, logger *logrus.Logger) *Comparator {
	return &Comparator{
		getters:    getters,
		exclusions: exclusions,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate runs the group's rules against every item. testMode additionally
// collects per-rule resolved values without changing match semantics.
func (c *Comparator) Evaluate(ctx context.Context, group *models.RuleGroup, ruleSet []*Rule, items []plex.LibraryItem, testMode bool) (*Result, error) {
	excluded, err := c.excludedIDs(group)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, item := range items {
		if c.isExcluded(item, excluded) {
			result.Excluded++
			if testMode {
				result.Stats = append(result.Stats, ItemStats{PlexID: item.RatingKey, Excluded: true})
			}
			continue
		}

		stats := ItemStats{PlexID: item.RatingKey}
		matched := true
		if group.UseRules {
			matched = c.evaluateItem(ctx, group, ruleSet, item, testMode, &stats)
		}
		stats.Matched = matched

		if matched {
			result.Matched = append(result.Matched, item)
		}
		if testMode {
			result.Stats = append(result.Stats, stats)
		}
	}
	return result, nil
}

// excludedIDs collects the item ids and fan-out parents the group must skip
func (c *Comparator) excludedIDs(group *models.RuleGroup) (map[string]struct{}, error) {
	exclusions, err := c.exclusions.GetExclusionsForGroup(group.ID)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(exclusions))
	for _, exclusion := range exclusions {
		ids[exclusion.PlexID] = struct{}{}
		if exclusion.Parent != "" {
			ids[exclusion.Parent] = struct{}{}
		}
	}
	return ids, nil
}

// isExcluded checks the item and its ancestors against the exclusion set
func (c *Comparator) isExcluded(item plex.LibraryItem, excluded map[string]struct{}) bool {
	if _, ok := excluded[item.RatingKey]; ok {
		return true
	}
	if item.ParentRatingKey != "" {
		if _, ok := excluded[item.ParentRatingKey]; ok {
			return true
		}
	}
	if item.GrandparentRatingKey != "" {
		if _, ok := excluded[item.GrandparentRatingKey]; ok {
			return true
		}
	}
	return false
}

// evaluateItem combines section results with OR; rules inside a section are
// chained left to right with each rule's own operator.
func (c *Comparator) evaluateItem(ctx context.Context, group *models.RuleGroup, ruleSet []*Rule, item plex.LibraryItem, testMode bool, stats *ItemStats) bool {
	sections := groupBySection(ruleSet)

	itemMatched := false
	for _, section := range sections {
		sectionResult := c.evaluateSection(ctx, group, section, item, testMode, stats)
		if sectionResult {
			itemMatched = true
			if !testMode {
				break
			}
		}
	}
	return itemMatched
}

func (c *Comparator) evaluateSection(ctx context.Context, group *models.RuleGroup, section []*Rule, item plex.LibraryItem, testMode bool, stats *ItemStats) bool {
	running := false
	for i, rule := range section {
		// An AND with a false running value can never recover within the
		// section; skip the remaining upstream calls unless diagnostics
		// are wanted.
		if i > 0 && rule.Operator != nil && *rule.Operator == OperatorAnd && !running && !testMode {
			return false
		}

		ruleResult := c.evaluateRule(ctx, group, rule, item, testMode, stats)

		if i == 0 || rule.Operator == nil {
			running = ruleResult
			continue
		}
		switch *rule.Operator {
		case OperatorAnd:
			running = running && ruleResult
		case OperatorOr:
			running = running || ruleResult
		}
	}
	return running
}

// evaluateRule resolves both operands and applies the comparison. A nil
// resolved value makes the rule false, never true.
func (c *Comparator) evaluateRule(ctx context.Context, group *models.RuleGroup, rule *Rule, item plex.LibraryItem, testMode bool, stats *ItemStats) bool {
	prop, err := LookupProperty(rule.FirstVal)
	if err != nil {
		c.logger.WithError(err).Warn("Rule references an unknown property, treating as non-matching")
		return false
	}

	first := c.resolve(ctx, rule.FirstVal, item, group)

	var second any
	if rule.LastVal != nil {
		second = c.resolve(ctx, *rule.LastVal, item, group)
	} else if rule.CustomVal != nil {
		second = parseCustomVal(rule.CustomVal)
	}

	result := compare(rule.Action, prop.Type, first, second, c.now())

	if testMode {
		stats.Rules = append(stats.Rules, RuleStats{
			Section:     rule.Section,
			Action:      rule.Action.String(),
			FirstValue:  first,
			SecondValue: second,
			Result:      result,
		})
	}
	return result
}

// resolve dispatches to the application's resolver. A missing resolver
// (misconfigured or removed application) resolves to nil.
func (c *Comparator) resolve(ctx context.Context, ref ValueRef, item plex.LibraryItem, group *models.RuleGroup) any {
	getter, ok := c.getters[ref.App()]
	if !ok {
		c.logger.WithField("application", ref.App().String()).Debug("No resolver for application, value unknown")
		return nil
	}

	value, err := getter.Get(ctx, ref.Property(), item, group)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"application": ref.App().String(),
			"property":    ref.Property(),
			"item":        item.RatingKey,
		}).Warn("Property resolution failed, value unknown")
		return nil
	}
	return value
}

// groupBySection splits rules into sections preserving rule order
func groupBySection(ruleSet []*Rule) [][]*Rule {
	var sections [][]*Rule
	index := map[int]int{}
	for _, rule := range ruleSet {
		i, ok := index[rule.Section]
		if !ok {
			i = len(sections)
			index[rule.Section] = i
			sections = append(sections, nil)
		}
		sections[i] = append(sections[i], rule)
	}
	return sections
}

// parseCustomVal converts a literal operand to its typed value
func parseCustomVal(custom *CustomVal) any {
	switch custom.RuleTypeID {
	case TypeNumber:
		if n, err := strconv.ParseFloat(custom.Value, 64); err == nil {
			return n
		}
		return nil
	case TypeDate:
		if t, err := time.Parse(time.RFC3339, custom.Value); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", custom.Value); err == nil {
			return t
		}
		return nil
	case TypeBool:
		return custom.Value == "true" || custom.Value == "1"
	case TypeText:
		return custom.Value
	case TypeTextList:
		parts := strings.Split(custom.Value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return nil
}

// compare applies one comparison operator using the property type's
// semantics. Either operand being nil yields false.
func compare(action Possibility, typ TypeID, first, second any, now time.Time) bool {
	if first == nil || second == nil {
		return false
	}

	switch action {
	case PossBigger:
		a, aok := asNumber(first)
		b, bok := asNumber(second)
		return aok && bok && a > b
	case PossSmaller:
		a, aok := asNumber(first)
		b, bok := asNumber(second)
		return aok && bok && a < b
	case PossEquals:
		return equals(typ, first, second)
	case PossNotEquals:
		return !equals(typ, first, second)
	case PossBefore:
		a, aok := asDate(first)
		b, bok := asDate(second)
		return aok && bok && a.Before(b)
	case PossAfter:
		a, aok := asDate(first)
		b, bok := asDate(second)
		return aok && bok && a.After(b)
	case PossInLast:
		a, aok := asDate(first)
		if !aok {
			return false
		}
		if threshold, ok := asDate(second); ok {
			return !a.Before(threshold) && !a.After(now)
		}
		days, ok := asNumber(second)
		if !ok {
			return false
		}
		window := now.Add(-time.Duration(days*24) * time.Hour)
		return !a.Before(window) && !a.After(now)
	case PossInNext:
		a, aok := asDate(first)
		if !aok {
			return false
		}
		if threshold, ok := asDate(second); ok {
			return !a.After(threshold) && !a.Before(now)
		}
		days, ok := asNumber(second)
		if !ok {
			return false
		}
		window := now.Add(time.Duration(days*24) * time.Hour)
		return !a.After(window) && !a.Before(now)
	case PossContains:
		return listContains(first, second, false)
	case PossNotContains:
		return !listContains(first, second, false)
	case PossContainsPartial:
		return containsPartial(first, second)
	case PossNotContainsPartial:
		return !containsPartial(first, second)
	}
	return false
}

func equals(typ TypeID, first, second any) bool {
	switch typ {
	case TypeNumber:
		a, aok := asNumber(first)
		b, bok := asNumber(second)
		return aok && bok && a == b
	case TypeDate:
		a, aok := asDate(first)
		b, bok := asDate(second)
		return aok && bok && a.Equal(b)
	case TypeBool:
		a, aok := asBool(first)
		b, bok := asBool(second)
		return aok && bok && a == b
	default:
		a, aok := asText(first)
		b, bok := asText(second)
		return aok && bok && strings.EqualFold(a, b)
	}
}

// listContains checks exact (or substring, when partial) membership of the
// second operand's entries in the first operand's list.
func listContains(first, second any, partial bool) bool {
	list, ok := asList(first)
	if !ok {
		return false
	}
	needles, ok := asList(second)
	if !ok {
		return false
	}

	for _, needle := range needles {
		needle = strings.ToLower(needle)
		for _, entry := range list {
			entry = strings.ToLower(entry)
			if entry == needle || (partial && needle != "" && strings.Contains(entry, needle)) {
				return true
			}
		}
	}
	return false
}

func containsPartial(first, second any) bool {
	// text property: plain substring match
	if text, ok := first.(string); ok {
		needle, ok := asText(second)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(text), strings.ToLower(needle))
	}
	return listContains(first, second, true)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asDate(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok && !t.IsZero()
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asText(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case string:
		return []string{l}, true
	}
	return nil, false
}
