package rules

import (
	"encoding/json"
	"fmt"
)

// AppID identifies an external data source properties are resolved from.
type AppID int

const (
	AppPlex      AppID = 0
	AppRadarr    AppID = 1
	AppSonarr    AppID = 2
	AppOverseerr AppID = 3
	AppTautulli  AppID = 4
)

func (a AppID) String() string {
	switch a {
	case AppPlex:
		return "Plex"
	case AppRadarr:
		return "Radarr"
	case AppSonarr:
		return "Sonarr"
	case AppOverseerr:
		return "Overseerr"
	case AppTautulli:
		return "Tautulli"
	}
	return fmt.Sprintf("AppID(%d)", int(a))
}

// Possibility is a comparison operator a rule can apply.
type Possibility int

const (
	PossBigger Possibility = iota
	PossSmaller
	PossEquals
	PossNotEquals
	PossContains
	PossBefore
	PossAfter
	PossInLast
	PossInNext
	PossNotContains
	PossContainsPartial
	PossNotContainsPartial
)

func (p Possibility) String() string {
	switch p {
	case PossBigger:
		return "bigger"
	case PossSmaller:
		return "smaller"
	case PossEquals:
		return "equals"
	case PossNotEquals:
		return "not equals"
	case PossContains:
		return "contains"
	case PossBefore:
		return "before"
	case PossAfter:
		return "after"
	case PossInLast:
		return "in last"
	case PossInNext:
		return "in next"
	case PossNotContains:
		return "not contains"
	case PossContainsPartial:
		return "contains (partial)"
	case PossNotContainsPartial:
		return "not contains (partial)"
	}
	return fmt.Sprintf("Possibility(%d)", int(p))
}

// TypeID identifies a value type. The ids are part of the persisted rule
// format; NUMBER must stay 0, it doubles as the "relative time window"
// escape for IN_LAST / IN_NEXT custom values.
type TypeID int

const (
	TypeNumber   TypeID = 0
	TypeDate     TypeID = 1
	TypeText     TypeID = 2
	TypeBool     TypeID = 3
	TypeTextList TypeID = 4
)

func (t TypeID) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeDate:
		return "date"
	case TypeText:
		return "text"
	case TypeBool:
		return "boolean"
	case TypeTextList:
		return "text list"
	}
	return fmt.Sprintf("TypeID(%d)", int(t))
}

// Possibilities returns the comparison operators legal for this type
func (t TypeID) Possibilities() []Possibility {
	switch t {
	case TypeNumber:
		return []Possibility{PossBigger, PossSmaller, PossEquals, PossNotEquals}
	case TypeDate:
		return []Possibility{PossEquals, PossNotEquals, PossBefore, PossAfter, PossInLast, PossInNext}
	case TypeText:
		return []Possibility{PossEquals, PossNotEquals, PossContainsPartial, PossNotContainsPartial}
	case TypeBool:
		return []Possibility{PossEquals, PossNotEquals}
	case TypeTextList:
		return []Possibility{PossContains, PossNotContains, PossContainsPartial, PossNotContainsPartial}
	}
	return nil
}

// Supports reports whether the operator is legal for this type
func (t TypeID) Supports(p Possibility) bool {
	for _, poss := range t.Possibilities() {
		if poss == p {
			return true
		}
	}
	return false
}

// Operator chains a rule to the previous rule within its section.
type Operator int

const (
	OperatorAnd Operator = 0
	OperatorOr  Operator = 1
)

// ValueRef points at a property of an application: (applicationId, propertyId).
type ValueRef [2]int

// App returns the application id of the reference
func (v ValueRef) App() AppID { return AppID(v[0]) }

// Property returns the property id of the reference
func (v ValueRef) Property() int { return v[1] }

// CustomVal is a literal comparison operand carried inside a rule.
type CustomVal struct {
	RuleTypeID TypeID `json:"ruleTypeId"`
	Value      string `json:"value"`
}

// Rule is one boolean predicate of a rule group's expression.
type Rule struct {
	// Operator links the rule to the previous one in its section; nil for
	// the first rule of a section.
	Operator  *Operator   `json:"operator"`
	Action    Possibility `json:"action"`
	Section   int         `json:"section"`
	FirstVal  ValueRef    `json:"firstVal"`
	LastVal   *ValueRef   `json:"lastVal,omitempty"`
	CustomVal *CustomVal  `json:"customVal,omitempty"`
}

// ParseRule rehydrates a persisted rule JSON document
func ParseRule(ruleJSON string) (*Rule, error) {
	var rule Rule
	if err := json.Unmarshal([]byte(ruleJSON), &rule); err != nil {
		return nil, fmt.Errorf("failed to parse rule: %w", err)
	}
	return &rule, nil
}

// Encode serializes a rule for persistence
func (r *Rule) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule: %w", err)
	}
	return string(data), nil
}
