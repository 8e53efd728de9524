package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func customRule(action Possibility, first ValueRef, typeID TypeID, value string) *Rule {
	return &Rule{
		Action:    action,
		FirstVal:  first,
		CustomVal: &CustomVal{RuleTypeID: typeID, Value: value},
	}
}

func TestValidate_Scenarios(t *testing.T) {
	or := OperatorOr
	tests := []struct {
		name       string
		rule       *Rule
		wantOK     bool
		wantReason string
	}{
		{
			name:   "matching property operands",
			rule:   &Rule{Action: PossBefore, FirstVal: ValueRef{0, PlexAddDate}, LastVal: &ValueRef{0, PlexLastViewedAt}},
			wantOK: true,
		},
		{
			name:       "mismatched property types",
			rule:       &Rule{Action: PossEquals, FirstVal: ValueRef{0, PlexAddDate}, LastVal: &ValueRef{0, PlexViewCount}},
			wantOK:     false,
			wantReason: "Types don't match",
		},
		{
			name:       "action illegal for type",
			rule:       &Rule{Action: PossContains, FirstVal: ValueRef{0, PlexAddDate}, LastVal: &ValueRef{0, PlexLastViewedAt}},
			wantOK:     false,
			wantReason: "Action is not supported on type",
		},
		{
			name:   "custom value of matching type",
			rule:   customRule(PossBigger, ValueRef{0, PlexViewCount}, TypeNumber, "5"),
			wantOK: true,
		},
		{
			name:   "relative window escape on date property",
			rule:   customRule(PossInLast, ValueRef{0, PlexLastViewedAt}, TypeNumber, "30"),
			wantOK: true,
		},
		{
			name:   "relative window escape for upcoming dates",
			rule:   customRule(PossInNext, ValueRef{0, PlexReleaseDate}, TypeNumber, "14"),
			wantOK: true,
		},
		{
			name:       "number literal on date property without window operator",
			rule:       customRule(PossBefore, ValueRef{0, PlexAddDate}, TypeNumber, "30"),
			wantOK:     false,
			wantReason: "Validation failed",
		},
		{
			name:       "no second operand",
			rule:       &Rule{Operator: &or, Action: PossEquals, FirstVal: ValueRef{0, PlexViewCount}},
			wantOK:     false,
			wantReason: "No second value found",
		},
		{
			name:   "unknown application",
			rule:   customRule(PossEquals, ValueRef{42, 0}, TypeNumber, "1"),
			wantOK: false,
		},
		{
			name:   "unknown property",
			rule:   customRule(PossEquals, ValueRef{0, 999}, TypeNumber, "1"),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.rule)
			assert.Equal(t, tt.wantOK, result.OK)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, result.Reason)
			}
		})
	}
}

func TestValidateAll_StopsAtFirstFailure(t *testing.T) {
	bad := customRule(PossBefore, ValueRef{0, PlexAddDate}, TypeNumber, "30")
	good := customRule(PossBigger, ValueRef{0, PlexViewCount}, TypeNumber, "5")

	result := ValidateAll([]*Rule{good, bad, good})
	assert.False(t, result.OK)
	assert.Equal(t, "Validation failed", result.Reason)

	result = ValidateAll([]*Rule{good, good})
	assert.True(t, result.OK)
}
