package rules

// ValidationResult is the outcome of structural rule validation.
type ValidationResult struct {
	OK     bool
	Reason string
}

func invalid(reason string) ValidationResult {
	return ValidationResult{OK: false, Reason: reason}
}

var validResult = ValidationResult{OK: true, Reason: "Success"}

// Validate checks a rule's structural and type validity against the
// registry. It runs at rule-save time only; evaluation assumes rules have
// passed it.
func Validate(rule *Rule) ValidationResult {
	first, err := LookupProperty(rule.FirstVal)
	if err != nil {
		return invalid(err.Error())
	}

	if rule.LastVal != nil {
		last, err := LookupProperty(*rule.LastVal)
		if err != nil {
			return invalid(err.Error())
		}
		if first.Type != last.Type {
			return invalid("Types don't match")
		}
		if !first.Type.Supports(rule.Action) {
			return invalid("Action is not supported on type")
		}
		return validResult
	}

	if rule.CustomVal != nil {
		if rule.CustomVal.RuleTypeID == first.Type {
			if !first.Type.Supports(rule.Action) {
				return invalid("Action is not supported on type")
			}
			return validResult
		}
		// A NUMBER literal against a date property expresses a relative
		// time window; only the two window operators may use it.
		if (rule.Action == PossInLast || rule.Action == PossInNext) &&
			rule.CustomVal.RuleTypeID == TypeNumber {
			return validResult
		}
		return invalid("Validation failed")
	}

	return invalid("No second value found")
}

// ValidateAll validates a set of rules, stopping at the first failure
func ValidateAll(ruleSet []*Rule) ValidationResult {
	for _, rule := range ruleSet {
		if result := Validate(rule); !result.OK {
			return result
		}
	}
	return validResult
}
