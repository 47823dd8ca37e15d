package stateengine

import (
	"fmt"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

// ValidateVariables checks state against vars and reports warnings,
// missing required inputs, and state keys undefined by any variable.
// Validation is advisory only: it never mutates state and never rejects a
// write.
func ValidateVariables(state domain.JSON, vars domain.VariableSet) domain.ValidationResult {
	result := domain.ValidationResult{
		Warnings:        []string{},
		MissingRequired: []string{},
		UndefinedKeys:   []string{},
	}

	defined := make(map[string]domain.VariableDefinition, len(vars.Inputs)+len(vars.Outputs))

	for _, v := range vars.Inputs {
		defined[v.Name] = v
	}

	for _, v := range vars.Outputs {
		defined[v.Name] = v
	}

	for _, v := range vars.Inputs {
		value, present := state[v.Name]

		if !present {
			if v.Required {
				result.MissingRequired = append(result.MissingRequired, v.Name)
			}

			continue
		}

		if !matchesType(value, v.Type) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: expected %s, got %T", v.Name, v.Type, value))
		}
	}

	for k := range state {
		if _, ok := defined[k]; !ok {
			result.UndefinedKeys = append(result.UndefinedKeys, k)
		}
	}

	return result
}

// matchesType is a predicate on the JSON value shape, not a schema
// enforcement — type mismatches are reported as warnings, never rejected.
func matchesType(value interface{}, t domain.VariableType) bool {
	switch t {
	case domain.VarEnum:
		return true // enum accepts anything

	case domain.VarString, domain.VarColor:
		_, ok := value.(string)

		return ok

	case domain.VarNumber, domain.VarRange:
		_, isFloat := value.(float64)
		_, isBool := value.(bool) // numbers exclude booleans

		return isFloat && !isBool

	case domain.VarBoolean:
		_, ok := value.(bool)

		return ok

	case domain.VarArray:
		_, ok := value.([]interface{})

		return ok

	case domain.VarVector2:
		return hasNumericKeys(value, []string{"x", "y"}, nil)

	case domain.VarVector3:
		return hasNumericKeys(value, []string{"x", "y"}, []string{"z"})

	case domain.VarObject:
		_, ok := value.(map[string]interface{})

		return ok

	default:
		return true
	}
}

// hasNumericKeys checks that every key in required is present and numeric,
// and that every key in optional, if present, is numeric.
func hasNumericKeys(value interface{}, required, optional []string) bool {
	m, ok := value.(map[string]interface{})
	if !ok {
		return false
	}

	for _, k := range required {
		v, present := m[k]
		if !present {
			return false
		}

		if _, isNum := v.(float64); !isNum {
			return false
		}
	}

	for _, k := range optional {
		if v, present := m[k]; present {
			if _, isNum := v.(float64); !isNum {
				return false
			}
		}
	}

	return true
}
