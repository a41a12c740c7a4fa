// internal/rules/operators.go
package rules

import (
	"strings"
)

/*
 * Operator enumeration, families and comparison logic.
 *
 * The operator set is closed. Each value type owns a family of legal
 * operators, and each operator has exactly one value shape:
 *
 *   shape  | operators
 *   -------+------------------------------------------------
 *   none   | EXISTS NOT_EXISTS IS_TRUE IS_FALSE
 *   scalar | EQ NEQ GT GTE LT LTE CONTAINS STARTS_WITH ENDS_WITH
 *   range  | BETWEEN
 *   set    | IN NOT_IN HAS_ANY HAS_ALL HAS_NONE
 *
 * Compare functions receive context values already coerced by coercion.go,
 * so they only ever see float64, bool, string or []string.
 */

// Operator is a comparison operator as it appears in tree JSON.
type Operator string

const (
	OpEq         Operator = "EQ"
	OpNeq        Operator = "NEQ"
	OpGt         Operator = "GT"
	OpGte        Operator = "GTE"
	OpLt         Operator = "LT"
	OpLte        Operator = "LTE"
	OpBetween    Operator = "BETWEEN"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT_IN"
	OpHasAny     Operator = "HAS_ANY"
	OpHasAll     Operator = "HAS_ALL"
	OpHasNone    Operator = "HAS_NONE"
	OpExists     Operator = "EXISTS"
	OpNotExists  Operator = "NOT_EXISTS"
	OpIsTrue     Operator = "IS_TRUE"
	OpIsFalse    Operator = "IS_FALSE"
	OpContains   Operator = "CONTAINS"
	OpStartsWith Operator = "STARTS_WITH"
	OpEndsWith   Operator = "ENDS_WITH"
)

// AllOperators lists every operator in declaration order.
var AllOperators = []Operator{
	OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpBetween,
	OpIn, OpNotIn, OpHasAny, OpHasAll, OpHasNone,
	OpExists, OpNotExists, OpIsTrue, OpIsFalse,
	OpContains, OpStartsWith, OpEndsWith,
}

// ValueType determines the condition shape and operator family of a field.
type ValueType string

const (
	ValueNumeric  ValueType = "numeric"
	ValueBoolean  ValueType = "boolean"
	ValueEnum     ValueType = "enum"
	ValueRelation ValueType = "relation"
	ValueLocation ValueType = "location"
	ValueString   ValueType = "string"
)

// AllValueTypes lists every value type.
var AllValueTypes = []ValueType{
	ValueNumeric, ValueBoolean, ValueEnum, ValueRelation, ValueLocation, ValueString,
}

// operatorFamilies maps each value type to its legal operators, in the order
// CreateEmptyCondition falls back to when a field declares none.
var operatorFamilies = map[ValueType][]Operator{
	ValueNumeric:  {OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpBetween},
	ValueBoolean:  {OpIsTrue, OpIsFalse},
	ValueEnum:     {OpEq, OpNeq, OpIn, OpNotIn},
	ValueRelation: {OpHasAny, OpHasAll, OpHasNone, OpExists, OpNotExists},
	ValueLocation: {OpEq, OpNeq, OpIn, OpNotIn},
	ValueString:   {OpEq, OpNeq, OpContains, OpStartsWith, OpEndsWith, OpIn, OpNotIn},
}

// Family returns a copy of the operators legal for a value type, empty for
// unknown types.
func Family(vt ValueType) []Operator {
	ops := operatorFamilies[vt]
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

// InFamily reports whether op is legal for value type vt.
func InFamily(vt ValueType, op Operator) bool {
	for _, candidate := range operatorFamilies[vt] {
		if candidate == op {
			return true
		}
	}
	return false
}

// Shape is the value shape an operator requires.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeNone
	ShapeScalar
	ShapeRange
	ShapeSet
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeScalar:
		return "scalar"
	case ShapeRange:
		return "range"
	case ShapeSet:
		return "set"
	default:
		return "unknown"
	}
}

// ShapeOf returns the value shape required by op.
func ShapeOf(op Operator) Shape {
	switch op {
	case OpExists, OpNotExists, OpIsTrue, OpIsFalse:
		return ShapeNone
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpStartsWith, OpEndsWith:
		return ShapeScalar
	case OpBetween:
		return ShapeRange
	case OpIn, OpNotIn, OpHasAny, OpHasAll, OpHasNone:
		return ShapeSet
	default:
		return ShapeUnknown
	}
}

// compareNumber applies a scalar or range operator to a numeric context value.
func compareNumber(op Operator, actual float64, v Value) bool {
	switch val := v.(type) {
	case NumberValue:
		target := float64(val)
		switch op {
		case OpEq:
			return actual == target
		case OpNeq:
			return actual != target
		case OpGt:
			return actual > target
		case OpGte:
			return actual >= target
		case OpLt:
			return actual < target
		case OpLte:
			return actual <= target
		}
	case RangeValue:
		if op == OpBetween {
			return val.Min <= actual && actual <= val.Max
		}
	}
	return false
}

// compareText applies a scalar or set operator to a text context value.
func compareText(op Operator, actual string, v Value) bool {
	switch val := v.(type) {
	case StringValue:
		target := normalizeText(string(val))
		switch op {
		case OpEq:
			return actual == target
		case OpNeq:
			return actual != target
		case OpContains:
			return strings.Contains(actual, target)
		case OpStartsWith:
			return strings.HasPrefix(actual, target)
		case OpEndsWith:
			return strings.HasSuffix(actual, target)
		}
	case SetValue:
		switch op {
		case OpIn:
			return containsText(val, actual)
		case OpNotIn:
			return !containsText(val, actual)
		}
	}
	return false
}

// compareRelation applies a set operator to a relation context value.
func compareRelation(op Operator, actual []string, v Value) bool {
	set, ok := v.(SetValue)
	if !ok {
		return false
	}
	switch op {
	case OpHasAny:
		for _, want := range set {
			if containsText(actual, normalizeText(want)) {
				return true
			}
		}
		return false
	case OpHasAll:
		for _, want := range set {
			if !containsText(actual, normalizeText(want)) {
				return false
			}
		}
		return true
	case OpHasNone:
		for _, want := range set {
			if containsText(actual, normalizeText(want)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// containsText checks membership after normalizing the set side.
func containsText(set []string, value string) bool {
	for _, elem := range set {
		if normalizeText(elem) == value {
			return true
		}
	}
	return false
}
