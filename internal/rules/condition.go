// internal/rules/condition.go
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

/*
 * Condition model and validator.
 *
 * A wire condition (field, operator, raw value) is decoded into a typed
 * Condition whose Value is one of five variants. Decoding is driven by the
 * operator's shape and the field's value type; there is no coercion across
 * families, so "500" is not a number and 1 is not a string.
 *
 * Validation order:
 *   1. field exists in the domain registry
 *   2. operator is declared for the field
 *   3. value decodes into the operator's shape
 *   4. generic shape constraints (min <= max, non-empty sets, set size cap)
 *   5. domain ConditionSchema (options, numeric bounds)
 *
 * dependsOn chains on location fields are deliberately not checked here.
 */

// Value is the decoded value of a condition. Implemented only by the
// variants below.
type Value interface {
	isValue()
}

// NoValue is carried by existence and boolean operators.
type NoValue struct{}

// NumberValue is a numeric scalar.
type NumberValue float64

// StringValue is a text scalar (enum literal, location code, string).
type StringValue string

// RangeValue is the inclusive BETWEEN range.
type RangeValue struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SetValue is the non-empty list for IN/NOT_IN/HAS_* operators.
type SetValue []string

func (NoValue) isValue()     {}
func (NumberValue) isValue() {}
func (StringValue) isValue() {}
func (RangeValue) isValue()  {}
func (SetValue) isValue()    {}

// Condition is a validated, decoded condition.
type Condition struct {
	Field     string
	Operator  Operator
	ValueType ValueType
	Value     Value
}

// ConditionSchema applies domain-specific checks to a condition that already
// passed operator and shape validation. Implementations should be comparable
// values so identical domain registrations can be detected.
type ConditionSchema interface {
	CheckCondition(field FieldConfig, cond Condition) error
}

// DefaultSchema checks numeric values against field bounds and, when
// RequireKnownOptions is set, text literals against field options.
type DefaultSchema struct {
	RequireKnownOptions bool
}

// CheckCondition implements ConditionSchema.
func (s DefaultSchema) CheckCondition(field FieldConfig, cond Condition) error {
	switch v := cond.Value.(type) {
	case NumberValue:
		return checkBounds(field, float64(v))
	case RangeValue:
		if err := checkBounds(field, v.Min); err != nil {
			return err
		}
		return checkBounds(field, v.Max)
	case StringValue:
		if s.RequireKnownOptions {
			return checkOption(field, string(v))
		}
	case SetValue:
		if s.RequireKnownOptions {
			for _, elem := range v {
				if err := checkOption(field, elem); err != nil {
					return err
				}
			}
		}
	case NoValue:
	}
	return nil
}

func checkBounds(field FieldConfig, n float64) error {
	if field.Min != nil && n < *field.Min {
		return fmt.Errorf("value %v below minimum %v", n, *field.Min)
	}
	if field.Max != nil && n > *field.Max {
		return fmt.Errorf("value %v above maximum %v", n, *field.Max)
	}
	return nil
}

func checkOption(field FieldConfig, s string) error {
	if len(field.Options) == 0 {
		return nil
	}
	for _, opt := range field.Options {
		if opt == s {
			return nil
		}
	}
	return fmt.Errorf("value %q is not one of %v", s, field.Options)
}

// ValidateCondition decodes and validates a wire condition against a field
// registry and optional schema. The returned error is a *ConditionError
// without node information.
func ValidateCondition(registry FieldRegistry, schema ConditionSchema, raw types.Condition) (Condition, error) {
	cond, cerr := checkCondition(registry, schema, "", 0, raw)
	if cerr != nil {
		return Condition{}, cerr
	}
	return cond, nil
}

// checkCondition is the node-aware form used by the tree validator.
func checkCondition(registry FieldRegistry, schema ConditionSchema, nodeID string, index int, raw types.Condition) (Condition, *ConditionError) {
	fail := func(format string, args ...any) (Condition, *ConditionError) {
		return Condition{}, &ConditionError{
			NodeID:   nodeID,
			Index:    index,
			Field:    raw.Field,
			Operator: Operator(raw.Operator),
			Value:    raw.Value,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	field, ok := registry[raw.Field]
	if !ok {
		return fail("unknown field %q", raw.Field)
	}

	op := Operator(raw.Operator)
	if !field.Allows(op) {
		return fail("operator %q not allowed for field %q", raw.Operator, raw.Field)
	}

	value, err := decodeValue(field.ValueType, op, raw.Value)
	if err != nil {
		return fail("%v", err)
	}

	cond := Condition{
		Field:     raw.Field,
		Operator:  op,
		ValueType: field.ValueType,
		Value:     value,
	}

	if schema != nil {
		if err := schema.CheckCondition(field, cond); err != nil {
			return fail("%v", err)
		}
	}

	return cond, nil
}

// decodeValue decodes raw into the variant required by op's shape.
func decodeValue(vt ValueType, op Operator, raw json.RawMessage) (Value, error) {
	switch ShapeOf(op) {
	case ShapeNone:
		if !isAbsent(raw) {
			return nil, fmt.Errorf("operator %s takes no value", op)
		}
		return NoValue{}, nil

	case ShapeScalar:
		if isAbsent(raw) {
			return nil, fmt.Errorf("operator %s requires a value", op)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("malformed value: %v", err)
		}
		if vt == ValueNumeric {
			n, ok := decoded.(float64)
			if !ok {
				return nil, fmt.Errorf("operator %s on %s field requires a number", op, vt)
			}
			return NumberValue(n), nil
		}
		s, ok := decoded.(string)
		if !ok {
			return nil, fmt.Errorf("operator %s on %s field requires a string", op, vt)
		}
		if s == "" {
			return nil, fmt.Errorf("operator %s requires a non-empty string", op)
		}
		return StringValue(s), nil

	case ShapeRange:
		if isAbsent(raw) {
			return nil, fmt.Errorf("operator %s requires {min, max}", op)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("operator %s requires {min, max}", op)
		}
		lo, okMin := fields["min"].(float64)
		hi, okMax := fields["max"].(float64)
		if !okMin || !okMax || len(fields) != 2 {
			return nil, fmt.Errorf("operator %s requires numeric min and max only", op)
		}
		if lo > hi {
			return nil, fmt.Errorf("range min %v greater than max %v", lo, hi)
		}
		return RangeValue{Min: lo, Max: hi}, nil

	case ShapeSet:
		if isAbsent(raw) {
			return nil, fmt.Errorf("operator %s requires a list of values", op)
		}
		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("operator %s requires a list of values", op)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("operator %s requires at least one value", op)
		}
		if len(items) > types.MaxSetValues {
			return nil, fmt.Errorf("operator %s has %d values, limit is %d", op, len(items), types.MaxSetValues)
		}
		set := make(SetValue, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("value[%d] must be a non-empty string", i)
			}
			set = append(set, s)
		}
		return set, nil

	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
