// internal/rules/fields.go
package rules

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

/*
 * Field registry.
 *
 * A domain describes the attributes a tree may branch on as a map of
 * field name -> FieldConfig. The registry is validated once at domain
 * registration; condition validation and evaluation then trust it.
 *
 * Type-specific metadata:
 *   - Options: allowed literals for enum/location/string fields
 *   - Min/Max: inclusive numeric bounds for numeric fields
 *   - DependsOn: location fields that must be resolved first (editor hint,
 *     never enforced by the engine)
 */

// FieldConfig describes one evaluable attribute of a domain.
type FieldConfig struct {
	Label       string     `json:"label" yaml:"label"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	ValueType   ValueType  `json:"valueType" yaml:"value_type"`
	Operators   []Operator `json:"operators" yaml:"operators"`
	Options     []string   `json:"options,omitempty" yaml:"options,omitempty"`
	Min         *float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64   `json:"max,omitempty" yaml:"max,omitempty"`
	DependsOn   []string   `json:"dependsOn,omitempty" yaml:"depends_on,omitempty"`
}

// Allows reports whether op is declared for the field.
func (f FieldConfig) Allows(op Operator) bool {
	for _, candidate := range f.Operators {
		if candidate == op {
			return true
		}
	}
	return false
}

// FieldRegistry maps field names to their configuration.
type FieldRegistry map[string]FieldConfig

// Names returns field names in sorted order.
func (r FieldRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate enforces the registry invariants. All violations are reported.
func (r FieldRegistry) Validate() error {
	var errs []error
	for _, name := range r.Names() {
		for _, problem := range r.fieldProblems(name, r[name]) {
			errs = append(errs, fmt.Errorf("%w: field %q: %s", types.ErrInvalidFieldConfig, name, problem))
		}
	}
	return combine(errs)
}

func (r FieldRegistry) fieldProblems(name string, f FieldConfig) []string {
	var problems []string
	if name == "" {
		problems = append(problems, "empty field name")
	}
	if _, ok := operatorFamilies[f.ValueType]; !ok {
		return append(problems, fmt.Sprintf("unknown value type %q", f.ValueType))
	}
	if len(f.Operators) == 0 {
		problems = append(problems, "no operators declared")
	}
	seen := make(map[Operator]bool, len(f.Operators))
	for _, op := range f.Operators {
		if seen[op] {
			problems = append(problems, fmt.Sprintf("operator %s declared twice", op))
		}
		seen[op] = true
		if !InFamily(f.ValueType, op) {
			problems = append(problems, fmt.Sprintf("operator %s is not legal for %s fields", op, f.ValueType))
		}
	}
	if (f.Min != nil || f.Max != nil) && f.ValueType != ValueNumeric {
		problems = append(problems, "min/max only apply to numeric fields")
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		problems = append(problems, fmt.Sprintf("min %v greater than max %v", *f.Min, *f.Max))
	}
	if len(f.Options) > 0 && f.ValueType != ValueEnum && f.ValueType != ValueLocation && f.ValueType != ValueString && f.ValueType != ValueRelation {
		problems = append(problems, "options only apply to enum, location, string and relation fields")
	}
	if len(f.DependsOn) > 0 {
		if f.ValueType != ValueLocation {
			problems = append(problems, "dependsOn only applies to location fields")
		}
		for _, dep := range f.DependsOn {
			depField, ok := r[dep]
			switch {
			case dep == name:
				problems = append(problems, "field depends on itself")
			case !ok:
				problems = append(problems, fmt.Sprintf("dependsOn references unknown field %q", dep))
			case depField.ValueType != ValueLocation:
				problems = append(problems, fmt.Sprintf("dependsOn field %q is not a location field", dep))
			}
		}
	}
	return problems
}

// CreateEmptyCondition seeds a new condition node for the editor: the field's
// first declared operator with a placeholder value of the matching shape.
// The placeholder is not guaranteed to pass validation.
func CreateEmptyCondition(field string, registry FieldRegistry) (types.Condition, error) {
	cfg, ok := registry[field]
	if !ok {
		return types.Condition{}, fmt.Errorf("%w: unknown field %q", types.ErrInvalidCondition, field)
	}

	ops := cfg.Operators
	if len(ops) == 0 {
		ops = operatorFamilies[cfg.ValueType]
	}
	if len(ops) == 0 {
		return types.Condition{}, fmt.Errorf("%w: field %q has no operators", types.ErrInvalidFieldConfig, field)
	}
	op := ops[0]

	var placeholder any
	switch ShapeOf(op) {
	case ShapeNone:
		return types.Condition{Field: field, Operator: string(op)}, nil
	case ShapeScalar:
		if cfg.ValueType == ValueNumeric {
			placeholder = 0
		} else {
			placeholder = ""
		}
	case ShapeRange:
		placeholder = map[string]float64{"min": 0, "max": 0}
	case ShapeSet:
		placeholder = []string{}
	}

	raw, err := json.Marshal(placeholder)
	if err != nil {
		return types.Condition{}, err
	}
	return types.Condition{Field: field, Operator: string(op), Value: raw}, nil
}
