// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

/*
 * Context value coercion.
 *
 * Context values come from whatever the caller assembled: Go literals, JSON
 * decoded with or without UseNumber, or form strings. Coerce maps them onto
 * the representation the compare functions expect for the field's value
 * type.
 *
 * Missing vs coercion failure: a nil value reports IsNull and never reaches
 * coercion. A present value that cannot be coerced returns ok=false. Both
 * make the condition false; only the existence operators distinguish them.
 *
 * Type modes:
 *   - numeric: every float/int/uint kind, json.Number, numeric strings (trimmed)
 *   - boolean: strict, bool only (avoids "true" vs 1 ambiguity)
 *   - enum/location/string: strings and numbers, NFC-normalized
 *   - relation: []string, []any of scalars, or a single string (blank is empty)
 */

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // float64, bool, string or []string (valid only if !IsNull)
	IsNull bool // true if input was nil
}

// Coerce converts value to the representation used for vt.
// ok is false when a present value cannot be represented as vt.
func Coerce(value any, vt ValueType) (result CoercionResult, ok bool) {
	if value == nil {
		return CoercionResult{IsNull: true}, true
	}

	switch vt {
	case ValueNumeric:
		n, ok := coerceNumeric(value)
		return CoercionResult{Value: n}, ok
	case ValueBoolean:
		b, ok := value.(bool)
		return CoercionResult{Value: b}, ok
	case ValueEnum, ValueLocation, ValueString:
		s, ok := coerceText(value)
		return CoercionResult{Value: s}, ok
	case ValueRelation:
		list, ok := coerceRelation(value)
		return CoercionResult{Value: list}, ok
	default:
		return CoercionResult{}, false
	}
}

// coerceNumeric accepts the numeric kinds JSON decoding and Go callers produce.
// Whitespace-only strings are not numbers, and neither are NaN or infinities.
func coerceNumeric(value any) (float64, bool) {
	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}

// coerceText converts scalars to normalized strings. Booleans are rejected so
// a boolean context value never equals an enum literal "true".
func coerceText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return normalizeText(v), true
	case json.Number:
		return v.String(), true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	default:
		return "", false
	}
}

// coerceRelation converts list-like values to normalized string slices.
func coerceRelation(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = normalizeText(s)
		}
		return out, true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if elem == nil {
				continue
			}
			s, ok := coerceText(elem)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// A blank scalar is an empty relation, not a one-element list.
		if strings.TrimSpace(v) == "" {
			return []string{}, true
		}
		return []string{normalizeText(v)}, true
	default:
		return nil, false
	}
}

// isEmpty reports whether a coerced value counts as empty for EXISTS.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// normalizeText puts text into NFC so composed and decomposed forms of the
// same city or group name compare equal.
func normalizeText(s string) string {
	return norm.NFC.String(s)
}
