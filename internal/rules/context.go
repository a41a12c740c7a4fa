// internal/rules/context.go
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
)

/*
 * Evaluation context.
 *
 * A flat mapping from field name to runtime value, assembled by the caller
 * per evaluation (cart totals, customer attributes, shipping address). Keys
 * correspond to the domain's field names; unknown keys are ignored.
 *
 * Lookup distinguishes an absent key from a present value; a JSON null is
 * treated as absent.
 */

// Context is the runtime mapping of field name to value.
type Context map[string]any

// Lookup returns the value for field and whether it is present and non-null.
func (c Context) Lookup(field string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ParseContext decodes a JSON object into a Context. Numbers are kept as
// json.Number so large integer ids and counts do not lose precision.
func ParseContext(data json.RawMessage) (Context, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Context{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var ctx Context
	if err := dec.Decode(&ctx); err != nil {
		return nil, fmt.Errorf("invalid evaluation context: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid evaluation context: trailing data")
	}
	return ctx, nil
}
