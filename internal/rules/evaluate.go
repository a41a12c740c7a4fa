// internal/rules/evaluate.go
package rules

import (
	"encoding/json"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

/*
 * Tree evaluation.
 *
 * Walks a CompiledTree against a Context and returns the payload of the
 * result node reached, or a no-match Result. Pure: no I/O, no shared state,
 * no randomness. The same (tree, context) always yields the same Result.
 *
 * Evaluation flow:
 *   1. Start at the start node and follow its default edge
 *   2. Condition: evaluate, follow yes/no
 *   3. ConditionGroup: evaluate in authored order with AND/OR short-circuit,
 *      follow yes/no
 *   4. Result: return its payload
 *
 * Totality: the walk is bounded by the node count. Compilation already
 * rejects cycles, so the bound only matters for hand-built arenas; hitting
 * it, or a missing branch target, yields no match rather than a panic.
 *
 * Missing fields: a condition on an absent or null context value is false.
 * NOT_EXISTS is the one operator that is true on absence, since absence is
 * what it tests for.
 */

// Step records one node visited during evaluation.
type Step struct {
	NodeID  string         `json:"nodeId"`
	Kind    types.NodeKind `json:"kind"`
	Outcome types.EdgeTag  `json:"outcome,omitempty"` // empty for the result node
}

// Result is the outcome of evaluating a tree. Matched=false is the no-match
// sentinel; NodeID and Payload are then empty.
type Result struct {
	Matched bool            `json:"matched"`
	NodeID  string          `json:"nodeId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Trace   []Step          `json:"trace"`
}

// Evaluate walks tree against ctx.
func Evaluate(tree *CompiledTree, ctx Context) Result {
	var result Result
	if tree == nil || len(tree.nodes) == 0 {
		return result
	}

	current := tree.start
	for steps := 0; steps <= len(tree.nodes); steps++ {
		if current < 0 || current >= len(tree.nodes) {
			return result
		}
		node := &tree.nodes[current]

		switch node.kind {
		case types.NodeStart:
			result.Trace = append(result.Trace, Step{NodeID: node.id, Kind: node.kind, Outcome: types.TagDefault})
			current = node.next

		case types.NodeCondition:
			matched := len(node.conditions) == 1 && EvaluateCondition(node.conditions[0], ctx)
			current = branch(&result, node, matched)

		case types.NodeConditionGroup:
			matched := evaluateGroup(node.conditions, node.combinator, ctx)
			current = branch(&result, node, matched)

		case types.NodeResult:
			result.Trace = append(result.Trace, Step{NodeID: node.id, Kind: node.kind})
			result.Matched = true
			result.NodeID = node.id
			if len(node.payload) > 0 {
				result.Payload = append(json.RawMessage(nil), node.payload...)
			}
			return result

		default:
			return result
		}
	}
	return result
}

// branch records the decision and returns the next node index.
func branch(result *Result, node *compiledNode, matched bool) int {
	if matched {
		result.Trace = append(result.Trace, Step{NodeID: node.id, Kind: node.kind, Outcome: types.TagYes})
		return node.yes
	}
	result.Trace = append(result.Trace, Step{NodeID: node.id, Kind: node.kind, Outcome: types.TagNo})
	return node.no
}

// evaluateGroup combines conditions with short-circuit AND/OR.
// An empty group never matches.
func evaluateGroup(conds []Condition, combinator types.Combinator, ctx Context) bool {
	if len(conds) == 0 {
		return false
	}
	switch combinator {
	case types.CombinatorOr:
		for _, cond := range conds {
			if EvaluateCondition(cond, ctx) {
				return true
			}
		}
		return false
	case types.CombinatorAnd:
		for _, cond := range conds {
			if !EvaluateCondition(cond, ctx) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EvaluateCondition evaluates a single validated condition against ctx.
// Orchestrates: lookup -> coerce to the field's value type -> compare.
func EvaluateCondition(cond Condition, ctx Context) bool {
	raw, present := ctx.Lookup(cond.Field)
	if !present {
		return cond.Operator == OpNotExists
	}

	coerced, ok := Coerce(raw, cond.ValueType)
	if !ok || coerced.IsNull {
		return false
	}

	switch cond.Operator {
	case OpExists:
		return !isEmpty(coerced.Value)
	case OpNotExists:
		return isEmpty(coerced.Value)
	}

	switch actual := coerced.Value.(type) {
	case float64:
		return compareNumber(cond.Operator, actual, cond.Value)
	case bool:
		switch cond.Operator {
		case OpIsTrue:
			return actual
		case OpIsFalse:
			return !actual
		}
		return false
	case string:
		return compareText(cond.Operator, actual, cond.Value)
	case []string:
		return compareRelation(cond.Operator, actual, cond.Value)
	default:
		return false
	}
}
