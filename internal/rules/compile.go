// internal/rules/compile.go
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

/*
 * Tree compilation.
 *
 * Compiles a wire DecisionTree into a CompiledTree: an immutable arena of
 * nodes addressed by index, with branch targets resolved to indices and
 * conditions decoded into typed values. Compilation is the single
 * acceptance point; a tree that compiles satisfies every structural and
 * condition invariant, so the evaluator never has to re-check them.
 *
 * Compilation workflow:
 *   1. Structural checks (structure.go)
 *   2. Condition validation against the domain's fields and schema
 *   3. Result payload validation against the domain's ResultSchema
 *   4. If nothing failed, build the arena
 *
 * Steps 1-3 all run; their errors are combined so the caller sees every
 * problem at once. No partial trees are returned.
 *
 * Group conditions keep their authored order. Conditions are pure, so any
 * order gives the same branch, and authored order keeps traces readable.
 */

// noNode marks an unresolved branch target.
const noNode = -1

// compiledNode is one arena slot.
type compiledNode struct {
	id         string
	kind       types.NodeKind
	conditions []Condition
	combinator types.Combinator
	yes        int
	no         int
	next       int
	payload    json.RawMessage
}

// CompiledTree is an accepted, immutable tree ready for evaluation.
// Safe for concurrent use by any number of evaluations.
type CompiledTree struct {
	domain string
	nodes  []compiledNode
	start  int
}

// Domain returns the name of the domain the tree was compiled against.
func (t *CompiledTree) Domain() string { return t.domain }

// NodeCount returns the number of nodes in the arena.
func (t *CompiledTree) NodeCount() int { return len(t.nodes) }

// ValidateTree runs every structural, condition and result check for the
// domain and returns the combined errors, or nil when the tree is accepted.
func ValidateTree(tree *types.DecisionTree, domain *Domain) error {
	_, err := Compile(tree, domain)
	return err
}

// Compile validates tree against domain and builds its evaluation arena.
func Compile(tree *types.DecisionTree, domain *Domain) (*CompiledTree, error) {
	if domain == nil {
		return nil, fmt.Errorf("%w: nil domain", types.ErrUnknownDomain)
	}

	g, errs := checkStructure(tree, domain.MinResultNodes())
	if g == nil {
		return nil, combine(errs)
	}

	decoded, condErrs := decodeConditions(tree, domain)
	errs = append(errs, condErrs...)
	errs = append(errs, checkResults(tree, domain)...)

	if len(errs) > 0 {
		return nil, combine(errs)
	}

	return build(g, decoded, domain.Name), nil
}

// decodeConditions validates every embedded condition, keyed by node position.
func decodeConditions(tree *types.DecisionTree, domain *Domain) (map[int][]Condition, []error) {
	decoded := make(map[int][]Condition)
	var errs []error

	for i, n := range tree.Nodes {
		var raws []types.Condition
		switch n.Type {
		case types.NodeCondition:
			if n.Data.Condition != nil {
				raws = []types.Condition{*n.Data.Condition}
			}
		case types.NodeConditionGroup:
			raws = n.Data.Conditions
		default:
			continue
		}

		conds := make([]Condition, 0, len(raws))
		for idx, raw := range raws {
			cond, cerr := checkCondition(domain.Fields, domain.Schema, n.ID, idx, raw)
			if cerr != nil {
				errs = append(errs, cerr)
				continue
			}
			conds = append(conds, cond)
		}
		decoded[i] = conds
	}
	return decoded, errs
}

// checkResults runs the domain ResultSchema over every result node.
func checkResults(tree *types.DecisionTree, domain *Domain) []error {
	schema := domain.Options.Results
	if schema == nil {
		return nil
	}
	var errs []error
	for _, n := range tree.Nodes {
		if n.Type != types.NodeResult {
			continue
		}
		if err := schema.CheckResult(n.Data.Result); err != nil {
			errs = append(errs, &TreeError{Err: types.ErrInvalidResult, NodeID: n.ID, Detail: err.Error()})
		}
	}
	return errs
}

// build assumes the tree passed every check: ids are unique, there is one
// start, and every decision node has exactly one yes and one no edge.
func build(g *graph, decoded map[int][]Condition, domain string) *CompiledTree {
	tree := g.tree
	compiled := &CompiledTree{
		domain: domain,
		nodes:  make([]compiledNode, len(tree.Nodes)),
		start:  g.starts[0],
	}

	for i, n := range tree.Nodes {
		node := compiledNode{
			id:         n.ID,
			kind:       n.Type,
			conditions: decoded[i],
			combinator: n.Data.Combinator,
			yes:        noNode,
			no:         noNode,
			next:       noNode,
		}
		if n.Type == types.NodeResult && len(n.Data.Result) > 0 {
			node.payload = append(json.RawMessage(nil), n.Data.Result...)
		}
		for _, ei := range g.out[i] {
			tgt := g.target(ei)
			switch tree.Edges[ei].Tag.Normalized() {
			case types.TagYes:
				node.yes = tgt
			case types.TagNo:
				node.no = tgt
			case types.TagDefault:
				node.next = tgt
			}
		}
		compiled.nodes[i] = node
	}
	return compiled
}
