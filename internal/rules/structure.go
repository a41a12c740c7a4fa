// internal/rules/structure.go
package rules

import (
	"fmt"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

/*
 * Structural validation of decision trees.
 *
 * Accepts or rejects a tree independent of any runtime context. Every check
 * runs and every failure is collected so the editor can highlight all
 * offending nodes after one round-trip.
 *
 * Check order:
 *   0. size limits (reported alone, nothing else runs)
 *   1. node sanity: ids, kinds, kind-specific data
 *   2. exactly one start node
 *   3. edge endpoints exist, tags are known, nothing targets start
 *   4. branching cardinality per kind
 *   5. cycles anywhere in the graph (iterative DFS, one error per back edge)
 *   6. reachable result count from start >= minResultNodes
 *
 * Edges failing step 3 are left out of the adjacency lists so later steps
 * never follow a dangling reference.
 */

// graph is the index built over a tree's node and edge slices.
type graph struct {
	tree   *types.DecisionTree
	index  map[string]int // node id -> first position in tree.Nodes
	out    [][]int        // node position -> accepted outgoing edge positions
	starts []int
}

// indexed reports whether position i is the canonical node for its id.
func (g *graph) indexed(i int) bool {
	pos, ok := g.index[g.tree.Nodes[i].ID]
	return ok && pos == i
}

// target returns the node position an accepted edge points to.
func (g *graph) target(edge int) int {
	return g.index[g.tree.Edges[edge].Target]
}

// ValidateStructure runs the structural checks without a domain. Conditions
// and result payloads are not inspected.
func ValidateStructure(tree *types.DecisionTree, minResultNodes int) error {
	_, errs := checkStructure(tree, minResultNodes)
	return combine(errs)
}

// checkStructure returns the graph index (nil when the tree could not be
// indexed at all) and every structural error found.
func checkStructure(tree *types.DecisionTree, minResultNodes int) (*graph, []error) {
	if tree == nil {
		return nil, []error{&TreeError{Err: types.ErrInvalidNode, Detail: "tree is nil"}}
	}
	if len(tree.Nodes) > types.MaxTreeNodes {
		return nil, []error{&TreeError{
			Err:    types.ErrTreeTooLarge,
			Detail: fmt.Sprintf("%d nodes, limit is %d", len(tree.Nodes), types.MaxTreeNodes),
		}}
	}
	if len(tree.Edges) > types.MaxTreeEdges {
		return nil, []error{&TreeError{
			Err:    types.ErrTreeTooLarge,
			Detail: fmt.Sprintf("%d edges, limit is %d", len(tree.Edges), types.MaxTreeEdges),
		}}
	}

	g := &graph{
		tree:  tree,
		index: make(map[string]int, len(tree.Nodes)),
		out:   make([][]int, len(tree.Nodes)),
	}

	var errs []error
	errs = append(errs, g.checkNodes()...)

	if len(g.starts) != 1 {
		errs = append(errs, &TreeError{
			Err:    types.ErrStartNode,
			Detail: fmt.Sprintf("found %d start nodes", len(g.starts)),
		})
	}

	errs = append(errs, g.checkEdges()...)
	errs = append(errs, g.checkBranches()...)
	errs = append(errs, g.checkCycles()...)

	if len(g.starts) == 1 {
		start := g.starts[0]
		if found := g.reachableResults(start); found < minResultNodes {
			errs = append(errs, &TreeError{
				Err:    types.ErrUnreachableResult,
				NodeID: tree.Nodes[start].ID,
				Detail: fmt.Sprintf("%d result nodes reachable from start, need %d", found, minResultNodes),
			})
		}
	}

	return g, errs
}

func (g *graph) checkNodes() []error {
	var errs []error
	for i, n := range g.tree.Nodes {
		if n.ID == "" {
			errs = append(errs, &TreeError{Err: types.ErrInvalidNode, Detail: fmt.Sprintf("nodes[%d] has an empty id", i)})
			continue
		}
		if _, dup := g.index[n.ID]; dup {
			errs = append(errs, &TreeError{Err: types.ErrDuplicateNodeID, NodeID: n.ID, Detail: fmt.Sprintf("nodes[%d] reuses id", i)})
			continue
		}
		g.index[n.ID] = i

		switch n.Type {
		case types.NodeStart:
			g.starts = append(g.starts, i)
		case types.NodeCondition:
			if n.Data.Condition == nil {
				errs = append(errs, &TreeError{Err: types.ErrInvalidNode, NodeID: n.ID, Detail: "condition node has no condition"})
			}
		case types.NodeConditionGroup:
			if len(n.Data.Conditions) < 2 {
				errs = append(errs, &TreeError{
					Err:    types.ErrInvalidNode,
					NodeID: n.ID,
					Detail: fmt.Sprintf("condition group needs at least 2 conditions, has %d", len(n.Data.Conditions)),
				})
			}
			if len(n.Data.Conditions) > types.MaxGroupConditions {
				errs = append(errs, &TreeError{
					Err:    types.ErrInvalidNode,
					NodeID: n.ID,
					Detail: fmt.Sprintf("condition group has %d conditions, limit is %d", len(n.Data.Conditions), types.MaxGroupConditions),
				})
			}
			if n.Data.Combinator != types.CombinatorAnd && n.Data.Combinator != types.CombinatorOr {
				errs = append(errs, &TreeError{
					Err:    types.ErrInvalidNode,
					NodeID: n.ID,
					Detail: fmt.Sprintf("unknown combinator %q", n.Data.Combinator),
				})
			}
		case types.NodeResult:
		default:
			errs = append(errs, &TreeError{Err: types.ErrInvalidNode, NodeID: n.ID, Detail: fmt.Sprintf("unknown node type %q", n.Type)})
		}
	}
	return errs
}

func (g *graph) checkEdges() []error {
	var errs []error
	for i, e := range g.tree.Edges {
		src, okSrc := g.index[e.Source]
		tgt, okTgt := g.index[e.Target]
		if !okSrc || !okTgt {
			var missing string
			switch {
			case !okSrc && !okTgt:
				missing = fmt.Sprintf("source %q and target %q", e.Source, e.Target)
			case !okSrc:
				missing = fmt.Sprintf("source %q", e.Source)
			default:
				missing = fmt.Sprintf("target %q", e.Target)
			}
			errs = append(errs, &TreeError{Err: types.ErrDanglingEdge, EdgeID: edgeLabel(i, e), Detail: "unknown " + missing})
			continue
		}

		switch e.Tag.Normalized() {
		case types.TagYes, types.TagNo, types.TagDefault:
		default:
			errs = append(errs, &TreeError{
				Err:    types.ErrMalformedBranch,
				NodeID: e.Source,
				EdgeID: edgeLabel(i, e),
				Detail: fmt.Sprintf("unknown edge tag %q", e.Tag),
			})
			continue
		}

		if g.tree.Nodes[tgt].Type == types.NodeStart {
			errs = append(errs, &TreeError{
				Err:    types.ErrMalformedBranch,
				NodeID: e.Source,
				EdgeID: edgeLabel(i, e),
				Detail: "start node cannot be an edge target",
			})
			continue
		}

		g.out[src] = append(g.out[src], i)
	}
	return errs
}

func (g *graph) checkBranches() []error {
	var errs []error
	for i, n := range g.tree.Nodes {
		if !g.indexed(i) {
			continue
		}

		counts := make(map[types.EdgeTag]int, 3)
		for _, ei := range g.out[i] {
			counts[g.tree.Edges[ei].Tag.Normalized()]++
		}
		total := len(g.out[i])

		switch n.Type {
		case types.NodeStart:
			if total != 1 || counts[types.TagDefault] != 1 {
				errs = append(errs, &TreeError{
					Err:    types.ErrMalformedBranch,
					NodeID: n.ID,
					Detail: fmt.Sprintf("start node needs exactly one default edge, has %d edges (default=%d)", total, counts[types.TagDefault]),
				})
			}
		case types.NodeCondition, types.NodeConditionGroup:
			if total != 2 || counts[types.TagYes] != 1 || counts[types.TagNo] != 1 {
				errs = append(errs, &TreeError{
					Err:    types.ErrMalformedBranch,
					NodeID: n.ID,
					Detail: fmt.Sprintf("%s node needs exactly one yes and one no edge, has yes=%d no=%d default=%d",
						n.Type, counts[types.TagYes], counts[types.TagNo], counts[types.TagDefault]),
				})
			}
		case types.NodeResult:
			if total != 0 {
				errs = append(errs, &TreeError{
					Err:    types.ErrMalformedBranch,
					NodeID: n.ID,
					Detail: fmt.Sprintf("result node cannot have outgoing edges, has %d", total),
				})
			}
		}
	}
	return errs
}

// checkCycles runs an iterative three-color DFS from every unvisited node so
// cycles unreachable from start are reported too.
func (g *graph) checkCycles() []error {
	const (
		white = iota
		gray
		black
	)

	type frame struct {
		node int
		next int
	}

	var errs []error
	color := make([]int, len(g.tree.Nodes))

	for root := range g.tree.Nodes {
		if !g.indexed(root) || color[root] != white {
			continue
		}
		color[root] = gray
		stack := []frame{{node: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(g.out[top.node]) {
				ei := g.out[top.node][top.next]
				top.next++
				tgt := g.target(ei)
				switch color[tgt] {
				case white:
					color[tgt] = gray
					stack = append(stack, frame{node: tgt})
				case gray:
					e := g.tree.Edges[ei]
					errs = append(errs, &TreeError{
						Err:    types.ErrCycleDetected,
						NodeID: e.Source,
						EdgeID: edgeLabel(ei, e),
						Detail: fmt.Sprintf("edge %s -> %s closes a cycle", e.Source, e.Target),
					})
				}
				continue
			}
			color[top.node] = black
			stack = stack[:len(stack)-1]
		}
	}
	return errs
}

// reachableResults counts distinct result nodes reachable from start.
func (g *graph) reachableResults(start int) int {
	seen := make([]bool, len(g.tree.Nodes))
	seen[start] = true
	queue := []int{start}
	found := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if g.tree.Nodes[cur].Type == types.NodeResult {
			found++
		}
		for _, ei := range g.out[cur] {
			tgt := g.target(ei)
			if !seen[tgt] {
				seen[tgt] = true
				queue = append(queue, tgt)
			}
		}
	}
	return found
}

func edgeLabel(i int, e types.Edge) string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("edges[%d]", i)
}
