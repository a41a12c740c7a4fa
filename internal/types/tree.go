// internal/types/tree.go
package types

import "encoding/json"

/*
 * Decision tree wire model.
 *
 * Mirrors the JSON the graph editor persists: a flat node list and a flat
 * edge list referencing node ids. Nothing here is validated; the rules
 * package owns structural and condition checks and builds its own index
 * arena from these values.
 *
 * Key types:
 *   - DecisionTree: {nodes, edges}
 *   - Node: id + kind + kind-specific data, with an opaque editor position
 *   - Edge: (source, target, tag) where tag is yes/no/default
 *   - Condition: (field, operator, raw value); the value shape is decoded per
 *     operator family by the rules package
 */

// NodeKind discriminates the four node kinds.
type NodeKind string

const (
	NodeStart          NodeKind = "start"
	NodeCondition      NodeKind = "condition"
	NodeConditionGroup NodeKind = "conditionGroup"
	NodeResult         NodeKind = "result"
)

// EdgeTag labels an outgoing edge. Default is reserved for the start edge.
type EdgeTag string

const (
	TagYes     EdgeTag = "yes"
	TagNo      EdgeTag = "no"
	TagDefault EdgeTag = "default"
)

// Normalized maps the empty tag to TagDefault.
func (t EdgeTag) Normalized() EdgeTag {
	if t == "" {
		return TagDefault
	}
	return t
}

// Combinator joins the conditions of a group node.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// Position is editor layout data. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Condition is a single (field, operator, value) predicate as authored.
// Value is kept raw so that shape checks see exactly what the editor sent.
type Condition struct {
	Field    string          `json:"field"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// NodeData carries the kind-specific payload of a node.
type NodeData struct {
	Label      string          `json:"label,omitempty"`
	Condition  *Condition      `json:"condition,omitempty"`  // condition nodes
	Conditions []Condition     `json:"conditions,omitempty"` // group nodes, ordered
	Combinator Combinator      `json:"combinator,omitempty"` // group nodes
	Result     json.RawMessage `json:"result,omitempty"`     // result nodes, domain-specific
}

// Node is one vertex of a decision tree.
type Node struct {
	ID       string    `json:"id"`
	Type     NodeKind  `json:"type"`
	Position *Position `json:"position,omitempty"`
	Data     NodeData  `json:"data"`
}

// Edge is a directed connection between two nodes, referenced by id.
type Edge struct {
	ID     string  `json:"id,omitempty"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Tag    EdgeTag `json:"tag,omitempty"`
}

// DecisionTree is the unit of validation and evaluation.
type DecisionTree struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// StoredTree is a persisted tree with its owning domain.
type StoredTree struct {
	ID        TreeID       `json:"id"`
	Domain    string       `json:"domain"`
	Name      string       `json:"name"`
	Tree      DecisionTree `json:"tree"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
}
