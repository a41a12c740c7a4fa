// Package types provides the wire model shared by the rule engine, the
// store and the API layer.
//
// Trees arrive as JSON produced by the visual editor and are treated as
// immutable values. Only encoding/json and uuid are imported so the package
// stays usable from any layer.
package types

// TreeID represents a UUIDv7 identifier of a stored decision tree.
type TreeID string

// Resource limits enforced by the structural validator and loaders.
const (
	// MaxTreeNodes bounds the node arena; evaluation is O(nodes).
	MaxTreeNodes = 512

	// MaxTreeEdges bounds the edge list. Two outgoing edges per decision node
	// plus the start edge fit comfortably.
	MaxTreeEdges = 2 * MaxTreeNodes

	// MaxTreeBytes caps the serialized tree accepted from files and the API.
	MaxTreeBytes = 1024 * 1024

	// MaxSetValues limits IN/NOT_IN/HAS_* value lists.
	// 64 values covers provinces and customer groups without quadratic matching cost.
	MaxSetValues = 64

	// MaxGroupConditions limits the conditions combined in one group node.
	MaxGroupConditions = 32

	// DefaultMinResultNodes applies when a domain does not set its own minimum.
	DefaultMinResultNodes = 1
)
