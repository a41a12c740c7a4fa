package types

import "errors"

// Sentinel errors for decision tree operations.
var (
	// ErrDuplicateDomain indicates a conflicting re-registration of a domain name.
	ErrDuplicateDomain = errors.New("domain already registered")

	// ErrUnknownDomain indicates a lookup of a domain that was never registered.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrInvalidFieldConfig indicates a field registry violates its own invariants.
	ErrInvalidFieldConfig = errors.New("invalid field config")

	// ErrInvalidCondition indicates a condition is not well-typed for its field.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrInvalidNode indicates a node is missing data required by its kind.
	ErrInvalidNode = errors.New("invalid node")

	// ErrDuplicateNodeID indicates two nodes share an id.
	ErrDuplicateNodeID = errors.New("duplicate node id")

	// ErrStartNode indicates the tree does not have exactly one start node.
	ErrStartNode = errors.New("tree must have exactly one start node")

	// ErrDanglingEdge indicates an edge endpoint references an unknown node.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrMalformedBranch indicates a node has the wrong outgoing edges for its kind.
	ErrMalformedBranch = errors.New("malformed branch")

	// ErrCycleDetected indicates the tree graph contains a cycle.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrUnreachableResult indicates too few result nodes are reachable from start.
	ErrUnreachableResult = errors.New("not enough reachable result nodes")

	// ErrInvalidResult indicates a result payload was rejected by the domain.
	ErrInvalidResult = errors.New("invalid result payload")

	// ErrTreeTooLarge indicates the tree exceeds MaxTreeNodes, MaxTreeEdges or MaxTreeBytes.
	ErrTreeTooLarge = errors.New("tree exceeds size limits")

	// ErrTreeNotFound indicates a stored tree id does not exist.
	ErrTreeNotFound = errors.New("tree not found")

	// ErrEmptyTreeName indicates a stored tree was saved without a name.
	ErrEmptyTreeName = errors.New("tree name must not be empty")
)
