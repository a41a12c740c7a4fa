package rules

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// TreeError reports a structural problem with a node or an edge.
// Err is one of the types sentinels so callers can match with errors.Is.
type TreeError struct {
	Err    error
	NodeID string
	EdgeID string
	Detail string
}

// Error implements the error interface.
func (e *TreeError) Error() string {
	switch {
	case e.NodeID != "" && e.EdgeID != "":
		return fmt.Sprintf("%v: %s (node=%s, edge=%s)", e.Err, e.Detail, e.NodeID, e.EdgeID)
	case e.NodeID != "":
		return fmt.Sprintf("%v: %s (node=%s)", e.Err, e.Detail, e.NodeID)
	case e.EdgeID != "":
		return fmt.Sprintf("%v: %s (edge=%s)", e.Err, e.Detail, e.EdgeID)
	default:
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	}
}

func (e *TreeError) Unwrap() error { return e.Err }

// ConditionError reports a condition that is not well-typed for its field.
// Index is the position within a group node, 0 for condition nodes.
type ConditionError struct {
	NodeID   string
	Index    int
	Field    string
	Operator Operator
	Value    json.RawMessage
	Reason   string
}

// Error implements the error interface.
func (e *ConditionError) Error() string {
	value := string(e.Value)
	if value == "" {
		value = "<none>"
	}
	return fmt.Sprintf("%v: %s (node=%s, index=%d, field=%s, operator=%s, value=%s)",
		types.ErrInvalidCondition, e.Reason, e.NodeID, e.Index, e.Field, e.Operator, value)
}

func (e *ConditionError) Unwrap() error { return types.ErrInvalidCondition }

// DuplicateDomainError is returned when a name is re-registered with a
// different descriptor.
type DuplicateDomainError struct {
	Name string
}

func (e *DuplicateDomainError) Error() string {
	return fmt.Sprintf("%v: %q", types.ErrDuplicateDomain, e.Name)
}

func (e *DuplicateDomainError) Unwrap() error { return types.ErrDuplicateDomain }

// UnknownDomainError is returned when looking up an unregistered name.
type UnknownDomainError struct {
	Name string
}

func (e *UnknownDomainError) Error() string {
	return fmt.Sprintf("%v: %q", types.ErrUnknownDomain, e.Name)
}

func (e *UnknownDomainError) Unwrap() error { return types.ErrUnknownDomain }

// Errors splits an aggregated validation error into its individual problems.
// Returns nil for a nil error.
func Errors(err error) []error {
	return multierr.Errors(err)
}

func combine(errs []error) error {
	return multierr.Combine(errs...)
}
