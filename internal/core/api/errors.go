package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// Error mapping:
// validation errors map to INVALID_ARGUMENT,
// unknown domains and trees map to NOT_FOUND,
// context timeouts map to DEADLINE_EXCEEDED,
// database errors map to UNAVAILABLE.
// Auth errors are mapped in the auth interceptor.

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

// problemCodes names each validation sentinel on the wire. Order matters:
// the first match wins.
var problemCodes = []struct {
	err  error
	code string
}{
	{types.ErrTreeTooLarge, "TREE_TOO_LARGE"},
	{types.ErrDuplicateNodeID, "DUPLICATE_NODE_ID"},
	{types.ErrStartNode, "START_NODE"},
	{types.ErrDanglingEdge, "DANGLING_EDGE"},
	{types.ErrMalformedBranch, "MALFORMED_BRANCH"},
	{types.ErrCycleDetected, "CYCLE_DETECTED"},
	{types.ErrUnreachableResult, "UNREACHABLE_RESULT"},
	{types.ErrInvalidNode, "INVALID_NODE"},
	{types.ErrInvalidCondition, "INVALID_CONDITION"},
	{types.ErrInvalidResult, "INVALID_RESULT"},
	{types.ErrInvalidFieldConfig, "INVALID_FIELD_CONFIG"},
	{types.ErrEmptyTreeName, "EMPTY_TREE_NAME"},
	{errBadRequest, "BAD_REQUEST"},
}

// Problem is one validation failure as returned to the editor.
type Problem struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	NodeID   string `json:"nodeId,omitempty"`
	EdgeID   string `json:"edgeId,omitempty"`
	Index    *int   `json:"index,omitempty"`
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
}

func problemCode(err error) (string, bool) {
	for _, pc := range problemCodes {
		if errors.Is(err, pc.err) {
			return pc.code, true
		}
	}
	return "", false
}

// isValidation reports whether every aggregated error is a validation problem.
func isValidation(err error) bool {
	errs := rules.Errors(err)
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if _, ok := problemCode(e); !ok {
			return false
		}
	}
	return true
}

// problems flattens a validation error for the response body.
func problems(err error) []Problem {
	var out []Problem
	for _, e := range rules.Errors(err) {
		code, _ := problemCode(e)
		p := Problem{Code: code, Message: e.Error()}

		var treeErr *rules.TreeError
		var condErr *rules.ConditionError
		switch {
		case errors.As(e, &condErr):
			index := condErr.Index
			p.NodeID, p.Index = condErr.NodeID, &index
			p.Field, p.Operator = condErr.Field, string(condErr.Operator)
		case errors.As(e, &treeErr):
			p.NodeID, p.EdgeID = treeErr.NodeID, treeErr.EdgeID
		}
		out = append(out, p)
	}
	return out
}

// toStatus maps a service error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrUnknownDomain), errors.Is(err, types.ErrTreeNotFound):
		return status.Error(codes.NotFound, err.Error())
	case isValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
