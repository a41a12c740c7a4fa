package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

type treeRequest struct {
	Domain string              `json:"domain"`
	Tree   *types.DecisionTree `json:"tree"`
}

type validateResponse struct {
	Valid    bool      `json:"valid"`
	Problems []Problem `json:"problems"`
}

// ValidateTree takes {"domain", "tree"} and returns {"valid", "problems"}.
// An invalid tree is a successful call; every problem found is listed so the
// editor can mark all offending nodes at once.
func (s *DecisionService) ValidateTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in treeRequest
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	if err := required("domain", in.Domain); err != nil {
		return nil, toStatus(err)
	}
	if in.Tree == nil {
		in.Tree = &types.DecisionTree{}
	}

	err := s.engine.Validate(in.Domain, in.Tree)
	switch {
	case err == nil:
		return encode(validateResponse{Valid: true, Problems: []Problem{}})
	case isValidation(err):
		return encode(validateResponse{Valid: false, Problems: problems(err)})
	default:
		return nil, toStatus(err)
	}
}

type evaluateRequest struct {
	Domain  string              `json:"domain"`
	TreeID  string              `json:"treeId"`
	Tree    *types.DecisionTree `json:"tree"`
	Context json.RawMessage     `json:"context"`
}

// EvaluateTree takes {"domain", "tree" | "treeId", "context"} and returns the
// evaluation result {"matched", "nodeId", "payload", "trace"}. A stored tree
// is evaluated under its own domain; "domain" may then be omitted.
func (s *DecisionService) EvaluateTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in evaluateRequest
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	evalCtx, err := rules.ParseContext(in.Context)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errBadRequest, err))
	}

	domain, tree := in.Domain, in.Tree
	switch {
	case in.TreeID != "" && in.Tree != nil:
		return nil, toStatus(fmt.Errorf("%w: set tree or treeId, not both", errBadRequest))
	case in.TreeID != "":
		stored, err := s.loadTree(ctx, in.TreeID)
		if err != nil {
			return nil, toStatus(err)
		}
		if domain != "" && domain != stored.Domain {
			return nil, toStatus(fmt.Errorf("%w: tree %s belongs to domain %q", errBadRequest, stored.ID, stored.Domain))
		}
		domain, tree = stored.Domain, &stored.Tree
	case tree == nil:
		return nil, toStatus(fmt.Errorf("%w: tree or treeId is required", errBadRequest))
	}
	if err := required("domain", domain); err != nil {
		return nil, toStatus(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	result, err := s.engine.Evaluate(domain, tree, evalCtx)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(result)
}

type saveRequest struct {
	ID     string              `json:"id"`
	Domain string              `json:"domain"`
	Name   string              `json:"name"`
	Tree   *types.DecisionTree `json:"tree"`
}

// SaveTree takes {"domain", "name", "tree"} to create a tree, or
// {"id", "name", "tree"} to replace one, and returns the stored tree.
// Trees that fail validation are not saved.
func (s *DecisionService) SaveTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in saveRequest
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	store, err := s.treeStore()
	if err != nil {
		return nil, toStatus(err)
	}

	var stored *types.StoredTree
	if in.ID == "" {
		if err := required("domain", in.Domain); err != nil {
			return nil, toStatus(err)
		}
		stored, err = store.Create(ctx, in.Domain, in.Name, in.Tree)
	} else {
		id, perr := types.ParseTreeID(in.ID)
		if perr != nil {
			return nil, toStatus(fmt.Errorf("%w: id: %v", errBadRequest, perr))
		}
		if in.Domain != "" {
			existing, gerr := store.Get(ctx, id)
			if gerr != nil {
				return nil, toStatus(gerr)
			}
			if existing.Domain != in.Domain {
				return nil, toStatus(fmt.Errorf("%w: tree %s belongs to domain %q", errBadRequest, id, existing.Domain))
			}
		}
		stored, err = store.Update(ctx, id, in.Name, in.Tree)
	}
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info("tree saved", "tree_id", stored.ID, "domain", stored.Domain)
	return encode(stored)
}

type idRequest struct {
	ID string `json:"id"`
}

// GetTree takes {"id"} and returns the stored tree.
func (s *DecisionService) GetTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	stored, err := s.loadTree(ctx, in.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(stored)
}

// ListTrees takes an optional {"domain"} and returns {"trees"}.
func (s *DecisionService) ListTrees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in domainRequest
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	store, err := s.treeStore()
	if err != nil {
		return nil, toStatus(err)
	}
	if in.Domain != "" {
		if _, err := s.engine.Registry().Domain(in.Domain); err != nil {
			return nil, toStatus(err)
		}
	}

	trees, err := store.List(ctx, in.Domain)
	if err != nil {
		return nil, toStatus(err)
	}
	if trees == nil {
		trees = []types.StoredTree{}
	}
	return encode(map[string]any{"trees": trees})
}

// DeleteTree takes {"id"} and returns {"deleted": true}.
func (s *DecisionService) DeleteTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := s.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	if err := required("id", in.ID); err != nil {
		return nil, toStatus(err)
	}
	store, err := s.treeStore()
	if err != nil {
		return nil, toStatus(err)
	}

	id, err := types.ParseTreeID(in.ID)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %s", types.ErrTreeNotFound, in.ID))
	}
	if err := store.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info("tree deleted", "tree_id", id)
	return encode(map[string]bool{"deleted": true})
}

func (s *DecisionService) loadTree(ctx context.Context, id string) (*types.StoredTree, error) {
	if err := required("id", id); err != nil {
		return nil, err
	}
	store, err := s.treeStore()
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, types.TreeID(id))
}
