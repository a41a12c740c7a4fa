// Package api implements the decision API: domain discovery for the editor,
// tree validation and evaluation, and tree storage.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// TreeStore persists decision trees. Implemented by *db.TreeStore.
type TreeStore interface {
	Create(ctx context.Context, domain, name string, tree *types.DecisionTree) (*types.StoredTree, error)
	Get(ctx context.Context, id types.TreeID) (*types.StoredTree, error)
	List(ctx context.Context, domain string) ([]types.StoredTree, error)
	Update(ctx context.Context, id types.TreeID, name string, tree *types.DecisionTree) (*types.StoredTree, error)
	Delete(ctx context.Context, id types.TreeID) error
}

// DecisionService implements DecisionAPIServer.
// Thin orchestration layer delegating to the engine and the tree store.
type DecisionService struct {
	engine       *rules.Engine
	store        TreeStore
	logger       *slog.Logger
	maxTreeBytes int
}

// NewDecisionService creates the service. store may be nil, in which case the
// storage methods answer UNAVAILABLE.
func NewDecisionService(engine *rules.Engine, store TreeStore, logger *slog.Logger, maxTreeBytes int) (*DecisionService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxTreeBytes <= 0 || maxTreeBytes > types.MaxTreeBytes {
		maxTreeBytes = types.MaxTreeBytes
	}
	return &DecisionService{
		engine:       engine,
		store:        store,
		logger:       logger,
		maxTreeBytes: maxTreeBytes,
	}, nil
}

var _ DecisionAPIServer = (*DecisionService)(nil)

func (s *DecisionService) treeStore() (TreeStore, error) {
	if s.store == nil {
		return nil, fmt.Errorf("tree store not configured")
	}
	return s.store, nil
}
