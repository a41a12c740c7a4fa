package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// TreeStore persists decision trees as opaque JSON documents. Every write is
// validated against the tree's domain first so the table only ever holds
// trees the engine accepts.
type TreeStore struct {
	queries *Queries
	engine  *rules.Engine
	now     func() time.Time
}

// NewTreeStore creates a store validating through engine.
func NewTreeStore(queries *Queries, engine *rules.Engine) *TreeStore {
	return &TreeStore{
		queries: queries,
		engine:  engine,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type treeRow struct {
	ID        string    `db:"tree_id"`
	Domain    string    `db:"domain"`
	Name      string    `db:"name"`
	Tree      []byte    `db:"tree"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r treeRow) stored() (*types.StoredTree, error) {
	var tree types.DecisionTree
	if err := json.Unmarshal(r.Tree, &tree); err != nil {
		return nil, fmt.Errorf("decode stored tree %s: %w", r.ID, err)
	}
	return &types.StoredTree{
		ID:        types.TreeID(r.ID),
		Domain:    r.Domain,
		Name:      r.Name,
		Tree:      tree,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// Create validates and inserts a new tree under a fresh UUIDv7 id. The
// creation time is the one embedded in the id so both orderings agree.
func (s *TreeStore) Create(ctx context.Context, domain, name string, tree *types.DecisionTree) (*types.StoredTree, error) {
	data, err := s.prepare(domain, name, tree)
	if err != nil {
		return nil, err
	}

	id := types.NewTreeID()
	now := types.TreeIDTime(id).UTC()
	if _, err := s.queries.Exec(ctx, "insert-tree", string(id), domain, name, data, now, now); err != nil {
		return nil, fmt.Errorf("insert tree: %w", err)
	}

	return s.Get(ctx, id)
}

// Get returns the stored tree or types.ErrTreeNotFound.
func (s *TreeStore) Get(ctx context.Context, id types.TreeID) (*types.StoredTree, error) {
	if _, err := types.ParseTreeID(string(id)); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTreeNotFound, id)
	}

	var row treeRow
	err := s.queries.Get(ctx, "get-tree", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrTreeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	return row.stored()
}

// List returns the trees of one domain, or all trees when domain is empty,
// in id (creation) order.
func (s *TreeStore) List(ctx context.Context, domain string) ([]types.StoredTree, error) {
	var (
		rows []treeRow
		err  error
	)
	if domain == "" {
		err = s.queries.Select(ctx, "list-trees", &rows)
	} else {
		err = s.queries.Select(ctx, "list-trees-by-domain", &rows, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}

	trees := make([]types.StoredTree, 0, len(rows))
	for _, r := range rows {
		t, err := r.stored()
		if err != nil {
			return nil, err
		}
		trees = append(trees, *t)
	}
	return trees, nil
}

// Update replaces the name and tree of an existing record. The domain is
// fixed at creation.
func (s *TreeStore) Update(ctx context.Context, id types.TreeID, name string, tree *types.DecisionTree) (*types.StoredTree, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.prepare(existing.Domain, name, tree)
	if err != nil {
		return nil, err
	}

	res, err := s.queries.Exec(ctx, "update-tree", name, data, s.now(), string(id))
	if err != nil {
		return nil, fmt.Errorf("update tree: %w", err)
	}
	if err := expectRow(res, id); err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Delete removes a tree.
func (s *TreeStore) Delete(ctx context.Context, id types.TreeID) error {
	res, err := s.queries.Exec(ctx, "delete-tree", string(id))
	if err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}
	return expectRow(res, id)
}

func (s *TreeStore) prepare(domain, name string, tree *types.DecisionTree) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, types.ErrEmptyTreeName
	}
	if tree == nil {
		tree = &types.DecisionTree{}
	}
	if err := s.engine.Validate(domain, tree); err != nil {
		return nil, err
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	if len(data) > types.MaxTreeBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", types.ErrTreeTooLarge, len(data), types.MaxTreeBytes)
	}
	return data, nil
}

func expectRow(res sql.Result, id types.TreeID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrTreeNotFound, id)
	}
	return nil
}
