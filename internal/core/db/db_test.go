package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaannakiin/decisionkeeper/internal/domains"
	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = MigrateUp(ctx, db)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) *TreeStore {
	t.Helper()
	db := openTestDB(t)

	queries, err := LoadQueries(db)
	require.NoError(t, err)

	reg := rules.NewRegistry()
	require.NoError(t, domains.Register(reg, types.DefaultMinResultNodes))
	return NewTreeStore(queries, rules.NewEngine(reg, nil))
}

func cartTree(threshold int) *types.DecisionTree {
	return &types.DecisionTree{
		Nodes: []types.Node{
			{ID: "start", Type: types.NodeStart},
			{ID: "c1", Type: types.NodeCondition, Data: types.NodeData{Condition: &types.Condition{
				Field:    "CART_TOTAL",
				Operator: "GTE",
				Value:    json.RawMessage(strconv.Itoa(threshold)),
			}}},
			{ID: "iyzico", Type: types.NodeResult, Data: types.NodeData{Result: json.RawMessage(`{"providers":["IYZICO"]}`)}},
			{ID: "paytr", Type: types.NodeResult, Data: types.NodeData{Result: json.RawMessage(`{"providers":["PAYTR"]}`)}},
		},
		Edges: []types.Edge{
			{ID: "e1", Source: "start", Target: "c1", Tag: types.TagDefault},
			{ID: "e2", Source: "c1", Target: "iyzico", Tag: types.TagYes},
			{ID: "e3", Source: "c1", Target: "paytr", Tag: types.TagNo},
		},
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		driver     string
		dataSource string
		wantErr    bool
	}{
		{"sqlite://data/dk.db", "sqlite3", "data/dk.db", false},
		{"sqlite:///var/lib/dk.db", "sqlite3", "/var/lib/dk.db", false},
		{"sqlite://dk.db?_busy_timeout=5000", "sqlite3", "dk.db?_busy_timeout=5000", false},
		{"./data/decisionkeeper.db", "sqlite3", "./data/decisionkeeper.db", false},
		{"postgres://u:p@localhost:5432/dk?sslmode=disable", "postgres", "postgres://u:p@localhost:5432/dk?sslmode=disable", false},
		{"postgresql://localhost/dk", "postgres", "postgresql://localhost/dk", false},
		{"mysql://localhost/dk", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, ds, err := parseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dataSource, ds)
		})
	}
}

func TestMigrateUp(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()

	statuses, err := MigrateStatus(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.False(t, s.Applied, s.ID)
	}

	ran, err := MigrateUp(ctx, db)
	require.NoError(t, err)
	assert.Contains(t, ran, "001_initial_schema.sql")

	// Second run is a no-op.
	ran, err = MigrateUp(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, ran)

	statuses, err = MigrateStatus(ctx, db)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.ID)
		assert.NotNil(t, s.AppliedAt, s.ID)
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.ExecContext(ctx, "UPDATE migrations SET checksum = 'tampered' WHERE migration_id = '001_initial_schema.sql'")
	require.NoError(t, err)

	_, err = MigrateUp(ctx, db)
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestMigrateUp_UnknownApplied(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.ExecContext(ctx,
		"INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)",
		"999_future.sql", "abc", time.Now().UTC(), 1)
	require.NoError(t, err)

	_, err = MigrateUp(ctx, db)
	assert.ErrorContains(t, err, "not in embedded files")
}

func TestStripComments(t *testing.T) {
	in := "-- header\n  -- indented\nCREATE TABLE t (id TEXT)\n"
	assert.Equal(t, "CREATE TABLE t (id TEXT)", stripComments(in))
	assert.Empty(t, stripComments("-- only a comment\n"))
}

func TestLoadQueries_UnknownName(t *testing.T) {
	queries, err := LoadQueries(openTestDB(t))
	require.NoError(t, err)

	_, err = queries.Exec(context.Background(), "no-such-query")
	assert.ErrorContains(t, err, "query not found")
}

func TestTreeStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.Create(ctx, domains.PaymentRouting, "high value carts", cartTree(500))
	require.NoError(t, err)
	_, err = types.ParseTreeID(string(created.ID))
	require.NoError(t, err)
	assert.Equal(t, domains.PaymentRouting, created.Domain)
	assert.Equal(t, "high value carts", created.Name)
	assert.Len(t, created.Tree.Nodes, 4)
	assert.Equal(t, types.TreeIDTime(created.ID).UTC().Format(time.RFC3339), created.CreatedAt)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.JSONEq(t, "500", string(got.Tree.Nodes[1].Data.Condition.Value))

	updated, err := store.Update(ctx, created.ID, "very high value carts", cartTree(900))
	require.NoError(t, err)
	assert.Equal(t, "very high value carts", updated.Name)
	assert.Equal(t, created.Domain, updated.Domain)
	assert.JSONEq(t, "900", string(updated.Tree.Nodes[1].Data.Condition.Value))

	require.NoError(t, store.Delete(ctx, created.ID))

	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, types.ErrTreeNotFound)
	assert.ErrorIs(t, store.Delete(ctx, created.ID), types.ErrTreeNotFound)
}

func TestTreeStore_List(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Create(ctx, domains.PaymentRouting, "first", cartTree(100))
	require.NoError(t, err)
	second, err := store.Create(ctx, domains.PaymentRouting, "second", cartTree(200))
	require.NoError(t, err)

	trees, err := store.List(ctx, domains.PaymentRouting)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, first.ID, trees[0].ID)
	assert.Equal(t, second.ID, trees[1].ID)

	trees, err = store.List(ctx, domains.CustomerSegmentation)
	require.NoError(t, err)
	assert.Empty(t, trees)

	trees, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, trees, 2)
}

func TestTreeStore_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("unknown domain", func(t *testing.T) {
		_, err := store.Create(ctx, "shipping", "tree", cartTree(1))
		assert.ErrorIs(t, err, types.ErrUnknownDomain)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := store.Create(ctx, domains.PaymentRouting, "  ", cartTree(1))
		assert.ErrorIs(t, err, types.ErrEmptyTreeName)
	})

	t.Run("invalid condition", func(t *testing.T) {
		tree := cartTree(-5) // CART_TOTAL has min 0
		_, err := store.Create(ctx, domains.PaymentRouting, "tree", tree)
		assert.ErrorIs(t, err, types.ErrInvalidCondition)
	})

	t.Run("nil tree", func(t *testing.T) {
		_, err := store.Create(ctx, domains.PaymentRouting, "tree", nil)
		assert.ErrorIs(t, err, types.ErrStartNode)
	})

	t.Run("update keeps stored tree on rejection", func(t *testing.T) {
		created, err := store.Create(ctx, domains.PaymentRouting, "tree", cartTree(10))
		require.NoError(t, err)

		broken := cartTree(10)
		broken.Edges = broken.Edges[:2]
		_, err = store.Update(ctx, created.ID, "tree", broken)
		assert.ErrorIs(t, err, types.ErrMalformedBranch)

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Len(t, got.Tree.Edges, 3)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := store.Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, types.ErrTreeNotFound)
	})
}
