package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kaannakiin/decisionkeeper/internal/core/db"
	"github.com/kaannakiin/decisionkeeper/internal/domains"
	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

const cartTree = `{
  "nodes": [
    {"id": "start", "type": "start", "data": {}},
    {"id": "c1", "type": "condition", "data": {"condition": {"field": "CART_TOTAL", "operator": "GTE", "value": 500}}},
    {"id": "iyzico", "type": "result", "data": {"result": {"providers": ["IYZICO"]}}},
    {"id": "paytr", "type": "result", "data": {"result": {"providers": ["PAYTR"]}}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "c1", "tag": "default"},
    {"id": "e2", "source": "c1", "target": "iyzico", "tag": "yes"},
    {"id": "e3", "source": "c1", "target": "paytr", "tag": "no"}
  ]
}`

// brokenTree has an unknown field and an empty provider list.
const brokenTree = `{
  "nodes": [
    {"id": "start", "type": "start", "data": {}},
    {"id": "c1", "type": "condition", "data": {"condition": {"field": "CART_WEIGHT", "operator": "GTE", "value": 5}}},
    {"id": "iyzico", "type": "result", "data": {"result": {"providers": []}}},
    {"id": "paytr", "type": "result", "data": {"result": {"providers": ["PAYTR"]}}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "c1", "tag": "default"},
    {"id": "e2", "source": "c1", "target": "iyzico", "tag": "yes"},
    {"id": "e3", "source": "c1", "target": "paytr", "tag": "no"}
  ]
}`

func newEngine(t *testing.T) *rules.Engine {
	t.Helper()
	reg := rules.NewRegistry()
	require.NoError(t, domains.Register(reg, types.DefaultMinResultNodes))
	return rules.NewEngine(reg, nil)
}

func newTestService(t *testing.T) *DecisionService {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = db.MigrateUp(ctx, conn)
	require.NoError(t, err)
	queries, err := db.LoadQueries(conn)
	require.NoError(t, err)

	engine := newEngine(t)
	svc, err := NewDecisionService(engine, db.NewTreeStore(queries, engine), nil, 0)
	require.NoError(t, err)
	return svc
}

func req(t *testing.T, js string) *structpb.Struct {
	t.Helper()
	s := new(structpb.Struct)
	require.NoError(t, protojson.Unmarshal([]byte(js), s))
	return s
}

func withTree(prefix, tree, suffix string) string {
	return prefix + `"tree": ` + tree + suffix
}

func TestNewDecisionService(t *testing.T) {
	_, err := NewDecisionService(nil, nil, nil, 0)
	assert.Error(t, err)

	svc, err := NewDecisionService(newEngine(t), nil, nil, 10*types.MaxTreeBytes)
	require.NoError(t, err)
	assert.Equal(t, types.MaxTreeBytes, svc.maxTreeBytes)
}

func TestListDomains(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.ListDomains(context.Background(), nil)
	require.NoError(t, err)

	list := resp.AsMap()["domains"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, domains.CustomerSegmentation, list[0].(map[string]any)["name"])
	assert.Equal(t, domains.PaymentRouting, list[1].(map[string]any)["name"])
	assert.Equal(t, 1.0, list[1].(map[string]any)["minResultNodes"])
}

func TestDescribeDomain(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	resp, err := svc.DescribeDomain(ctx, req(t, `{"domain": "payment-routing"}`))
	require.NoError(t, err)

	body := resp.AsMap()
	fields := body["fields"].(map[string]any)
	cart := fields["CART_TOTAL"].(map[string]any)
	assert.Equal(t, "numeric", cart["valueType"])
	assert.Contains(t, cart["operators"], "BETWEEN")

	families := body["operators"].(map[string]any)
	assert.Contains(t, families["numeric"], "GTE")

	_, err = svc.DescribeDomain(ctx, req(t, `{"domain": "shipping"}`))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.DescribeDomain(ctx, req(t, `{}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.DescribeDomain(ctx, req(t, `{"domain": "payment-routing", "verbose": true}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestNewCondition(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	resp, err := svc.NewCondition(ctx, req(t, `{"domain": "payment-routing", "field": "CART_TOTAL"}`))
	require.NoError(t, err)
	cond := resp.AsMap()["condition"].(map[string]any)
	assert.Equal(t, "CART_TOTAL", cond["field"])
	assert.Equal(t, "GTE", cond["operator"])
	assert.Equal(t, 0.0, cond["value"])

	_, err = svc.NewCondition(ctx, req(t, `{"domain": "payment-routing", "field": "CART_WEIGHT"}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.NewCondition(ctx, req(t, `{"domain": "payment-routing"}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestValidateTree(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	resp, err := svc.ValidateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, cartTree, `}`)))
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["valid"])
	assert.Empty(t, resp.AsMap()["problems"])

	resp, err = svc.ValidateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, brokenTree, `}`)))
	require.NoError(t, err)
	body := resp.AsMap()
	assert.Equal(t, false, body["valid"])

	list := body["problems"].([]any)
	require.Len(t, list, 2)
	codesSeen := map[string]string{}
	for _, p := range list {
		m := p.(map[string]any)
		codesSeen[m["code"].(string)] = m["nodeId"].(string)
	}
	assert.Equal(t, map[string]string{"INVALID_CONDITION": "c1", "INVALID_RESULT": "iyzico"}, codesSeen)

	resp, err = svc.ValidateTree(ctx, req(t, `{"domain": "payment-routing"}`))
	require.NoError(t, err)
	assert.Equal(t, false, resp.AsMap()["valid"])

	_, err = svc.ValidateTree(ctx, req(t, withTree(`{"domain": "shipping", `, cartTree, `}`)))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestEvaluateTree_Inline(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	resp, err := svc.EvaluateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, cartTree, `, "context": {"CART_TOTAL": 750}}`)))
	require.NoError(t, err)
	body := resp.AsMap()
	assert.Equal(t, true, body["matched"])
	assert.Equal(t, "iyzico", body["nodeId"])
	assert.Equal(t, map[string]any{"providers": []any{"IYZICO"}}, body["payload"])
	assert.Len(t, body["trace"], 3)

	// Missing field: the condition is false.
	resp, err = svc.EvaluateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, cartTree, `}`)))
	require.NoError(t, err)
	assert.Equal(t, "paytr", resp.AsMap()["nodeId"])

	_, err = svc.EvaluateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, brokenTree, `, "context": {}}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.EvaluateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, cartTree, `, "context": [1]}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.EvaluateTree(ctx, req(t, `{"domain": "payment-routing", "context": {}}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.EvaluateTree(ctx, req(t, withTree(`{"domain": "shipping", `, cartTree, `}`)))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestEvaluateTree_DeadlineExceeded(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := svc.EvaluateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, cartTree, `}`)))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestEvaluateTree_TooLarge(t *testing.T) {
	svc, err := NewDecisionService(newEngine(t), nil, nil, 128)
	require.NoError(t, err)

	_, err = svc.EvaluateTree(context.Background(), req(t, withTree(`{"domain": "payment-routing", `, cartTree, `}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), types.ErrTreeTooLarge.Error())
}

func TestStoredTreeLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	resp, err := svc.SaveTree(ctx, req(t, withTree(`{"domain": "payment-routing", "name": "high value", `, cartTree, `}`)))
	require.NoError(t, err)
	id := resp.AsMap()["id"].(string)
	assert.Equal(t, "high value", resp.AsMap()["name"])

	resp, err = svc.GetTree(ctx, req(t, `{"id": "`+id+`"}`))
	require.NoError(t, err)
	assert.Equal(t, domains.PaymentRouting, resp.AsMap()["domain"])

	resp, err = svc.EvaluateTree(ctx, req(t, `{"treeId": "`+id+`", "context": {"CART_TOTAL": 100}}`))
	require.NoError(t, err)
	assert.Equal(t, "paytr", resp.AsMap()["nodeId"])

	_, err = svc.EvaluateTree(ctx, req(t, `{"treeId": "`+id+`", "domain": "customer-segmentation"}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.EvaluateTree(ctx, req(t, withTree(`{"treeId": "`+id+`", `, cartTree, `}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err = svc.SaveTree(ctx, req(t, withTree(`{"id": "`+id+`", "name": "renamed", `, cartTree, `}`)))
	require.NoError(t, err)
	assert.Equal(t, "renamed", resp.AsMap()["name"])

	_, err = svc.SaveTree(ctx, req(t, withTree(`{"id": "`+id+`", "name": "renamed", `, brokenTree, `}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err = svc.ListTrees(ctx, req(t, `{"domain": "payment-routing"}`))
	require.NoError(t, err)
	assert.Len(t, resp.AsMap()["trees"], 1)

	resp, err = svc.ListTrees(ctx, req(t, `{"domain": "customer-segmentation"}`))
	require.NoError(t, err)
	assert.Empty(t, resp.AsMap()["trees"])

	_, err = svc.ListTrees(ctx, req(t, `{"domain": "shipping"}`))
	assert.Equal(t, codes.NotFound, status.Code(err))

	resp, err = svc.DeleteTree(ctx, req(t, `{"id": "`+id+`"}`))
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["deleted"])

	_, err = svc.GetTree(ctx, req(t, `{"id": "`+id+`"}`))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.DeleteTree(ctx, req(t, `{"id": "`+id+`"}`))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestSaveTree_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.SaveTree(ctx, req(t, withTree(`{"domain": "payment-routing", "name": "broken", `, brokenTree, `}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.SaveTree(ctx, req(t, withTree(`{"domain": "payment-routing", "name": "", `, cartTree, `}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.SaveTree(ctx, req(t, withTree(`{"name": "no domain", `, cartTree, `}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.SaveTree(ctx, req(t, withTree(`{"id": "nope", "name": "x", `, cartTree, `}`)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.SaveTree(ctx, req(t, withTree(`{"id": "`+string(types.NewTreeID())+`", "name": "x", `, cartTree, `}`)))
	assert.Equal(t, codes.NotFound, status.Code(err))

	resp, err := svc.ListTrees(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.AsMap()["trees"])
}

func TestStorageWithoutStore(t *testing.T) {
	ctx := context.Background()
	svc, err := NewDecisionService(newEngine(t), nil, nil, 0)
	require.NoError(t, err)

	_, err = svc.GetTree(ctx, req(t, `{"id": "`+string(types.NewTreeID())+`"}`))
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = svc.SaveTree(ctx, req(t, withTree(`{"domain": "payment-routing", "name": "x", `, cartTree, `}`)))
	assert.Equal(t, codes.Unavailable, status.Code(err))

	// Inline evaluation needs no store.
	_, err = svc.EvaluateTree(ctx, req(t, withTree(`{"domain": "payment-routing", `, cartTree, `}`)))
	assert.NoError(t, err)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{&rules.UnknownDomainError{Name: "x"}, codes.NotFound},
		{types.ErrTreeNotFound, codes.NotFound},
		{&rules.TreeError{Err: types.ErrCycleDetected, EdgeID: "e9"}, codes.InvalidArgument},
		{errBadRequest, codes.InvalidArgument},
		{assert.AnError, codes.Unavailable},
		{status.Error(codes.Internal, "boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), "%v", tt.err)
	}
}
