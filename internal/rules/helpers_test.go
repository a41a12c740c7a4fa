package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

func float(v float64) *float64 { return &v }

// testFields is a small checkout-flavoured registry covering every value type.
func testFields() FieldRegistry {
	return FieldRegistry{
		"CART_TOTAL": {
			Label:     "Cart total",
			ValueType: ValueNumeric,
			Operators: []Operator{OpGte, OpLte, OpGt, OpLt, OpEq, OpNeq, OpBetween},
			Min:       float(0),
		},
		"ITEM_COUNT": {
			Label:     "Item count",
			ValueType: ValueNumeric,
			Operators: []Operator{OpEq, OpGte, OpLte},
			Min:       float(0),
			Max:       float(1000),
		},
		"IS_FIRST_ORDER": {
			Label:     "First order",
			ValueType: ValueBoolean,
			Operators: []Operator{OpIsTrue, OpIsFalse},
		},
		"CUSTOMER_TYPE": {
			Label:     "Customer type",
			ValueType: ValueEnum,
			Operators: []Operator{OpEq, OpNeq, OpIn, OpNotIn},
			Options:   []string{"GUEST", "REGISTERED", "BUSINESS"},
		},
		"CUSTOMER_GROUP": {
			Label:     "Customer group",
			ValueType: ValueRelation,
			Operators: []Operator{OpHasAny, OpHasAll, OpHasNone, OpExists, OpNotExists},
		},
		"SHIPPING_COUNTRY": {
			Label:     "Shipping country",
			ValueType: ValueLocation,
			Operators: []Operator{OpEq, OpNeq, OpIn, OpNotIn},
		},
		"SHIPPING_STATE": {
			Label:     "Shipping state",
			ValueType: ValueLocation,
			Operators: []Operator{OpEq, OpIn},
			DependsOn: []string{"SHIPPING_COUNTRY"},
		},
		"EMAIL": {
			Label:     "Email",
			ValueType: ValueString,
			Operators: []Operator{OpEq, OpContains, OpStartsWith, OpEndsWith},
		},
	}
}

// providersSchema accepts {"providers": [non-empty string, ...]}.
type providersSchema struct{}

func (providersSchema) CheckResult(payload json.RawMessage) error {
	var body struct {
		Providers []string `json:"providers"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("payload must be an object: %v", err)
	}
	if len(body.Providers) == 0 {
		return errors.New("providers must not be empty")
	}
	return nil
}

func testDomain(t *testing.T) *Domain {
	t.Helper()
	reg := NewRegistry()
	d, err := reg.Register("checkout", testFields(), DefaultSchema{RequireKnownOptions: true}, Options{Results: providersSchema{}})
	if err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}
	return d
}

func cond(field string, op Operator, value string) types.Condition {
	c := types.Condition{Field: field, Operator: string(op)}
	if value != "" {
		c.Value = json.RawMessage(value)
	}
	return c
}

func startNode(id string) types.Node {
	return types.Node{ID: id, Type: types.NodeStart}
}

func conditionNode(id string, c types.Condition) types.Node {
	return types.Node{ID: id, Type: types.NodeCondition, Data: types.NodeData{Condition: &c}}
}

func groupNode(id string, combinator types.Combinator, conds ...types.Condition) types.Node {
	return types.Node{ID: id, Type: types.NodeConditionGroup, Data: types.NodeData{Combinator: combinator, Conditions: conds}}
}

func resultNode(id, payload string) types.Node {
	return types.Node{ID: id, Type: types.NodeResult, Data: types.NodeData{Result: json.RawMessage(payload)}}
}

func edge(source, target string, tag types.EdgeTag) types.Edge {
	return types.Edge{ID: source + "-" + string(tag) + "-" + target, Source: source, Target: target, Tag: tag}
}

// decisionTree builds start -> decision -> yes/no results.
func decisionTree(decision types.Node) *types.DecisionTree {
	return &types.DecisionTree{
		Nodes: []types.Node{
			startNode("start"),
			decision,
			resultNode("yes", `{"providers":["IYZICO"]}`),
			resultNode("no", `{"providers":["PAYTR"]}`),
		},
		Edges: []types.Edge{
			edge("start", decision.ID, types.TagDefault),
			edge(decision.ID, "yes", types.TagYes),
			edge(decision.ID, "no", types.TagNo),
		},
	}
}

// errorsMatching returns the problems in err that wrap target.
func errorsMatching(err, target error) []error {
	var out []error
	for _, e := range Errors(err) {
		if errors.Is(e, target) {
			out = append(out, e)
		}
	}
	return out
}
