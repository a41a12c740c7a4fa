package rules

import (
	"errors"
	"testing"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

func TestCompile_Accepts(t *testing.T) {
	d := testDomain(t)
	tree := decisionTree(groupNode("g1", types.CombinatorAnd,
		cond("IS_FIRST_ORDER", OpIsTrue, ""),
		cond("CART_TOTAL", OpGte, "200"),
	))

	compiled, err := Compile(tree, d)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if compiled.NodeCount() != 4 {
		t.Errorf("NodeCount() = %d, want 4", compiled.NodeCount())
	}
	if compiled.Domain() != "checkout" {
		t.Errorf("Domain() = %q, want checkout", compiled.Domain())
	}
}

func TestCompile_UnknownFieldNamesNode(t *testing.T) {
	d := testDomain(t)
	tree := decisionTree(conditionNode("c1", cond("LOYALTY_POINTS", OpGte, "10")))

	err := ValidateTree(tree, d)
	problems := Errors(err)
	if len(problems) != 1 {
		t.Fatalf("ValidateTree() returned %d errors, want 1: %v", len(problems), err)
	}

	var condErr *ConditionError
	if !errors.As(problems[0], &condErr) {
		t.Fatalf("ValidateTree() error type = %T, want *ConditionError", problems[0])
	}
	if condErr.NodeID != "c1" {
		t.Errorf("ConditionError.NodeID = %q, want c1", condErr.NodeID)
	}
	if !errors.Is(err, types.ErrInvalidCondition) {
		t.Errorf("ValidateTree() error = %v, want ErrInvalidCondition", err)
	}
}

func TestCompile_IllegalOperatorNamesNode(t *testing.T) {
	d := testDomain(t)
	tree := decisionTree(conditionNode("c1", cond("CUSTOMER_GROUP", OpEq, `"vip"`)))

	problems := Errors(ValidateTree(tree, d))
	if len(problems) != 1 {
		t.Fatalf("ValidateTree() returned %d errors, want 1", len(problems))
	}
	var condErr *ConditionError
	if !errors.As(problems[0], &condErr) || condErr.NodeID != "c1" || condErr.Operator != OpEq {
		t.Errorf("ValidateTree() error = %v, want ConditionError for c1/EQ", problems[0])
	}
}

func TestCompile_CollectsGroupErrorsWithIndex(t *testing.T) {
	d := testDomain(t)
	tree := decisionTree(groupNode("g1", types.CombinatorOr,
		cond("CART_TOTAL", OpGte, "100"),
		cond("CART_TOTAL", OpGte, `"100"`),
		cond("SHIPPING_COUNTRY", OpHasAny, `["TR"]`),
	))

	problems := Errors(ValidateTree(tree, d))
	if len(problems) != 2 {
		t.Fatalf("ValidateTree() returned %d errors, want 2", len(problems))
	}
	wantIndex := []int{1, 2}
	for i, p := range problems {
		var condErr *ConditionError
		if !errors.As(p, &condErr) {
			t.Fatalf("problem %d type = %T, want *ConditionError", i, p)
		}
		if condErr.NodeID != "g1" || condErr.Index != wantIndex[i] {
			t.Errorf("problem %d = node %s index %d, want g1 index %d", i, condErr.NodeID, condErr.Index, wantIndex[i])
		}
	}
}

func TestCompile_StructuralAndConditionErrorsTogether(t *testing.T) {
	d := testDomain(t)
	tree := decisionTree(conditionNode("c1", cond("COUPON", OpEq, `"X"`)))
	tree.Edges = tree.Edges[:2]

	err := ValidateTree(tree, d)
	if !errors.Is(err, types.ErrMalformedBranch) {
		t.Errorf("ValidateTree() error = %v, want ErrMalformedBranch", err)
	}
	if !errors.Is(err, types.ErrInvalidCondition) {
		t.Errorf("ValidateTree() error = %v, want ErrInvalidCondition", err)
	}
}

func TestCompile_ResultSchema(t *testing.T) {
	d := testDomain(t)
	tree := decisionTree(conditionNode("c1", cond("CART_TOTAL", OpGte, "500")))
	tree.Nodes[3] = resultNode("no", `{"providers":[]}`)

	err := ValidateTree(tree, d)
	var treeErr *TreeError
	if !errors.As(err, &treeErr) || treeErr.NodeID != "no" {
		t.Fatalf("ValidateTree() error = %v, want TreeError on node no", err)
	}
	if !errors.Is(err, types.ErrInvalidResult) {
		t.Errorf("ValidateTree() error = %v, want ErrInvalidResult", err)
	}
}

func TestCompile_GroupShape(t *testing.T) {
	d := testDomain(t)

	single := decisionTree(groupNode("g1", types.CombinatorAnd, cond("CART_TOTAL", OpGte, "1")))
	if err := ValidateTree(single, d); !errors.Is(err, types.ErrInvalidNode) {
		t.Errorf("single-condition group error = %v, want ErrInvalidNode", err)
	}

	noCombinator := decisionTree(groupNode("g1", "", cond("CART_TOTAL", OpGte, "1"), cond("ITEM_COUNT", OpGte, "1")))
	if err := ValidateTree(noCombinator, d); !errors.Is(err, types.ErrInvalidNode) {
		t.Errorf("group without combinator error = %v, want ErrInvalidNode", err)
	}
}

func TestCompile_NilDomain(t *testing.T) {
	tree := decisionTree(conditionNode("c1", cond("CART_TOTAL", OpGte, "500")))
	if _, err := Compile(tree, nil); !errors.Is(err, types.ErrUnknownDomain) {
		t.Errorf("Compile(nil domain) error = %v, want ErrUnknownDomain", err)
	}
}

func TestCompile_PositionIsIgnored(t *testing.T) {
	d := testDomain(t)
	tree := decisionTree(conditionNode("c1", cond("CART_TOTAL", OpGte, "500")))
	tree.Nodes[1].Position = &types.Position{X: -9000, Y: 1e9}

	if err := ValidateTree(tree, d); err != nil {
		t.Fatalf("ValidateTree() error = %v, want nil", err)
	}
}
