package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mcondition"
	"testflow/engine/pkg/model/mscenario"
)

func newNode(name string, kind mscenario.NodeKind) mscenario.Node {
	n := mscenario.Node{
		ID:   idwrap.NewNow(),
		Name: name,
		Kind: kind,
	}
	if kind == mscenario.NodeKindCondition {
		n.Condition = &mscenario.ConditionConfig{
			Condition: mcondition.Condition{Comparisons: mcondition.Comparison{Expression: "true"}},
		}
	}
	return n
}

func edge(source, target mscenario.Node, handle mscenario.EdgeHandle) mscenario.Edge {
	return mscenario.NewEdge(idwrap.NewNow(), source.ID, target.ID, handle)
}

func kinds(result ValidationResult) []ViolationKind {
	out := make([]ViolationKind, 0, len(result.Violations))
	for _, v := range result.Violations {
		out = append(out, v.Kind)
	}
	return out
}

func TestValidateLinearGraph(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	a := newNode("a", mscenario.NodeKindAPI)
	b := newNode("b", mscenario.NodeKindWait)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, a, b},
		Edges: []mscenario.Edge{
			edge(start, a, mscenario.HandleUnspecified),
			edge(a, b, mscenario.HandleUnspecified),
		},
	}

	result := Validate(g)
	require.True(t, result.Valid(), "violations: %v", result.Violations)
	assert.Equal(t, start.ID, result.StartNodeID())
}

func TestValidateDanglingEdge(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	a := newNode("a", mscenario.NodeKindAPI)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, a},
		Edges: []mscenario.Edge{
			edge(start, a, mscenario.HandleUnspecified),
			mscenario.NewEdge(idwrap.NewNow(), a.ID, idwrap.NewNow(), mscenario.HandleUnspecified),
		},
	}

	result := Validate(g)
	assert.False(t, result.Valid())
	assert.Contains(t, kinds(result), ViolationDanglingEdge)
}

func TestValidateConditionBranchFanout(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	cond := newNode("gate", mscenario.NodeKindCondition)
	a := newNode("a", mscenario.NodeKindWait)
	b := newNode("b", mscenario.NodeKindWait)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, cond, a, b},
		Edges: []mscenario.Edge{
			edge(start, cond, mscenario.HandleUnspecified),
			edge(cond, a, mscenario.HandleThen),
			edge(cond, b, mscenario.HandleThen),
		},
	}

	result := Validate(g)
	assert.False(t, result.Valid())
	assert.Contains(t, kinds(result), ViolationBranchFanout)
}

func TestValidateConditionSingleBranchesOK(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	cond := newNode("gate", mscenario.NodeKindCondition)
	a := newNode("a", mscenario.NodeKindWait)
	b := newNode("b", mscenario.NodeKindWait)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, cond, a, b},
		Edges: []mscenario.Edge{
			edge(start, cond, mscenario.HandleUnspecified),
			edge(cond, a, mscenario.HandleThen),
			edge(cond, b, mscenario.HandleElse),
		},
	}

	result := Validate(g)
	assert.True(t, result.Valid(), "violations: %v", result.Violations)
}

func TestValidateCycle(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	a := newNode("a", mscenario.NodeKindAPI)
	b := newNode("b", mscenario.NodeKindAPI)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, a, b},
		Edges: []mscenario.Edge{
			edge(start, a, mscenario.HandleUnspecified),
			edge(a, b, mscenario.HandleUnspecified),
			edge(b, a, mscenario.HandleUnspecified),
		},
	}

	result := Validate(g)
	assert.False(t, result.Valid())
	assert.Contains(t, kinds(result), ViolationCycle)
}

func TestValidateLoopSubgraphIsNotACycle(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	loop := newNode("repeat", mscenario.NodeKindLoop)
	child := newNode("child", mscenario.NodeKindAPI)
	after := newNode("after", mscenario.NodeKindWait)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, loop, child, after},
		Edges: []mscenario.Edge{
			edge(start, loop, mscenario.HandleUnspecified),
			edge(loop, child, mscenario.HandleLoop),
			edge(loop, after, mscenario.HandleUnspecified),
		},
	}

	result := Validate(g)
	assert.True(t, result.Valid(), "violations: %v", result.Violations)
}

func TestValidateAmbiguousStart(t *testing.T) {
	a := newNode("a", mscenario.NodeKindAPI)
	b := newNode("b", mscenario.NodeKindAPI)
	c := newNode("c", mscenario.NodeKindWait)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{a, b, c},
		Edges: []mscenario.Edge{
			edge(a, c, mscenario.HandleUnspecified),
			edge(b, c, mscenario.HandleUnspecified),
		},
	}

	result := Validate(g)
	assert.False(t, result.Valid())
	assert.Contains(t, kinds(result), ViolationAmbiguousStart)
}

func TestValidateMissingStart(t *testing.T) {
	a := newNode("a", mscenario.NodeKindAPI)
	b := newNode("b", mscenario.NodeKindAPI)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{a, b},
		Edges: []mscenario.Edge{
			edge(a, b, mscenario.HandleUnspecified),
			edge(b, a, mscenario.HandleUnspecified),
		},
	}

	result := Validate(g)
	assert.False(t, result.Valid())
	assert.Contains(t, kinds(result), ViolationMissingStart)
}

func TestValidateEmptyGraph(t *testing.T) {
	result := Validate(&mscenario.ScenarioGraph{})
	assert.False(t, result.Valid())
	assert.Contains(t, kinds(result), ViolationMissingStart)
}

func TestValidateUnreachableNode(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	a := newNode("a", mscenario.NodeKindAPI)
	orphanA := newNode("orphan-a", mscenario.NodeKindWait)
	orphanB := newNode("orphan-b", mscenario.NodeKindWait)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, a, orphanA, orphanB},
		Edges: []mscenario.Edge{
			edge(start, a, mscenario.HandleUnspecified),
			// Orphans point at each other so only one lacks incoming edges.
			edge(orphanA, orphanB, mscenario.HandleUnspecified),
		},
	}

	result := Validate(g)
	assert.False(t, result.Valid())
	assert.Contains(t, kinds(result), ViolationAmbiguousStart)
}

func TestValidateNeverAutoRepairs(t *testing.T) {
	start := newNode("start", mscenario.NodeKindStart)
	a := newNode("a", mscenario.NodeKindAPI)

	g := &mscenario.ScenarioGraph{
		Nodes: []mscenario.Node{start, a},
		Edges: []mscenario.Edge{
			edge(start, a, mscenario.HandleUnspecified),
			mscenario.NewEdge(idwrap.NewNow(), a.ID, idwrap.NewNow(), mscenario.HandleUnspecified),
		},
	}

	before := len(g.Edges)
	_ = Validate(g)
	assert.Len(t, g.Edges, before)
}
