package flowbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/flow/node/napi"
	"testflow/engine/pkg/flow/node/ncondition"
	"testflow/engine/pkg/flow/node/nloop"
	"testflow/engine/pkg/flow/node/nstart"
	"testflow/engine/pkg/flow/node/nwait"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mcondition"
	"testflow/engine/pkg/model/menv"
	"testflow/engine/pkg/model/mscenario"
)

func validGraph() *mscenario.ScenarioGraph {
	startID, apiID, gateID, loopID, childID, waitID := idwrap.NewNow(), idwrap.NewNow(), idwrap.NewNow(), idwrap.NewNow(), idwrap.NewNow(), idwrap.NewNow()
	return &mscenario.ScenarioGraph{
		ID:   idwrap.NewNow(),
		Name: "valid",
		Nodes: []mscenario.Node{
			{ID: startID, Name: "start", Kind: mscenario.NodeKindStart},
			{ID: apiID, Name: "login", Kind: mscenario.NodeKindAPI, API: &mscenario.APIConfig{URL: "/login"}},
			{ID: gateID, Name: "gate", Kind: mscenario.NodeKindCondition, Condition: &mscenario.ConditionConfig{
				Condition: mcondition.Condition{Comparisons: mcondition.Comparison{Expression: "true"}},
			}},
			{ID: loopID, Name: "retry", Kind: mscenario.NodeKindLoop, Loop: &mscenario.LoopConfig{Loops: 2}},
			{ID: childID, Name: "poll", Kind: mscenario.NodeKindAPI, API: &mscenario.APIConfig{URL: "/status"}},
			{ID: waitID, Name: "backoff", Kind: mscenario.NodeKindWait, Wait: &mscenario.WaitConfig{DurationMS: 10}},
		},
		Edges: []mscenario.Edge{
			mscenario.NewEdge(idwrap.NewNow(), startID, apiID, mscenario.HandleUnspecified),
			mscenario.NewEdge(idwrap.NewNow(), apiID, gateID, mscenario.HandleUnspecified),
			mscenario.NewEdge(idwrap.NewNow(), gateID, loopID, mscenario.HandleThen),
			mscenario.NewEdge(idwrap.NewNow(), gateID, waitID, mscenario.HandleElse),
			mscenario.NewEdge(idwrap.NewNow(), loopID, childID, mscenario.HandleLoop),
		},
	}
}

func TestBuildConstructsHandlersPerKind(t *testing.T) {
	g := validGraph()

	built, err := Build(g, Options{Env: menv.Env{Domain: "https://api.example.com"}})
	require.NoError(t, err)

	require.Len(t, built.Nodes, 6)
	assert.False(t, built.StartNodeID.IsZero())

	kinds := map[string]any{}
	for _, n := range built.Nodes {
		kinds[n.GetName()] = n
	}
	assert.IsType(t, &nstart.NodeStart{}, kinds["start"])
	assert.IsType(t, &napi.NodeAPI{}, kinds["login"])
	assert.IsType(t, &ncondition.NodeCondition{}, kinds["gate"])
	assert.IsType(t, &nloop.NodeLoop{}, kinds["retry"])
	assert.IsType(t, &nwait.NodeWait{}, kinds["backoff"])
}

func TestBuildDefaultsDispatcher(t *testing.T) {
	g := validGraph()

	built, err := Build(g, Options{Env: menv.Env{Domain: "https://api.example.com"}})
	require.NoError(t, err)

	api := built.Nodes[g.Nodes[1].ID].(*napi.NodeAPI)
	assert.IsType(t, &napi.HTTPDispatcher{}, api.Dispatcher)
}

func TestBuildRejectsInvalidGraphWholesale(t *testing.T) {
	g := validGraph()
	// Dangling edge invalidates the whole graph.
	g.Edges = append(g.Edges, mscenario.NewEdge(idwrap.NewNow(), g.Nodes[1].ID, idwrap.NewNow(), mscenario.HandleUnspecified))

	built, err := Build(g, Options{})
	require.Error(t, err)
	assert.Nil(t, built)
	assert.Equal(t, errmap.CodeValidation, errmap.CodeOf(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Result.Violations)
}

func TestBuildMissingNodeConfig(t *testing.T) {
	g := validGraph()
	for i := range g.Nodes {
		if g.Nodes[i].Name == "backoff" {
			g.Nodes[i].Wait = nil
		}
	}

	_, err := Build(g, Options{})
	require.Error(t, err)
	assert.Equal(t, errmap.CodeValidation, errmap.CodeOf(err))
	assert.Contains(t, err.Error(), "backoff")
}
