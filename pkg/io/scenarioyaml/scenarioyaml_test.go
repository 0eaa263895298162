package scenarioyaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testflow/engine/pkg/flowgraph"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

const yamlDoc = `
name: checkout
steps:
  - name: login
    api:
      method: POST
      url: /login
      body_json: '{"user": "{{user}}"}'
    timeout_ms: 2000
    assertions:
      - "{{status_code}} == 200"
    extract:
      token: response.body.token
  - name: gate
    condition: "{{status_code}} == 200"
    else: backoff
  - name: retry
    loop:
      count: 3
      on_error: ignore
      steps:
        - name: poll
          api:
            url: /status
  - name: record
    sql:
      query: "INSERT INTO audit (token) VALUES (?)"
      args: ["{{token}}"]
  - name: finish
    script: "finalize()"
  - name: backoff
    wait_ms: 100
`

func nodeByName(t *testing.T, g *mscenario.ScenarioGraph, name string) *mscenario.Node {
	t.Helper()
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	t.Fatalf("node %q not found", name)
	return nil
}

func edgeBetween(g *mscenario.ScenarioGraph, source, target idwrap.IDWrap) (mscenario.Edge, bool) {
	for _, e := range g.Edges {
		if e.SourceID == source && e.TargetID == target {
			return e, true
		}
	}
	return mscenario.Edge{}, false
}

func TestImportBuildsNodes(t *testing.T) {
	g, err := Import([]byte(yamlDoc))
	require.NoError(t, err)

	assert.Equal(t, "checkout", g.Name)
	// Implicit start + six declared steps + the nested loop step.
	require.Len(t, g.Nodes, 8)

	start := nodeByName(t, g, "start")
	assert.Equal(t, mscenario.NodeKindStart, start.Kind)

	login := nodeByName(t, g, "login")
	require.NotNil(t, login.API)
	assert.Equal(t, "POST", login.API.Method)
	assert.Equal(t, int64(2000), login.API.TimeoutMS)
	assert.Equal(t, mscenario.BodyKindJSON, login.API.Body.Kind)
	require.Len(t, login.API.Extract, 1)
	assert.Equal(t, "token", login.API.Extract[0].Name)
	assert.Equal(t, "response.body.token", login.API.Extract[0].Path)

	retry := nodeByName(t, g, "retry")
	require.NotNil(t, retry.Loop)
	assert.Equal(t, int64(3), retry.Loop.Loops)
	assert.Equal(t, mscenario.LoopErrorIgnore, retry.Loop.ErrorPolicy)

	record := nodeByName(t, g, "record")
	require.NotNil(t, record.SQL)
	assert.Equal(t, []string{"{{token}}"}, record.SQL.Args)

	finish := nodeByName(t, g, "finish")
	require.NotNil(t, finish.Script)
	assert.Equal(t, "finalize()", finish.Script.Code)
}

func TestImportWiring(t *testing.T) {
	g, err := Import([]byte(yamlDoc))
	require.NoError(t, err)

	start := nodeByName(t, g, "start")
	login := nodeByName(t, g, "login")
	gate := nodeByName(t, g, "gate")
	retry := nodeByName(t, g, "retry")
	poll := nodeByName(t, g, "poll")
	record := nodeByName(t, g, "record")
	backoff := nodeByName(t, g, "backoff")

	e, ok := edgeBetween(g, start.ID, login.ID)
	require.True(t, ok)
	assert.Equal(t, mscenario.HandleUnspecified, e.Handle)

	// Condition: then defaults to the next step, else jumps by name.
	e, ok = edgeBetween(g, gate.ID, retry.ID)
	require.True(t, ok)
	assert.Equal(t, mscenario.HandleThen, e.Handle)

	e, ok = edgeBetween(g, gate.ID, backoff.ID)
	require.True(t, ok)
	assert.Equal(t, mscenario.HandleElse, e.Handle)

	// The loop enters its subgraph on the loop handle and continues past it
	// on the plain handle.
	e, ok = edgeBetween(g, retry.ID, poll.ID)
	require.True(t, ok)
	assert.Equal(t, mscenario.HandleLoop, e.Handle)

	e, ok = edgeBetween(g, retry.ID, record.ID)
	require.True(t, ok)
	assert.Equal(t, mscenario.HandleUnspecified, e.Handle)

	// Conditions never get an unlabeled continuation.
	for _, edge := range g.Edges {
		if edge.SourceID == gate.ID {
			assert.NotEqual(t, mscenario.HandleUnspecified, edge.Handle)
		}
	}
}

func TestImportedGraphValidates(t *testing.T) {
	g, err := Import([]byte(yamlDoc))
	require.NoError(t, err)

	result := flowgraph.Validate(g)
	assert.True(t, result.Valid(), "violations: %v", result.Violations)
}

func TestImportNoSteps(t *testing.T) {
	_, err := Import([]byte("name: empty\nsteps: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}

func TestImportDuplicateStepName(t *testing.T) {
	doc := `
name: dup
steps:
  - name: a
    wait_ms: 1
  - name: a
    wait_ms: 2
`
	_, err := Import([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step name")
}

func TestImportUnknownBranchTarget(t *testing.T) {
	doc := `
name: bad
steps:
  - name: gate
    condition: "true"
    then: ghost
`
	_, err := Import([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestImportUnnamedStep(t *testing.T) {
	doc := `
name: bad
steps:
  - wait_ms: 1
`
	_, err := Import([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no name")
}

func TestImportUnknownErrorPolicy(t *testing.T) {
	doc := `
name: bad
steps:
  - name: l
    loop:
      count: 1
      on_error: explode
`
	_, err := Import([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown on_error")
}

func TestImportStepWithoutKind(t *testing.T) {
	doc := `
name: bad
steps:
  - name: mystery
`
	_, err := Import([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognizable kind")
}
