package scenariojson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testflow/engine/pkg/model/mscenario"
)

const canvasDoc = `{
  "name": "login-flow",
  "nodes": [
    {"id": "n-start", "type": "start", "position": {"x": 0, "y": 0}, "data": {"name": "start"}},
    {"id": "n-login", "type": "api", "position": {"x": 100, "y": 0}, "data": {
      "name": "login",
      "description": "sign the test user in",
      "resourceId": "req-42",
      "timeout_ms": 1500,
      "method": "POST",
      "url": "/login",
      "headers": {"X-Trace": "1"},
      "body": {"kind": "json", "text": "{\"user\":\"{{user}}\"}"},
      "assertions": ["{{status_code}} == 200"],
      "extract": [{"name": "token", "path": "response.body.token"}]
    }},
    {"id": "n-gate", "type": "condition", "position": {"x": 200, "y": 0}, "data": {
      "name": "gate",
      "expression": "{{status_code}} == 200"
    }},
    {"id": "n-loop", "type": "loop", "position": {"x": 300, "y": 0}, "data": {
      "name": "retry",
      "loops": 3,
      "error_policy": "ignore"
    }},
    {"id": "n-child", "type": "wait", "position": {"x": 300, "y": 100}, "data": {
      "name": "pause",
      "duration_ms": 50
    }},
    {"id": "n-done", "type": "script", "position": {"x": 400, "y": 0}, "data": {
      "name": "done",
      "code": "finish()"
    }}
  ],
  "edges": [
    {"id": "e1", "source": "n-start", "target": "n-login"},
    {"id": "e2", "source": "n-login", "target": "n-gate"},
    {"id": "e3", "source": "n-gate", "target": "n-loop", "sourceHandle": "true"},
    {"id": "e4", "source": "n-gate", "target": "n-done", "sourceHandle": "false"},
    {"id": "e5", "source": "n-loop", "target": "n-child", "sourceHandle": "loop"},
    {"id": "e6", "source": "n-loop", "target": "n-done"}
  ]
}`

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

func TestImportCanvasShape(t *testing.T) {
	g, err := Import([]byte(canvasDoc))
	require.NoError(t, err)

	assert.Equal(t, "login-flow", g.Name)
	require.Len(t, g.Nodes, 6)
	require.Len(t, g.Edges, 6)

	login := nodeByName(t, g, "login")
	assert.Equal(t, mscenario.NodeKindAPI, login.Kind)
	assert.Equal(t, "sign the test user in", login.Description)
	assert.Equal(t, "req-42", login.ResourceID)
	require.NotNil(t, login.API)
	assert.Equal(t, "POST", login.API.Method)
	assert.Equal(t, int64(1500), login.API.TimeoutMS)
	assert.Equal(t, mscenario.BodyKindJSON, login.API.Body.Kind)
	assert.Equal(t, []string{"{{status_code}} == 200"}, login.API.Assertions)
	require.Len(t, login.API.Extract, 1)
	assert.Equal(t, "token", login.API.Extract[0].Name)

	gate := nodeByName(t, g, "gate")
	require.NotNil(t, gate.Condition)
	assert.Equal(t, "{{status_code}} == 200", gate.Condition.Condition.Comparisons.Expression)

	retry := nodeByName(t, g, "retry")
	require.NotNil(t, retry.Loop)
	assert.Equal(t, int64(3), retry.Loop.Loops)
	assert.Equal(t, mscenario.LoopErrorIgnore, retry.Loop.ErrorPolicy)

	pause := nodeByName(t, g, "pause")
	require.NotNil(t, pause.Wait)
	assert.Equal(t, int64(50), pause.Wait.DurationMS)
}

func TestImportEdgeHandles(t *testing.T) {
	g, err := Import([]byte(canvasDoc))
	require.NoError(t, err)

	gate := nodeByName(t, g, "gate")
	retry := nodeByName(t, g, "retry")
	pause := nodeByName(t, g, "pause")
	done := nodeByName(t, g, "done")

	handles := make(map[mscenario.EdgeHandle][]string)
	for _, e := range g.Edges {
		if e.SourceID == gate.ID || e.SourceID == retry.ID {
			var target string
			switch e.TargetID {
			case retry.ID:
				target = "retry"
			case pause.ID:
				target = "pause"
			case done.ID:
				target = "done"
			}
			handles[e.Handle] = append(handles[e.Handle], target)
		}
	}

	assert.Equal(t, []string{"retry"}, handles[mscenario.HandleThen])
	assert.Contains(t, handles[mscenario.HandleElse], "done")
	assert.Equal(t, []string{"pause"}, handles[mscenario.HandleLoop])
}

func TestImportRejectsUnknownType(t *testing.T) {
	_, err := Import([]byte(`{"name":"x","nodes":[{"id":"a","type":"teleport","data":{"name":"a"}}],"edges":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestImportRejectsDuplicateNodeID(t *testing.T) {
	_, err := Import([]byte(`{"name":"x","nodes":[
		{"id":"a","type":"start","data":{"name":"a"}},
		{"id":"a","type":"wait","data":{"name":"b","duration_ms":1}}
	],"edges":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestImportRejectsUnknownEdgeEndpoint(t *testing.T) {
	_, err := Import([]byte(`{"name":"x","nodes":[
		{"id":"a","type":"start","data":{"name":"a"}}
	],"edges":[{"id":"e","source":"a","target":"ghost"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}

func TestImportRejectsUnknownHandle(t *testing.T) {
	_, err := Import([]byte(`{"name":"x","nodes":[
		{"id":"a","type":"start","data":{"name":"a"}},
		{"id":"b","type":"wait","data":{"name":"b","duration_ms":1}}
	],"edges":[{"id":"e","source":"a","target":"b","sourceHandle":"maybe"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sourceHandle")
}

func TestImportNodeNameDefaultsToCanvasID(t *testing.T) {
	g, err := Import([]byte(`{"name":"x","nodes":[{"id":"n-1","type":"start","data":{}}],"edges":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "n-1", g.Nodes[0].Name)
}

func TestExportImportRoundTrip(t *testing.T) {
	g, err := Import([]byte(canvasDoc))
	require.NoError(t, err)

	data, err := Export(g)
	require.NoError(t, err)

	again, err := Import(data)
	require.NoError(t, err)

	require.Len(t, again.Nodes, len(g.Nodes))
	require.Len(t, again.Edges, len(g.Edges))

	login := nodeByName(t, again, "login")
	assert.Equal(t, mscenario.BodyKindJSON, login.API.Body.Kind)
	assert.Equal(t, `{"user":"{{user}}"}`, login.API.Body.Text)
	assert.Equal(t, "sign the test user in", login.Description)
	assert.Equal(t, "req-42", login.ResourceID)
	assert.Equal(t, int64(1500), login.API.TimeoutMS)

	retry := nodeByName(t, again, "retry")
	assert.Equal(t, mscenario.LoopErrorIgnore, retry.Loop.ErrorPolicy)

	// Branch labels survive the round trip.
	handleCounts := map[mscenario.EdgeHandle]int{}
	for _, e := range again.Edges {
		handleCounts[e.Handle]++
	}
	assert.Equal(t, 1, handleCounts[mscenario.HandleThen])
	assert.Equal(t, 1, handleCounts[mscenario.HandleElse])
	assert.Equal(t, 1, handleCounts[mscenario.HandleLoop])
	assert.Equal(t, 3, handleCounts[mscenario.HandleUnspecified])
}
