//nolint:revive // exported
package mscenario

import (
	"testflow/engine/pkg/idwrap"
)

// ScenarioGraph is the persisted shape of one scenario: nodes plus directed
// labeled edges. Validation and execution operate on this structure.
type ScenarioGraph struct {
	ID    idwrap.IDWrap
	Name  string
	Nodes []Node
	Edges []Edge
}

// NodeByID returns the node with the given id, if present.
func (g *ScenarioGraph) NodeByID(id idwrap.IDWrap) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// EdgesMap builds the successor index over the graph's edges.
func (g *ScenarioGraph) EdgesMap() EdgesMap {
	return NewEdgesMap(g.Edges)
}
