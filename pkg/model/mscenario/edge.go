//nolint:revive // exported
package mscenario

import (
	"errors"

	"testflow/engine/pkg/idwrap"
)

type EdgeHandle = int32

// Edge handles label the outgoing side of an edge. Unlabeled edges use
// HandleUnspecified; condition nodes emit HandleThen/HandleElse; loop nodes
// enter their owned subgraph through HandleLoop and continue past the loop
// through HandleUnspecified.
const (
	HandleUnspecified EdgeHandle = iota
	HandleThen
	HandleElse
	HandleLoop
	HandleLength
)

var ErrEdgeNotFound = errors.New("edge not found")

type Edge struct {
	ID         idwrap.IDWrap
	ScenarioID idwrap.IDWrap
	SourceID   idwrap.IDWrap
	TargetID   idwrap.IDWrap
	Handle     EdgeHandle
}

// EdgesMap indexes edges by source node and handle for O(1) successor
// lookup during traversal.
type EdgesMap map[idwrap.IDWrap]map[EdgeHandle][]idwrap.IDWrap

func NewEdge(id, sourceID, targetID idwrap.IDWrap, handle EdgeHandle) Edge {
	return Edge{
		ID:       id,
		SourceID: sourceID,
		TargetID: targetID,
		Handle:   handle,
	}
}

func NewEdgesMap(edges []Edge) EdgesMap {
	edgesMap := make(EdgesMap)
	for _, edge := range edges {
		if _, ok := edgesMap[edge.SourceID]; !ok {
			edgesMap[edge.SourceID] = make(map[EdgeHandle][]idwrap.IDWrap)
		}
		edgesMap[edge.SourceID][edge.Handle] = append(edgesMap[edge.SourceID][edge.Handle], edge.TargetID)
	}
	return edgesMap
}

// GetNextNodeID returns the successor node ids for a source node on the
// given handle, or nil when there are none.
func GetNextNodeID(edgesMap EdgesMap, sourceID idwrap.IDWrap, handle EdgeHandle) []idwrap.IDWrap {
	edges, ok := edgesMap[sourceID]
	if !ok {
		return nil
	}
	return edges[handle]
}
