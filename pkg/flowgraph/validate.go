// Package flowgraph validates scenario graphs before execution. Validation
// is wholesale: every violation found is reported, nothing is auto-repaired,
// and a graph with any violation is rejected as a unit.
package flowgraph

import (
	"fmt"

	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

type ViolationKind string

const (
	ViolationDanglingEdge    ViolationKind = "dangling_edge"
	ViolationBranchFanout    ViolationKind = "branch_fanout"
	ViolationCycle           ViolationKind = "cycle"
	ViolationMissingStart    ViolationKind = "missing_start"
	ViolationAmbiguousStart  ViolationKind = "ambiguous_start"
	ViolationUnreachableNode ViolationKind = "unreachable_node"
)

// Violation points at one structural problem. NodeID and EdgeID are set
// when the violation is anchored to a specific node or edge.
type Violation struct {
	Kind    ViolationKind
	NodeID  idwrap.IDWrap
	EdgeID  idwrap.IDWrap
	Message string
}

// ValidationResult collects all violations of a graph.
type ValidationResult struct {
	Violations []Violation

	startNodeID idwrap.IDWrap
}

// Valid reports whether the graph passed with no violations.
func (r ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// StartNodeID returns the unique entry node id found during validation.
// Only meaningful when Valid() is true.
func (r ValidationResult) StartNodeID() idwrap.IDWrap {
	return r.startNodeID
}

// Validate checks a scenario graph's structure:
//   - every edge endpoint references an existing node
//   - condition nodes have at most one then and one else edge
//   - the non-loop edge set is acyclic (loop subgraphs are entered through
//     the loop handle and owned by the loop node, never via back-edges)
//   - exactly one node has no incoming edge (the start node)
//   - every node is reachable from the start
func Validate(g *mscenario.ScenarioGraph) ValidationResult {
	var result ValidationResult

	nodeSet := make(map[idwrap.IDWrap]*mscenario.Node, len(g.Nodes))
	for i := range g.Nodes {
		nodeSet[g.Nodes[i].ID] = &g.Nodes[i]
	}

	incoming := make(map[idwrap.IDWrap]int)
	thenCount := make(map[idwrap.IDWrap]int)
	elseCount := make(map[idwrap.IDWrap]int)

	for _, e := range g.Edges {
		dangling := false
		if _, ok := nodeSet[e.SourceID]; !ok {
			result.Violations = append(result.Violations, Violation{
				Kind:    ViolationDanglingEdge,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge source %s is not a node of the graph", e.SourceID),
			})
			dangling = true
		}
		if _, ok := nodeSet[e.TargetID]; !ok {
			result.Violations = append(result.Violations, Violation{
				Kind:    ViolationDanglingEdge,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge target %s is not a node of the graph", e.TargetID),
			})
			dangling = true
		}
		if dangling {
			continue
		}

		incoming[e.TargetID]++
		switch e.Handle {
		case mscenario.HandleThen:
			thenCount[e.SourceID]++
		case mscenario.HandleElse:
			elseCount[e.SourceID]++
		}
	}

	for id, n := range nodeSet {
		if n.Kind != mscenario.NodeKindCondition {
			continue
		}
		if thenCount[id] > 1 {
			result.Violations = append(result.Violations, Violation{
				Kind:    ViolationBranchFanout,
				NodeID:  id,
				Message: fmt.Sprintf("condition node %q has %d then edges, at most 1 allowed", n.Name, thenCount[id]),
			})
		}
		if elseCount[id] > 1 {
			result.Violations = append(result.Violations, Violation{
				Kind:    ViolationBranchFanout,
				NodeID:  id,
				Message: fmt.Sprintf("condition node %q has %d else edges, at most 1 allowed", n.Name, elseCount[id]),
			})
		}
	}

	checkCycles(g, nodeSet, &result)

	// Start detection: the unique node with no incoming edge. Loop-handle
	// edges count as incoming for their subgraph roots.
	var starts []idwrap.IDWrap
	for i := range g.Nodes {
		if incoming[g.Nodes[i].ID] == 0 {
			starts = append(starts, g.Nodes[i].ID)
		}
	}
	switch {
	case len(g.Nodes) == 0 || len(starts) == 0:
		result.Violations = append(result.Violations, Violation{
			Kind:    ViolationMissingStart,
			Message: "no node without incoming edges; the graph has no entry point",
		})
	case len(starts) > 1:
		for _, id := range starts {
			result.Violations = append(result.Violations, Violation{
				Kind:    ViolationAmbiguousStart,
				NodeID:  id,
				Message: "multiple nodes without incoming edges; entry point is ambiguous",
			})
		}
	default:
		result.startNodeID = starts[0]
		checkReachability(g, starts[0], nodeSet, &result)
	}

	return result
}

// checkCycles runs a DFS three-color walk over the non-loop edge set. Loop
// handle edges are excluded: a loop's subgraph is re-entered by the loop
// node itself, so those edges are not part of the sequential order.
func checkCycles(g *mscenario.ScenarioGraph, nodeSet map[idwrap.IDWrap]*mscenario.Node, result *ValidationResult) {
	adj := make(map[idwrap.IDWrap][]idwrap.IDWrap)
	for _, e := range g.Edges {
		if e.Handle == mscenario.HandleLoop {
			continue
		}
		if _, ok := nodeSet[e.SourceID]; !ok {
			continue
		}
		if _, ok := nodeSet[e.TargetID]; !ok {
			continue
		}
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[idwrap.IDWrap]int, len(nodeSet))
	reported := make(map[idwrap.IDWrap]bool)

	var visit func(id idwrap.IDWrap) bool
	visit = func(id idwrap.IDWrap) bool {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				if !reported[next] {
					reported[next] = true
					result.Violations = append(result.Violations, Violation{
						Kind:    ViolationCycle,
						NodeID:  next,
						Message: fmt.Sprintf("node %q is part of a cycle", nodeSet[next].Name),
					})
				}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for i := range g.Nodes {
		if color[g.Nodes[i].ID] == white {
			visit(g.Nodes[i].ID)
		}
	}
}

// checkReachability walks all handles (loop included) from the start node
// and flags nodes the walk never reaches.
func checkReachability(g *mscenario.ScenarioGraph, startID idwrap.IDWrap, nodeSet map[idwrap.IDWrap]*mscenario.Node, result *ValidationResult) {
	edgesMap := g.EdgesMap()

	visited := make(map[idwrap.IDWrap]bool, len(nodeSet))
	queue := []idwrap.IDWrap{startID}
	visited[startID] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for handle := mscenario.HandleUnspecified; handle < mscenario.HandleLength; handle++ {
			for _, next := range mscenario.GetNextNodeID(edgesMap, current, handle) {
				if _, ok := nodeSet[next]; !ok {
					continue
				}
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
	}

	for i := range g.Nodes {
		id := g.Nodes[i].ID
		if !visited[id] {
			result.Violations = append(result.Violations, Violation{
				Kind:    ViolationUnreachableNode,
				NodeID:  id,
				Message: fmt.Sprintf("node %q is not reachable from the start node", g.Nodes[i].Name),
			})
		}
	}
}
