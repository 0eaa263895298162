// Package nstart implements the start marker node. It does nothing except
// hand control to its successor; the persistence shape keeps it so every
// scenario has an explicit entry point on the canvas.
package nstart

import (
	"context"

	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

type NodeStart struct {
	FlowNodeID idwrap.IDWrap
	Name       string
}

func New(id idwrap.IDWrap, name string) *NodeStart {
	return &NodeStart{
		FlowNodeID: id,
		Name:       name,
	}
}

func (n *NodeStart) GetID() idwrap.IDWrap {
	return n.FlowNodeID
}

func (n *NodeStart) GetName() string {
	return n.Name
}

func (n *NodeStart) RunSync(_ context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	return node.FlowNodeResult{
		NextNodeID: node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleUnspecified),
	}
}
