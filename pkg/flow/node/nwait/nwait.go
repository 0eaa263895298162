// Package nwait implements the wait node: a context-aware sleep of a
// configured number of milliseconds.
package nwait

import (
	"context"
	"fmt"
	"time"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

type NodeWait struct {
	FlowNodeID idwrap.IDWrap
	Name       string
	DurationMS int64
}

func New(id idwrap.IDWrap, name string, durationMS int64) *NodeWait {
	return &NodeWait{
		FlowNodeID: id,
		Name:       name,
		DurationMS: durationMS,
	}
}

func (n *NodeWait) GetID() idwrap.IDWrap {
	return n.FlowNodeID
}

func (n *NodeWait) GetName() string {
	return n.Name
}

func (n *NodeWait) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	if n.DurationMS < 0 {
		return node.FlowNodeResult{
			Err: errmap.New(errmap.CodeValidation, fmt.Sprintf("wait node %q has negative duration %dms", n.Name, n.DurationMS), nil),
		}
	}

	if n.DurationMS > 0 {
		timer := time.NewTimer(time.Duration(n.DurationMS) * time.Millisecond)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return node.FlowNodeResult{Err: errmap.Map(ctx.Err())}
		case <-timer.C:
		}
	}

	return node.FlowNodeResult{
		NextNodeID: node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleUnspecified),
		Output:     map[string]any{"waited_ms": n.DurationMS},
	}
}
