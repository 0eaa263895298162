// Package nloop implements the loop node. The loop owns a subgraph entered
// through the loop edge handle and re-runs it per iteration; the main graph
// stays acyclic because the re-entry happens here, never through back-edges.
// Context layers accumulate across iterations, so variables extracted inside
// the loop stay visible after it exits.
package nloop

import (
	"context"
	"fmt"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/flow/runner"
	"testflow/engine/pkg/flow/runner/flowlocalrunner"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
	"testflow/engine/pkg/varcontext"
)

type NodeLoop struct {
	FlowNodeID idwrap.IDWrap
	Name       string
	Config     *mscenario.LoopConfig
}

func New(id idwrap.IDWrap, name string, config *mscenario.LoopConfig) *NodeLoop {
	return &NodeLoop{
		FlowNodeID: id,
		Name:       name,
		Config:     config,
	}
}

func (n *NodeLoop) GetID() idwrap.IDWrap {
	return n.FlowNodeID
}

func (n *NodeLoop) GetName() string {
	return n.Name
}

func (n *NodeLoop) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	nextNodes := node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleUnspecified)
	subgraphStart := node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleLoop)

	vars := req.Vars
	total := n.Config.Loops
	unbounded := total == 0
	safetyCap := req.LoopSafetyCap
	if safetyCap <= 0 {
		safetyCap = runner.DefaultLoopSafetyCap
	}

	iterations := int64(0)

loop:
	for i := int64(0); ; i++ {
		if err := ctx.Err(); err != nil {
			return node.FlowNodeResult{Vars: vars, Err: errmap.Map(err)}
		}

		if !unbounded && i >= total {
			break
		}
		if unbounded && i >= safetyCap {
			return node.FlowNodeResult{
				Vars: vars,
				Err: errmap.New(errmap.CodeLoopSafetyLimit,
					fmt.Sprintf("loop %q exceeded safety cap of %d iterations", n.Name, safetyCap), nil),
			}
		}

		if n.Config.BreakExpression != "" {
			stop, err := vars.Env().EvalInterpolatedBool(ctx, n.Config.BreakExpression)
			if err != nil {
				return node.FlowNodeResult{Vars: vars, Err: errmap.New(errmap.CodeExpressionRuntime, "", err)}
			}
			if stop {
				break
			}
		}

		// A loop without children still counts its iterations, but an
		// unbounded loop with nothing to run would only spin.
		if len(subgraphStart) == 0 {
			if unbounded {
				break
			}
			iterations++
			continue
		}

		iterVars, err := runIteration(ctx, n, req, vars, i)
		iterations++
		if err != nil {
			switch n.Config.ErrorPolicy {
			case mscenario.LoopErrorIgnore:
				continue
			case mscenario.LoopErrorBreak:
				break loop
			default:
				return node.FlowNodeResult{Vars: vars, Err: err}
			}
		}
		vars = iterVars
	}

	return node.FlowNodeResult{
		NextNodeID: nextNodes,
		Vars:       vars,
		Output: map[string]any{
			"iterations": iterations,
		},
	}
}

// runIteration executes one pass over the owned subgraph with the iteration
// index published under the loop's name.
func runIteration(ctx context.Context, n *NodeLoop, req *node.FlowNodeRequest, vars *varcontext.Context, index int64) (*varcontext.Context, error) {
	subgraphStart := node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleLoop)

	iterVars := vars.Extend(map[string]any{
		n.Name: map[string]any{"index": index},
	})

	childReq := *req
	childReq.Vars = iterVars
	childReq.IterationContext = childIterationContext(req.IterationContext, index)

	return flowlocalrunner.RunNodeSync(ctx, subgraphStart[0], &childReq, req.LogPushFunc)
}

func childIterationContext(parent *runner.IterationContext, index int64) *runner.IterationContext {
	var path []int
	if parent != nil {
		path = append(path, parent.IterationPath...)
	}
	path = append(path, int(index))
	return &runner.IterationContext{IterationPath: path}
}
