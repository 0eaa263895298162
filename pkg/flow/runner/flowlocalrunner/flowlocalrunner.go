// Package flowlocalrunner executes a scenario graph in-process: strictly
// sequential traversal from the start node, one branch decision per
// condition, failure terminating the branch and the run.
package flowlocalrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/flow/runner"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
	"testflow/engine/pkg/varcontext"
)

type FlowLocalRunner struct {
	ID          idwrap.IDWrap
	ScenarioID  idwrap.IDWrap
	FlowNodeMap map[idwrap.IDWrap]node.FlowNode
	EdgesMap    mscenario.EdgesMap
	StartNodeID idwrap.IDWrap
	Config      runner.RunConfiguration
	Logger      *slog.Logger
}

func CreateFlowRunner(id, scenarioID, startNodeID idwrap.IDWrap, flowNodeMap map[idwrap.IDWrap]node.FlowNode, edgesMap mscenario.EdgesMap, config runner.RunConfiguration) *FlowLocalRunner {
	return &FlowLocalRunner{
		ID:          id,
		ScenarioID:  scenarioID,
		StartNodeID: startNodeID,
		FlowNodeMap: flowNodeMap,
		EdgesMap:    edgesMap,
		Config:      config,
	}
}

// Run walks the graph from the start node and reports per-node statuses on
// flowNodeStatusChan and run lifecycle transitions on runStateChan. Both
// channels are closed before Run returns. Nodes never reached by the
// traversal (untaken branches, or everything downstream of a failure) are
// reported as skipped once the run reaches a terminal state.
func (r *FlowLocalRunner) Run(ctx context.Context, flowNodeStatusChan chan runner.FlowNodeStatus, runStateChan chan runner.RunState, baseVars *varcontext.Context) error {
	defer close(flowNodeStatusChan)
	defer close(runStateChan)

	runStateChan <- runner.RunStatePending

	executed := make(map[idwrap.IDWrap]struct{})
	logFunc := func(status runner.FlowNodeStatus) {
		executed[status.NodeID] = struct{}{}
		flowNodeStatusChan <- status
	}

	if baseVars == nil {
		baseVars = varcontext.Empty()
	}

	req := &node.FlowNodeRequest{
		Vars:          baseVars,
		NodeMap:       r.FlowNodeMap,
		EdgeSourceMap: r.EdgesMap,
		Timeout:       r.Config.Timeout,
		LoopSafetyCap: r.Config.CapOrDefault(),
		LogPushFunc:   logFunc,
		Logger:        r.Logger,
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if r.Config.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.Config.Timeout)
		defer cancel()
	}

	runStateChan <- runner.RunStateRunning

	_, err := RunNodeSync(runCtx, r.StartNodeID, req, logFunc)

	// Everything the traversal never visited is skipped, regardless of how
	// the run ended.
	for id, n := range r.FlowNodeMap {
		if _, ok := executed[id]; !ok {
			flowNodeStatusChan <- runner.FlowNodeStatus{
				NodeID: id,
				Name:   n.GetName(),
				State:  mscenario.NodeStateSkipped,
			}
		}
	}

	switch {
	case err == nil:
		runStateChan <- runner.RunStateCompleted
	case errors.Is(err, context.Canceled):
		runStateChan <- runner.RunStateCancelled
	default:
		runStateChan <- runner.RunStateFailed
	}
	return err
}

// RunNodeSync walks nodes sequentially starting at startNodeID, threading
// the immutable variable context through: each node's Extracted map and
// Output are layered on before its successor runs. Returns the final
// context. Loop nodes re-enter their owned subgraphs through this same
// function.
func RunNodeSync(ctx context.Context, startNodeID idwrap.IDWrap, req *node.FlowNodeRequest, statusLogFunc node.LogPushFunc) (*varcontext.Context, error) {
	queue := []idwrap.IDWrap{startNodeID}
	vars := req.Vars

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return vars, err
		}

		currentID := queue[0]
		queue = queue[1:]

		currentNode, ok := req.NodeMap[currentID]
		if !ok {
			return vars, fmt.Errorf("%w: %s", node.ErrNodeNotFound, currentID.String())
		}

		executionID := idwrap.NewNow()
		startTime := time.Now()
		statusLogFunc(runner.FlowNodeStatus{
			ExecutionID:      executionID,
			NodeID:           currentID,
			Name:             currentNode.GetName(),
			State:            mscenario.NodeStateRunning,
			StartedAt:        startTime,
			IterationContext: req.IterationContext,
		})

		req.Vars = vars
		req.ExecutionID = executionID
		result := currentNode.RunSync(ctx, req)
		duration := time.Since(startTime)

		if result.Err != nil {
			statusLogFunc(runner.FlowNodeStatus{
				ExecutionID:      executionID,
				NodeID:           currentID,
				Name:             currentNode.GetName(),
				State:            mscenario.NodeStateFailed,
				OutputData:       result.Output,
				Extracted:        result.Extracted,
				Log:              result.Log,
				StartedAt:        startTime,
				RunDuration:      duration,
				Error:            result.Err,
				IterationContext: req.IterationContext,
			})
			return vars, result.Err
		}

		if result.Vars != nil {
			vars = result.Vars
		}
		if len(result.Extracted) > 0 {
			vars = vars.Extend(result.Extracted)
		}
		if result.Output != nil {
			vars = vars.Extend(map[string]any{currentNode.GetName(): result.Output})
		}

		statusLogFunc(runner.FlowNodeStatus{
			ExecutionID:      executionID,
			NodeID:           currentID,
			Name:             currentNode.GetName(),
			State:            mscenario.NodeStateSuccess,
			OutputData:       result.Output,
			Extracted:        result.Extracted,
			Log:              result.Log,
			StartedAt:        startTime,
			RunDuration:      duration,
			IterationContext: req.IterationContext,
		})

		queue = append(queue, result.NextNodeID...)
	}

	req.Vars = vars
	return vars, nil
}
