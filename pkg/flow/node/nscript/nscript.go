// Package nscript implements the script node. Script execution is
// delegated to a ScriptRunner collaborator; the node feeds it the current
// variable snapshot and folds the outcome's extracted variables back into
// the run context.
package nscript

import (
	"context"
	"errors"
	"strings"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

// Outcome statuses a runner may report.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ScriptOutcome is the runner's verdict: a status, variables to publish
// into the run context, and captured log output.
type ScriptOutcome struct {
	Status    string
	Extracted map[string]any
	Log       string
}

// ScriptRunner executes script code against a read-only variable snapshot.
type ScriptRunner interface {
	Run(ctx context.Context, code string, vars map[string]any) (ScriptOutcome, error)
}

type NodeScript struct {
	FlowNodeID idwrap.IDWrap
	Name       string
	Config     *mscenario.ScriptConfig
	Runner     ScriptRunner
}

func New(id idwrap.IDWrap, name string, config *mscenario.ScriptConfig, runner ScriptRunner) *NodeScript {
	return &NodeScript{
		FlowNodeID: id,
		Name:       name,
		Config:     config,
		Runner:     runner,
	}
}

func (n *NodeScript) GetID() idwrap.IDWrap {
	return n.FlowNodeID
}

func (n *NodeScript) GetName() string {
	return n.Name
}

func (n *NodeScript) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	if n.Runner == nil {
		return node.FlowNodeResult{
			Err: errmap.New(errmap.CodeScript, "script node has no runner configured", nil),
		}
	}

	runCtx, cancel := node.WithNodeTimeout(ctx, n.Config.TimeoutMS)
	defer cancel()

	outcome, err := n.Runner.Run(runCtx, n.Config.Code, req.Vars.Snapshot())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return node.FlowNodeResult{Err: errmap.Map(err)}
		}
		return node.FlowNodeResult{Err: errmap.New(errmap.CodeScript, "", err)}
	}

	output := map[string]any{
		"status": outcome.Status,
		"log":    outcome.Log,
	}
	var logLines []string
	if outcome.Log != "" {
		logLines = strings.Split(strings.TrimRight(outcome.Log, "\n"), "\n")
	}

	if outcome.Status == StatusFailed {
		return node.FlowNodeResult{
			Output: output,
			Log:    logLines,
			Err:    errmap.New(errmap.CodeScript, outcome.Log, nil),
		}
	}

	req.LoggerOrDefault().InfoContext(ctx, "script completed",
		"node", n.Name,
		"status", outcome.Status,
	)

	return node.FlowNodeResult{
		NextNodeID: node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleUnspecified),
		Output:     output,
		Log:        logLines,
		Extracted:  outcome.Extracted,
	}
}
