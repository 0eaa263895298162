// Package node defines the contract between the execution controller and
// individual scenario steps. Nodes receive an immutable variable context and
// report extracted variables back through their result; they never write
// shared state.
package node

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"testflow/engine/pkg/flow/runner"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
	"testflow/engine/pkg/varcontext"
)

var ErrNodeNotFound = errors.New("node not found")

type FlowNode interface {
	GetID() idwrap.IDWrap
	GetName() string

	RunSync(ctx context.Context, req *FlowNodeRequest) FlowNodeResult
}

// FlowNodeRequest carries everything a node needs for one execution. Vars is
// an immutable snapshot; the controller extends it with the result's
// Extracted map before visiting the next node.
type FlowNodeRequest struct {
	Vars             *varcontext.Context
	NodeMap          map[idwrap.IDWrap]FlowNode
	EdgeSourceMap    mscenario.EdgesMap
	Timeout          time.Duration
	LoopSafetyCap    int64
	LogPushFunc      LogPushFunc
	Logger           *slog.Logger
	IterationContext *runner.IterationContext
	ExecutionID      idwrap.IDWrap
}

type LogPushFunc func(status runner.FlowNodeStatus)

// FlowNodeResult is what a node hands back to the controller.
//
// NextNodeID holds the successors to visit; branch nodes return exactly one.
// Extracted variables are layered onto the run context after the node
// completes and are surfaced on the node's recorded status. Output is the
// node's recorded output (namespaced under the node name for downstream
// expressions). Log carries any lines the step captured (script output).
// Vars, when non-nil, replaces the run context wholesale; loop nodes use it
// to publish the context accumulated across their subgraph iterations.
type FlowNodeResult struct {
	NextNodeID []idwrap.IDWrap
	Extracted  map[string]any
	Output     any
	Log        []string
	Vars       *varcontext.Context
	Err        error
}

// NextNodeIDs resolves the successors of a node on the given edge handle.
func NextNodeIDs(req *FlowNodeRequest, sourceID idwrap.IDWrap, handle mscenario.EdgeHandle) []idwrap.IDWrap {
	return mscenario.GetNextNodeID(req.EdgeSourceMap, sourceID, handle)
}

// WithNodeTimeout bounds ctx by a per-node timeout in milliseconds. Zero or
// negative means no limit; the returned cancel is always safe to defer.
func WithNodeTimeout(ctx context.Context, timeoutMS int64) (context.Context, context.CancelFunc) {
	if timeoutMS <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
}

// LoggerOrDefault returns the request logger, falling back to slog's
// default.
func (req *FlowNodeRequest) LoggerOrDefault() *slog.Logger {
	if req.Logger != nil {
		return req.Logger
	}
	return slog.Default()
}
