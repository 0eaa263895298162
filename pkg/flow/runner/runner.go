package runner

import (
	"context"
	"errors"
	"time"

	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

var (
	ErrFlowRunnerNotImplemented = errors.New("flowrunner not implemented")
	ErrNodeNotFound             = errors.New("next node not found")
)

type FlowRunner interface {
	Run(context.Context, chan FlowNodeStatus, chan RunState) error
}

// RunState is the lifecycle of a whole scenario run.
type RunState int8

const (
	RunStatePending RunState = iota
	RunStateRunning
	RunStateCompleted
	RunStateFailed
	RunStateCancelled
)

func (s RunState) String() string {
	return [...]string{"pending", "running", "completed", "failed", "cancelled"}[s]
}

// IsRunStateDone reports whether the state is terminal.
func IsRunStateDone(s RunState) bool {
	return s == RunStateCompleted || s == RunStateFailed || s == RunStateCancelled
}

// DefaultLoopSafetyCap bounds unbounded loops (Loops == 0) when the run
// configuration does not set its own cap.
const DefaultLoopSafetyCap int64 = 10_000

// RunConfiguration carries per-run knobs: the wall-clock timeout for the
// whole run (zero means none) and the iteration ceiling for unbounded
// loops.
type RunConfiguration struct {
	Timeout       time.Duration
	LoopSafetyCap int64
}

// CapOrDefault returns the configured safety cap, or the default when
// unset.
func (c RunConfiguration) CapOrDefault() int64 {
	if c.LoopSafetyCap > 0 {
		return c.LoopSafetyCap
	}
	return DefaultLoopSafetyCap
}

// IterationContext names where inside nested loops an execution happened,
// e.g. IterationPath [1 2] is the third node execution of iteration 2 of
// the outer loop.
type IterationContext struct {
	IterationPath  []int `json:"iteration_path"`
	ExecutionIndex int   `json:"execution_index"`
}

// FlowNodeStatus is one observation of a node's lifecycle, pushed to the
// status channel as the controller walks the graph.
type FlowNodeStatus struct {
	ExecutionID      idwrap.IDWrap
	NodeID           idwrap.IDWrap
	Name             string
	State            mscenario.NodeState
	OutputData       any
	Extracted        map[string]any
	Log              []string
	StartedAt        time.Time
	RunDuration      time.Duration
	Error            error
	IterationContext *IterationContext `json:"iteration_context,omitempty"`
}
