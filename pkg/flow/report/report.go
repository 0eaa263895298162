// Package report collects per-node results of a scenario run. The
// aggregator is append-only while the run is live and frozen once the run
// reaches a terminal state; a Reporter collaborator turns the ordered
// results into an externally visible report reference.
package report

import (
	"context"
	"sync"
	"time"

	"testflow/engine/pkg/flow/runner"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

// StepResult is the recorded outcome of one node execution (or a skip
// marker for a node the run never reached).
type StepResult struct {
	ExecutionID   idwrap.IDWrap  `json:"execution_id"`
	NodeID        idwrap.IDWrap  `json:"node_id"`
	Name          string         `json:"name"`
	State         string         `json:"state"`
	Output        any            `json:"output,omitempty"`
	Extracted     map[string]any `json:"extracted,omitempty"`
	Log           []string       `json:"log,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	DurationMS    int64          `json:"duration_ms"`
	Error         string         `json:"error,omitempty"`
	IterationPath []int          `json:"iteration_path,omitempty"`
}

// RunReport is the run response shape: ordered step results plus the
// report reference.
type RunReport struct {
	Steps     []StepResult    `json:"steps"`
	AllureURL string          `json:"allure_url,omitempty"`
	State     runner.RunState `json:"-"`
}

// Reporter publishes the ordered results somewhere external and returns an
// opaque reference (an allure report URL in the default deployment).
type Reporter interface {
	Publish(ctx context.Context, steps []StepResult) (string, error)
}

// Aggregator buffers StepResults in execution order. Safe for concurrent
// appends; Seal freezes it, after which appends are dropped.
type Aggregator struct {
	mu     sync.Mutex
	steps  []StepResult
	sealed bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Consume converts a node status into a StepResult. Running transitions are
// ignored; only terminal node states (success, failed, skipped) are
// recorded.
func (a *Aggregator) Consume(status runner.FlowNodeStatus) {
	switch status.State {
	case mscenario.NodeStateSuccess, mscenario.NodeStateFailed, mscenario.NodeStateSkipped:
	default:
		return
	}

	step := StepResult{
		ExecutionID: status.ExecutionID,
		NodeID:      status.NodeID,
		Name:        status.Name,
		State:       status.State.String(),
		Output:      status.OutputData,
		Extracted:   status.Extracted,
		Log:         status.Log,
		StartedAt:   status.StartedAt,
		DurationMS:  status.RunDuration.Milliseconds(),
	}
	if status.Error != nil {
		step.Error = status.Error.Error()
	}
	if status.IterationContext != nil {
		step.IterationPath = status.IterationContext.IterationPath
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	a.steps = append(a.steps, step)
}

// Seal freezes the aggregator. Call when the run reaches a terminal state.
func (a *Aggregator) Seal() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
}

// Steps returns a copy of the ordered results.
func (a *Aggregator) Steps() []StepResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]StepResult, len(a.steps))
	copy(out, a.steps)
	return out
}

// Len returns the number of recorded steps.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.steps)
}

// BuildRunReport assembles the run response. A nil reporter yields an empty
// report reference; a reporter error is returned alongside the report built
// so far.
func BuildRunReport(ctx context.Context, agg *Aggregator, state runner.RunState, reporter Reporter) (RunReport, error) {
	steps := agg.Steps()
	rep := RunReport{
		Steps: steps,
		State: state,
	}
	if reporter == nil {
		return rep, nil
	}

	url, err := reporter.Publish(ctx, steps)
	if err != nil {
		return rep, err
	}
	rep.AllureURL = url
	return rep, nil
}
