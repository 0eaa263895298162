// Package execute orchestrates whole scenario runs: build the graph, seed
// the variable context from the environment and an optional dataset row,
// drive the local runner, aggregate results, publish the report, and
// persist run history. Data-driven execution fans out one run per dataset
// row.
package execute

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"testflow/engine/pkg/flow/flowbuilder"
	"testflow/engine/pkg/flow/report"
	"testflow/engine/pkg/flow/runner"
	"testflow/engine/pkg/flow/runner/flowlocalrunner"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mdataset"
	"testflow/engine/pkg/model/mscenario"
	"testflow/engine/pkg/service/srun"
	"testflow/engine/pkg/varcontext"
)

// DefaultRowParallelism bounds concurrent runs during data-driven
// execution.
const DefaultRowParallelism = 4

type Executor struct {
	Options  flowbuilder.Options
	Config   runner.RunConfiguration
	Reporter report.Reporter
	History  *srun.Store
	Logger   *slog.Logger
}

// RunOutcome is the result of one scenario run.
type RunOutcome struct {
	RunID  idwrap.IDWrap
	Row    int
	State  runner.RunState
	Report report.RunReport
	Err    error
}

// RunScenario executes the graph once against the environment plus an
// optional dataset row. The returned outcome carries the aggregated report
// even when the run failed; the error reports build/validation problems and
// node failures.
func (e *Executor) RunScenario(ctx context.Context, g *mscenario.ScenarioGraph, row map[string]any) RunOutcome {
	outcome := RunOutcome{RunID: idwrap.NewNow()}

	built, err := flowbuilder.Build(g, e.Options)
	if err != nil {
		outcome.State = runner.RunStateFailed
		outcome.Err = err
		return outcome
	}

	baseVars := varcontext.New(e.Options.Env.Variables, row)

	localRunner := flowlocalrunner.CreateFlowRunner(outcome.RunID, g.ID, built.StartNodeID, built.Nodes, built.EdgesMap, e.Config)
	localRunner.Logger = e.logger()

	statusChan := make(chan runner.FlowNodeStatus, 16)
	stateChan := make(chan runner.RunState, 4)

	agg := report.NewAggregator()
	startedAt := time.Now()

	runErrChan := make(chan error, 1)
	go func() {
		runErrChan <- localRunner.Run(ctx, statusChan, stateChan, baseVars)
	}()

	finalState := runner.RunStatePending
	for statusChan != nil || stateChan != nil {
		select {
		case status, ok := <-statusChan:
			if !ok {
				statusChan = nil
				continue
			}
			agg.Consume(status)
		case state, ok := <-stateChan:
			if !ok {
				stateChan = nil
				continue
			}
			finalState = state
		}
	}
	runErr := <-runErrChan
	agg.Seal()

	outcome.State = finalState
	outcome.Err = runErr

	rep, repErr := report.BuildRunReport(ctx, agg, finalState, e.Reporter)
	if repErr != nil {
		e.logger().ErrorContext(ctx, "report publish failed", "run_id", outcome.RunID, "error", repErr)
	}
	outcome.Report = rep

	if e.History != nil {
		run := srun.Run{
			ID:           outcome.RunID,
			ScenarioID:   g.ID,
			ScenarioName: g.Name,
			State:        finalState.String(),
			AllureURL:    rep.AllureURL,
			StartedAt:    startedAt,
			FinishedAt:   time.Now(),
		}
		if err := e.History.SaveRun(ctx, run, rep.Steps); err != nil {
			e.logger().ErrorContext(ctx, "run history save failed", "run_id", outcome.RunID, "error", err)
		}
	}

	return outcome
}

// RunDataDriven executes one run per dataset row, in parallel up to
// DefaultRowParallelism. Each run gets its own context layer and result
// buffer; a failing row does not stop the others. Outcomes come back in
// row order.
func (e *Executor) RunDataDriven(ctx context.Context, g *mscenario.ScenarioGraph, ds *mdataset.Dataset) ([]RunOutcome, error) {
	if ds == nil || ds.RowCount() == 0 {
		outcome := e.RunScenario(ctx, g, nil)
		return []RunOutcome{outcome}, outcome.Err
	}

	outcomes := make([]RunOutcome, ds.RowCount())

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(DefaultRowParallelism)

	for i := 0; i < ds.RowCount(); i++ {
		i := i
		eg.Go(func() error {
			outcome := e.RunScenario(egCtx, g, ds.Row(i))
			outcome.Row = i
			outcomes[i] = outcome
			// Row failures are recorded per-outcome, never propagated, so
			// sibling rows keep running.
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return outcomes, err
	}

	var firstErr error
	for _, o := range outcomes {
		if o.Err != nil {
			firstErr = o.Err
			break
		}
	}
	return outcomes, firstErr
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
