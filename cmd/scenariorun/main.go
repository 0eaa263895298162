// Command scenariorun loads a scenario (canvas JSON or simplified YAML),
// an environment, and an optional CSV dataset, executes the scenario, and
// prints per-step results. Exit code 1 when any run fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"testflow/engine/pkg/flow/execute"
	"testflow/engine/pkg/flow/flowbuilder"
	"testflow/engine/pkg/flow/runner"
	"testflow/engine/pkg/io/scenariojson"
	"testflow/engine/pkg/io/scenarioyaml"
	"testflow/engine/pkg/model/mdataset"
	"testflow/engine/pkg/model/menv"
	"testflow/engine/pkg/model/mscenario"
	"testflow/engine/pkg/service/srun"
	"testflow/engine/pkg/sqlexec"
)

type envFile struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Domain    string            `json:"domain"`
	Variables map[string]any    `json:"variables"`
	Headers   map[string]string `json:"headers"`
	Params    map[string]string `json:"params"`
}

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "path to scenario file (.json or .yaml)")
		envPath      = flag.String("env", "", "path to environment file (json)")
		datasetPath  = flag.String("dataset", "", "path to dataset file (csv), one run per row")
		sqlitePath   = flag.String("db", "", "sqlite database for sql nodes")
		historyPath  = flag.String("history", "", "sqlite database for run history")
		timeout      = flag.Duration("timeout", 0, "per-run timeout (0 = none)")
		loopCap      = flag.Int64("loop-cap", 0, "safety cap for unbounded loops (0 = default)")
		verbose      = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "scenariorun: -scenario is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*scenarioPath, *envPath, *datasetPath, *sqlitePath, *historyPath, *timeout, *loopCap, logger); err != nil {
		fmt.Fprintf(os.Stderr, "scenariorun: %v\n", err)
		os.Exit(1)
	}
}

func run(scenarioPath, envPath, datasetPath, sqlitePath, historyPath string, timeout time.Duration, loopCap int64, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graph, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}

	env, err := loadEnv(envPath)
	if err != nil {
		return err
	}

	var dataset *mdataset.Dataset
	if datasetPath != "" {
		data, err := os.ReadFile(datasetPath)
		if err != nil {
			return fmt.Errorf("read dataset: %w", err)
		}
		dataset, err = mdataset.ParseCSVString(string(data))
		if err != nil {
			return err
		}
	}

	opts := flowbuilder.Options{Env: env}
	if sqlitePath != "" {
		executor, err := sqlexec.Open(sqlitePath)
		if err != nil {
			return err
		}
		defer executor.Close() //nolint:errcheck
		opts.QueryExecutor = executor
	}

	var history *srun.Store
	if historyPath != "" {
		history, err = srun.Open(historyPath)
		if err != nil {
			return err
		}
		defer history.Close() //nolint:errcheck
	}

	exec := &execute.Executor{
		Options: opts,
		Config: runner.RunConfiguration{
			Timeout:       timeout,
			LoopSafetyCap: loopCap,
		},
		History: history,
		Logger:  logger,
	}

	outcomes, err := exec.RunDataDriven(ctx, graph, dataset)
	for _, outcome := range outcomes {
		printOutcome(outcome, dataset != nil)
	}
	return err
}

func loadScenario(path string) (*mscenario.ScenarioGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return scenarioyaml.Import(data)
	default:
		return scenariojson.Import(data)
	}
}

func loadEnv(path string) (menv.Env, error) {
	if path == "" {
		return menv.Env{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return menv.Env{}, fmt.Errorf("read environment: %w", err)
	}

	var file envFile
	if err := json.Unmarshal(data, &file); err != nil {
		return menv.Env{}, fmt.Errorf("parse environment: %w", err)
	}

	return menv.Env{
		Name:      file.Name,
		Domain:    file.Domain,
		Variables: file.Variables,
		Headers:   file.Headers,
		Params:    file.Params,
	}, nil
}

func printOutcome(outcome execute.RunOutcome, dataDriven bool) {
	header := fmt.Sprintf("run %s: %s", outcome.RunID, outcome.State)
	if dataDriven {
		header = fmt.Sprintf("row %d, %s", outcome.Row, header)
	}
	fmt.Println(header)

	for _, step := range outcome.Report.Steps {
		line := fmt.Sprintf("  %-10s %-24s %6dms", step.State, step.Name, step.DurationMS)
		if step.Error != "" {
			line += "  " + step.Error
		}
		fmt.Println(line)
	}
	if outcome.Report.AllureURL != "" {
		fmt.Printf("  report: %s\n", outcome.Report.AllureURL)
	}
	if outcome.Err != nil {
		fmt.Printf("  error: %v\n", outcome.Err)
	}
}
