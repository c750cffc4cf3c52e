package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/zeu5/mdp-planner/util"
)

// RunOutcome of planning one experiment in one run
type RunOutcome struct {
	Status    string
	Converged bool
	Policy    Policy
	Values    ValueTable
	Trace     *Trace
	Duration  time.Duration
}

// ExperimentContext is handed to the planner of a running experiment
type ExperimentContext struct {
	Context context.Context

	ExperimentName  string // name of the experiment
	Run             int    // index of the run
	ExperimentIndex int    // index of the experiment in the comparison

	Output *ParallelOutput // where to store the printable status of the experiment
}

// Status updates the printable status of the experiment
func (e *ExperimentContext) Status(format string, args ...interface{}) {
	if e.Output == nil {
		return
	}
	e.Output.TrySet(fmt.Sprintf("%s: ", e.ExperimentName) + fmt.Sprintf(format, args...))
}

// Planner solves an environment for an experiment
type Planner func(*ExperimentContext, Environment) (*RunOutcome, error)

// Experiment pairs an environment with the planner that solves it
type Experiment struct {
	Name        string
	environment Environment
	planner     Planner
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, environment Environment, planner Planner) *Experiment {
	return &Experiment{
		Name:        name,
		environment: environment,
		planner:     planner,
	}
}

func (e *Experiment) Environment() Environment {
	return e.environment
}

// Run plans the experiment once and records the outcome if asked to
func (e *Experiment) Run(eCtx *ExperimentContext, config *ComparisonConfig) (*RunOutcome, error) {
	select {
	case <-eCtx.Context.Done():
		return nil, eCtx.Context.Err()
	default:
	}
	eCtx.Status("running")

	start := time.Now()
	outcome, err := e.planner(eCtx, e.environment)
	if err != nil {
		eCtx.Status("failed: %s", err)
		return outcome, fmt.Errorf("experiment %s: %w", e.Name, err)
	}
	if outcome.Duration == 0 {
		outcome.Duration = time.Since(start)
	}
	eCtx.Status("%s after %d generations in %s", outcome.Status, outcome.Trace.Len(), outcome.Duration)

	if config.RecordTraces {
		if err := e.recordTrace(config.RecordPath, eCtx.Run, outcome.Trace); err != nil {
			return outcome, err
		}
	}
	if config.RecordPolicy {
		base := path.Join(config.RecordPath, "policies", e.Name+"_"+strconv.Itoa(eCtx.Run))
		if err := outcome.Values.Record(base + "_values.json"); err != nil {
			return outcome, err
		}
		bs, err := json.Marshal(outcome.Policy.Encode())
		if err != nil {
			return outcome, err
		}
		if err := util.WriteToFile(base+"_policy.json", string(bs)); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func (e *Experiment) recordTrace(recordPath string, run int, trace *Trace) error {
	tracesFile := path.Join(recordPath, "traces", e.Name+".jsonl")
	bs, err := json.Marshal(map[string]interface{}{
		"run":   run,
		"trace": trace,
	})
	if err != nil {
		return err
	}
	return util.AppendToFile(tracesFile, string(bs))
}

// Generic Dataset that contains information after processing an outcome
type DataSet interface{}

// Analyzer compresses the outcome of an experiment to a DataSet
// run, experiment name, outcome
type Analyzer func(int, string, *RunOutcome) DataSet

// Comparator differentiates between different datasets with associated names
// run, experiment names, datasets
type Comparator func(int, []string, []DataSet) error

func NoopComparator() Comparator {
	return func(_ int, _ []string, _ []DataSet) error { return nil }
}

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs        int // number of runs
	Parallelism int // experiments planned at the same time

	RecordPath string // path to store the results

	// record flags
	RecordTraces bool
	RecordPolicy bool

	// seconds between two refreshes of the terminal, 0 disables it
	PrintFrequency int
}

// Comparison contains the different experiments to compare
// The outcomes of the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	Experiments []*Experiment
	analyzers   map[string]Analyzer
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
}

// NewComparison creates a comparison instance and its record folders
func NewComparison(config *ComparisonConfig) (*Comparison, error) {
	if config.Runs <= 0 {
		config.Runs = 1
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}

	foldersToCreate := []string{""}
	if config.RecordTraces {
		foldersToCreate = append(foldersToCreate, "traces")
	}
	if config.RecordPolicy {
		foldersToCreate = append(foldersToCreate, "policies")
	}
	for _, s := range foldersToCreate {
		if err := os.MkdirAll(path.Join(config.RecordPath, s), 0777); err != nil {
			return nil, err
		}
	}

	return &Comparison{
		Experiments: make([]*Experiment, 0),
		analyzers:   make(map[string]Analyzer),
		comparators: make(map[string]Comparator),
		cConfig:     config,
	}, nil
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer Analyzer, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// record the configuration of the comparison
func (c *Comparison) recordConfig() error {
	cfg := c.cConfig
	out := make(map[string]interface{})
	out["runs"] = cfg.Runs
	out["parallelism"] = cfg.Parallelism
	out["record_traces"] = cfg.RecordTraces
	out["record_policy"] = cfg.RecordPolicy

	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0)
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	out["analyzers"] = analyzers

	bs, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(cfg.RecordPath, "comparison_config.json"), bs, 0644)
}

// Run the comparison. Experiments of a run are planned in parallel, the
// analyzers and comparators are called once all of them are done. Failed
// experiments are skipped by the analysis and reported in the error
func (c *Comparison) Run(ctx context.Context) error {
	if err := c.recordConfig(); err != nil {
		return err
	}

	outputs := make([]*ParallelOutput, len(c.Experiments))
	for i := range outputs {
		outputs[i] = NewParallelOutput()
	}
	if c.cConfig.PrintFrequency > 0 && len(outputs) > 0 {
		printer := NewTerminalPrinter(ctx, outputs, time.Duration(c.cConfig.PrintFrequency)*time.Second)
		printer.Start()
		defer printer.Stop()
	}

	var errs []error
	for run := 0; run < c.cConfig.Runs; run++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		outcomes, runErrs := c.runParallel(ctx, run, outputs)
		errs = append(errs, runErrs...)

		names := make([]string, 0, len(c.Experiments))
		datasets := make(map[string][]DataSet)
		for i, e := range c.Experiments {
			if outcomes[i] == nil {
				continue
			}
			names = append(names, e.Name)
			for name, a := range c.analyzers {
				datasets[name] = append(datasets[name], a(run, e.Name, outcomes[i]))
			}
		}
		for name, comp := range c.comparators {
			if err := comp(run, names, datasets[name]); err != nil {
				errs = append(errs, fmt.Errorf("comparator %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// runParallel plans every experiment of the run, at most Parallelism at a time
func (c *Comparison) runParallel(ctx context.Context, run int, outputs []*ParallelOutput) ([]*RunOutcome, []error) {
	outcomes := make([]*RunOutcome, len(c.Experiments))
	errs := make([]error, len(c.Experiments))
	slots := make(chan struct{}, c.cConfig.Parallelism)

	var wg sync.WaitGroup
	for i, e := range c.Experiments {
		wg.Add(1)
		go func(i int, e *Experiment) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()

			outputs[i].SetRunning(true)
			defer outputs[i].SetRunning(false)
			eCtx := &ExperimentContext{
				Context:         ctx,
				ExperimentName:  e.Name,
				Run:             run,
				ExperimentIndex: i,
				Output:          outputs[i],
			}
			outcome, err := e.Run(eCtx, c.cConfig)
			if err != nil {
				errs[i] = err
				return
			}
			outcomes[i] = outcome
		}(i, e)
	}
	wg.Wait()

	failed := make([]error, 0)
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return outcomes, failed
}
