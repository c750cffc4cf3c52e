package benchmarks

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/policyiter"
	"github.com/zeu5/mdp-planner/types"
)

type compareOptions struct {
	runs         int
	parallelism  int
	scenarios    []string
	modes        []string
	recordTraces bool
	recordPolicy bool
}

// Compare plans every scenario with every update mode and compares the
// convergence of the runs
func Compare(ctx context.Context, opts compareOptions) error {
	if err := cfg.Record(); err != nil {
		return err
	}
	c, err := types.NewComparison(&types.ComparisonConfig{
		Runs:        opts.runs,
		Parallelism: opts.parallelism,
		RecordPath:  cfg.Output.SavePath,
		// record flags
		RecordTraces:   opts.recordTraces,
		RecordPolicy:   opts.recordPolicy,
		PrintFrequency: cfg.Output.Progress,
	})
	if err != nil {
		return err
	}
	plotPath := path.Join(cfg.Output.SavePath, "plots")
	c.AddAnalysis("Sweeps", types.SweepsAnalyzer(), types.SweepsPlotter(plotPath))
	c.AddAnalysis("Deltas", types.DeltaAnalyzer(), types.DeltaPlotter(plotPath))
	c.AddAnalysis("DeltaChart", types.DeltaAnalyzer(), types.DeltaChart(plotPath))
	c.AddAnalysis("Summary", types.SummaryAnalyzer(), types.SummaryRecorder(cfg.Output.SavePath))

	for _, scenario := range opts.scenarios {
		world, err := grid.Scenario(scenario, cfg.Solver.StepCost)
		if err != nil {
			return err
		}
		m, err := world.Model()
		if err != nil {
			return fmt.Errorf("scenario %s: %w", scenario, err)
		}
		for _, mode := range opts.modes {
			solverConfig := cfg.Solver
			solverConfig.Mode = mode
			piConfig, err := solverConfig.PolicyIteration(logger.With("scenario", scenario, "mode", mode))
			if err != nil {
				return err
			}
			if piConfig.Mode == policyiter.InPlace {
				piConfig.Workers = 0
			}
			c.AddExperiment(types.NewExperiment(
				scenario+"-"+piConfig.Mode.String(),
				m,
				policyiter.Planner(piConfig),
			))
		}
	}

	return c.Run(ctx)
}

func CompareCommand() *cobra.Command {
	opts := compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare update modes over several scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			return Compare(ctx, opts)
		},
	}
	cmd.Flags().IntVar(&opts.runs, "runs", 1, "Number of experiment runs")
	cmd.Flags().IntVar(&opts.parallelism, "parallelism", 1, "Experiments planned at the same time")
	cmd.Flags().StringSliceVar(&opts.scenarios, "scenarios", grid.ScenarioNames(), "Scenarios to compare")
	cmd.Flags().StringSliceVar(&opts.modes, "modes",
		[]string{policyiter.InPlace.String(), policyiter.Synchronous.String()}, "Update modes to compare")
	cmd.Flags().BoolVar(&opts.recordTraces, "record-traces", false, "Record the generation traces of every run")
	cmd.Flags().BoolVar(&opts.recordPolicy, "record-policy", false, "Record the final policy and values of every run")
	return cmd
}
