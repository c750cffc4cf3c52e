package benchmarks

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/policyiter"
	"github.com/zeu5/mdp-planner/store"
	"github.com/zeu5/mdp-planner/types"
)

type solveOptions struct {
	warmStart string
	out       string
	heatmap   string
	cache     bool
	record    bool
}

// Solve plans on the configured scenario and prints the rewards, the
// initial policy, the final values and the final policy
func Solve(ctx context.Context, opts solveOptions) error {
	world, m, err := loadScenario()
	if err != nil {
		return err
	}
	piConfig, err := cfg.Solver.PolicyIteration(logger)
	if err != nil {
		return err
	}
	fingerprint := m.Fingerprint()

	if opts.warmStart != "" {
		values, err := types.LoadValueTable(opts.warmStart)
		if err != nil {
			return err
		}
		if err := values.Validate(m); err != nil {
			return fmt.Errorf("warm start %s: %w", opts.warmStart, err)
		}
		piConfig.InitialValues = values
	}

	var cache store.Cache
	if opts.cache {
		c, closeCache, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer closeCache()
		cache = c
		if piConfig.InitialValues == nil {
			values, ok, err := store.WarmStart(ctx, cache, m, fingerprint, piConfig.Gamma)
			if err != nil {
				logger.Warn("warm start lookup failed", "error", err)
			} else if ok {
				logger.Info("warm starting from the cache", "fingerprint", fingerprint)
				piConfig.InitialValues = values
			}
		}
	}

	initial, err := types.NewRandomPolicy(m, piConfig.Seed)
	if err != nil {
		return err
	}
	piConfig.InitialPolicy = initial

	printer := grid.NewPrinter(world, cfg.Output.Color)
	fmt.Println("Rewards:")
	printer.Rewards(os.Stdout)
	fmt.Println("Initial policy:")
	printer.Policy(os.Stdout, initial)

	solver, err := policyiter.NewSolver(m, piConfig)
	if err != nil {
		return err
	}
	stopProgress := func() {}
	if cfg.Output.Progress > 0 {
		output := types.NewParallelOutput()
		output.SetRunning(true)
		solver.AddObserver(func(g types.Generation, _ *policyiter.Result) {
			output.Set(fmt.Sprintf("%s: generation %d, %d sweeps, delta %.3e, %d changed",
				cfg.Solver.Scenario, g.Index, g.Sweeps, g.Delta(), g.Changed))
		})
		tp := types.NewTerminalPrinter(ctx, []*types.ParallelOutput{output}, time.Duration(cfg.Output.Progress)*time.Second)
		tp.Start()
		stopProgress = tp.Stop
	}

	result, err := solver.Solve(ctx)
	stopProgress()
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		logger.Warn("best effort result", "error", err)
	}

	fmt.Println("Values:")
	printer.Values(os.Stdout, result.Values)
	fmt.Println("Policy:")
	printer.Policy(os.Stdout, result.Policy)
	fmt.Printf("%s after %d generations and %d sweeps in %s\n",
		result.Status, result.Generations, result.Trace.TotalSweeps(), result.Duration)

	if opts.out != "" {
		if err := result.Values.Record(opts.out); err != nil {
			return err
		}
	}
	if opts.heatmap != "" {
		title := fmt.Sprintf("%s, gamma %v", cfg.Solver.Scenario, piConfig.Gamma)
		if err := grid.SaveHeatmap(world, result.Values, title, opts.heatmap); err != nil {
			return err
		}
	}
	if cache != nil && result.Converged() {
		if err := cache.Put(ctx, store.CacheKey(fingerprint, piConfig.Gamma), result.Values); err != nil {
			logger.Warn("caching values failed", "error", err)
		}
	}
	if opts.record {
		ledger, err := openLedger()
		if err != nil {
			return err
		}
		defer ledger.Close()
		run := store.NewRun(cfg.Solver.Scenario, fingerprint, piConfig, result)
		if err := ledger.Save(ctx, run); err != nil {
			return err
		}
		fmt.Printf("Recorded run %s\n", run.ID)
	}
	return nil
}

func SolveCommand() *cobra.Command {
	opts := solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a grid world scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			return Solve(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.warmStart, "warm-start", "", "Value table (json) to start evaluating from")
	cmd.Flags().StringVar(&opts.out, "out", "", "Write the final value table (json) to this file")
	cmd.Flags().StringVar(&opts.heatmap, "heatmap", "", "Draw the final values to this image file")
	cmd.Flags().BoolVar(&opts.cache, "cache", false, "Warm start from and store into the value cache")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Record the run in the sqlite ledger")
	return cmd
}
