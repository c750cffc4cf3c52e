package benchmarks

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zeu5/mdp-planner/config"
	"golang.org/x/exp/slog"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	cpuprofile string
	memprofile string
	stopProfile func() error
)

func GetRootCommand() *cobra.Command {
	defaults := config.Default()

	rootCommand := &cobra.Command{
		Use:          "mdp-planner",
		Short:        "Plan on grid worlds with policy iteration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cmd)
			if err != nil {
				return err
			}
			logger, err = cfg.Log.Logger(os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			stopProfile, err = startProfiling(cfg.Output.SavePath)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if stopProfile == nil {
				return nil
			}
			return stopProfile()
		},
	}

	flags := rootCommand.PersistentFlags()
	flags.Float64("gamma", defaults.Solver.Gamma, "Discount factor in (0, 1]")
	flags.Float64("theta", defaults.Solver.Theta, "Evaluation stops once a sweep changes no value by theta or more")
	flags.Int("max-sweeps", defaults.Solver.MaxSweeps, "Sweeps allowed per evaluation")
	flags.Int("max-generations", defaults.Solver.MaxGenerations, "Evaluate/improve generations allowed per run")
	flags.Uint64("seed", defaults.Solver.Seed, "Seed of the random initial policy")
	flags.String("mode", defaults.Solver.Mode, "Sweep update mode, in-place or synchronous")
	flags.Int("workers", defaults.Solver.Workers, "Parallel workers of synchronous sweeps")
	flags.String("scenario", defaults.Solver.Scenario, "Grid world to plan on")
	flags.Float64("step-cost", defaults.Solver.StepCost, "Reward of entering a non-terminal cell of the penalized world")
	flags.StringP("save", "s", defaults.Output.SavePath, "Save the result data in the specified folder")
	flags.Bool("color", defaults.Output.Color, "Color the printed grids")
	flags.Int("progress", defaults.Output.Progress, "Seconds between two progress refreshes, 0 disables them")
	flags.String("db", defaults.Store.Database, "Sqlite run ledger")
	flags.String("redis", defaults.Store.Redis, "Redis address of the warm start cache")
	flags.String("cache-dir", defaults.Store.CacheDir, "Folder of the file warm start cache")
	flags.Duration("cache-ttl", defaults.Store.CacheTTL, "Lifetime of cached value tables")
	flags.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "Log format (text, json)")
	flags.StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile to this file of the save folder")
	flags.StringVar(&memprofile, "memprofile", "", "Write a heap profile to this file of the save folder")

	// adding the subcommands here
	rootCommand.AddCommand(SolveCommand())
	rootCommand.AddCommand(CompareCommand())
	rootCommand.AddCommand(ExactCommand())
	rootCommand.AddCommand(ServeCommand())
	rootCommand.AddCommand(RunsCommand())
	return rootCommand
}
