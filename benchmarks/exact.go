package benchmarks

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeu5/mdp-planner/grid"
	"github.com/zeu5/mdp-planner/policyiter"
)

// Exact solves the scenario by enumerating policies and compares the
// result with policy iteration
func Exact(ctx context.Context, limit int) error {
	world, m, err := loadScenario()
	if err != nil {
		return err
	}
	piConfig, err := cfg.Solver.PolicyIteration(logger)
	if err != nil {
		return err
	}

	exactPolicy, exactValues, err := policyiter.SolveExact(m, piConfig.Gamma, limit)
	if err != nil {
		return err
	}
	result, err := policyiter.Solve(ctx, m, piConfig)
	if err != nil {
		return err
	}
	residual, err := policyiter.OptimalityResidual(m, result.Values, piConfig.Gamma)
	if err != nil {
		return err
	}

	printer := grid.NewPrinter(world, cfg.Output.Color)
	fmt.Println("Exact values:")
	printer.Values(os.Stdout, exactValues)
	fmt.Println("Exact policy:")
	printer.Policy(os.Stdout, exactPolicy)
	fmt.Println("Policy iteration values:")
	printer.Values(os.Stdout, result.Values)
	fmt.Println("Policy iteration policy:")
	printer.Policy(os.Stdout, result.Policy)

	fmt.Printf("Policy iteration %s after %d generations\n", result.Status, result.Generations)
	fmt.Printf("Largest value difference: %.3e\n", result.Values.MaxDiff(exactValues))
	fmt.Printf("Optimality residual: %.3e\n", residual)
	if !result.Policy.Equal(exactPolicy) {
		// ties and theta can pick another action of the same value
		fmt.Println("The policies differ")
	}
	return nil
}

func ExactCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "exact",
		Short: "Solve the scenario exactly and compare with policy iteration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Exact(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 1<<20, "Largest number of policies to enumerate, 0 for no bound")
	return cmd
}
