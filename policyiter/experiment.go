package policyiter

import (
	"github.com/zeu5/mdp-planner/types"
)

// Outcome of the run for the comparison harness
func (r *Result) Outcome() *types.RunOutcome {
	return &types.RunOutcome{
		Status:    r.Status.String(),
		Converged: r.Converged(),
		Policy:    r.Policy,
		Values:    r.Values,
		Trace:     r.Trace,
		Duration:  r.Duration,
	}
}

// Planner runs policy iteration with the config for every experiment it is
// attached to. The seed is offset by the run so that runs start from
// different policies. Progress is reported after each generation
func Planner(config Config) types.Planner {
	return func(eCtx *types.ExperimentContext, env types.Environment) (*types.RunOutcome, error) {
		runConfig := config
		runConfig.Seed += uint64(eCtx.Run)
		solver, err := NewSolver(env, runConfig)
		if err != nil {
			return nil, err
		}
		solver.AddObserver(func(g types.Generation, r *Result) {
			eCtx.Status("generation %d, %d sweeps, delta %.3e, %d changed", g.Index, g.Sweeps, g.Delta(), g.Changed)
		})
		result, err := solver.Solve(eCtx.Context)
		if err != nil {
			return nil, err
		}
		return result.Outcome(), nil
	}
}
