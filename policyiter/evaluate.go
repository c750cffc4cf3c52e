package policyiter

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/zeu5/mdp-planner/types"
)

// EvalStats describes how an evaluation ended
type EvalStats struct {
	Sweeps int
	// largest value change of each sweep
	Deltas    []float64
	Converged bool
}

// Delta of the last sweep
func (e EvalStats) Delta() float64 {
	if len(e.Deltas) == 0 {
		return 0
	}
	return e.Deltas[len(e.Deltas)-1]
}

// Evaluate computes the value table of a deterministic policy by repeated
// Bellman expectation sweeps over the non-terminal states. Terminal states
// keep their initial value (0, or the warm start). init is copied, never
// mutated.
//
// Evaluation stops after the first sweep whose largest change is strictly
// below opts.Theta. If opts.MaxSweeps is exhausted first the best effort
// table is returned with EvalStats.Converged unset. The context is only
// checked between sweeps.
func Evaluate(ctx context.Context, env types.Environment, policy types.Policy, init types.ValueTable, opts EvalOptions) (types.ValueTable, EvalStats, error) {
	if err := opts.validate(env); err != nil {
		return nil, EvalStats{}, err
	}
	if err := policy.Validate(env); err != nil {
		return nil, EvalStats{}, err
	}
	if init != nil {
		if err := init.Validate(env); err != nil {
			return nil, EvalStats{}, err
		}
	}
	ix := newStateIndex(env)
	values, stats, err := evaluate(ctx, env, ix, policy, ix.load(init), opts)
	if values == nil {
		return nil, stats, err
	}
	return ix.table(values), stats, err
}

func evaluate(ctx context.Context, env types.Environment, ix *stateIndex, policy types.Policy, values []float64, opts EvalOptions) ([]float64, EvalStats, error) {
	stats := EvalStats{Deltas: make([]float64, 0)}
	rows, err := ix.rows(env, policy)
	if err != nil {
		return nil, stats, err
	}

	var next []float64
	if opts.Mode == Synchronous {
		next = make([]float64, len(values))
		copy(next, values)
	}

	maxSweeps := opts.maxSweeps()
	for stats.Sweeps < maxSweeps {
		if err := ctx.Err(); err != nil {
			return values, stats, err
		}

		var delta float64
		switch opts.Mode {
		case Synchronous:
			delta = sweepSynchronous(rows, values, next, opts.Gamma, opts.Workers)
			values, next = next, values
		default:
			delta = sweepInPlace(rows, values, opts.Gamma)
		}
		stats.Sweeps++

		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			return nil, stats, fmt.Errorf("%w: sweep %d produced a non finite value", types.ErrNumerical, stats.Sweeps)
		}
		stats.Deltas = append(stats.Deltas, delta)
		if delta < opts.Theta {
			stats.Converged = true
			break
		}
	}

	if !stats.Converged {
		opts.logger().Warn("policy evaluation hit the sweep bound",
			"sweeps", stats.Sweeps, "delta", stats.Delta(), "theta", opts.Theta)
	}
	return values, stats, nil
}

// sweepInPlace overwrites each value as soon as it is computed.
// A non finite value turns the returned delta into NaN or Inf
func sweepInPlace(rows []row, values []float64, gamma float64) float64 {
	delta := 0.0
	for _, r := range rows {
		old := values[r.state]
		v := backup(r.edges, values, gamma)
		values[r.state] = v
		delta = math.Max(delta, math.Abs(old-v))
	}
	return delta
}

// sweepSynchronous reads only cur and writes next. Workers own disjoint
// ranges of rows so next is never written twice
func sweepSynchronous(rows []row, cur, next []float64, gamma float64, workers int) float64 {
	if workers <= 1 || len(rows) < 2 {
		return sweepRange(rows, cur, next, gamma)
	}
	workers = min(workers, len(rows))
	chunk := (len(rows) + workers - 1) / workers
	deltas := make([]float64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		from := w * chunk
		to := min(from+chunk, len(rows))
		if from >= to {
			continue
		}
		wg.Add(1)
		go func(w, from, to int) {
			defer wg.Done()
			deltas[w] = sweepRange(rows[from:to], cur, next, gamma)
		}(w, from, to)
	}
	wg.Wait()

	delta := 0.0
	for _, d := range deltas {
		delta = math.Max(delta, d)
	}
	return delta
}

func sweepRange(rows []row, cur, next []float64, gamma float64) float64 {
	delta := 0.0
	for _, r := range rows {
		v := backup(r.edges, cur, gamma)
		next[r.state] = v
		delta = math.Max(delta, math.Abs(cur[r.state]-v))
	}
	return delta
}
