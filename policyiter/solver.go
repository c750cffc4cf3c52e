package policyiter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeu5/mdp-planner/types"
	"golang.org/x/exp/slog"
)

// Status of a policy iteration run
type Status int

const (
	StatusRunning Status = iota
	// the last improvement changed no action
	StatusConverged
	// a sweep or generation bound was exhausted
	StatusNonConverged
	// the context ended the run between two sweeps or generations
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusConverged:
		return "converged"
	case StatusNonConverged:
		return "non-converged"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result of a run. When the run did not converge it holds the best effort
// policy and value table reached so far
type Result struct {
	Status      Status
	Policy      types.Policy
	Values      types.ValueTable
	Generations int
	Trace       *types.Trace
	Duration    time.Duration
}

func (r *Result) Converged() bool {
	return r.Status == StatusConverged
}

// Err is nil for a converged run. A run stopped by a bound wraps
// types.ErrNonConvergence and a cancelled run wraps context.Canceled
func (r *Result) Err() error {
	switch r.Status {
	case StatusConverged:
		return nil
	case StatusNonConverged:
		return fmt.Errorf("%w after %d generations and %d sweeps", types.ErrNonConvergence, r.Generations, r.Trace.TotalSweeps())
	case StatusCancelled:
		return fmt.Errorf("run cancelled after %d generations: %w", r.Generations, context.Canceled)
	}
	return fmt.Errorf("run is %s", r.Status)
}

// Observer is notified after every generation with the current result
type Observer func(types.Generation, *Result)

// Solver runs policy iteration over an environment
type Solver struct {
	env       types.Environment
	config    Config
	logger    *slog.Logger
	observers []Observer
}

// NewSolver validates the configuration against the environment
func NewSolver(env types.Environment, config Config) (*Solver, error) {
	if err := config.validate(env); err != nil {
		return nil, err
	}
	return &Solver{
		env:       env,
		config:    config,
		logger:    config.logger(),
		observers: make([]Observer, 0),
	}, nil
}

func (s *Solver) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Solver) initialPolicy() (types.Policy, error) {
	if s.config.InitialPolicy != nil {
		return s.config.InitialPolicy.Copy(), nil
	}
	return types.NewRandomPolicy(s.env, s.config.Seed)
}

// Solve alternates evaluation and improvement until the improvement changes
// no action. Every evaluation is warm started from the previous table.
//
// Exhausting a bound is not an error: the result carries
// StatusNonConverged. The returned error is set for malformed models,
// numerical failures and context cancellation, in which case the result
// (if any) is the best effort reached so far.
func (s *Solver) Solve(ctx context.Context) (*Result, error) {
	start := time.Now()
	ix := newStateIndex(s.env)

	policy, err := s.initialPolicy()
	if err != nil {
		return nil, err
	}
	values := ix.load(s.config.InitialValues)

	result := &Result{
		Status: StatusRunning,
		Policy: policy,
		Values: ix.table(values),
		Trace:  types.NewTrace(),
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	maxGenerations := s.config.maxGenerations()
	for result.Status == StatusRunning {
		if result.Generations >= maxGenerations {
			result.Status = StatusNonConverged
			s.logger.Warn("policy iteration hit the generation bound", "generations", result.Generations)
			break
		}
		if err := ctx.Err(); err != nil {
			result.Status = StatusCancelled
			return result, err
		}

		genStart := time.Now()
		newValues, stats, err := evaluate(ctx, s.env, ix, policy, values, s.config.EvalOptions)
		if newValues != nil {
			values = newValues
			result.Values = ix.table(values)
		}
		if err != nil {
			if ctx.Err() != nil {
				result.Status = StatusCancelled
				return result, err
			}
			return nil, err
		}

		gen := types.Generation{
			Index:         result.Generations,
			Sweeps:        stats.Sweeps,
			Deltas:        stats.Deltas,
			EvalConverged: stats.Converged,
		}
		if !stats.Converged {
			gen.Duration = time.Since(genStart)
			s.record(result, gen)
			result.Status = StatusNonConverged
			break
		}

		newPolicy, changed, err := improve(s.env, ix, values, policy, s.config.Gamma)
		if err != nil {
			return nil, err
		}
		policy = newPolicy
		result.Policy = policy
		gen.Changed = changed
		gen.Duration = time.Since(genStart)
		s.record(result, gen)

		if changed == 0 {
			result.Status = StatusConverged
		}
	}

	s.logger.Info("policy iteration finished",
		"status", result.Status.String(),
		"generations", result.Generations,
		"sweeps", result.Trace.TotalSweeps())
	return result, nil
}

func (s *Solver) record(result *Result, gen types.Generation) {
	result.Trace.Append(gen)
	result.Generations++
	s.logger.Debug("generation",
		"index", gen.Index,
		"sweeps", gen.Sweeps,
		"delta", gen.Delta(),
		"changed", gen.Changed)
	for _, o := range s.observers {
		o(gen, result)
	}
}

// Solve is a shorthand for NewSolver followed by Solver.Solve
func Solve(ctx context.Context, env types.Environment, config Config) (*Result, error) {
	solver, err := NewSolver(env, config)
	if err != nil {
		return nil, err
	}
	return solver.Solve(ctx)
}
