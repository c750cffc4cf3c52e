package policyiter

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/zeu5/mdp-planner/model"
	"github.com/zeu5/mdp-planner/types"
	"golang.org/x/exp/slog"
)

const (
	DefaultGamma          = 0.9
	DefaultTheta          = 1e-3
	DefaultMaxSweeps      = 10000
	DefaultMaxGenerations = 1000
)

// UpdateMode selects how a sweep writes the value table
type UpdateMode int

const (
	// InPlace overwrites values as soon as they are computed (Gauss-Seidel).
	// Later states of a sweep read the fresh values of earlier ones
	InPlace UpdateMode = iota
	// Synchronous reads only the previous sweep's table and writes a second
	// buffer. Required for parallel sweeps
	Synchronous
)

func (m UpdateMode) String() string {
	switch m {
	case InPlace:
		return "in-place"
	case Synchronous:
		return "synchronous"
	}
	return fmt.Sprintf("UpdateMode(%d)", int(m))
}

// ParseUpdateMode accepts the names returned by String
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch strings.ToLower(s) {
	case "in-place", "inplace", "":
		return InPlace, nil
	case "synchronous", "sync":
		return Synchronous, nil
	}
	return InPlace, fmt.Errorf("%w: unknown update mode %q", types.ErrInvalidConfig, s)
}

// EvalOptions configures policy evaluation
type EvalOptions struct {
	// Discount factor in (0, 1]
	Gamma float64
	// A sweep whose largest value change is strictly below Theta ends evaluation.
	// This approximates convergence, it does not bound the distance to the fixed point
	Theta float64
	// Sweeps allowed before evaluation reports non convergence, 0 means DefaultMaxSweeps
	MaxSweeps int
	Mode      UpdateMode
	// Parallel workers of a synchronous sweep, 0 or 1 runs sequentially
	Workers int
	Logger  *slog.Logger
}

// DefaultEvalOptions uses the defaults of the reference grid world
func DefaultEvalOptions() EvalOptions {
	return EvalOptions{
		Gamma:     DefaultGamma,
		Theta:     DefaultTheta,
		MaxSweeps: DefaultMaxSweeps,
		Mode:      InPlace,
	}
}

func (o EvalOptions) maxSweeps() int {
	if o.MaxSweeps == 0 {
		return DefaultMaxSweeps
	}
	return o.MaxSweeps
}

func (o EvalOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// ValidateGamma checks the discount factor against the model. An
// undiscounted model must let every state reach a terminal state
func ValidateGamma(env types.Environment, gamma float64) error {
	if math.IsNaN(gamma) || gamma <= 0 || gamma > 1 {
		return fmt.Errorf("%w: got %v", types.ErrInvalidDiscount, gamma)
	}
	if gamma == 1 {
		if stuck := model.WithoutTerminalPath(env); len(stuck) > 0 {
			return fmt.Errorf("%w: %d states including %s", types.ErrNoTerminalPath, len(stuck), stuck[0].Hash())
		}
	}
	return nil
}

func (o EvalOptions) validate(env types.Environment) error {
	if err := ValidateGamma(env, o.Gamma); err != nil {
		return err
	}
	if math.IsNaN(o.Theta) || o.Theta <= 0 {
		return fmt.Errorf("%w: threshold must be positive, got %v", types.ErrInvalidConfig, o.Theta)
	}
	if o.MaxSweeps < 0 {
		return fmt.Errorf("%w: negative sweep bound %d", types.ErrInvalidConfig, o.MaxSweeps)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", types.ErrInvalidConfig, o.Workers)
	}
	if o.Workers > 1 && o.Mode != Synchronous {
		return fmt.Errorf("%w: %d workers need synchronous updates", types.ErrInvalidConfig, o.Workers)
	}
	if o.Mode != InPlace && o.Mode != Synchronous {
		return fmt.Errorf("%w: unknown update mode %d", types.ErrInvalidConfig, int(o.Mode))
	}
	return nil
}

// Config of a policy iteration run
type Config struct {
	EvalOptions
	// Generations allowed before the run reports non convergence, 0 means DefaultMaxGenerations
	MaxGenerations int
	// Seed of the random initial policy, ignored if InitialPolicy is set
	Seed          uint64
	InitialPolicy types.Policy
	// Warm start of the value table, zeros if nil
	InitialValues types.ValueTable
}

// DefaultConfig returns the configuration of the reference run
func DefaultConfig() Config {
	return Config{
		EvalOptions:    DefaultEvalOptions(),
		MaxGenerations: DefaultMaxGenerations,
	}
}

func (c Config) maxGenerations() int {
	if c.MaxGenerations == 0 {
		return DefaultMaxGenerations
	}
	return c.MaxGenerations
}

func (c Config) validate(env types.Environment) error {
	if err := c.EvalOptions.validate(env); err != nil {
		return err
	}
	if c.MaxGenerations < 0 {
		return fmt.Errorf("%w: negative generation bound %d", types.ErrInvalidConfig, c.MaxGenerations)
	}
	if c.InitialPolicy != nil {
		if err := c.InitialPolicy.Validate(env); err != nil {
			return fmt.Errorf("initial policy: %w", err)
		}
	}
	if c.InitialValues != nil {
		if err := c.InitialValues.Validate(env); err != nil {
			return fmt.Errorf("initial values: %w", err)
		}
	}
	return nil
}
