package types

import "errors"

var (
	// ErrInvalidModel is returned when a transition model is malformed,
	// e.g. the successor probabilities of a pair sum to more than one
	ErrInvalidModel = errors.New("invalid model")
	// ErrUndefinedPolicyAction is returned when a non-terminal state has no
	// legal action, or a policy maps a state to an illegal one
	ErrUndefinedPolicyAction = errors.New("undefined policy action")
	// ErrNonConvergence marks a run that exhausted its sweep or generation bound
	ErrNonConvergence = errors.New("did not converge")
	// ErrInvalidDiscount is returned for a discount factor outside (0, 1]
	ErrInvalidDiscount = errors.New("discount factor must lie in (0, 1]")
	// ErrNoTerminalPath is returned for an undiscounted model where some
	// state cannot reach a terminal state
	ErrNoTerminalPath = errors.New("undiscounted model without a path to a terminal state")
	// ErrNumerical is returned when a sweep produces NaN or Inf
	ErrNumerical = errors.New("numerical error")
	// ErrInvalidConfig is returned for malformed solver configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
