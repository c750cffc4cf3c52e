package policyiter

import (
	"errors"
	"fmt"
	"math"

	"github.com/zeu5/mdp-planner/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrTooManyPolicies is returned by SolveExact when the model has more
// deterministic policies than the enumeration limit
var ErrTooManyPolicies = errors.New("too many policies to enumerate")

// EvaluateExact solves the Bellman expectation equations of the policy as
// the linear system (I - gamma*P) V = r over the non-terminal states, with
// terminal states fixed at 0
func EvaluateExact(env types.Environment, policy types.Policy, gamma float64) (types.ValueTable, error) {
	if err := ValidateGamma(env, gamma); err != nil {
		return nil, err
	}
	ix := newStateIndex(env)
	rows, err := ix.rows(env, policy)
	if err != nil {
		return nil, err
	}
	values, err := solveLinear(ix, rows, gamma)
	if err != nil {
		return nil, err
	}
	return ix.table(values), nil
}

func solveLinear(ix *stateIndex, rows []row, gamma float64) ([]float64, error) {
	n := len(rows)
	values := make([]float64, len(ix.states))
	if n == 0 {
		return values, nil
	}
	// position of each non-terminal state in the system
	pos := make(map[int]int, n)
	for k, r := range rows {
		pos[r.state] = k
	}

	a := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)
	for k, r := range rows {
		a.Set(k, k, 1)
		reward := 0.0
		for _, e := range r.edges {
			reward += e.p * e.r
			if col, ok := pos[e.next]; ok {
				a.Set(k, col, a.At(k, col)-gamma*e.p)
			}
		}
		b.SetVec(k, reward)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: policy system is singular: %v", types.ErrNumerical, err)
	}
	for k, r := range rows {
		values[r.state] = x.AtVec(k)
	}
	if floats.HasNaN(values) || math.IsInf(floats.Max(values), 0) || math.IsInf(floats.Min(values), 0) {
		return nil, fmt.Errorf("%w: exact solution is not finite", types.ErrNumerical)
	}
	return values, nil
}

// SolveExact enumerates every deterministic policy, solves each exactly and
// returns the one with the largest total value. An optimal policy dominates
// every other in every state, so it also maximizes the total. Policies whose
// system is singular (improper policies of undiscounted models) are skipped.
// limit bounds the number of policies, 0 means no bound
func SolveExact(env types.Environment, gamma float64, limit int) (types.Policy, types.ValueTable, error) {
	if err := ValidateGamma(env, gamma); err != nil {
		return nil, nil, err
	}
	ix := newStateIndex(env)

	nonTerminal := make([]types.State, 0)
	choices := make([][]types.Action, 0)
	count := 1.0
	for i, s := range ix.states {
		if ix.terminal[i] {
			continue
		}
		actions := env.Actions(s)
		if len(actions) == 0 {
			return nil, nil, fmt.Errorf("%w: state %s has no legal actions", types.ErrUndefinedPolicyAction, s.Hash())
		}
		nonTerminal = append(nonTerminal, s)
		choices = append(choices, actions)
		count *= float64(len(actions))
	}
	if limit > 0 && count > float64(limit) {
		return nil, nil, fmt.Errorf("%w: %.0f policies, limit %d", ErrTooManyPolicies, count, limit)
	}

	var bestPolicy types.Policy
	var bestValues []float64
	bestTotal := math.Inf(-1)

	choice := make([]int, len(nonTerminal))
	for {
		policy := make(types.Policy, len(nonTerminal))
		for k, s := range nonTerminal {
			policy.Set(s, choices[k][choice[k]])
		}
		rows, err := ix.rows(env, policy)
		if err != nil {
			return nil, nil, err
		}
		if values, err := solveLinear(ix, rows, gamma); err == nil {
			if total := floats.Sum(values); total > bestTotal {
				bestTotal = total
				bestPolicy = policy
				bestValues = values
			}
		}

		// odometer over the choices
		k := 0
		for ; k < len(choice); k++ {
			choice[k]++
			if choice[k] < len(choices[k]) {
				break
			}
			choice[k] = 0
		}
		if k == len(choice) {
			break
		}
	}

	if bestPolicy == nil {
		return nil, nil, fmt.Errorf("%w: no policy has a finite value", types.ErrNumerical)
	}
	return bestPolicy, ix.table(bestValues), nil
}

// BellmanResidual is the largest |V(s) - sum P (R + gamma V)| over the
// non-terminal states under the policy
func BellmanResidual(env types.Environment, policy types.Policy, values types.ValueTable, gamma float64) (float64, error) {
	ix := newStateIndex(env)
	rows, err := ix.rows(env, policy)
	if err != nil {
		return 0, err
	}
	v := ix.load(values)
	residual := 0.0
	for _, r := range rows {
		residual = math.Max(residual, math.Abs(v[r.state]-backup(r.edges, v, gamma)))
	}
	return residual, nil
}

// OptimalityResidual is the largest |V(s) - max_a Q(s, a)| over the
// non-terminal states
func OptimalityResidual(env types.Environment, values types.ValueTable, gamma float64) (float64, error) {
	ix := newStateIndex(env)
	v := ix.load(values)
	residual := 0.0
	for i, s := range ix.states {
		if ix.terminal[i] {
			continue
		}
		_, q, err := greedy(env, ix, v, s, gamma)
		if err != nil {
			return 0, err
		}
		residual = math.Max(residual, math.Abs(v[i]-q))
	}
	return residual, nil
}
