package policyiter

import (
	"fmt"
	"math"

	"github.com/zeu5/mdp-planner/types"
)

// Improve returns the policy that is greedy with respect to values, and
// whether it differs from prev in any state. Only legal actions are
// considered and ties go to the action enumerated first by the model, so
// identical inputs always give identical policies
func Improve(env types.Environment, values types.ValueTable, prev types.Policy, gamma float64) (types.Policy, bool, error) {
	if err := ValidateGamma(env, gamma); err != nil {
		return nil, false, err
	}
	if err := values.Validate(env); err != nil {
		return nil, false, err
	}
	ix := newStateIndex(env)
	policy, changed, err := improve(env, ix, ix.load(values), prev, gamma)
	if err != nil {
		return nil, false, err
	}
	return policy, changed > 0, nil
}

// improve returns the greedy policy and the number of states whose action changed
func improve(env types.Environment, ix *stateIndex, values []float64, prev types.Policy, gamma float64) (types.Policy, int, error) {
	policy := make(types.Policy)
	changed := 0
	for i, s := range ix.states {
		if ix.terminal[i] {
			continue
		}
		best, _, err := greedy(env, ix, values, s, gamma)
		if err != nil {
			return nil, 0, err
		}
		policy.Set(s, best)
		if old, ok := prev.Get(s); !ok || old.Hash() != best.Hash() {
			changed++
		}
	}
	return policy, changed, nil
}

// greedy picks the first legal action attaining the largest action value
func greedy(env types.Environment, ix *stateIndex, values []float64, s types.State, gamma float64) (types.Action, float64, error) {
	actions := env.Actions(s)
	if len(actions) == 0 {
		return nil, 0, fmt.Errorf("%w: state %s has no legal actions", types.ErrUndefinedPolicyAction, s.Hash())
	}
	var best types.Action
	bestValue := math.Inf(-1)
	for _, a := range actions {
		edges, err := ix.edges(env, s, a)
		if err != nil {
			return nil, 0, err
		}
		q := backup(edges, values, gamma)
		if math.IsNaN(q) {
			return nil, 0, fmt.Errorf("%w: value of action %s in state %s is NaN", types.ErrNumerical, a.Hash(), s.Hash())
		}
		// strict comparison keeps the first action on ties
		if best == nil || q > bestValue {
			best = a
			bestValue = q
		}
	}
	return best, bestValue, nil
}

// Greedy returns the best legal action of a single state and its value
func Greedy(env types.Environment, values types.ValueTable, s types.State, gamma float64) (types.Action, float64, error) {
	ix := newStateIndex(env)
	return greedy(env, ix, ix.load(values), s, gamma)
}

// QValue is the expected return of taking a in s and then collecting values:
// sum over s' of P(s'|s,a) * (R(s,a,s') + gamma*V(s')). Illegal actions are 0
func QValue(env types.Environment, values types.ValueTable, s types.State, a types.Action, gamma float64) float64 {
	d, ok := env.Transition(s, a)
	if !ok {
		return 0
	}
	q := 0.0
	for _, o := range d {
		q += o.Probability * (env.Reward(s, a, o.Next) + gamma*values.Get(o.Next))
	}
	return q
}
