package types

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Policy maps every non-terminal state (by hash) to exactly one action
type Policy map[string]Action

func (p Policy) Get(s State) (Action, bool) {
	a, ok := p[s.Hash()]
	return a, ok
}

func (p Policy) Set(s State, a Action) {
	p[s.Hash()] = a
}

func (p Policy) Copy() Policy {
	out := make(Policy, len(p))
	for k, a := range p {
		out[k] = a
	}
	return out
}

// Equal compares the chosen actions by hash
func (p Policy) Equal(other Policy) bool {
	if len(p) != len(other) {
		return false
	}
	for k, a := range p {
		o, ok := other[k]
		if !ok || o.Hash() != a.Hash() {
			return false
		}
	}
	return true
}

// Validate checks that the policy is defined over exactly the
// non-terminal states of the environment and only picks legal actions
func (p Policy) Validate(env Environment) error {
	nonTerminal := NonTerminalStates(env)
	if len(p) != len(nonTerminal) {
		return fmt.Errorf("%w: policy defines %d states, model has %d non-terminal states",
			ErrUndefinedPolicyAction, len(p), len(nonTerminal))
	}
	for _, s := range nonTerminal {
		a, ok := p.Get(s)
		if !ok {
			return fmt.Errorf("%w: no action for state %s", ErrUndefinedPolicyAction, s.Hash())
		}
		if !IsLegal(env, s, a) {
			return fmt.Errorf("%w: action %s is not legal in state %s", ErrUndefinedPolicyAction, a.Hash(), s.Hash())
		}
	}
	return nil
}

// Encode the policy as state hash -> action hash
func (p Policy) Encode() map[string]string {
	out := make(map[string]string, len(p))
	for k, a := range p {
		out[k] = a.Hash()
	}
	return out
}

// DecodePolicy resolves an encoded policy against the environment
func DecodePolicy(env Environment, encoded map[string]string) (Policy, error) {
	p := make(Policy, len(encoded))
	for sHash, aHash := range encoded {
		if _, ok := env.State(sHash); !ok {
			return nil, fmt.Errorf("%w: unknown state %s", ErrUndefinedPolicyAction, sHash)
		}
		a, ok := env.Action(aHash)
		if !ok {
			return nil, fmt.Errorf("%w: unknown action %s", ErrUndefinedPolicyAction, aHash)
		}
		p[sHash] = a
	}
	if err := p.Validate(env); err != nil {
		return nil, err
	}
	return p, nil
}

// IsLegal reports whether the action is one of the legal actions of the state
func IsLegal(env Environment, s State, a Action) bool {
	for _, legal := range env.Actions(s) {
		if legal.Hash() == a.Hash() {
			return true
		}
	}
	return false
}

// NewRandomPolicy picks a uniformly random legal action for every
// non-terminal state. States are visited in canonical order so the
// same seed always yields the same policy
func NewRandomPolicy(env Environment, seed uint64) (Policy, error) {
	r := rand.New(rand.NewSource(seed))
	p := make(Policy)
	for _, s := range NonTerminalStates(env) {
		actions := env.Actions(s)
		if len(actions) == 0 {
			return nil, fmt.Errorf("%w: state %s has no legal actions", ErrUndefinedPolicyAction, s.Hash())
		}
		p.Set(s, actions[r.Intn(len(actions))])
	}
	return p, nil
}
