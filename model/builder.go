package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/zeu5/mdp-planner/types"
)

// Builder accumulates states, transitions and rewards and validates
// them into an immutable Model
type Builder struct {
	states      []types.State
	stateIndex  map[string]int
	terminal    map[string]bool
	actionSpace []types.Action
	actionIndex map[string]int
	transitions Transitions
	pairs       []Pair
	rewards     Rewards
	errs        []error
}

// NewBuilder starts a model over the action space, in canonical order
func NewBuilder(actionSpace ...types.Action) *Builder {
	b := &Builder{
		states:      make([]types.State, 0),
		stateIndex:  make(map[string]int),
		terminal:    make(map[string]bool),
		actionSpace: make([]types.Action, 0, len(actionSpace)),
		actionIndex: make(map[string]int),
		transitions: make(Transitions),
		pairs:       make([]Pair, 0),
		rewards:     make(Rewards),
		errs:        make([]error, 0),
	}
	for _, a := range actionSpace {
		if _, ok := b.actionIndex[a.Hash()]; ok {
			b.fail("duplicate action %s", a.Hash())
			continue
		}
		b.actionIndex[a.Hash()] = len(b.actionSpace)
		b.actionSpace = append(b.actionSpace, a)
	}
	return b
}

func (b *Builder) fail(format string, args ...interface{}) {
	b.errs = append(b.errs, fmt.Errorf("%w: %s", types.ErrInvalidModel, fmt.Sprintf(format, args...)))
}

// AddState registers a state. States are enumerated in insertion order
func (b *Builder) AddState(s types.State, terminal bool) *Builder {
	if _, ok := b.stateIndex[s.Hash()]; ok {
		b.fail("duplicate state %s", s.Hash())
		return b
	}
	b.stateIndex[s.Hash()] = len(b.states)
	b.states = append(b.states, s)
	if terminal {
		b.terminal[s.Hash()] = true
	}
	return b
}

// AddTransition adds probability mass to P(next | s, a). Repeated calls for
// the same triple accumulate
func (b *Builder) AddTransition(s types.State, a types.Action, next types.State, p float64) *Builder {
	if math.IsNaN(p) || p < 0 || p > 1+Tolerance {
		b.fail("probability %v of (%s, %s) -> %s out of [0, 1]", p, s.Hash(), a.Hash(), next.Hash())
		return b
	}
	pair := Pair{State: s.Hash(), Action: a.Hash()}
	d, ok := b.transitions[pair]
	if !ok {
		b.pairs = append(b.pairs, pair)
	}
	for i, o := range d {
		if o.Next.Hash() == next.Hash() {
			d[i].Probability += p
			return b
		}
	}
	b.transitions[pair] = append(d, types.Outcome{Next: next, Probability: p})
	return b
}

// SetReward sets R(s, a, next)
func (b *Builder) SetReward(s types.State, a types.Action, next types.State, r float64) *Builder {
	b.rewards[RewardKey{State: s.Hash(), Action: a.Hash(), Next: next.Hash()}] = r
	return b
}

// Build validates the accumulated model. Any malformed transition is
// rejected with types.ErrInvalidModel, distributions are never normalized
func (b *Builder) Build() (*Model, error) {
	errs := append([]error{}, b.errs...)
	if len(b.actionSpace) == 0 {
		errs = append(errs, fmt.Errorf("%w: empty action space", types.ErrInvalidModel))
	}
	if len(b.states) == 0 {
		errs = append(errs, fmt.Errorf("%w: empty state space", types.ErrInvalidModel))
	}

	for _, pair := range b.pairs {
		if _, ok := b.stateIndex[pair.State]; !ok {
			errs = append(errs, fmt.Errorf("%w: transition from unknown state %s", types.ErrInvalidModel, pair.State))
			continue
		}
		if _, ok := b.actionIndex[pair.Action]; !ok {
			errs = append(errs, fmt.Errorf("%w: transition on unknown action %s", types.ErrInvalidModel, pair.Action))
			continue
		}
		if b.terminal[pair.State] {
			errs = append(errs, fmt.Errorf("%w: transition from terminal state %s", types.ErrInvalidModel, pair.State))
			continue
		}
		d := b.transitions[pair]
		for _, o := range d {
			if _, ok := b.stateIndex[o.Next.Hash()]; !ok {
				errs = append(errs, fmt.Errorf("%w: transition (%s, %s) to unknown state %s",
					types.ErrInvalidModel, pair.State, pair.Action, o.Next.Hash()))
			}
		}
		if mass := d.Mass(); mass > 1+Tolerance {
			errs = append(errs, fmt.Errorf("%w: successor probabilities of (%s, %s) sum to %v",
				types.ErrInvalidModel, pair.State, pair.Action, mass))
		}
	}

	for k, r := range b.rewards {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			errs = append(errs, fmt.Errorf("%w: reward of (%s, %s, %s) is %v", types.ErrNumerical, k.State, k.Action, k.Next, r))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	m := &Model{
		states:      append([]types.State{}, b.states...),
		stateIndex:  make(map[string]int, len(b.stateIndex)),
		terminal:    make(map[string]bool, len(b.terminal)),
		actionSpace: append([]types.Action{}, b.actionSpace...),
		actionIndex: make(map[string]int, len(b.actionIndex)),
		legal:       make(map[string][]types.Action),
		transitions: make(Transitions, len(b.transitions)),
		rewards:     make(Rewards, len(b.rewards)),
	}
	for k, v := range b.stateIndex {
		m.stateIndex[k] = v
	}
	for k, v := range b.terminal {
		m.terminal[k] = v
	}
	for k, v := range b.actionIndex {
		m.actionIndex[k] = v
	}
	for pair, d := range b.transitions {
		m.transitions[pair] = append(types.Distribution{}, d...)
	}
	for k, v := range b.rewards {
		m.rewards[k] = v
	}
	for _, s := range m.states {
		legal := make([]types.Action, 0)
		for _, a := range m.actionSpace {
			if _, ok := m.transitions[Pair{State: s.Hash(), Action: a.Hash()}]; ok {
				legal = append(legal, a)
			}
		}
		m.legal[s.Hash()] = legal
	}
	return m, nil
}
