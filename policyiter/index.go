package policyiter

import (
	"fmt"

	"github.com/zeu5/mdp-planner/types"
)

// edge is one successor of a (state, action) pair with its reward
type edge struct {
	next int
	p    float64
	r    float64
}

// row is the backup of a non-terminal state under a fixed action
type row struct {
	state int
	edges []edge
}

// stateIndex maps the canonical state order to dense slices so that sweeps
// do not hash on every read
type stateIndex struct {
	states   []types.State
	index    map[string]int
	terminal []bool
}

func newStateIndex(env types.Environment) *stateIndex {
	states := env.States()
	ix := &stateIndex{
		states:   states,
		index:    make(map[string]int, len(states)),
		terminal: make([]bool, len(states)),
	}
	for i, s := range states {
		ix.index[s.Hash()] = i
		ix.terminal[i] = env.IsTerminal(s)
	}
	return ix
}

// edges of the pair, an illegal action is an error
func (ix *stateIndex) edges(env types.Environment, s types.State, a types.Action) ([]edge, error) {
	d, ok := env.Transition(s, a)
	if !ok {
		return nil, fmt.Errorf("%w: action %s is not legal in state %s", types.ErrUndefinedPolicyAction, a.Hash(), s.Hash())
	}
	out := make([]edge, 0, len(d))
	for _, o := range d {
		next, ok := ix.index[o.Next.Hash()]
		if !ok {
			return nil, fmt.Errorf("%w: successor %s of (%s, %s) is not a state", types.ErrInvalidModel, o.Next.Hash(), s.Hash(), a.Hash())
		}
		out = append(out, edge{next: next, p: o.Probability, r: env.Reward(s, a, o.Next)})
	}
	return out, nil
}

// rows of the policy over the non-terminal states, in canonical order
func (ix *stateIndex) rows(env types.Environment, policy types.Policy) ([]row, error) {
	rows := make([]row, 0, len(ix.states))
	for i, s := range ix.states {
		if ix.terminal[i] {
			continue
		}
		a, ok := policy.Get(s)
		if !ok {
			return nil, fmt.Errorf("%w: no action for state %s", types.ErrUndefinedPolicyAction, s.Hash())
		}
		edges, err := ix.edges(env, s, a)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row{state: i, edges: edges})
	}
	return rows, nil
}

func (ix *stateIndex) load(table types.ValueTable) []float64 {
	values := make([]float64, len(ix.states))
	if table == nil {
		return values
	}
	for i, s := range ix.states {
		values[i] = table.Get(s)
	}
	return values
}

func (ix *stateIndex) table(values []float64) types.ValueTable {
	out := make(types.ValueTable, len(ix.states))
	for i, s := range ix.states {
		out[s.Hash()] = values[i]
	}
	return out
}

// backup is the expected return of the edges under the values
func backup(edges []edge, values []float64, gamma float64) float64 {
	v := 0.0
	for _, e := range edges {
		v += e.p * (e.r + gamma*values[e.next])
	}
	return v
}
