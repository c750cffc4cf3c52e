package types

// Environment is the fully known model a planner works against.
// Implementations must be immutable once constructed and every
// enumeration must be deterministic.
type Environment interface {
	// All states, terminal and non-terminal, in canonical order
	States() []State
	IsTerminal(State) bool
	// The finite action space in canonical order.
	// Ties during improvement are broken by this order
	ActionSpace() []Action
	// Legal actions of the state, in ActionSpace order.
	// Terminal states have none
	Actions(State) []Action
	// Successor distribution of the (state, action) pair.
	// The bool is false if the action is illegal in the state
	Transition(State, Action) (Distribution, bool)
	// P(next | state, action), 0 when unspecified
	TransitionProbability(State, Action, State) float64
	// Immediate reward of the transition, 0 when unspecified
	Reward(State, Action, State) float64

	// Lookups used to decode persisted policies and value tables
	State(string) (State, bool)
	Action(string) (Action, bool)
}

// State of the model that the planner observes
type State interface {
	// Indexed by the Hash
	// Should be deterministic
	Hash() string
}

// An Action that a policy can take
type Action interface {
	// Index of the action
	// Should be deterministic
	Hash() string
}

// Outcome is one successor of a distribution
type Outcome struct {
	Next        State
	Probability float64
}

// Distribution over successor states, ordered as the model enumerates them
type Distribution []Outcome

// Mass returns the sum of the probabilities
func (d Distribution) Mass() float64 {
	sum := 0.0
	for _, o := range d {
		sum += o.Probability
	}
	return sum
}

// Probability of reaching the state, 0 if it is not a successor
func (d Distribution) Probability(s State) float64 {
	hash := s.Hash()
	p := 0.0
	for _, o := range d {
		if o.Next.Hash() == hash {
			p += o.Probability
		}
	}
	return p
}

// NonTerminalStates filters the states of the environment that are not terminal
func NonTerminalStates(env Environment) []State {
	out := make([]State, 0)
	for _, s := range env.States() {
		if !env.IsTerminal(s) {
			out = append(out, s)
		}
	}
	return out
}
