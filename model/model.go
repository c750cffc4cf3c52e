package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/zeu5/mdp-planner/types"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Tolerance on the total mass of a successor distribution
const Tolerance = 1e-9

// Pair indexes the transition model by (state, action)
type Pair struct {
	State  string
	Action string
}

// Transitions is the transition model. A pair that is absent is an
// illegal action in that state
type Transitions map[Pair]types.Distribution

// RewardKey indexes the reward model by (state, action, next state)
type RewardKey struct {
	State  string
	Action string
	Next   string
}

// Rewards is the reward model, absent keys have reward 0
type Rewards map[RewardKey]float64

// Model is an immutable, validated finite MDP. Use a Builder to create one
type Model struct {
	states      []types.State
	stateIndex  map[string]int
	terminal    map[string]bool
	actionSpace []types.Action
	actionIndex map[string]int
	legal       map[string][]types.Action
	transitions Transitions
	rewards     Rewards
}

var _ types.Environment = &Model{}

func (m *Model) States() []types.State {
	return slices.Clone(m.states)
}

func (m *Model) IsTerminal(s types.State) bool {
	return m.terminal[s.Hash()]
}

func (m *Model) ActionSpace() []types.Action {
	return slices.Clone(m.actionSpace)
}

func (m *Model) Actions(s types.State) []types.Action {
	return slices.Clone(m.legal[s.Hash()])
}

func (m *Model) Transition(s types.State, a types.Action) (types.Distribution, bool) {
	d, ok := m.transitions[Pair{State: s.Hash(), Action: a.Hash()}]
	return d, ok
}

func (m *Model) TransitionProbability(s types.State, a types.Action, next types.State) float64 {
	d, ok := m.Transition(s, a)
	if !ok {
		return 0
	}
	return d.Probability(next)
}

func (m *Model) Reward(s types.State, a types.Action, next types.State) float64 {
	return m.rewards[RewardKey{State: s.Hash(), Action: a.Hash(), Next: next.Hash()}]
}

func (m *Model) State(hash string) (types.State, bool) {
	i, ok := m.stateIndex[hash]
	if !ok {
		return nil, false
	}
	return m.states[i], true
}

func (m *Model) Action(hash string) (types.Action, bool) {
	i, ok := m.actionIndex[hash]
	if !ok {
		return nil, false
	}
	return m.actionSpace[i], true
}

// Index of the state in canonical order, -1 if unknown
func (m *Model) Index(s types.State) int {
	i, ok := m.stateIndex[s.Hash()]
	if !ok {
		return -1
	}
	return i
}

// NumStates in the model
func (m *Model) NumStates() int {
	return len(m.states)
}

type fingerprintEntry struct {
	Key   string  `json:"k"`
	Value float64 `json:"v"`
}

// Fingerprint is a stable hash of the model contents. Two models with the
// same states, actions, transitions and rewards share a fingerprint
func (m *Model) Fingerprint() string {
	out := make(map[string]interface{})
	stateHashes := make([]string, len(m.states))
	terminals := make([]string, 0)
	for i, s := range m.states {
		stateHashes[i] = s.Hash()
		if m.terminal[s.Hash()] {
			terminals = append(terminals, s.Hash())
		}
	}
	actionHashes := make([]string, len(m.actionSpace))
	for i, a := range m.actionSpace {
		actionHashes[i] = a.Hash()
	}
	out["states"] = stateHashes
	out["terminal"] = terminals
	out["actions"] = actionHashes

	transitions := make([]fingerprintEntry, 0)
	for _, s := range m.states {
		for _, a := range m.legal[s.Hash()] {
			for _, o := range m.transitions[Pair{State: s.Hash(), Action: a.Hash()}] {
				transitions = append(transitions, fingerprintEntry{
					Key:   s.Hash() + "|" + a.Hash() + "|" + o.Next.Hash(),
					Value: o.Probability,
				})
			}
		}
	}
	out["transitions"] = transitions

	rewardKeys := maps.Keys(m.rewards)
	slices.SortFunc(rewardKeys, compareRewardKeys)
	rewards := make([]fingerprintEntry, len(rewardKeys))
	for i, k := range rewardKeys {
		rewards[i] = fingerprintEntry{Key: k.State + "|" + k.Action + "|" + k.Next, Value: m.rewards[k]}
	}
	out["rewards"] = rewards

	bs, _ := json.Marshal(out)
	hash := sha256.Sum256(bs)
	return hex.EncodeToString(hash[:])
}

func compareRewardKeys(a, b RewardKey) int {
	if a.State != b.State {
		return compareStrings(a.State, b.State)
	}
	if a.Action != b.Action {
		return compareStrings(a.Action, b.Action)
	}
	return compareStrings(a.Next, b.Next)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
