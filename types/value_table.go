package types

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/zeu5/mdp-planner/util"
)

// ValueTable maps every state (by hash) to its value
type ValueTable map[string]float64

// NewValueTable initializes the value of every state to zero
func NewValueTable(env Environment) ValueTable {
	v := make(ValueTable)
	for _, s := range env.States() {
		v[s.Hash()] = 0
	}
	return v
}

func (v ValueTable) Get(s State) float64 {
	return v[s.Hash()]
}

func (v ValueTable) Set(s State, val float64) {
	v[s.Hash()] = val
}

func (v ValueTable) Copy() ValueTable {
	out := make(ValueTable, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// MaxDiff is the largest absolute difference over the keys of v
func (v ValueTable) MaxDiff(other ValueTable) float64 {
	max := 0.0
	for k, val := range v {
		d := math.Abs(val - other[k])
		if d > max {
			max = d
		}
	}
	return max
}

// Validate checks the table is keyed by exactly the states of the environment
// and holds finite values
func (v ValueTable) Validate(env Environment) error {
	states := env.States()
	if len(v) != len(states) {
		return fmt.Errorf("%w: value table has %d states, model has %d", ErrInvalidConfig, len(v), len(states))
	}
	for _, s := range states {
		val, ok := v[s.Hash()]
		if !ok {
			return fmt.Errorf("%w: value table is missing state %s", ErrInvalidConfig, s.Hash())
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: value of state %s is %v", ErrNumerical, s.Hash(), val)
		}
	}
	return nil
}

// Record stores the table as JSON
func (v ValueTable) Record(filePath string) error {
	return util.SaveJSON(filePath, v)
}

// LoadValueTable reads a table stored with Record
func LoadValueTable(filePath string) (ValueTable, error) {
	bs, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	v := make(ValueTable)
	if err := json.Unmarshal(bs, &v); err != nil {
		return nil, fmt.Errorf("decoding value table %s: %w", filePath, err)
	}
	return v, nil
}
