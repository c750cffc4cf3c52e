package types

import (
	"encoding/json"
	"time"
)

// Generation summarizes one evaluate/improve round of policy iteration
type Generation struct {
	Index int `json:"index"`
	// sweeps performed by the evaluation step
	Sweeps int `json:"sweeps"`
	// max change of each sweep, the last one is below the threshold if EvalConverged
	Deltas        []float64 `json:"deltas"`
	EvalConverged bool      `json:"eval_converged"`
	// number of states whose action changed during improvement
	Changed  int           `json:"changed"`
	Duration time.Duration `json:"duration"`
}

// Delta of the last sweep
func (g Generation) Delta() float64 {
	if len(g.Deltas) == 0 {
		return 0
	}
	return g.Deltas[len(g.Deltas)-1]
}

// Trace of a run as the sequence of generations
type Trace struct {
	generations []Generation
}

func NewTrace() *Trace {
	return &Trace{
		generations: make([]Generation, 0),
	}
}

func (t *Trace) Slice(from, to int) *Trace {
	slicedTrace := NewTrace()
	for i := from; i < to; i++ {
		slicedTrace.Append(t.generations[i])
	}
	return slicedTrace
}

func (t *Trace) Append(g Generation) {
	t.generations = append(t.generations, g)
}

func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.generations)
}

func (t *Trace) Get(i int) (Generation, bool) {
	if i < 0 || i >= len(t.generations) {
		return Generation{}, false
	}
	return t.generations[i], true
}

func (t *Trace) Last() (Generation, bool) {
	return t.Get(len(t.generations) - 1)
}

// TotalSweeps across all generations
func (t *Trace) TotalSweeps() int {
	total := 0
	for _, g := range t.generations {
		total += g.Sweeps
	}
	return total
}

// SweepDeltas flattens the per-sweep deltas of all generations
func (t *Trace) SweepDeltas() []float64 {
	out := make([]float64, 0)
	for _, g := range t.generations {
		out = append(out, g.Deltas...)
	}
	return out
}

func (t *Trace) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.generations)
}

func (t *Trace) UnmarshalJSON(bs []byte) error {
	gens := make([]Generation, 0)
	if err := json.Unmarshal(bs, &gens); err != nil {
		return err
	}
	t.generations = gens
	return nil
}
