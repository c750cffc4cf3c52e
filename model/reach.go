package model

import "github.com/zeu5/mdp-planner/types"

// WithoutTerminalPath lists the non-terminal states from which no sequence of
// actions reaches a terminal state with positive probability. A pair whose
// successor mass is below one leaks out of the model and counts as reaching
// termination
func WithoutTerminalPath(env types.Environment) []types.State {
	states := env.States()
	reaches := make(map[string]bool)
	for _, s := range states {
		if env.IsTerminal(s) {
			reaches[s.Hash()] = true
		}
	}

	// fixed point over the predecessor relation
	for changed := true; changed; {
		changed = false
		for _, s := range states {
			if reaches[s.Hash()] {
				continue
			}
			for _, a := range env.Actions(s) {
				d, _ := env.Transition(s, a)
				if d.Mass() < 1-Tolerance {
					reaches[s.Hash()] = true
					break
				}
				for _, o := range d {
					if o.Probability > 0 && reaches[o.Next.Hash()] {
						reaches[s.Hash()] = true
						break
					}
				}
				if reaches[s.Hash()] {
					break
				}
			}
			if reaches[s.Hash()] {
				changed = true
			}
		}
	}

	out := make([]types.State, 0)
	for _, s := range states {
		if !reaches[s.Hash()] {
			out = append(out, s)
		}
	}
	return out
}
