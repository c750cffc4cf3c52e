package model

import "github.com/zeu5/mdp-planner/types"

// Label is a named state or action for models that are not grids
type Label string

var _ types.State = Label("")
var _ types.Action = Label("")

func (l Label) Hash() string {
	return string(l)
}

// Labels converts names to actions, preserving order
func Labels(names ...string) []types.Action {
	out := make([]types.Action, len(names))
	for i, n := range names {
		out[i] = Label(n)
	}
	return out
}
