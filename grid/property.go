package grid

import "github.com/zeu5/mdp-planner/types"

// Route follows the policy from the start cell, always taking the most
// likely successor, until a terminal cell, a revisited cell or maxSteps.
// The returned route includes the start cell
func Route(env types.Environment, policy types.Policy, start Position, maxSteps int) []Position {
	route := []Position{start}
	visited := map[string]bool{start.Hash(): true}
	cur := types.State(start)
	for step := 0; step < maxSteps; step++ {
		if env.IsTerminal(cur) {
			break
		}
		a, ok := policy.Get(cur)
		if !ok {
			break
		}
		d, ok := env.Transition(cur, a)
		if !ok || len(d) == 0 {
			break
		}
		best := d[0]
		for _, o := range d[1:] {
			if o.Probability > best.Probability {
				best = o
			}
		}
		next, ok := best.Next.(Position)
		if !ok {
			break
		}
		route = append(route, next)
		if visited[next.Hash()] {
			break
		}
		visited[next.Hash()] = true
		cur = next
	}
	return route
}

// InPosition returns a predicate matching the cell
func InPosition(i, j int) func(types.State) bool {
	return func(s types.State) bool {
		pos, ok := s.(Position)
		if !ok {
			return false
		}
		return pos.I == i && pos.J == j
	}
}
