package grid

import (
	"fmt"
	"sort"
)

// Standard is the 3x4 grid with a wall at (1, 1), +1 at (0, 3) and -1 at (1, 3).
// Moves are deterministic and moves into walls or off the grid are illegal
func Standard() *World {
	return &World{
		Height:    3,
		Width:     4,
		Start:     Position{I: 2, J: 0},
		Walls:     []Position{{I: 1, J: 1}},
		Terminals: []Position{{I: 0, J: 3}, {I: 1, J: 3}},
		Rewards: []Cell{
			{Position: Position{I: 0, J: 3}, Reward: 1},
			{Position: Position{I: 1, J: 3}, Reward: -1},
		},
	}
}

// Windy is Standard with a gust at (1, 2): moving up lands at (0, 2) or
// is blown into (1, 3) with equal probability
func Windy() *World {
	w := Standard()
	w.Gusts = []Gust{
		{
			From:      Position{I: 1, J: 2},
			Direction: MovementUp.Direction,
			Outcomes: []Outcome{
				{To: Position{I: 0, J: 2}, Probability: 0.5},
				{To: Position{I: 1, J: 3}, Probability: 0.5},
			},
		},
	}
	return w
}

// WindyPenalized is Windy where entering any non-terminal cell costs stepCost
func WindyPenalized(stepCost float64) *World {
	w := Windy()
	w.StepCost = stepCost
	return w
}

// Norvig is the 4x3 world of Russell & Norvig: the intended move succeeds
// with probability 0.8, slips sideways with 0.1 each and bumping into walls
// leaves the agent in place. Every step costs 0.04
func Norvig() *World {
	w := Standard()
	w.Slip = 0.2
	w.Bump = true
	w.StepCost = -0.04
	return w
}

// DefaultStepCost of the penalized scenario
const DefaultStepCost = -0.2

var scenarios = map[string]func(stepCost float64) *World{
	"standard":  func(float64) *World { return Standard() },
	"windy":     func(float64) *World { return Windy() },
	"penalized": WindyPenalized,
	"norvig":    func(float64) *World { return Norvig() },
}

// Scenario looks up a named world. stepCost only applies to "penalized"
func Scenario(name string, stepCost float64) (*World, error) {
	f, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q, expected one of %v", name, ScenarioNames())
	}
	return f(stepCost), nil
}

// ScenarioNames lists the named worlds, sorted
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
