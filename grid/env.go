package grid

import (
	"fmt"

	"github.com/zeu5/mdp-planner/model"
	"github.com/zeu5/mdp-planner/types"
)

// World describes a rectangular grid world. Rows are indexed from the top.
// Moving into a cell yields that cell's reward, StepCost for any
// non-terminal cell without an explicit reward
type World struct {
	Height    int        `json:"height"`
	Width     int        `json:"width"`
	Start     Position   `json:"start"`
	Walls     []Position `json:"walls"`
	Terminals []Position `json:"terminals"`
	Rewards   []Cell     `json:"rewards"`
	StepCost  float64    `json:"step_cost"`
	// Probability mass split evenly between the two perpendicular moves
	Slip float64 `json:"slip"`
	// If set, every move is legal and moving off the grid or into a wall
	// leaves the agent in place. Otherwise such moves are illegal
	Bump  bool   `json:"bump"`
	Gusts []Gust `json:"gusts"`
}

// Cell assigns a reward to a position
type Cell struct {
	Position
	Reward float64 `json:"reward"`
}

// Gust overrides the successor distribution of a single (cell, move) pair
type Gust struct {
	From      Position  `json:"from"`
	Direction string    `json:"direction"`
	Outcomes  []Outcome `json:"outcomes"`
}

type Outcome struct {
	To          Position `json:"to"`
	Probability float64  `json:"probability"`
}

type Position struct {
	I int `json:"i"`
	J int `json:"j"`
}

var _ types.State = Position{}

func (p Position) Hash() string {
	return fmt.Sprintf("(%d, %d)", p.I, p.J)
}

func (p Position) Eq(other Position) bool {
	return p.I == other.I && p.J == other.J
}

// Less orders positions row-major
func (p Position) Less(other Position) bool {
	if p.I != other.I {
		return p.I < other.I
	}
	return p.J < other.J
}

type Movement struct {
	Direction string
}

var _ types.Action = &Movement{}

func (m *Movement) Hash() string {
	return m.Direction
}

func (m *Movement) delta() (int, int) {
	switch m {
	case MovementUp:
		return -1, 0
	case MovementDown:
		return 1, 0
	case MovementLeft:
		return 0, -1
	case MovementRight:
		return 0, 1
	}
	return 0, 0
}

func (m *Movement) perpendicular() []*Movement {
	switch m {
	case MovementUp, MovementDown:
		return []*Movement{MovementLeft, MovementRight}
	}
	return []*Movement{MovementUp, MovementDown}
}

var (
	MovementUp    = &Movement{"U"}
	MovementDown  = &Movement{"D"}
	MovementLeft  = &Movement{"L"}
	MovementRight = &Movement{"R"}
)

// AllMovements is the action space in canonical order, the first of these wins ties
var AllMovements = []types.Action{
	MovementUp,
	MovementDown,
	MovementLeft,
	MovementRight,
}

// MovementFor resolves a direction name
func MovementFor(direction string) (*Movement, bool) {
	for _, a := range AllMovements {
		if a.Hash() == direction {
			return a.(*Movement), true
		}
	}
	return nil, false
}

func (w *World) inside(p Position) bool {
	return p.I >= 0 && p.I < w.Height && p.J >= 0 && p.J < w.Width
}

func (w *World) isWall(p Position) bool {
	for _, wall := range w.Walls {
		if wall.Eq(p) {
			return true
		}
	}
	return false
}

func (w *World) isTerminal(p Position) bool {
	for _, t := range w.Terminals {
		if t.Eq(p) {
			return true
		}
	}
	return false
}

// Cells lists the positions that are not walls, row-major
func (w *World) Cells() []Position {
	out := make([]Position, 0)
	for i := 0; i < w.Height; i++ {
		for j := 0; j < w.Width; j++ {
			p := Position{I: i, J: j}
			if !w.isWall(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// move returns the cell reached by the movement and whether the move is
// possible without leaving the grid or entering a wall
func (w *World) move(p Position, m *Movement) (Position, bool) {
	di, dj := m.delta()
	next := Position{I: p.I + di, J: p.J + dj}
	if !w.inside(next) || w.isWall(next) {
		return p, false
	}
	return next, true
}

func (w *World) legal(p Position, m *Movement) bool {
	if w.Bump {
		return true
	}
	_, ok := w.move(p, m)
	return ok
}

func (w *World) cellReward(p Position) float64 {
	for _, c := range w.Rewards {
		if c.Position.Eq(p) {
			return c.Reward
		}
	}
	if w.isTerminal(p) {
		return 0
	}
	return w.StepCost
}

func (w *World) gust(p Position, m *Movement) (Gust, bool) {
	for _, g := range w.Gusts {
		if g.From.Eq(p) && g.Direction == m.Direction {
			return g, true
		}
	}
	return Gust{}, false
}

func (w *World) validate() error {
	if w.Height <= 0 || w.Width <= 0 {
		return fmt.Errorf("%w: grid of size %dx%d", types.ErrInvalidModel, w.Height, w.Width)
	}
	if w.Slip < 0 || w.Slip > 1 {
		return fmt.Errorf("%w: slip probability %v out of [0, 1]", types.ErrInvalidModel, w.Slip)
	}
	check := func(kind string, p Position) error {
		if !w.inside(p) {
			return fmt.Errorf("%w: %s %s outside of the grid", types.ErrInvalidModel, kind, p.Hash())
		}
		if w.isWall(p) {
			return fmt.Errorf("%w: %s %s is a wall", types.ErrInvalidModel, kind, p.Hash())
		}
		return nil
	}
	for _, t := range w.Terminals {
		if err := check("terminal", t); err != nil {
			return err
		}
	}
	for _, c := range w.Rewards {
		if err := check("reward cell", c.Position); err != nil {
			return err
		}
	}
	for _, g := range w.Gusts {
		if err := check("gust", g.From); err != nil {
			return err
		}
		if _, ok := MovementFor(g.Direction); !ok {
			return fmt.Errorf("%w: gust on unknown direction %q", types.ErrInvalidModel, g.Direction)
		}
	}
	return nil
}

// Model builds the immutable MDP of the world
func (w *World) Model() (*model.Model, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	b := model.NewBuilder(AllMovements...)
	cells := w.Cells()
	for _, p := range cells {
		b.AddState(p, w.isTerminal(p))
	}
	for _, p := range cells {
		if w.isTerminal(p) {
			continue
		}
		for _, a := range AllMovements {
			m := a.(*Movement)
			if !w.legal(p, m) {
				continue
			}
			if g, ok := w.gust(p, m); ok {
				for _, o := range g.Outcomes {
					b.AddTransition(p, m, o.To, o.Probability)
					b.SetReward(p, m, o.To, w.cellReward(o.To))
				}
				continue
			}
			w.addMove(b, p, m, m, 1-w.Slip)
			for _, side := range m.perpendicular() {
				w.addMove(b, p, m, side, w.Slip/2)
			}
		}
	}
	return b.Build()
}

// addMove adds the mass of the chosen action that ends up moving along actual.
// Moving off the grid or into a wall leaves the agent in place
func (w *World) addMove(b *model.Builder, p Position, chosen, actual *Movement, prob float64) {
	if prob <= 0 {
		return
	}
	next, _ := w.move(p, actual)
	b.AddTransition(p, chosen, next, prob)
	b.SetReward(p, chosen, next, w.cellReward(next))
}
