package grid

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/zeu5/mdp-planner/types"
)

// Printer renders value tables, rewards and policies of a world as text grids
type Printer struct {
	world *World
	au    aurora.Aurora
}

// NewPrinter creates a printer, colors can be disabled for non-terminal output
func NewPrinter(w *World, colors bool) *Printer {
	return &Printer{
		world: w,
		au:    aurora.NewAurora(colors),
	}
}

func (p *Printer) separator(out io.Writer) {
	fmt.Fprintln(out, strings.Repeat("-", 7*p.world.Width))
}

// Values prints one number per cell, walls are left blank
func (p *Printer) Values(out io.Writer, values types.ValueTable) {
	for i := 0; i < p.world.Height; i++ {
		p.separator(out)
		for j := 0; j < p.world.Width; j++ {
			pos := Position{I: i, J: j}
			cell := "      "
			if !p.world.isWall(pos) {
				cell = fmt.Sprintf("%6.2f", values.Get(pos))
			}
			v := values.Get(pos)
			switch {
			case p.world.isWall(pos):
				fmt.Fprint(out, cell)
			case v > 0:
				fmt.Fprint(out, p.au.Green(cell))
			case v < 0:
				fmt.Fprint(out, p.au.Red(cell))
			default:
				fmt.Fprint(out, p.au.Blue(cell))
			}
			fmt.Fprint(out, p.au.White("|"))
		}
		fmt.Fprintln(out)
	}
	p.separator(out)
}

// Rewards prints the reward of entering each cell
func (p *Printer) Rewards(out io.Writer) {
	values := make(types.ValueTable)
	for _, c := range p.world.Cells() {
		values.Set(c, p.world.cellReward(c))
	}
	p.Values(out, values)
}

// Policy prints the action of every non-terminal cell, terminals are marked
// with T and cells the policy does not cover with ?
func (p *Printer) Policy(out io.Writer, policy types.Policy) {
	for i := 0; i < p.world.Height; i++ {
		p.separator(out)
		for j := 0; j < p.world.Width; j++ {
			pos := Position{I: i, J: j}
			switch {
			case p.world.isWall(pos):
				fmt.Fprint(out, "      ")
			case p.world.isTerminal(pos):
				fmt.Fprint(out, p.au.Magenta("   T  "))
			default:
				a, ok := policy.Get(pos)
				label := "?"
				if ok {
					label = a.Hash()
				}
				fmt.Fprint(out, p.au.Blue(fmt.Sprintf("   %s  ", label)))
			}
			fmt.Fprint(out, p.au.White("|"))
		}
		fmt.Fprintln(out)
	}
	p.separator(out)
}
