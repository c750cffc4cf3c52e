package grid

import (
	"fmt"
	"math"

	"github.com/zeu5/mdp-planner/types"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// GridDataSet exposes a value table of a world as a heat map.
// Row 0 of the world is drawn at the top, walls are NaN
type GridDataSet struct {
	Values types.ValueTable
	World  *World
}

var _ plotter.GridXYZ = &GridDataSet{}

func NewGridDataSet(w *World, values types.ValueTable) *GridDataSet {
	return &GridDataSet{
		Values: values,
		World:  w,
	}
}

func (g *GridDataSet) Dims() (int, int) {
	return g.World.Width, g.World.Height
}

func (g *GridDataSet) Z(j, r int) float64 {
	pos := Position{I: g.World.Height - 1 - r, J: j}
	if g.World.isWall(pos) {
		return math.NaN()
	}
	return g.Values.Get(pos)
}

func (g *GridDataSet) X(j int) float64 {
	return float64(j)
}

func (g *GridDataSet) Y(r int) float64 {
	return float64(r)
}

func (g *GridDataSet) Min() float64 {
	min := math.Inf(1)
	for _, c := range g.World.Cells() {
		min = math.Min(min, g.Values.Get(c))
	}
	return min
}

func (g *GridDataSet) Max() float64 {
	max := math.Inf(-1)
	for _, c := range g.World.Cells() {
		max = math.Max(max, g.Values.Get(c))
	}
	return max
}

// SaveHeatmap draws the value table of the world to an image file,
// the format follows the extension of the path
func SaveHeatmap(w *World, values types.ValueTable, title, filePath string) error {
	dataSet := NewGridDataSet(w, values)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row (from bottom)"

	heatMap := plotter.NewHeatMap(dataSet, palette.Heat(16, 1))
	min, max := dataSet.Min(), dataSet.Max()
	if min == max {
		// a flat table has no color range
		max = min + 1
	}
	heatMap.Min = min
	heatMap.Max = max
	p.Add(heatMap)

	for _, c := range w.Cells() {
		labels, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    []plotter.XY{{X: float64(c.J), Y: float64(w.Height - 1 - c.I)}},
			Labels: []string{fmt.Sprintf("%.2f", values.Get(c))},
		})
		if err != nil {
			return err
		}
		p.Add(labels)
	}

	return p.Save(vg.Length(w.Width)*vg.Inch, vg.Length(w.Height)*vg.Inch, filePath)
}
