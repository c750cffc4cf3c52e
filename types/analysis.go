package types

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/zeu5/mdp-planner/util"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SweepsAnalyzer collects the number of evaluation sweeps of every generation
func SweepsAnalyzer() Analyzer {
	return func(_ int, _ string, o *RunOutcome) DataSet {
		sweeps := make([]int, o.Trace.Len())
		for i := range sweeps {
			g, _ := o.Trace.Get(i)
			sweeps[i] = g.Sweeps
		}
		return sweeps
	}
}

// SweepsPlotter draws the sweeps per generation of every experiment
func SweepsPlotter(plotPath string) Comparator {
	return func(run int, names []string, ds []DataSet) error {
		if err := os.MkdirAll(plotPath, os.ModePerm); err != nil {
			return err
		}
		p := plot.New()
		p.Title.Text = "Evaluation sweeps"
		p.X.Label.Text = "Generation"
		p.Y.Label.Text = "Sweeps"
		for i := 0; i < len(names); i++ {
			sweeps := ds[i].([]int)
			points := make(plotter.XYs, len(sweeps))
			for j, v := range sweeps {
				points[j] = plotter.XY{
					X: float64(j),
					Y: float64(v),
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
		}
		return p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_sweeps.png"))
	}
}

// DeltaAnalyzer collects the largest value change of every sweep, across generations
func DeltaAnalyzer() Analyzer {
	return func(_ int, _ string, o *RunOutcome) DataSet {
		return o.Trace.SweepDeltas()
	}
}

// DeltaPlotter draws the sweep deltas of every experiment on a log scale.
// Sweeps that changed nothing cannot be drawn on it and are left out
func DeltaPlotter(plotPath string) Comparator {
	return func(run int, names []string, ds []DataSet) error {
		if err := os.MkdirAll(plotPath, os.ModePerm); err != nil {
			return err
		}
		p := plot.New()
		p.Title.Text = "Convergence"
		p.X.Label.Text = "Sweep"
		p.Y.Label.Text = "Max value change"
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
		for i := 0; i < len(names); i++ {
			deltas := ds[i].([]float64)
			points := make(plotter.XYs, 0, len(deltas))
			for j, v := range deltas {
				if v <= 0 {
					continue
				}
				points = append(points, plotter.XY{X: float64(j), Y: v})
			}
			if len(points) == 0 {
				continue
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
		}
		return p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_deltas.png"))
	}
}

// Summary of an outcome
type Summary struct {
	Status      string
	Generations int
	Sweeps      int
	Duration    time.Duration
}

func SummaryAnalyzer() Analyzer {
	return func(_ int, _ string, o *RunOutcome) DataSet {
		return Summary{
			Status:      o.Status,
			Generations: o.Trace.Len(),
			Sweeps:      o.Trace.TotalSweeps(),
			Duration:    o.Duration,
		}
	}
}

// SummaryRecorder writes one line per experiment of the run to a text file
func SummaryRecorder(savePath string) Comparator {
	return func(run int, names []string, ds []DataSet) error {
		if err := os.MkdirAll(savePath, os.ModePerm); err != nil {
			return err
		}
		longest := 0
		for _, name := range names {
			longest = max(longest, len(name))
		}
		lines := make([]string, len(names))
		for i, name := range names {
			s := ds[i].(Summary)
			lines[i] = fmt.Sprintf("%-*s %-13s generations: %4d, sweeps: %6d, time: %s",
				longest, name, s.Status, s.Generations, s.Sweeps, s.Duration)
		}
		return util.WriteToFile(path.Join(savePath, strconv.Itoa(run)+"_summary.txt"), lines...)
	}
}
