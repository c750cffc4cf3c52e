package types

import (
	"os"
	"path"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DeltaChart renders the sweep deltas of every experiment as an
// interactive HTML line chart. Consumes the datasets of DeltaAnalyzer
func DeltaChart(chartPath string) Comparator {
	return func(run int, names []string, ds []DataSet) error {
		if err := os.MkdirAll(chartPath, os.ModePerm); err != nil {
			return err
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{
				Title:    "Convergence",
				Subtitle: "run " + strconv.Itoa(run),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "sweep"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "max change", Type: "log"}),
		)

		longest := 0
		for i := range names {
			longest = max(longest, len(ds[i].([]float64)))
		}
		sweeps := make([]string, longest)
		for i := range sweeps {
			sweeps[i] = strconv.Itoa(i)
		}
		line.SetXAxis(sweeps)

		for i, name := range names {
			deltas := ds[i].([]float64)
			items := make([]opts.LineData, len(deltas))
			for j, v := range deltas {
				items[j] = opts.LineData{Value: v}
			}
			line.AddSeries(name, items)
		}

		f, err := os.Create(path.Join(chartPath, strconv.Itoa(run)+"_deltas.html"))
		if err != nil {
			return err
		}
		defer f.Close()
		return line.Render(f)
	}
}
