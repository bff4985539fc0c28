package timeseries

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/citytrace/citytrace/internal/xgas"
)

// missingPoint is how echarts spells an empty data point.
const missingPoint = "-"

// ChartOptions labels the chart.
type ChartOptions struct {
	Title    string
	Subtitle string

	// Series is the legend name, e.g. "CO".
	Series string

	// YAxis names the unit axis, e.g. "Mixing ratio (ppb)".
	YAxis string
}

// Chart writes bins as a standalone HTML line chart. Missing values are
// left as gaps in the line.
func Chart(w io.Writer, bins []TimeBin, o ChartOptions) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.Title,
			Width:     "960px",
			Height:    "520px",
		}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: o.YAxis}),
	)

	labels := make([]string, len(bins))
	points := make([]opts.LineData, len(bins))
	for i, b := range bins {
		labels[i] = b.Label
		points[i] = lineData(b.Value)
	}

	line.SetXAxis(labels).
		AddSeries(o.Series, points, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func lineData(v xgas.MixingRatio) opts.LineData {
	if !v.Valid {
		return opts.LineData{Value: missingPoint}
	}
	return opts.LineData{Value: xgas.Round3(v.Value)}
}
