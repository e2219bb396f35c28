package render

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HTMLRenderer writes an interactive go-echarts line chart.
type HTMLRenderer struct {
	// AssetsHost overrides where the echarts javascript is loaded from.
	AssetsHost string
}

func (r HTMLRenderer) Render(w io.Writer, chart Chart) error {
	if err := chart.Validate(); err != nil {
		return err
	}

	init := opts.Initialization{PageTitle: chart.Title, Width: "1000px", Height: "600px"}
	if r.AssetsHost != "" {
		init.AssetsHost = r.AssetsHost
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: chart.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: chart.XLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: chart.YLabel, NameLocation: "middle", NameGap: 60}),
	)

	xs := make([]string, len(chart.X))
	for k, x := range chart.X {
		xs[k] = strconv.FormatFloat(x, 'g', 6, 64)
	}
	line.SetXAxis(xs)

	for _, s := range chart.Series {
		data := make([]opts.LineData, len(s.Values))
		for k, v := range s.Values {
			data[k] = opts.LineData{Value: v}
		}
		line.AddSeries(s.Name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	return line.Render(w)
}
