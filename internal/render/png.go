package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PNGRenderer draws charts with gonum/plot. Format defaults to "png".
type PNGRenderer struct {
	Width  vg.Length
	Height vg.Length
	Format string
}

func (r PNGRenderer) Render(w io.Writer, chart Chart) error {
	if err := chart.Validate(); err != nil {
		return err
	}
	width, height, format := r.Width, r.Height, r.Format
	if width == 0 {
		width = 10 * vg.Inch
	}
	if height == 0 {
		height = 6 * vg.Inch
	}
	if format == "" {
		format = "png"
	}

	p := plot.New()
	p.Title.Text = chart.Title
	p.X.Label.Text = chart.XLabel
	p.Y.Label.Text = chart.YLabel
	p.Add(plotter.NewGrid())

	for i, s := range chart.Series {
		pts := make(plotter.XYs, len(chart.X))
		for k := range chart.X {
			pts[k] = plotter.XY{X: chart.X[k], Y: s.Values[k]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
