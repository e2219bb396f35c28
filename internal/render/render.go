// Package render draws simulation and calibration series as line charts.
package render

import (
	"fmt"
	"io"
	"strings"
)

// Series is one named line.
type Series struct {
	Name   string
	Values []float64
}

// Chart is a set of series sharing the X axis.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	X      []float64
	Series []Series
}

// Renderer writes a chart in some output format.
type Renderer interface {
	Render(w io.Writer, chart Chart) error
}

// Validate checks every series has one value per X.
func (c Chart) Validate() error {
	if len(c.Series) == 0 {
		return fmt.Errorf("chart %q has no series", c.Title)
	}
	for _, s := range c.Series {
		if len(s.Values) != len(c.X) {
			return fmt.Errorf("series %q has %d values for %d x points", s.Name, len(s.Values), len(c.X))
		}
	}
	return nil
}

// ForFile picks a renderer from a file extension: .html selects HTML,
// .png/.svg/.pdf select the matching image format.
func ForFile(path string) (Renderer, error) {
	switch ext := strings.ToLower(path[strings.LastIndex(path, ".")+1:]); ext {
	case "html", "htm":
		return HTMLRenderer{}, nil
	case "png", "svg", "pdf":
		return PNGRenderer{Format: ext}, nil
	default:
		return nil, fmt.Errorf("no renderer for %q", path)
	}
}
