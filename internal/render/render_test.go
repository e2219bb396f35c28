package render

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/engine"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
)

func sampleChart() Chart {
	return Chart{
		Title:  "SIR Model Dynamics",
		XLabel: "Time",
		YLabel: "Population",
		X:      []float64{0, 1, 2, 3},
		Series: []Series{
			{Name: "S", Values: []float64{99, 90, 60, 30}},
			{Name: "I", Values: []float64{1, 9, 35, 50}},
		},
	}
}

func TestPNGRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNGRenderer{}.Render(&buf, sampleChart()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestPNGRendererSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNGRenderer{Format: "svg"}.Render(&buf, sampleChart()))
	assert.Contains(t, buf.String(), "<svg")
}

func TestHTMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTMLRenderer{}.Render(&buf, sampleChart()))

	out := buf.String()
	assert.True(t, strings.Contains(out, "<html"), "expected an HTML document")
	assert.Contains(t, out, "SIR Model Dynamics")
	assert.Contains(t, out, "echarts")
}

func TestRenderRejectsMismatchedSeries(t *testing.T) {
	c := sampleChart()
	c.Series[1].Values = c.Series[1].Values[:2]

	for _, r := range []Renderer{PNGRenderer{}, HTMLRenderer{}} {
		var buf bytes.Buffer
		assert.Error(t, r.Render(&buf, c))
		assert.Zero(t, buf.Len())
	}
	assert.Error(t, Chart{Title: "empty"}.Validate())
}

func TestForFile(t *testing.T) {
	tests := []struct {
		path    string
		want    Renderer
		wantErr bool
	}{
		{"out.html", HTMLRenderer{}, false},
		{"out.PNG", PNGRenderer{Format: "png"}, false},
		{"plots/fit.svg", PNGRenderer{Format: "svg"}, false},
		{"out.txt", nil, true},
		{"noext", nil, true},
	}
	for _, tt := range tests {
		r, err := ForFile(tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, r, tt.path)
	}
}

func TestTrajectoryAndComparison(t *testing.T) {
	sir, err := model.NewSIR(0.01, 0.1, 100, 1)
	require.NoError(t, err)
	res, err := engine.RunRK4(context.Background(), sir, engine.RK4Config{X: 5})
	require.NoError(t, err)

	c := Trajectory("SIR", res)
	require.NoError(t, c.Validate())
	assert.Len(t, c.Series, 3)
	assert.Equal(t, "R", c.Series[2].Name)

	cmp := Comparison("Infections", []float64{1, 2, 3}, []float64{1, 2})
	require.NoError(t, cmp.Validate())
	assert.Equal(t, []float64{0, 1}, cmp.X)
	assert.Equal(t, "Real Data", cmp.Series[0].Name)
}
