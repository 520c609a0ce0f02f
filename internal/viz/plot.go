package viz

import (
	"errors"
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pksim/internal/pk"
)

// ErrNothingToPlot is returned when no selected series has a plottable value.
var ErrNothingToPlot = errors.New("viz: nothing to plot")

var (
	profileColors = []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Yellow, asciigraph.Magenta, asciigraph.Gray, asciigraph.DarkOrange}
	// overlayColors follows observed.Palette.
	overlayColors = []asciigraph.AnsiColor{asciigraph.Red, asciigraph.Blue, asciigraph.Green, asciigraph.Orange, asciigraph.Purple}
)

// Overlay is an observed column drawn as points over the simulated profile.
type Overlay struct {
	Label  string
	Color  int
	Time   []float64
	Values pk.Column
}

type PlotOptions struct {
	Width    int
	Height   int
	LogScale bool
	Caption  string
}

// PlotProfile plots the named profile columns, or all of them, resampled to the plot
// width. With LogScale values are plotted as log10 and non-positive values are dropped.
// Overlay points outside the profile's time range are not drawn.
func PlotProfile(ts *pk.TimeSeries, names []string, overlays []Overlay, opts PlotOptions) (string, error) {
	if ts == nil || ts.Len() == 0 {
		return "", ErrNothingToPlot
	}
	if len(names) == 0 {
		names = ts.Names
	}
	width := opts.Width
	if width <= 0 || width > ts.Len() {
		width = ts.Len()
	}
	if width < 2 {
		width = 2
	}
	height := opts.Height
	if height <= 0 {
		height = 15
	}

	var (
		data    [][]float64
		colors  []asciigraph.AnsiColor
		legends []string
	)
	add := func(series []float64, color asciigraph.AnsiColor, label string) {
		if opts.LogScale {
			series = toLog(series)
		}
		if !plottable(series) {
			return
		}
		data = append(data, series)
		colors = append(colors, color)
		legends = append(legends, label)
	}

	for i, name := range names {
		col, ok := ts.Column(name)
		if !ok {
			return "", fmt.Errorf("viz: profile has no column %q", name)
		}
		add(resample(col, width), profileColors[i%len(profileColors)], name)
	}

	t0, t1 := ts.Time[0], ts.Time[ts.Len()-1]
	for _, o := range overlays {
		add(place(o, t0, t1, width), overlayColors[o.Color%len(overlayColors)], o.Label)
	}

	if len(data) == 0 {
		return "", ErrNothingToPlot
	}

	caption := opts.Caption
	if opts.LogScale {
		caption += " (log10)"
	}
	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
	), nil
}

// resample picks width evenly spaced samples of col, keeping both ends.
func resample(col pk.Column, width int) []float64 {
	n := len(col)
	if n == width {
		return append([]float64(nil), col...)
	}
	out := make([]float64, width)
	for i := range out {
		idx := int(math.Round(float64(i) * float64(n-1) / float64(width-1)))
		out[i] = col[idx]
	}
	return out
}

// place puts each observation into the nearest plot column.
func place(o Overlay, t0, t1 float64, width int) []float64 {
	out := make([]float64, width)
	for i := range out {
		out[i] = math.NaN()
	}
	span := t1 - t0
	for i, t := range o.Time {
		if i >= len(o.Values) || pk.IsMissing(o.Values[i]) || t < t0 || t > t1 {
			continue
		}
		x := 0
		if span > 0 {
			x = int(math.Round((t - t0) / span * float64(width-1)))
		}
		out[x] = o.Values[i]
	}
	return out
}

func toLog(series []float64) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		if v > 0 {
			out[i] = math.Log10(v)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func plottable(series []float64) bool {
	for _, v := range series {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
