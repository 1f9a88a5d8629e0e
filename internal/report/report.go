// Package report renders velocity traces as PNG plots and interactive HTML
// charts.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/barvelocity/internal/lift"
	"github.com/banshee-data/barvelocity/internal/units"
)

// Trace is the data behind one session chart.
type Trace struct {
	Title      string
	Subtitle   string
	Velocities []lift.VelocitySample
	Reps       []lift.RepRecord
	Units      string // one of units.ValidUnits; empty means m/s
}

var (
	smoothedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rawColor      = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	repColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// PNG size.
const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 4 * vg.Inch
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// points converts a velocity trace to plot coordinates, dropping
// non-finite samples.
func (t Trace) points() (smoothed, raw plotter.XYs) {
	smoothed = make(plotter.XYs, 0, len(t.Velocities))
	raw = make(plotter.XYs, 0, len(t.Velocities))
	for _, v := range t.Velocities {
		if !finite(v.Timestamp) {
			continue
		}
		if finite(v.MPS) {
			smoothed = append(smoothed, plotter.XY{X: v.Timestamp, Y: units.ConvertVelocity(v.MPS, t.Units)})
		}
		if finite(v.RawMPS) {
			raw = append(raw, plotter.XY{X: v.Timestamp, Y: units.ConvertVelocity(v.RawMPS, t.Units)})
		}
	}
	return smoothed, raw
}

// WritePNG renders the trace as a PNG line plot: smoothed velocity, raw
// velocity dashed, and one horizontal bar per rep at its mean velocity.
func WritePNG(w io.Writer, t Trace) error {
	p := plot.New()
	p.Title.Text = t.Title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = fmt.Sprintf("Velocity (%s)", units.Label(t.Units))
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	smoothed, raw := t.points()
	if len(smoothed) == 0 && len(raw) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	}

	if len(raw) > 0 {
		l, err := plotter.NewLine(raw)
		if err != nil {
			return fmt.Errorf("raw line: %w", err)
		}
		l.Color = rawColor
		l.Width = vg.Points(1)
		l.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		p.Add(l)
		p.Legend.Add("raw", l)
	}
	if len(smoothed) > 0 {
		l, err := plotter.NewLine(smoothed)
		if err != nil {
			return fmt.Errorf("smoothed line: %w", err)
		}
		l.Color = smoothedColor
		l.Width = vg.Points(2)
		p.Add(l)
		p.Legend.Add("smoothed", l)
	}

	for i, r := range t.Reps {
		if !finite(r.StartTime) || !finite(r.EndTime) || !finite(r.MeanVelocity) {
			continue
		}
		y := units.ConvertVelocity(r.MeanVelocity, t.Units)
		l, err := plotter.NewLine(plotter.XYs{{X: r.StartTime, Y: y}, {X: r.EndTime, Y: y}})
		if err != nil {
			return fmt.Errorf("rep %d: %w", r.Index, err)
		}
		l.Color = repColor
		l.Width = vg.Points(3)
		p.Add(l)
		if i == 0 {
			p.Legend.Add("rep mean", l)
		}
	}

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
