package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/barvelocity/internal/units"
)

// WriteHTML renders the trace as an interactive go-echarts line chart. Samples
// share one time axis; the rep series is blank outside completed reps.
func WriteHTML(w io.Writer, t Trace) error {
	label := units.Label(t.Units)

	xs := make([]string, 0, len(t.Velocities))
	smoothed := make([]opts.LineData, 0, len(t.Velocities))
	raw := make([]opts.LineData, 0, len(t.Velocities))
	reps := make([]opts.LineData, 0, len(t.Velocities))
	for _, v := range t.Velocities {
		if !finite(v.Timestamp) || !finite(v.MPS) || !finite(v.RawMPS) {
			continue
		}
		xs = append(xs, fmt.Sprintf("%.3f", v.Timestamp))
		smoothed = append(smoothed, opts.LineData{Value: round3(units.ConvertVelocity(v.MPS, t.Units))})
		raw = append(raw, opts.LineData{Value: round3(units.ConvertVelocity(v.RawMPS, t.Units))})

		rep := opts.LineData{Value: nil}
		for _, r := range t.Reps {
			if v.Timestamp >= r.StartTime && v.Timestamp <= r.EndTime {
				rep = opts.LineData{Name: fmt.Sprintf("rep %d", r.Index), Value: round3(units.ConvertVelocity(r.MeanVelocity, t.Units))}
				break
			}
		}
		reps = append(reps, rep)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Bar velocity", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: t.Title, Subtitle: t.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Velocity (%s)", label), NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(xs).
		AddSeries("smoothed", smoothed, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("raw", raw, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("rep mean", reps, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
