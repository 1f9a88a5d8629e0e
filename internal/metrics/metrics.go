// Package metrics exposes analysis counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/barvelocity/internal/lift"
)

// Analysis outcomes recorded on AnalysesTotal.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected" // upload validation failed
	ResultFailed   = "failed"   // pipeline aborted
	ResultCanceled = "canceled"
)

// Metrics holds the collectors for one registry. Each server owns one, so
// tests can run several side by side.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal    *prometheus.CounterVec
	AnalysesInFlight prometheus.Gauge
	AnalysisDuration prometheus.Histogram
	FramesTotal      *prometheus.CounterVec
	DetectorCalls    prometheus.Counter
	RepsTotal        prometheus.Counter
	CalibrationTotal *prometheus.CounterVec
	RepVelocity      prometheus.Histogram
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barvelocity_analyses_total",
			Help: "Video analyses by outcome",
		}, []string{"result"}),
		AnalysesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "barvelocity_analyses_in_flight",
			Help: "Analyses currently holding a processing slot",
		}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "barvelocity_analysis_duration_seconds",
			Help:    "Wall time of successful analyses",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		FramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barvelocity_frames_total",
			Help: "Frames processed by status",
		}, []string{"status"}),
		DetectorCalls: f.NewCounter(prometheus.CounterOpts{
			Name: "barvelocity_detector_calls_total",
			Help: "Detector invocations",
		}),
		RepsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "barvelocity_reps_total",
			Help: "Completed reps",
		}),
		CalibrationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barvelocity_sessions_calibration_total",
			Help: "Finished sessions by calibration source",
		}, []string{"source"}),
		RepVelocity: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "barvelocity_rep_mean_velocity_mps",
			Help:    "Mean concentric velocity per completed rep",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1.0, 1.3, 1.7},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFrame counts one FrameResult. Suitable as lift.Pipeline.OnFrame.
func (m *Metrics) ObserveFrame(res lift.FrameResult) {
	m.FramesTotal.WithLabelValues(string(res.Status)).Inc()
}

// ObserveSession records a finished session.
func (m *Metrics) ObserveSession(stats lift.SessionStats, elapsed time.Duration) {
	m.AnalysesTotal.WithLabelValues(ResultOK).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())
	m.DetectorCalls.Add(float64(stats.DetectorCalls))
	m.RepsTotal.Add(float64(stats.TotalReps))
	for _, r := range stats.Reps {
		m.RepVelocity.Observe(r.MeanVelocity)
	}
	source := "reference"
	if !stats.CalibrationUsed {
		source = "fallback"
	}
	m.CalibrationTotal.WithLabelValues(source).Inc()
}
