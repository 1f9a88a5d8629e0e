package lift

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SessionStats summarises one analysed video. It is built once at the end of
// processing and read-only thereafter.
type SessionStats struct {
	Reps            []RepRecord `json:"reps"`
	PeakVelocity    float64     `json:"peak_velocity"`
	MeanVelocity    float64     `json:"mean_velocity"`
	TotalDistanceM  float64     `json:"total_distance_m"`
	CalibrationUsed bool        `json:"calibration_used"`
	PixelsPerMeter  float64     `json:"pixels_per_meter"`

	// Fields read by the mobile client.
	SessionAverage *float64  `json:"session_average"`
	TotalReps      int       `json:"total_reps"`
	RepSpeeds      []float64 `json:"rep_speeds"`

	FramesProcessed int `json:"frames_processed"`
	FramesSkipped   int `json:"frames_skipped"`
	DetectorCalls   int `json:"detector_calls"`
}

// Aggregate reduces the velocity archive, rep list and trajectory into
// session statistics. Empty inputs yield zero aggregates.
func Aggregate(velocities []VelocitySample, reps []RepRecord, trajectory []PositionSample, cal CalibrationState) SessionStats {
	stats := SessionStats{
		Reps:            make([]RepRecord, len(reps)),
		CalibrationUsed: !cal.IsFallback,
		PixelsPerMeter:  cal.PixelsPerMeter,
		TotalReps:       len(reps),
		RepSpeeds:       make([]float64, 0, len(reps)),
	}
	copy(stats.Reps, reps)

	positive := make([]float64, 0, len(velocities))
	for _, v := range velocities {
		if finite(v.MPS) && v.MPS > 0 {
			positive = append(positive, v.MPS)
		}
	}
	if len(positive) > 0 {
		stats.PeakVelocity = floats.Max(positive)
		stats.MeanVelocity = stat.Mean(positive, nil)
	}

	if cal.PixelsPerMeter > 0 && len(trajectory) > 1 {
		var px float64
		for i := 1; i < len(trajectory); i++ {
			a, b := trajectory[i-1], trajectory[i]
			if d := math.Hypot(b.X-a.X, b.Y-a.Y); finite(d) {
				px += d
			}
		}
		if finite(px) {
			stats.TotalDistanceM = px / cal.PixelsPerMeter
		}
	}

	for _, r := range reps {
		stats.RepSpeeds = append(stats.RepSpeeds, r.MeanVelocity)
	}
	if len(stats.RepSpeeds) > 0 {
		avg := stat.Mean(stats.RepSpeeds, nil)
		stats.SessionAverage = &avg
	}
	return stats
}
