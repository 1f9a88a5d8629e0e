package lift

import (
	"fmt"
	"math"
)

// RepState is the segmenter's lifecycle state.
type RepState string

const (
	RepReady   RepState = "READY"   // waiting for a lift phase
	RepLifting RepState = "LIFTING" // concentric phase in progress
)

// RepRecord is one completed repetition. Records are immutable once
// appended to a session.
type RepRecord struct {
	Index        int     `json:"index"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Duration     float64 `json:"duration_s"`
	DistanceM    float64 `json:"distance_m"`
	MeanVelocity float64 `json:"mean_velocity_m_s"`
	PeakVelocity float64 `json:"peak_velocity_m_s"`
}

// RepSegmenter turns a velocity stream into discrete repetitions.
//
// READY moves to LIFTING when the trailing window mean exceeds the lift
// threshold; LIFTING returns to READY when the mean drops to the rest
// threshold. Phases shorter than the minimum duration are discarded.
type RepSegmenter struct {
	minSamples  int
	liftMPS     float64
	restMPS     float64
	minDuration float64

	window *Ring[float64]
	state  RepState

	startTime float64
	startY    float64
	peak      float64

	reps []RepRecord
}

// NewRepSegmenter builds a segmenter from cfg.
func NewRepSegmenter(cfg Config) *RepSegmenter {
	return &RepSegmenter{
		minSamples:  cfg.MinWindowSamples,
		liftMPS:     cfg.LiftThresholdMPS,
		restMPS:     cfg.RestThresholdMPS,
		minDuration: cfg.MinRepDuration,
		window:      NewRing[float64](cfg.WindowCapacity),
		state:       RepReady,
	}
}

// Observe feeds one velocity sample with the position it was measured at.
// It returns the completed rep, if any. An error means the inputs were
// unusable; the segmenter state is left unchanged and the caller skips the
// frame.
func (s *RepSegmenter) Observe(v VelocitySample, pos PositionSample, pixelsPerMeter float64) (*RepRecord, error) {
	if !finite(v.MPS) || !finite(v.Timestamp) || !finite(pos.Y) {
		return nil, fmt.Errorf("rep tracking: %w", errNonFinite)
	}
	if !(pixelsPerMeter > 0) || math.IsInf(pixelsPerMeter, 0) {
		return nil, fmt.Errorf("rep tracking: %w", errInvalidScale)
	}

	s.window.Push(v.MPS)
	if s.state == RepLifting && v.MPS > s.peak {
		s.peak = v.MPS
	}
	if s.window.Len() < s.minSamples {
		return nil, nil
	}
	mean := s.windowMean()

	switch s.state {
	case RepReady:
		if mean > s.liftMPS {
			s.state = RepLifting
			s.startTime = v.Timestamp
			s.startY = pos.Y
			s.peak = v.MPS
		}
	case RepLifting:
		if mean <= s.restMPS {
			s.state = RepReady
			duration := v.Timestamp - s.startTime
			if duration <= s.minDuration {
				return nil, nil
			}
			distance := math.Abs(s.startY-pos.Y) / pixelsPerMeter
			rep := RepRecord{
				Index:        len(s.reps) + 1,
				StartTime:    s.startTime,
				EndTime:      v.Timestamp,
				Duration:     duration,
				DistanceM:    distance,
				MeanVelocity: distance / duration,
				PeakVelocity: s.peak,
			}
			s.reps = append(s.reps, rep)
			return &rep, nil
		}
	}
	return nil, nil
}

func (s *RepSegmenter) windowMean() float64 {
	var sum float64
	vals := s.window.Values()
	for _, x := range vals {
		sum += x
	}
	return sum / float64(len(vals))
}

// State returns the current segmenter state.
func (s *RepSegmenter) State() RepState { return s.state }

// Reps returns a copy of the completed reps.
func (s *RepSegmenter) Reps() []RepRecord {
	out := make([]RepRecord, len(s.reps))
	copy(out, s.reps)
	return out
}

// Count returns the number of completed reps.
func (s *RepSegmenter) Count() int { return len(s.reps) }

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
