package lift

import "math"

// PositionSample is one accepted tracked-point observation.
type PositionSample struct {
	FrameIndex int     `json:"frame_index"`
	Timestamp  float64 `json:"timestamp_s"`
	X          float64 `json:"pixel_x"`
	Y          float64 `json:"pixel_y"`
}

// PathPoint is a pixel center kept for overlay rendering only.
type PathPoint struct {
	X, Y float64
}

// Tracker selects the tracked point in each frame and builds the trajectory.
type Tracker struct {
	classID       int
	minConfidence float64
	fps           float64

	samples []PositionSample
	path    []PathPoint
}

// NewTracker returns a tracker for a stream at fps. Callers validate fps.
func NewTracker(cfg Config, fps float64) *Tracker {
	return &Tracker{
		classID:       cfg.TrackedClassID,
		minConfidence: cfg.TrackedMinConfidence,
		fps:           fps,
	}
}

// Observe accepts the best tracked-point detection of a frame. Frames without
// an accepted detection produce no sample.
func (t *Tracker) Observe(dets []Detection, frameIndex int) (PositionSample, bool) {
	best, ok := bestOfClass(dets, t.classID)
	if !ok || best.Confidence <= t.minConfidence {
		return PositionSample{}, false
	}
	x, y := best.Box.Center()
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return PositionSample{}, false
	}
	s := PositionSample{
		FrameIndex: frameIndex,
		Timestamp:  float64(frameIndex) / t.fps,
		X:          x,
		Y:          y,
	}
	t.samples = append(t.samples, s)
	t.path = append(t.path, PathPoint{X: x, Y: y})
	return s, true
}

// Last returns the n-th most recent sample, Last(1) being the newest.
func (t *Tracker) Last(n int) (PositionSample, bool) {
	if n < 1 || n > len(t.samples) {
		return PositionSample{}, false
	}
	return t.samples[len(t.samples)-n], true
}

// Samples returns the trajectory. The slice must not be modified.
func (t *Tracker) Samples() []PositionSample { return t.samples }

// Path returns the overlay path buffer. The slice must not be modified.
func (t *Tracker) Path() []PathPoint { return t.path }
