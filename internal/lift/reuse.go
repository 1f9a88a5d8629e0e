package lift

import (
	"context"
	"fmt"
)

// reusingDetector runs the detector on every Kth frame and hands the most
// recent result to the frames in between. Only the detection input is reused;
// the tracker still timestamps each real frame, so a reused detection can be
// attributed to several timestamps. K=1 runs the detector on every frame.
type reusingDetector struct {
	inner Detector
	every int

	last  []Detection
	have  bool
	calls int
}

func newReusingDetector(inner Detector, every int) *reusingDetector {
	if every < 1 {
		every = 1
	}
	return &reusingDetector{inner: inner, every: every}
}

// Detect returns detections for frame and whether they were reused.
func (r *reusingDetector) Detect(ctx context.Context, frame Frame) ([]Detection, bool, error) {
	if r.have && frame.Index%r.every != 0 {
		return r.last, true, nil
	}
	dets, err := r.inner.Detect(ctx, frame)
	r.calls++
	if err != nil {
		return nil, false, fmt.Errorf("frame %d: %w: %w", frame.Index, ErrDetector, err)
	}
	r.last = dets
	r.have = true
	return dets, false, nil
}

// Calls returns the number of detector invocations.
func (r *reusingDetector) Calls() int { return r.calls }
