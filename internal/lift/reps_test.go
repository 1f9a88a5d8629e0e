package lift

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repStep struct {
	t, v, y float64
}

// feedReps pushes a synthetic velocity sequence at 10 Hz. Position moves
// 8 px per sample against the velocity sign.
func feedReps(t *testing.T, seg *RepSegmenter, steps []repStep) []*RepRecord {
	t.Helper()
	var out []*RepRecord
	for _, s := range steps {
		rep, err := seg.Observe(VelocitySample{Timestamp: s.t, MPS: s.v}, PositionSample{Timestamp: s.t, Y: s.y}, 800)
		require.NoError(t, err)
		if rep != nil {
			out = append(out, rep)
		}
	}
	return out
}

func ramp(start, n int, v float64, y0, dy float64) []repStep {
	steps := make([]repStep, n)
	for i := range steps {
		k := start + i
		steps[i] = repStep{t: float64(k) / 10, v: v, y: y0 + dy*float64(i)}
	}
	return steps
}

func TestRepSegmenter_Completion(t *testing.T) {
	seg := NewRepSegmenter(testConfig())
	assert.Equal(t, RepReady, seg.State())

	// Samples 1..15 rising at 0.5 m/s, then falling at -1 m/s.
	steps := ramp(1, 15, 0.5, 800, -40)
	steps = append(steps, ramp(16, 6, -1.0, 240, 80)...)

	reps := feedReps(t, seg, steps)
	require.Len(t, reps, 1)

	// Window mean passes 0.05 on the fifth sample (t=0.5, y=640) and reaches
	// zero on the fourth falling sample (t=1.9, y=480).
	rep := reps[0]
	assert.Equal(t, 1, rep.Index)
	assert.InDelta(t, 0.5, rep.StartTime, 1e-9)
	assert.InDelta(t, 1.9, rep.EndTime, 1e-9)
	assert.InDelta(t, 1.4, rep.Duration, 1e-9)
	assert.InDelta(t, 160.0/800, rep.DistanceM, 1e-9)
	assert.InDelta(t, 0.2/1.4, rep.MeanVelocity, 1e-9)
	assert.InDelta(t, 0.5, rep.PeakVelocity, 1e-9)

	assert.Equal(t, RepReady, seg.State())
	assert.Equal(t, 1, seg.Count())
}

func TestRepSegmenter_RejectsShortExcursion(t *testing.T) {
	seg := NewRepSegmenter(testConfig())

	steps := ramp(1, 5, 0.5, 800, -40)
	steps = append(steps, ramp(6, 10, -1.0, 600, 40)...)

	reps := feedReps(t, seg, steps)
	assert.Empty(t, reps)
	assert.Equal(t, 0, seg.Count())
	assert.Equal(t, RepReady, seg.State())
}

func TestRepSegmenter_NeedsMinimumSamples(t *testing.T) {
	seg := NewRepSegmenter(testConfig())
	feedReps(t, seg, ramp(1, 4, 2.0, 800, -40))
	assert.Equal(t, RepReady, seg.State())

	feedReps(t, seg, ramp(5, 1, 2.0, 640, 0))
	assert.Equal(t, RepLifting, seg.State())
}

func TestRepSegmenter_InProgressRepNotSurfaced(t *testing.T) {
	seg := NewRepSegmenter(testConfig())
	feedReps(t, seg, ramp(1, 20, 0.5, 800, -10))
	assert.Equal(t, RepLifting, seg.State())
	assert.Empty(t, seg.Reps())
}

func TestRepSegmenter_InvalidInputsLeaveStateUnchanged(t *testing.T) {
	seg := NewRepSegmenter(testConfig())
	feedReps(t, seg, ramp(1, 5, 0.5, 800, -40))
	require.Equal(t, RepLifting, seg.State())

	tests := []struct {
		name string
		v    VelocitySample
		pos  PositionSample
		ppm  float64
	}{
		{"nan velocity", VelocitySample{Timestamp: 1, MPS: math.NaN()}, PositionSample{Timestamp: 1}, 800},
		{"inf position", VelocitySample{Timestamp: 1, MPS: -5}, PositionSample{Timestamp: 1, Y: math.Inf(1)}, 800},
		{"zero scale", VelocitySample{Timestamp: 1, MPS: -5}, PositionSample{Timestamp: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := seg.Observe(tt.v, tt.pos, tt.ppm)
			assert.Error(t, err)
			assert.Nil(t, rep)
			assert.Equal(t, RepLifting, seg.State())
		})
	}
}

func TestRepSegmenter_RepsReturnsCopy(t *testing.T) {
	seg := NewRepSegmenter(testConfig())
	steps := ramp(1, 15, 0.5, 800, -40)
	steps = append(steps, ramp(16, 6, -1.0, 240, 80)...)
	feedReps(t, seg, steps)

	reps := seg.Reps()
	require.Len(t, reps, 1)
	reps[0].DistanceM = 99
	assert.NotEqual(t, 99.0, seg.Reps()[0].DistanceM)
}
