package lift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrator_PixelsPerMeter(t *testing.T) {
	c := NewCalibrator(testConfig())
	st := c.Observe([]Detection{plate(0.9, 360)})
	assert.InDelta(t, 800.0, st.PixelsPerMeter, 1e-9)
	assert.Equal(t, 0.9, st.BestConfidence)
	assert.False(t, st.IsFallback)
	assert.False(t, st.Locked)
}

func TestCalibrator_UsesAverageOfWidthAndHeight(t *testing.T) {
	cfg := testConfig()
	cfg.ReferenceDiameterM = 0.25
	c := NewCalibrator(cfg)
	det := Detection{ClassID: DefaultReferenceClassID, Confidence: 0.8, Box: BoundingBox{X1: 0, Y1: 0, X2: 200, Y2: 300}}
	st := c.Observe([]Detection{det})
	assert.InDelta(t, 1000.0, st.PixelsPerMeter, 1e-9)
}

func TestCalibrator_NeverRegresses(t *testing.T) {
	c := NewCalibrator(testConfig())

	frames := [][]Detection{
		{plate(0.8, 90)},
		{plate(0.75, 200)}, // lower confidence, ignored
		{plate(0.95, 180)},
		{plate(0.71, 400)},
		{},
		{plate(0.95, 10)}, // equal confidence does not replace
	}

	var lastConf float64
	for i, dets := range frames {
		st := c.Observe(dets)
		assert.GreaterOrEqual(t, st.BestConfidence, lastConf, "frame %d", i)
		lastConf = st.BestConfidence
	}
	assert.InDelta(t, 400.0, c.State().PixelsPerMeter, 1e-9)
	assert.Equal(t, 0.95, c.State().BestConfidence)
}

func TestCalibrator_RejectsAtThresholdAndOtherClasses(t *testing.T) {
	c := NewCalibrator(testConfig())
	c.Observe([]Detection{plate(0.7, 360)})
	c.Observe([]Detection{barTip(0.99, 10, 10)})
	assert.False(t, c.State().Valid())
	assert.InDelta(t, 800.0, c.Scale(), 1e-9, "fallback scale used before a candidate")
}

func TestCalibrator_LocksAfterWarmup(t *testing.T) {
	c := NewCalibrator(testConfig())
	c.Observe([]Detection{plate(0.8, 90)})
	for i := 1; i < 30; i++ {
		c.Observe(nil)
	}
	require.True(t, c.State().Locked)
	assert.InDelta(t, 200.0, c.State().PixelsPerMeter, 1e-9)

	st := c.Observe([]Detection{plate(0.99, 360)})
	assert.InDelta(t, 200.0, st.PixelsPerMeter, 1e-9)
	assert.Equal(t, 0.8, st.BestConfidence)
}

func TestCalibrator_Fallback(t *testing.T) {
	c := NewCalibrator(testConfig())
	for i := 0; i < 30; i++ {
		c.Observe([]Detection{barTip(0.9, 10, 10)})
	}
	st := c.State()
	assert.True(t, st.Locked)
	assert.True(t, st.IsFallback)
	assert.Equal(t, 800.0, st.PixelsPerMeter)

	// Fallback is final.
	st = c.Observe([]Detection{plate(0.99, 100)})
	assert.True(t, st.IsFallback)
	assert.Equal(t, 800.0, st.PixelsPerMeter)
}

func TestCalibrator_FinalizeShortStream(t *testing.T) {
	t.Run("no candidate", func(t *testing.T) {
		c := NewCalibrator(testConfig())
		c.Observe(nil)
		st := c.Finalize()
		assert.True(t, st.Locked)
		assert.True(t, st.IsFallback)
		assert.Equal(t, 800.0, st.PixelsPerMeter)
	})

	t.Run("with candidate", func(t *testing.T) {
		c := NewCalibrator(testConfig())
		c.Observe([]Detection{plate(0.8, 180)})
		st := c.Finalize()
		assert.True(t, st.Locked)
		assert.False(t, st.IsFallback)
		assert.InDelta(t, 400.0, st.PixelsPerMeter, 1e-9)
	})
}

func TestCalibrator_FirstPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.CalibrationPolicy = CalibrationFirst
	c := NewCalibrator(cfg)

	c.Observe(nil)
	st := c.Observe([]Detection{plate(0.75, 90)})
	assert.True(t, st.Locked)
	assert.InDelta(t, 200.0, st.PixelsPerMeter, 1e-9)

	st = c.Observe([]Detection{plate(0.99, 360)})
	assert.InDelta(t, 200.0, st.PixelsPerMeter, 1e-9)
}

func TestNewCalibrator_ClampsDiameter(t *testing.T) {
	cfg := testConfig()
	cfg.ReferenceDiameterM = 5
	c := NewCalibrator(cfg)
	st := c.Observe([]Detection{plate(0.9, 100)})
	assert.InDelta(t, 100.0, st.PixelsPerMeter, 1e-9)

	cfg.ReferenceDiameterM = 0
	c = NewCalibrator(cfg)
	st = c.Observe([]Detection{plate(0.9, 100)})
	assert.InDelta(t, 1000.0, st.PixelsPerMeter, 1e-9)
}
