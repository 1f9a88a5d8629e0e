package lift

// CalibrationPolicy selects how candidate reference detections update the
// estimate during warm-up.
type CalibrationPolicy string

const (
	// CalibrationRatchet keeps the highest-confidence candidate seen during
	// warm-up and locks it when the window elapses.
	CalibrationRatchet CalibrationPolicy = "ratchet"
	// CalibrationFirst locks on the first usable candidate.
	CalibrationFirst CalibrationPolicy = "first"
)

// Reference object diameter bounds in meters.
const (
	MinReferenceDiameterM = 0.1
	MaxReferenceDiameterM = 1.0
)

// CalibrationState is the pixel-to-metric scale for a session.
type CalibrationState struct {
	PixelsPerMeter float64 `json:"pixels_per_meter"`
	BestConfidence float64 `json:"best_confidence"`
	IsFallback     bool    `json:"is_fallback"`
	Locked         bool    `json:"locked"`
}

// Valid reports whether a scale has been set.
func (c CalibrationState) Valid() bool { return c.PixelsPerMeter > 0 }

// Calibrator turns reference-object detections into a pixels-per-meter scale.
type Calibrator struct {
	diameterM     float64
	classID       int
	minConfidence float64
	warmupFrames  int
	fallbackPPM   float64
	policy        CalibrationPolicy

	frames int
	state  CalibrationState
}

// NewCalibrator builds a calibrator from cfg. The diameter is clamped into
// [MinReferenceDiameterM, MaxReferenceDiameterM]; upload validation rejects
// out-of-range values before this point.
func NewCalibrator(cfg Config) *Calibrator {
	d := cfg.ReferenceDiameterM
	if d < MinReferenceDiameterM {
		d = MinReferenceDiameterM
	}
	if d > MaxReferenceDiameterM {
		d = MaxReferenceDiameterM
	}
	policy := cfg.CalibrationPolicy
	if policy != CalibrationFirst {
		policy = CalibrationRatchet
	}
	return &Calibrator{
		diameterM:     d,
		classID:       cfg.ReferenceClassID,
		minConfidence: cfg.ReferenceMinConfidence,
		warmupFrames:  cfg.CalibrationWarmupFrames,
		fallbackPPM:   cfg.FallbackPixelsPerMeter,
		policy:        policy,
	}
}

// Observe feeds one frame of detections and returns the current state.
// Once locked the state never changes.
func (c *Calibrator) Observe(dets []Detection) CalibrationState {
	if c.state.Locked {
		return c.state
	}
	c.frames++

	if best, ok := bestOfClass(dets, c.classID); ok && best.Confidence > c.minConfidence {
		if ppm := (best.Box.Width() + best.Box.Height()) / 2 / c.diameterM; ppm > 0 {
			if best.Confidence > c.state.BestConfidence {
				c.state.PixelsPerMeter = ppm
				c.state.BestConfidence = best.Confidence
			}
			if c.policy == CalibrationFirst {
				c.state.Locked = true
				return c.state
			}
		}
	}

	if c.frames >= c.warmupFrames {
		if !c.state.Valid() {
			c.state = CalibrationState{PixelsPerMeter: c.fallbackPPM, IsFallback: true}
		}
		c.state.Locked = true
	}
	return c.state
}

// State returns the current estimate.
func (c *Calibrator) State() CalibrationState { return c.state }

// Finalize locks the estimate, applying the fallback when no candidate was
// ever accepted. Streams shorter than the warm-up window end here.
func (c *Calibrator) Finalize() CalibrationState {
	if !c.state.Locked {
		if !c.state.Valid() {
			c.state = CalibrationState{PixelsPerMeter: c.fallbackPPM, IsFallback: true}
		}
		c.state.Locked = true
	}
	return c.state
}

// Scale returns the scale to use for the current frame: the estimate when one
// exists, the fallback otherwise.
func (c *Calibrator) Scale() float64 {
	if c.state.Valid() {
		return c.state.PixelsPerMeter
	}
	return c.fallbackPPM
}
