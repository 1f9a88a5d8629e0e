package lift

import (
	"errors"
	"math"
)

// SmoothingMode selects the velocity smoothing filter.
type SmoothingMode string

const (
	// SmoothingEMA is an exponential moving average against the previous
	// smoothed value.
	SmoothingEMA SmoothingMode = "ema"
	// SmoothingSMA is a simple moving average over the trailing raw window.
	SmoothingSMA SmoothingMode = "sma"
)

var (
	errNonPositiveInterval = errors.New("non-positive elapsed time")
	errInvalidScale        = errors.New("non-positive pixels per meter")
	errNonFinite           = errors.New("non-finite velocity")
)

// VelocitySample is a smoothed vertical bar velocity. Positive is upward.
type VelocitySample struct {
	Timestamp float64 `json:"timestamp_s"`
	MPS       float64 `json:"velocity_m_s"`
	RawMPS    float64 `json:"raw_velocity_m_s"`
}

// RawVelocity converts the vertical displacement between two samples into
// m/s. Decreasing pixel Y (upward on screen) is positive.
func RawVelocity(prev, cur PositionSample, pixelsPerMeter float64) (float64, error) {
	dt := cur.Timestamp - prev.Timestamp
	if !(dt > 0) {
		return 0, errNonPositiveInterval
	}
	if !(pixelsPerMeter > 0) || math.IsInf(pixelsPerMeter, 0) {
		return 0, errInvalidScale
	}
	v := (prev.Y - cur.Y) / dt / pixelsPerMeter
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNonFinite
	}
	return v, nil
}

// VelocityEstimator turns consecutive position samples into smoothed
// velocities.
type VelocityEstimator struct {
	mode  SmoothingMode
	alpha float64

	raw      *Ring[float64]
	smoothed float64
	primed   bool
}

// NewVelocityEstimator builds an estimator from cfg.
func NewVelocityEstimator(cfg Config) *VelocityEstimator {
	mode := cfg.Smoothing
	if mode != SmoothingSMA {
		mode = SmoothingEMA
	}
	return &VelocityEstimator{
		mode:  mode,
		alpha: cfg.EMAAlpha,
		raw:   NewRing[float64](cfg.WindowCapacity),
	}
}

// Update computes the velocity between prev and cur. On error the smoothing
// state is left untouched.
func (e *VelocityEstimator) Update(prev, cur PositionSample, pixelsPerMeter float64) (VelocitySample, error) {
	v, err := RawVelocity(prev, cur, pixelsPerMeter)
	if err != nil {
		return VelocitySample{}, err
	}

	next := v
	switch e.mode {
	case SmoothingSMA:
		vals := e.raw.Values()
		if len(vals) == e.raw.Cap() {
			vals = vals[1:]
		}
		sum := v
		for _, x := range vals {
			sum += x
		}
		next = sum / float64(len(vals)+1)
	default:
		if e.primed {
			next = e.alpha*v + (1-e.alpha)*e.smoothed
		}
	}
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return VelocitySample{}, errNonFinite
	}

	e.raw.Push(v)
	e.smoothed = next
	e.primed = true

	return VelocitySample{Timestamp: cur.Timestamp, MPS: e.smoothed, RawMPS: v}, nil
}

// Current returns the latest smoothed velocity, zero before the first update.
func (e *VelocityEstimator) Current() float64 { return e.smoothed }
