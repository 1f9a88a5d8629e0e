package lift

import (
	"github.com/banshee-data/barvelocity/internal/config"
)

// Config holds the per-session analysis parameters.
type Config struct {
	ReferenceClassID int // detector class of the calibration reference (plate)
	TrackedClassID   int // detector class of the tracked point (bar tip)

	ReferenceDiameterM      float64 // real diameter of the reference object
	ReferenceMinConfidence  float64 // candidates must exceed this
	CalibrationWarmupFrames int     // frames before calibration locks
	FallbackPixelsPerMeter  float64 // scale used when no reference is seen
	CalibrationPolicy       CalibrationPolicy

	TrackedMinConfidence float64 // tracked-point detections must exceed this
	Smoothing            SmoothingMode
	EMAAlpha             float64
	WindowCapacity       int // trailing velocity window

	MinWindowSamples int     // samples required before the segmenter acts
	LiftThresholdMPS float64 // window mean above this starts a rep
	RestThresholdMPS float64 // window mean at or below this ends a rep
	MinRepDuration   float64 // seconds; shorter phases are noise

	DetectEvery int // detector runs on every Kth frame
}

// DefaultConfig returns the built-in analysis defaults for a reference object
// of diameterM meters.
func DefaultConfig(diameterM float64) Config {
	return ConfigFromTuning(config.EmptyTuningConfig(), diameterM)
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig, diameterM float64) Config {
	return Config{
		ReferenceClassID:        cfg.GetReferenceClassID(),
		TrackedClassID:          cfg.GetTrackedClassID(),
		ReferenceDiameterM:      diameterM,
		ReferenceMinConfidence:  cfg.GetReferenceMinConfidence(),
		CalibrationWarmupFrames: cfg.GetCalibrationWarmupFrames(),
		FallbackPixelsPerMeter:  cfg.GetFallbackPixelsPerMeter(),
		CalibrationPolicy:       CalibrationPolicy(cfg.GetCalibrationPolicy()),
		TrackedMinConfidence:    cfg.GetTrackedMinConfidence(),
		Smoothing:               SmoothingMode(cfg.GetSmoothing()),
		EMAAlpha:                cfg.GetEMAAlpha(),
		WindowCapacity:          cfg.GetWindowCapacity(),
		MinWindowSamples:        cfg.GetMinWindowSamples(),
		LiftThresholdMPS:        cfg.GetLiftThresholdMPS(),
		RestThresholdMPS:        cfg.GetRestThresholdMPS(),
		MinRepDuration:          cfg.GetMinRepDuration().Seconds(),
		DetectEvery:             cfg.GetDetectEvery(),
	}
}
