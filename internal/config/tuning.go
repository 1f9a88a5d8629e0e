package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is where the server looks for tuning overrides when no
// -config flag is given. The file is optional.
const DefaultConfigPath = "config/tuning.defaults.json"

// Calibration policies and smoothing modes accepted in the config file.
const (
	CalibrationPolicyRatchet = "ratchet"
	CalibrationPolicyFirst   = "first"

	SmoothingEMA = "ema"
	SmoothingSMA = "sma"
)

// TuningConfig holds the analysis tuning parameters. Every field is optional;
// the Get* accessors supply defaults for anything left out of the JSON.
type TuningConfig struct {
	// Detection classes
	ReferenceClassID *int `json:"reference_class_id,omitempty"`
	TrackedClassID   *int `json:"tracked_class_id,omitempty"`

	// Calibration
	ReferenceMinConfidence  *float64 `json:"reference_min_confidence,omitempty"`
	CalibrationWarmupFrames *int     `json:"calibration_warmup_frames,omitempty"`
	FallbackPixelsPerMeter  *float64 `json:"fallback_pixels_per_meter,omitempty"`
	CalibrationPolicy       *string  `json:"calibration_policy,omitempty"` // "ratchet" or "first"

	// Tracking and velocity
	TrackedMinConfidence *float64 `json:"tracked_min_confidence,omitempty"`
	Smoothing            *string  `json:"smoothing,omitempty"` // "ema" or "sma"
	EMAAlpha             *float64 `json:"ema_alpha,omitempty"`
	WindowCapacity       *int     `json:"window_capacity,omitempty"`

	// Rep segmentation
	MinWindowSamples *int     `json:"min_window_samples,omitempty"`
	LiftThresholdMPS *float64 `json:"lift_threshold_mps,omitempty"`
	RestThresholdMPS *float64 `json:"rest_threshold_mps,omitempty"`
	MinRepDuration   *string  `json:"min_rep_duration,omitempty"` // duration string like "500ms"

	// Detector invocation
	DetectEvery     *int    `json:"detect_every,omitempty"`
	DetectorTimeout *string `json:"detector_timeout,omitempty"`

	// Server limits
	MaxUploadBytes *int64 `json:"max_upload_bytes,omitempty"`
	MaxConcurrent  *int   `json:"max_concurrent,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset, so every
// accessor yields its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the JSON keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.ReferenceMinConfidence != nil {
		if v := *c.ReferenceMinConfidence; v < 0 || v > 1 {
			return fmt.Errorf("reference_min_confidence must be between 0 and 1, got %f", v)
		}
	}
	if c.TrackedMinConfidence != nil {
		if v := *c.TrackedMinConfidence; v < 0 || v > 1 {
			return fmt.Errorf("tracked_min_confidence must be between 0 and 1, got %f", v)
		}
	}
	if c.CalibrationWarmupFrames != nil && *c.CalibrationWarmupFrames < 1 {
		return fmt.Errorf("calibration_warmup_frames must be positive, got %d", *c.CalibrationWarmupFrames)
	}
	if c.FallbackPixelsPerMeter != nil && !(*c.FallbackPixelsPerMeter > 0) {
		return fmt.Errorf("fallback_pixels_per_meter must be positive, got %f", *c.FallbackPixelsPerMeter)
	}
	if c.CalibrationPolicy != nil {
		switch *c.CalibrationPolicy {
		case CalibrationPolicyRatchet, CalibrationPolicyFirst:
		default:
			return fmt.Errorf("calibration_policy must be %q or %q, got %q", CalibrationPolicyRatchet, CalibrationPolicyFirst, *c.CalibrationPolicy)
		}
	}
	if c.Smoothing != nil {
		switch *c.Smoothing {
		case SmoothingEMA, SmoothingSMA:
		default:
			return fmt.Errorf("smoothing must be %q or %q, got %q", SmoothingEMA, SmoothingSMA, *c.Smoothing)
		}
	}
	if c.EMAAlpha != nil {
		if v := *c.EMAAlpha; v <= 0 || v > 1 {
			return fmt.Errorf("ema_alpha must be in (0, 1], got %f", v)
		}
	}
	if c.WindowCapacity != nil && *c.WindowCapacity < 1 {
		return fmt.Errorf("window_capacity must be positive, got %d", *c.WindowCapacity)
	}
	if c.MinWindowSamples != nil {
		if *c.MinWindowSamples < 1 {
			return fmt.Errorf("min_window_samples must be positive, got %d", *c.MinWindowSamples)
		}
		if *c.MinWindowSamples > c.GetWindowCapacity() {
			return fmt.Errorf("min_window_samples (%d) exceeds window_capacity (%d)", *c.MinWindowSamples, c.GetWindowCapacity())
		}
	}
	if c.MinRepDuration != nil && *c.MinRepDuration != "" {
		if _, err := time.ParseDuration(*c.MinRepDuration); err != nil {
			return fmt.Errorf("invalid min_rep_duration '%s': %w", *c.MinRepDuration, err)
		}
	}
	if c.DetectorTimeout != nil && *c.DetectorTimeout != "" {
		if _, err := time.ParseDuration(*c.DetectorTimeout); err != nil {
			return fmt.Errorf("invalid detector_timeout '%s': %w", *c.DetectorTimeout, err)
		}
	}
	if c.DetectEvery != nil && *c.DetectEvery < 1 {
		return fmt.Errorf("detect_every must be at least 1, got %d", *c.DetectEvery)
	}
	if c.MaxUploadBytes != nil && *c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
	}
	if c.MaxConcurrent != nil && *c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", *c.MaxConcurrent)
	}
	return nil
}

// GetReferenceClassID returns the reference_class_id value or the default.
func (c *TuningConfig) GetReferenceClassID() int {
	if c.ReferenceClassID == nil {
		return 0
	}
	return *c.ReferenceClassID
}

// GetTrackedClassID returns the tracked_class_id value or the default.
func (c *TuningConfig) GetTrackedClassID() int {
	if c.TrackedClassID == nil {
		return 1
	}
	return *c.TrackedClassID
}

// GetReferenceMinConfidence returns the reference_min_confidence value or the default.
func (c *TuningConfig) GetReferenceMinConfidence() float64 {
	if c.ReferenceMinConfidence == nil {
		return 0.7
	}
	return *c.ReferenceMinConfidence
}

// GetCalibrationWarmupFrames returns the calibration_warmup_frames value or the default.
func (c *TuningConfig) GetCalibrationWarmupFrames() int {
	if c.CalibrationWarmupFrames == nil {
		return 30
	}
	return *c.CalibrationWarmupFrames
}

// GetFallbackPixelsPerMeter returns the fallback_pixels_per_meter value or the default.
func (c *TuningConfig) GetFallbackPixelsPerMeter() float64 {
	if c.FallbackPixelsPerMeter == nil {
		return 800.0
	}
	return *c.FallbackPixelsPerMeter
}

// GetCalibrationPolicy returns the calibration_policy value or the default.
func (c *TuningConfig) GetCalibrationPolicy() string {
	if c.CalibrationPolicy == nil || *c.CalibrationPolicy == "" {
		return CalibrationPolicyRatchet
	}
	return *c.CalibrationPolicy
}

// GetTrackedMinConfidence returns the tracked_min_confidence value or the default.
func (c *TuningConfig) GetTrackedMinConfidence() float64 {
	if c.TrackedMinConfidence == nil {
		return 0.25
	}
	return *c.TrackedMinConfidence
}

// GetSmoothing returns the smoothing value or the default.
func (c *TuningConfig) GetSmoothing() string {
	if c.Smoothing == nil || *c.Smoothing == "" {
		return SmoothingEMA
	}
	return *c.Smoothing
}

// GetEMAAlpha returns the ema_alpha value or the default.
func (c *TuningConfig) GetEMAAlpha() float64 {
	if c.EMAAlpha == nil {
		return 0.3
	}
	return *c.EMAAlpha
}

// GetWindowCapacity returns the window_capacity value or the default.
func (c *TuningConfig) GetWindowCapacity() int {
	if c.WindowCapacity == nil {
		return 10
	}
	return *c.WindowCapacity
}

// GetMinWindowSamples returns the min_window_samples value or the default.
func (c *TuningConfig) GetMinWindowSamples() int {
	if c.MinWindowSamples == nil {
		return 5
	}
	return *c.MinWindowSamples
}

// GetLiftThresholdMPS returns the lift_threshold_mps value or the default.
func (c *TuningConfig) GetLiftThresholdMPS() float64 {
	if c.LiftThresholdMPS == nil {
		return 0.05
	}
	return *c.LiftThresholdMPS
}

// GetRestThresholdMPS returns the rest_threshold_mps value or the default.
func (c *TuningConfig) GetRestThresholdMPS() float64 {
	if c.RestThresholdMPS == nil {
		return 0
	}
	return *c.RestThresholdMPS
}

// GetMinRepDuration parses and returns MinRepDuration as a time.Duration.
func (c *TuningConfig) GetMinRepDuration() time.Duration {
	if c.MinRepDuration == nil || *c.MinRepDuration == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.MinRepDuration)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetDetectEvery returns the detect_every value or the default.
func (c *TuningConfig) GetDetectEvery() int {
	if c.DetectEvery == nil {
		return 2
	}
	return *c.DetectEvery
}

// GetDetectorTimeout parses and returns DetectorTimeout as a time.Duration.
func (c *TuningConfig) GetDetectorTimeout() time.Duration {
	if c.DetectorTimeout == nil || *c.DetectorTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.DetectorTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetMaxUploadBytes returns the max_upload_bytes value or the default (100MB).
func (c *TuningConfig) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return 100 * 1024 * 1024
	}
	return *c.MaxUploadBytes
}

// GetMaxConcurrent returns the max_concurrent value or the default.
func (c *TuningConfig) GetMaxConcurrent() int {
	if c.MaxConcurrent == nil {
		return 2
	}
	return *c.MaxConcurrent
}
