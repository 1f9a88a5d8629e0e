package lift

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/barvelocity/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	want := Config{
		ReferenceClassID:        DefaultReferenceClassID,
		TrackedClassID:          DefaultTrackedClassID,
		ReferenceDiameterM:      0.45,
		ReferenceMinConfidence:  0.7,
		CalibrationWarmupFrames: 30,
		FallbackPixelsPerMeter:  800,
		CalibrationPolicy:       CalibrationRatchet,
		TrackedMinConfidence:    0.25,
		Smoothing:               SmoothingEMA,
		EMAAlpha:                0.3,
		WindowCapacity:          10,
		MinWindowSamples:        5,
		LiftThresholdMPS:        0.05,
		RestThresholdMPS:        0,
		MinRepDuration:          0.5,
		DetectEvery:             2,
	}
	if diff := cmp.Diff(want, DefaultConfig(0.45)); diff != "" {
		t.Errorf("DefaultConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFromTuning_Overrides(t *testing.T) {
	policy := "first"
	smoothing := "sma"
	every := 1
	tc := &config.TuningConfig{CalibrationPolicy: &policy, Smoothing: &smoothing, DetectEvery: &every}

	cfg := ConfigFromTuning(tc, 0.35)
	if cfg.CalibrationPolicy != CalibrationFirst {
		t.Errorf("CalibrationPolicy = %q, want first", cfg.CalibrationPolicy)
	}
	if cfg.Smoothing != SmoothingSMA {
		t.Errorf("Smoothing = %q, want sma", cfg.Smoothing)
	}
	if cfg.DetectEvery != 1 {
		t.Errorf("DetectEvery = %d, want 1", cfg.DetectEvery)
	}
	if cfg.ReferenceDiameterM != 0.35 {
		t.Errorf("ReferenceDiameterM = %v, want 0.35", cfg.ReferenceDiameterM)
	}
}
