package lift

import (
	"fmt"
	"image/draw"
)

// Overlay is the presentation state drawn onto an output frame.
type Overlay struct {
	Calibrated     bool
	PixelsPerMeter float64
	RepCount       int
	VelocityMPS    float64
	HasVelocity    bool
	Path           []PathPoint
}

// Lines returns the text lines of the overlay, top to bottom.
func (o Overlay) Lines() []string {
	cal := "Calibration: default"
	if o.Calibrated {
		cal = fmt.Sprintf("Calibrated: %.1f px/m", o.PixelsPerMeter)
	}
	vel := "Velocity: --"
	if o.HasVelocity {
		vel = fmt.Sprintf("Velocity: %+.2f m/s", o.VelocityMPS)
	}
	return []string{
		cal,
		fmt.Sprintf("Reps: %d", o.RepCount),
		vel,
	}
}

// Annotator renders an Overlay onto a frame image.
type Annotator interface {
	Annotate(dst draw.Image, ov Overlay)
}
