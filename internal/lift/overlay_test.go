package lift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlay_Lines(t *testing.T) {
	tests := []struct {
		name string
		ov   Overlay
		want []string
	}{
		{
			name: "uncalibrated without velocity",
			ov:   Overlay{PixelsPerMeter: 800},
			want: []string{"Calibration: default", "Reps: 0", "Velocity: --"},
		},
		{
			name: "calibrated",
			ov:   Overlay{Calibrated: true, PixelsPerMeter: 812.345, RepCount: 3, VelocityMPS: -0.456, HasVelocity: true},
			want: []string{"Calibrated: 812.3 px/m", "Reps: 3", "Velocity: -0.46 m/s"},
		},
		{
			name: "positive velocity",
			ov:   Overlay{VelocityMPS: 1.25, HasVelocity: true},
			want: []string{"Calibration: default", "Reps: 0", "Velocity: +1.25 m/s"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ov.Lines())
		})
	}
}
