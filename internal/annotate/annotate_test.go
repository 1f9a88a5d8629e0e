package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/barvelocity/internal/lift"
	"github.com/banshee-data/barvelocity/internal/testutil"
)

func TestRenderer_DrawsPath(t *testing.T) {
	img := testutil.SolidFrame(200, 200, color.Black)
	r := New(Options{})

	r.Annotate(img, lift.Overlay{Path: []lift.PathPoint{{X: 150, Y: 180}, {X: 150, Y: 60}, {X: 180, Y: 60}}})

	assert.Equal(t, PathColor, img.RGBAAt(150, 120))
	assert.Equal(t, PathColor, img.RGBAAt(165, 60))
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(120, 120), "pixels away from the path are untouched")
}

func TestRenderer_SinglePointDrawsNoPath(t *testing.T) {
	img := testutil.SolidFrame(200, 200, color.Black)
	New(DefaultOptions()).Annotate(img, lift.Overlay{Path: []lift.PathPoint{{X: 150, Y: 150}}})
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(150, 150))
}

func TestRenderer_DrawsTextBox(t *testing.T) {
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	img := testutil.SolidFrame(320, 240, white)
	New(DefaultOptions()).Annotate(img, lift.Overlay{Calibrated: true, PixelsPerMeter: 800, RepCount: 2})

	bg := img.RGBAAt(7, 7)
	assert.Less(t, bg.R, white.R, "text background darkens the corner")
	assert.Equal(t, white, img.RGBAAt(300, 200))

	// Some glyph pixel is drawn in the text colour inside the box.
	found := false
	for y := 10; y < 10+3*18 && !found; y++ {
		for x := 10; x < 150; x++ {
			if img.RGBAAt(x, y) == TextColor {
				found = true
				break
			}
		}
	}
	assert.True(t, found)
}

func TestRenderer_OffsetBounds(t *testing.T) {
	base := testutil.SolidFrame(300, 300, color.Black)
	sub := base.SubImage(image.Rect(100, 100, 300, 300)).(*image.RGBA)

	New(DefaultOptions()).Annotate(sub, lift.Overlay{Path: []lift.PathPoint{{X: 250, Y: 280}, {X: 250, Y: 150}}})

	assert.Equal(t, PathColor, base.RGBAAt(250, 200))
	assert.Equal(t, color.RGBA{A: 255}, base.RGBAAt(50, 200), "outside the sub-image")
}

func TestRenderer_EmptyImage(t *testing.T) {
	img := image.NewRGBA(image.Rectangle{})
	assert.NotPanics(t, func() {
		New(DefaultOptions()).Annotate(img, lift.Overlay{Path: []lift.PathPoint{{X: 1, Y: 1}, {X: 2, Y: 2}}})
	})
}
