// Package annotate draws lift overlays onto video frames.
package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/banshee-data/barvelocity/internal/lift"
)

var (
	PathColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	TextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	BoxColor  = color.RGBA{R: 0, G: 0, B: 0, A: 160}
)

// Options controls overlay geometry.
type Options struct {
	PathWidth  float64 // stroke width in pixels
	Margin     int     // text inset from the top-left corner
	LineHeight int
}

// DefaultOptions matches the overlay used by the analysis service.
func DefaultOptions() Options {
	return Options{PathWidth: 2, Margin: 10, LineHeight: 18}
}

// Renderer implements lift.Annotator with pure-Go rasterisation.
type Renderer struct {
	opts Options
	face font.Face
}

var _ lift.Annotator = (*Renderer)(nil)

// New returns a Renderer. Zero option fields take their defaults.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.PathWidth <= 0 {
		opts.PathWidth = def.PathWidth
	}
	if opts.Margin < 0 {
		opts.Margin = def.Margin
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = def.LineHeight
	}
	return &Renderer{opts: opts, face: basicfont.Face7x13}
}

// Annotate draws the bar path and the status text onto dst.
func (r *Renderer) Annotate(dst draw.Image, ov lift.Overlay) {
	if dst == nil || dst.Bounds().Empty() {
		return
	}
	r.drawPath(dst, ov.Path)
	r.drawText(dst, ov.Lines())
}

func (r *Renderer) drawPath(dst draw.Image, path []lift.PathPoint) {
	if len(path) < 2 {
		return
	}
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	half := float32(r.opts.PathWidth / 2)
	ox, oy := float32(b.Min.X), float32(b.Min.Y)

	drawn := false
	for i := 1; i < len(path); i++ {
		ax, ay := float32(path[i-1].X)-ox, float32(path[i-1].Y)-oy
		bx, by := float32(path[i].X)-ox, float32(path[i].Y)-oy
		dx, dy := bx-ax, by-ay
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 || math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
			continue
		}
		// Unit normal scaled to half the stroke width; the segment is
		// extended by the same amount so joints overlap.
		nx, ny := -dy/l*half, dx/l*half
		ex, ey := dx/l*half, dy/l*half
		z.MoveTo(ax-ex+nx, ay-ey+ny)
		z.LineTo(bx+ex+nx, by+ey+ny)
		z.LineTo(bx+ex-nx, by+ey-ny)
		z.LineTo(ax-ex-nx, ay-ey-ny)
		z.ClosePath()
		drawn = true
	}
	if !drawn {
		return
	}
	z.Draw(dst, b, image.NewUniform(PathColor), image.Point{})
}

func (r *Renderer) drawText(dst draw.Image, lines []string) {
	if len(lines) == 0 {
		return
	}
	b := dst.Bounds()
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(TextColor), Face: r.face}

	width := 0
	for _, line := range lines {
		if w := d.MeasureString(line).Ceil(); w > width {
			width = w
		}
	}
	m := r.opts.Margin
	box := image.Rect(b.Min.X+m-4, b.Min.Y+m-4, b.Min.X+m+width+4, b.Min.Y+m+len(lines)*r.opts.LineHeight+4).Intersect(b)
	draw.Draw(dst, box, image.NewUniform(BoxColor), image.Point{}, draw.Over)

	ascent := r.face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		d.Dot = fixed.P(b.Min.X+m, b.Min.Y+m+i*r.opts.LineHeight+ascent)
		d.DrawString(line)
	}
}
