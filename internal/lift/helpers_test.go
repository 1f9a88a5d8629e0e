package lift

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"io"
)

// scriptedDetector returns detections computed from the frame index.
type scriptedDetector struct {
	script func(frameIndex int) []Detection
	err    error
	failAt int // frame index that returns err; -1 never
	calls  []int
}

func (d *scriptedDetector) Detect(_ context.Context, f Frame) ([]Detection, error) {
	d.calls = append(d.calls, f.Index)
	if d.err != nil && f.Index == d.failAt {
		return nil, d.err
	}
	if d.script == nil {
		return nil, nil
	}
	return d.script(f.Index), nil
}

func (d *scriptedDetector) Ready(context.Context) error { return nil }

// sliceSource yields n blank frames.
type sliceSource struct {
	info   VideoInfo
	n      int
	next   int
	err    error
	failAt int
	closed bool
}

func newSliceSource(fps float64, n int) *sliceSource {
	return &sliceSource{info: VideoInfo{FPS: fps, Width: 64, Height: 48, FrameCount: n}, n: n, failAt: -1}
}

func (s *sliceSource) Info() VideoInfo { return s.info }

func (s *sliceSource) Next(context.Context) (Frame, error) {
	if s.next == s.failAt {
		return Frame{}, s.err
	}
	if s.next >= s.n {
		return Frame{}, io.EOF
	}
	s.next++
	return Frame{Image: image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))}, nil
}

func (s *sliceSource) Close() error { s.closed = true; return nil }

type memorySink struct {
	frames []int
	err    error
}

func (m *memorySink) Write(f Frame) error {
	if m.err != nil {
		return m.err
	}
	m.frames = append(m.frames, f.Index)
	return nil
}

func (m *memorySink) Close() error { return nil }

type countingAnnotator struct {
	overlays []Overlay
}

func (a *countingAnnotator) Annotate(_ draw.Image, ov Overlay) {
	a.overlays = append(a.overlays, ov)
}

var errBoom = errors.New("boom")

func plate(conf, size float64) Detection {
	return Detection{
		ClassID:    DefaultReferenceClassID,
		Confidence: conf,
		Box:        BoundingBox{X1: 100, Y1: 100, X2: 100 + size, Y2: 100 + size},
	}
}

func barTip(conf, x, y float64) Detection {
	return Detection{
		ClassID:    DefaultTrackedClassID,
		Confidence: conf,
		Box:        BoundingBox{X1: x - 5, Y1: y - 5, X2: x + 5, Y2: y + 5},
	}
}

// liftScript is a bench-style lift at 30 fps with a 360 px plate of 0.45 m
// (800 px/m): 30 frames at rest, 30 frames rising 8 px/frame, 40 frames
// descending 8 px/frame, then rest.
func liftScript(i int) []Detection {
	y := 600.0
	switch {
	case i < 30:
	case i < 60:
		y = 600 - 8*float64(i-29)
	case i < 100:
		y = 600 - 8*30 + 8*float64(i-59)
	default:
		y = 600 + 8*10
	}
	return []Detection{plate(0.9, 360), barTip(0.8, 320, y)}
}

func testConfig() Config {
	cfg := DefaultConfig(0.45)
	cfg.DetectEvery = 1
	return cfg
}
