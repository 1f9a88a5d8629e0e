package api

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/banshee-data/barvelocity/internal/fsutil"
	"github.com/banshee-data/barvelocity/internal/lift"
)

var errBoom = errors.New("boom")

// liftDetector scripts one clean rep at 30 fps: a 360 px plate of 0.45 m
// (800 px/m) and a bar tip resting, rising 8 px/frame for 30 frames, then
// descending. Safe for concurrent use.
type liftDetector struct {
	failAt   int // frame index returning errBoom; -1 never
	notReady bool

	mu    sync.Mutex
	calls int
}

func newLiftDetector() *liftDetector { return &liftDetector{failAt: -1} }

func (d *liftDetector) Detect(_ context.Context, f lift.Frame) ([]lift.Detection, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if f.Index == d.failAt {
		return nil, fmt.Errorf("sidecar said: %w", errBoom)
	}
	y := 600.0
	switch i := f.Index; {
	case i < 30:
	case i < 60:
		y = 600 - 8*float64(i-29)
	case i < 100:
		y = 600 - 8*30 + 8*float64(i-59)
	default:
		y = 680
	}
	return []lift.Detection{
		{ClassID: lift.DefaultReferenceClassID, Confidence: 0.9, Box: lift.BoundingBox{X1: 100, Y1: 100, X2: 460, Y2: 460}},
		{ClassID: lift.DefaultTrackedClassID, Confidence: 0.8, Box: lift.BoundingBox{X1: 315, Y1: y - 5, X2: 325, Y2: y + 5}},
	}, nil
}

func (d *liftDetector) Ready(context.Context) error {
	if d.notReady {
		return errors.New("model not loaded")
	}
	return nil
}

// fakeOpener decodes nothing: any existing input yields frames blank frames,
// and sinks write one byte per frame into the filesystem on Close.
type fakeOpener struct {
	fs      fsutil.FileSystem
	frames  int
	openErr error

	mu      sync.Mutex
	inputs  map[string][]byte
	sinks   []*fakeSink
	sources []*fakeSource
}

func newFakeOpener(fs fsutil.FileSystem, frames int) *fakeOpener {
	return &fakeOpener{fs: fs, frames: frames, inputs: map[string][]byte{}}
}

func (o *fakeOpener) OpenSource(path string) (lift.FrameSource, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	data, err := o.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := &fakeSource{info: lift.VideoInfo{FPS: 30, Width: 32, Height: 24, FrameCount: o.frames}, n: o.frames}
	o.mu.Lock()
	o.inputs[path] = data
	o.sources = append(o.sources, src)
	o.mu.Unlock()
	return src, nil
}

func (o *fakeOpener) CreateSink(path string, info lift.VideoInfo) (lift.FrameSink, error) {
	s := &fakeSink{fs: o.fs, path: path}
	o.mu.Lock()
	o.sinks = append(o.sinks, s)
	o.mu.Unlock()
	return s, nil
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sources)
}

type fakeSource struct {
	info   lift.VideoInfo
	n      int
	next   int
	closed bool
}

func (s *fakeSource) Info() lift.VideoInfo { return s.info }

func (s *fakeSource) Next(context.Context) (lift.Frame, error) {
	if s.next >= s.n {
		return lift.Frame{}, io.EOF
	}
	s.next++
	return lift.Frame{Image: image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))}, nil
}

func (s *fakeSource) Close() error { s.closed = true; return nil }

type fakeSink struct {
	fs     fsutil.FileSystem
	path   string
	buf    []byte
	closed int
}

func (s *fakeSink) Write(lift.Frame) error {
	s.buf = append(s.buf, 'f')
	return nil
}

func (s *fakeSink) Close() error {
	s.closed++
	w, err := s.fs.Create(s.path)
	if err != nil {
		return err
	}
	if _, err := w.Write(s.buf); err != nil {
		return err
	}
	return w.Close()
}
