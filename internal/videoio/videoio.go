// Package videoio decodes and encodes video containers with OpenCV.
package videoio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/barvelocity/internal/lift"
	"github.com/banshee-data/barvelocity/internal/security"
)

// Codec is the FourCC used for output files.
const Codec = "mp4v"

var ErrOpen = errors.New("cannot open video")

// Reader is a lift.FrameSource backed by gocv.VideoCapture.
type Reader struct {
	cap  *gocv.VideoCapture
	mat  gocv.Mat
	info lift.VideoInfo
}

// Open opens path for sequential decoding.
func Open(path string) (*Reader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpen, path)
	}

	info := lift.VideoInfo{
		FPS:    vc.Get(gocv.VideoCaptureFPS),
		Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
	if n := vc.Get(gocv.VideoCaptureFrameCount); n > 0 && !math.IsInf(n, 0) {
		info.FrameCount = int(n)
	}
	return &Reader{cap: vc, mat: gocv.NewMat(), info: info}, nil
}

// Info returns the container metadata.
func (r *Reader) Info() lift.VideoInfo { return r.info }

// Next decodes the next frame. It returns io.EOF when the stream is
// exhausted.
func (r *Reader) Next(ctx context.Context) (lift.Frame, error) {
	if err := ctx.Err(); err != nil {
		return lift.Frame{}, err
	}
	if ok := r.cap.Read(&r.mat); !ok || r.mat.Empty() {
		return lift.Frame{}, io.EOF
	}
	img, err := r.mat.ToImage()
	if err != nil {
		return lift.Frame{}, fmt.Errorf("convert frame: %w", err)
	}
	return lift.Frame{Image: toRGBA(img)}, nil
}

// Close releases the capture.
func (r *Reader) Close() error {
	r.mat.Close()
	return r.cap.Close()
}

// Writer is a lift.FrameSink backed by gocv.VideoWriter.
type Writer struct {
	vw     *gocv.VideoWriter
	width  int
	height int
}

// Create opens path for writing at the given rate and size.
func Create(path string, info lift.VideoInfo) (*Writer, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrOpen, info.Width, info.Height)
	}
	vw, err := gocv.VideoWriterFile(path, Codec, info.FPS, info.Width, info.Height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpen, path)
	}
	return &Writer{vw: vw, width: info.Width, height: info.Height}, nil
}

// Write encodes one frame.
func (w *Writer) Write(frame lift.Frame) error {
	if frame.Image == nil {
		return errors.New("frame has no image")
	}
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return fmt.Errorf("convert frame %d: %w", frame.Index, err)
	}
	defer mat.Close()
	if mat.Cols() != w.width || mat.Rows() != w.height {
		return fmt.Errorf("frame %d is %dx%d, writer expects %dx%d", frame.Index, mat.Cols(), mat.Rows(), w.width, w.height)
	}
	return w.vw.Write(mat)
}

// Close finalises the container.
func (w *Writer) Close() error { return w.vw.Close() }

// Opener opens gocv sources and sinks by path. When Root is set, paths
// outside it are refused before anything touches the file.
type Opener struct {
	Root string
}

func (o Opener) OpenSource(path string) (lift.FrameSource, error) {
	if err := o.check(path); err != nil {
		return nil, err
	}
	return Open(path)
}

func (o Opener) CreateSink(path string, info lift.VideoInfo) (lift.FrameSink, error) {
	if err := o.check(path); err != nil {
		return nil, err
	}
	return Create(path, info)
}

func (o Opener) check(path string) error {
	if o.Root == "" {
		return nil
	}
	return security.ValidatePathWithinDirectory(path, o.Root)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
