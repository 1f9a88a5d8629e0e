package lift

import (
	"context"
	"errors"
)

// Default class ids emitted by the lift detection model.
const (
	DefaultReferenceClassID = 0 // weight plate
	DefaultTrackedClassID   = 1 // bar tip
)

var (
	// ErrDetector wraps any failure returned by a Detector mid-stream.
	ErrDetector = errors.New("detector failure")
	// ErrDecode wraps any failure returned by a FrameSource mid-stream.
	ErrDecode = errors.New("decode failure")
	// ErrEncode wraps any failure returned by a FrameSink.
	ErrEncode = errors.New("encode failure")
	// ErrInvalidFrameRate is returned when the source reports a non-positive fps.
	ErrInvalidFrameRate = errors.New("invalid frame rate")
)

// BoundingBox is an axis-aligned box in pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BoundingBox) Width() float64  { return b.X2 - b.X1 }
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Detection is a single object found in one frame. Detections are consumed
// within the frame that produced them and never retained.
type Detection struct {
	ClassID    int         `json:"class_id"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// Detector is the black-box object detection capability.
type Detector interface {
	// Detect returns all detections found in frame.
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
	// Ready reports whether the model is loaded and able to serve requests.
	Ready(ctx context.Context) error
}

// bestOfClass returns the highest-confidence detection of classID.
func bestOfClass(dets []Detection, classID int) (Detection, bool) {
	var best Detection
	found := false
	for _, d := range dets {
		if d.ClassID != classID {
			continue
		}
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}
