package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/banshee-data/barvelocity/internal/lift"
)

// Record is one JSONL line: the detections produced for a frame.
type Record struct {
	Frame      int              `json:"frame"`
	Detections []lift.Detection `json:"detections"`
}

// ReplayDetector serves previously recorded detections by frame index.
// Frames without a record yield no detections.
type ReplayDetector struct {
	byFrame map[int][]lift.Detection
}

// LoadReplay parses JSONL records from r. Later records for the same frame
// replace earlier ones.
func LoadReplay(r io.Reader) (*ReplayDetector, error) {
	d := &ReplayDetector{byFrame: make(map[int][]lift.Detection)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		if rec.Frame < 0 {
			return nil, fmt.Errorf("replay line %d: negative frame %d", line, rec.Frame)
		}
		d.byFrame[rec.Frame] = sanitize(rec.Detections)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	return d, nil
}

// OpenReplay loads a JSONL replay file.
func OpenReplay(path string) (*ReplayDetector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadReplay(f)
}

// Detect returns the recorded detections for frame.Index.
func (d *ReplayDetector) Detect(ctx context.Context, frame lift.Frame) ([]lift.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dets := d.byFrame[frame.Index]
	out := make([]lift.Detection, len(dets))
	copy(out, dets)
	return out, nil
}

// Ready always succeeds.
func (d *ReplayDetector) Ready(context.Context) error { return nil }

// Frames returns the number of recorded frames.
func (d *ReplayDetector) Frames() int { return len(d.byFrame) }

// Recorder wraps a detector and appends every result to w as JSONL.
type Recorder struct {
	inner lift.Detector

	mu  sync.Mutex
	enc *json.Encoder
}

// NewRecorder returns a recording wrapper around inner.
func NewRecorder(inner lift.Detector, w io.Writer) *Recorder {
	return &Recorder{inner: inner, enc: json.NewEncoder(w)}
}

// Detect forwards to the wrapped detector and records successful results.
func (r *Recorder) Detect(ctx context.Context, frame lift.Frame) ([]lift.Detection, error) {
	dets, err := r.inner.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if dets == nil {
		dets = []lift.Detection{}
	}
	if err := r.enc.Encode(Record{Frame: frame.Index, Detections: dets}); err != nil {
		return nil, fmt.Errorf("record frame %d: %w", frame.Index, err)
	}
	return dets, nil
}

func (r *Recorder) Ready(ctx context.Context) error { return r.inner.Ready(ctx) }

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
