package lift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/barvelocity/internal/monitoring"
)

// FrameStatus classifies how a frame contributed to the session.
type FrameStatus string

const (
	FrameProcessed FrameStatus = "processed" // sample fed through velocity and rep tracking
	FrameNoSample  FrameStatus = "no_sample" // no accepted tracked-point detection, or first sample
	FrameSkipped   FrameStatus = "skipped"   // excluded from rep tracking, see Reason
)

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	FrameIndex int
	Status     FrameStatus
	Reason     string
	Reused     bool // detections came from an earlier frame

	Calibration CalibrationState
	Position    *PositionSample
	Velocity    *VelocitySample
	Rep         *RepRecord
	Overlay     Overlay
}

// Result is everything a finished session produced.
type Result struct {
	Info        VideoInfo
	Stats       SessionStats
	Calibration CalibrationState
	Velocities  []VelocitySample
	Trajectory  []PositionSample
}

// Session is the per-video pipeline state. A Session is not safe for
// concurrent use; each video gets its own.
type Session struct {
	cfg      Config
	detector *reusingDetector

	calibrator *Calibrator
	tracker    *Tracker
	velocity   *VelocityEstimator
	segmenter  *RepSegmenter

	archive   []VelocitySample
	processed int
	skipped   int
	lastVel   *VelocitySample
}

// NewSession builds a session for a stream at fps.
func NewSession(cfg Config, det Detector, fps float64) (*Session, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrameRate, fps)
	}
	if det == nil {
		return nil, errors.New("nil detector")
	}
	return &Session{
		cfg:        cfg,
		detector:   newReusingDetector(det, cfg.DetectEvery),
		calibrator: NewCalibrator(cfg),
		tracker:    NewTracker(cfg, fps),
		velocity:   NewVelocityEstimator(cfg),
		segmenter:  NewRepSegmenter(cfg),
	}, nil
}

// ProcessFrame runs one frame through calibration, tracking, velocity and rep
// segmentation. A non-nil error is fatal for the session; per-frame
// arithmetic problems are reported through FrameResult instead.
func (s *Session) ProcessFrame(ctx context.Context, frame Frame) (FrameResult, error) {
	dets, reused, err := s.detector.Detect(ctx, frame)
	if err != nil {
		return FrameResult{}, err
	}
	s.processed++

	res := FrameResult{
		FrameIndex:  frame.Index,
		Status:      FrameNoSample,
		Reused:      reused,
		Calibration: s.calibrator.Observe(dets),
	}

	prev, hasPrev := s.tracker.Last(1)
	pos, ok := s.tracker.Observe(dets, frame.Index)
	if ok {
		res.Position = &pos
	}
	if ok && hasPrev {
		s.step(&res, prev, pos)
	}
	res.Overlay = s.overlay()
	return res, nil
}

func (s *Session) step(res *FrameResult, prev, pos PositionSample) {
	scale := s.calibrator.Scale()
	v, err := s.velocity.Update(prev, pos, scale)
	if err != nil {
		s.skip(res, err)
		return
	}
	s.archive = append(s.archive, v)
	s.lastVel = &s.archive[len(s.archive)-1]
	res.Velocity = &v

	rep, err := s.segmenter.Observe(v, pos, scale)
	if err != nil {
		s.skip(res, err)
		return
	}
	res.Rep = rep
	res.Status = FrameProcessed
}

func (s *Session) skip(res *FrameResult, err error) {
	s.skipped++
	res.Status = FrameSkipped
	res.Reason = err.Error()
}

func (s *Session) overlay() Overlay {
	cal := s.calibrator.State()
	ov := Overlay{
		Calibrated:     cal.Valid() && !cal.IsFallback,
		PixelsPerMeter: cal.PixelsPerMeter,
		RepCount:       s.segmenter.Count(),
		Path:           s.tracker.Path(),
	}
	if s.lastVel != nil {
		ov.VelocityMPS = s.lastVel.MPS
		ov.HasVelocity = true
	}
	return ov
}

// Finish locks calibration and aggregates the session. An in-progress rep is
// dropped.
func (s *Session) Finish() Result {
	cal := s.calibrator.Finalize()
	stats := Aggregate(s.archive, s.segmenter.Reps(), s.tracker.Samples(), cal)
	stats.FramesProcessed = s.processed
	stats.FramesSkipped = s.skipped
	stats.DetectorCalls = s.detector.Calls()
	return Result{
		Stats:       stats,
		Calibration: cal,
		Velocities:  append([]VelocitySample(nil), s.archive...),
		Trajectory:  append([]PositionSample(nil), s.tracker.Samples()...),
	}
}

// Pipeline analyses videos with an injected detector and annotator.
type Pipeline struct {
	cfg       Config
	detector  Detector
	annotator Annotator

	// OnFrame, when set, is called after each frame is processed.
	OnFrame func(FrameResult)
}

// NewPipeline builds a pipeline. annotator may be nil, in which case frames
// are written unmodified.
func NewPipeline(cfg Config, det Detector, annotator Annotator) *Pipeline {
	return &Pipeline{cfg: cfg, detector: det, annotator: annotator}
}

// Ready reports whether the detector can serve requests.
func (p *Pipeline) Ready(ctx context.Context) error {
	return p.detector.Ready(ctx)
}

// Run processes src to the end of the stream, writing annotated frames to
// sink when it is non-nil. Decode, detector and encode failures abort the run.
// The caller owns src and sink and must close them.
func (p *Pipeline) Run(ctx context.Context, src FrameSource, sink FrameSink) (Result, error) {
	info := src.Info()
	sess, err := NewSession(p.cfg, p.detector, info.FPS)
	if err != nil {
		return Result{}, err
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("frame %d: %w: %w", i, ErrDecode, err)
		}
		frame.Index = i

		res, err := sess.ProcessFrame(ctx, frame)
		if err != nil {
			return Result{}, err
		}
		if p.OnFrame != nil {
			p.OnFrame(res)
		}

		if sink == nil {
			continue
		}
		if p.annotator != nil && frame.Image != nil {
			p.annotator.Annotate(frame.Image, res.Overlay)
		}
		if err := sink.Write(frame); err != nil {
			return Result{}, fmt.Errorf("frame %d: %w: %w", i, ErrEncode, err)
		}
	}

	out := sess.Finish()
	out.Info = info
	monitoring.Logf("session finished: frames=%d skipped=%d detector_calls=%d reps=%d calibrated=%v ppm=%.1f",
		out.Stats.FramesProcessed, out.Stats.FramesSkipped, out.Stats.DetectorCalls,
		out.Stats.TotalReps, out.Stats.CalibrationUsed, out.Stats.PixelsPerMeter)
	return out, nil
}
