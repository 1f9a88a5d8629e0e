package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/barvelocity/internal/db"
	"github.com/banshee-data/barvelocity/internal/fsutil"
	"github.com/banshee-data/barvelocity/internal/httputil"
	"github.com/banshee-data/barvelocity/internal/lift"
	"github.com/banshee-data/barvelocity/internal/metrics"
	"github.com/banshee-data/barvelocity/internal/monitoring"
	"github.com/banshee-data/barvelocity/internal/security"
)

const (
	// DefaultPlateDiameterM is a standard Olympic plate.
	DefaultPlateDiameterM = 0.45

	// Form fields are held in memory up to this size; the file spills to disk.
	multipartMemory = 8 << 20
	// Allowance for multipart boundaries and small fields on top of the file.
	formOverhead = 1 << 20

	outputName = "output.mp4"
)

// LiftTypes are the accepted values of the lift_type field.
var LiftTypes = []string{"squat", "bench_press", "deadlift"}

type analyzeRequest struct {
	file      multipart.File
	filename  string
	ext       string
	diameterM float64
	liftType  string
	weightKg  *float64
}

type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// MetricsPath returns the lookup path of a session's metrics document.
func MetricsPath(id string) string {
	return "/metrics/" + id + "_metrics.json"
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	req, err := s.parseAnalyzeRequest(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.metrics.AnalysesTotal.WithLabelValues(metrics.ResultRejected).Inc()
		var re *requestError
		if errors.As(err, &re) {
			httputil.WriteJSONError(w, re.status, re.msg)
			return
		}
		httputil.BadRequest(w, "invalid request")
		return
	}
	defer req.file.Close()

	ctx := r.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.metrics.AnalysesTotal.WithLabelValues(metrics.ResultCanceled).Inc()
		httputil.ServiceUnavailable(w, "server busy")
		return
	}
	defer s.sem.Release(1)
	s.metrics.AnalysesInFlight.Inc()
	defer s.metrics.AnalysesInFlight.Dec()

	id := s.newID()
	logf := monitoring.Prefixed(id)
	scratch, err := fsutil.NewScratch(s.fs, s.scratchRoot, id)
	if err != nil {
		logf("scratch: %v", err)
		s.metrics.AnalysesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		httputil.InternalServerError(w, "processing failed")
		return
	}
	defer func() {
		if err := scratch.Remove(); err != nil {
			logf("remove scratch: %v", err)
		}
	}()

	rec, err := s.analyze(ctx, id, scratch, req)
	if err != nil {
		result := metrics.ResultFailed
		if ctx.Err() != nil {
			result = metrics.ResultCanceled
		}
		s.metrics.AnalysesTotal.WithLabelValues(result).Inc()
		logf("analysis of %q failed: %v", security.SanitizeFilename(req.filename), err)
		httputil.InternalServerError(w, "processing failed")
		return
	}
	logf("%d reps, peak %.2f m/s, calibrated=%v", rec.Stats.TotalReps, rec.Stats.PeakVelocity, rec.Stats.CalibrationUsed)

	outPath, _ := scratch.Path(outputName)
	if err := s.sendVideo(w, id, outPath); err != nil {
		logf("send output: %v", err)
	}
}

func (s *Server) parseAnalyzeRequest(w http.ResponseWriter, r *http.Request) (*analyzeRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return nil, s.tooLarge()
		}
		return nil, badRequest("invalid multipart form")
	}

	file, hdr, err := r.FormFile("video")
	if err != nil {
		return nil, badRequest("no video file provided")
	}
	req := &analyzeRequest{file: file, filename: hdr.Filename}
	fail := func(err error) (*analyzeRequest, error) {
		file.Close()
		return nil, err
	}

	if hdr.Size > s.maxUpload {
		return fail(s.tooLarge())
	}
	if req.ext, err = security.ValidateUploadFilename(hdr.Filename); err != nil {
		if errors.Is(err, security.ErrUnsupportedVideo) {
			return fail(badRequest("Invalid video format"))
		}
		return fail(badRequest("invalid filename"))
	}

	req.diameterM = DefaultPlateDiameterM
	if v := r.FormValue("plate_diameter"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(d) || d < lift.MinReferenceDiameterM || d > lift.MaxReferenceDiameterM {
			return fail(badRequest("plate_diameter must be between %.1f and %.1f meters", lift.MinReferenceDiameterM, lift.MaxReferenceDiameterM))
		}
		req.diameterM = d
	}

	if v := r.FormValue("lift_type"); v != "" {
		ok := false
		for _, lt := range LiftTypes {
			ok = ok || v == lt
		}
		if !ok {
			return fail(badRequest("lift_type must be one of: %s", strings.Join(LiftTypes, ", ")))
		}
		req.liftType = v
	}

	if v := r.FormValue("weight_kg"); v != "" {
		kg, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(kg) || math.IsInf(kg, 0) || kg <= 0 {
			return fail(badRequest("weight_kg must be a positive number"))
		}
		req.weightKg = &kg
	}
	return req, nil
}

func (s *Server) tooLarge() error {
	return &requestError{
		status: http.StatusRequestEntityTooLarge,
		msg:    fmt.Sprintf("File too large. Maximum size is %dMB", s.maxUpload>>20),
	}
}

// analyze copies the upload into scratch, runs the pipeline and stores the
// session. The annotated video is left at outputName in scratch.
func (s *Server) analyze(ctx context.Context, id string, scratch *fsutil.Scratch, req *analyzeRequest) (*db.SessionRecord, error) {
	in, inPath, err := scratch.Create("input" + req.ext)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(in, req.file); err != nil {
		in.Close()
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	src, err := s.opener.OpenSource(inPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	outPath, err := scratch.Path(outputName)
	if err != nil {
		return nil, err
	}
	info := src.Info()
	sink, err := s.opener.CreateSink(outPath, info)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lift.ErrEncode, err)
	}
	sinkOpen := true
	defer func() {
		if sinkOpen {
			sink.Close()
		}
	}()

	pipe := lift.NewPipeline(lift.ConfigFromTuning(s.tuning, req.diameterM), s.detector, s.annotator)
	pipe.OnFrame = s.metrics.ObserveFrame
	start := s.clock.Now()
	res, err := pipe.Run(ctx, src, sink)
	if err != nil {
		return nil, err
	}
	sinkOpen = false
	if err := sink.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", lift.ErrEncode, err)
	}

	rec := &db.SessionRecord{
		ID:             id,
		CreatedAt:      s.clock.Now().UTC(),
		SourceFilename: security.SanitizeFilename(req.filename),
		LiftType:       req.liftType,
		WeightKg:       req.weightKg,
		PlateDiameterM: req.diameterM,
		Video:          res.Info,
		Stats:          res.Stats,
		Velocities:     res.Velocities,
	}
	if err := s.store.InsertSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	s.metrics.ObserveSession(res.Stats, s.clock.Since(start))
	return rec, nil
}

func (s *Server) sendVideo(w http.ResponseWriter, id, path string) error {
	f, err := s.fs.Open(path)
	if err != nil {
		httputil.InternalServerError(w, "processing failed")
		return err
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", "video/mp4")
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_annotated.mp4"`, id))
	h.Set("X-Session-ID", id)
	h.Set("X-Metrics-Path", MetricsPath(id))
	if info, err := f.Stat(); err == nil {
		h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	_, err = io.Copy(w, f)
	return err
}
