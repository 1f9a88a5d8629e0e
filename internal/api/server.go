// Package api serves the lift-analysis HTTP interface.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"tailscale.com/tsweb"

	"github.com/banshee-data/barvelocity/internal/config"
	"github.com/banshee-data/barvelocity/internal/db"
	"github.com/banshee-data/barvelocity/internal/fsutil"
	"github.com/banshee-data/barvelocity/internal/lift"
	"github.com/banshee-data/barvelocity/internal/metrics"
	"github.com/banshee-data/barvelocity/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// VideoOpener opens decoders and encoders for files in the scratch directory.
type VideoOpener interface {
	OpenSource(path string) (lift.FrameSource, error)
	CreateSink(path string, info lift.VideoInfo) (lift.FrameSink, error)
}

// SessionStore persists finished sessions.
type SessionStore interface {
	InsertSession(ctx context.Context, rec *db.SessionRecord) error
	GetSession(ctx context.Context, id string) (*db.SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]db.SessionSummary, error)
}

// Options configures a Server. Detector, Opener and Store are required.
type Options struct {
	Tuning    *config.TuningConfig
	Detector  lift.Detector
	Annotator lift.Annotator // nil writes frames unannotated
	Opener    VideoOpener
	Store     SessionStore

	FS          fsutil.FileSystem // defaults to the OS filesystem
	ScratchRoot string            // per-upload directories are created here
	Clock       timeutil.Clock
	Metrics     *metrics.Metrics
	NewID       func() string
}

type Server struct {
	tuning    *config.TuningConfig
	detector  lift.Detector
	annotator lift.Annotator
	opener    VideoOpener
	store     SessionStore

	fs          fsutil.FileSystem
	scratchRoot string
	clock       timeutil.Clock
	metrics     *metrics.Metrics
	newID       func() string

	sem       *semaphore.Weighted
	maxUpload int64
}

func NewServer(opts Options) *Server {
	s := &Server{
		tuning:      opts.Tuning,
		detector:    opts.Detector,
		annotator:   opts.Annotator,
		opener:      opts.Opener,
		store:       opts.Store,
		fs:          opts.FS,
		scratchRoot: opts.ScratchRoot,
		clock:       opts.Clock,
		metrics:     opts.Metrics,
		newID:       opts.NewID,
	}
	if s.tuning == nil {
		s.tuning = config.EmptyTuningConfig()
	}
	if s.fs == nil {
		s.fs = fsutil.OSFileSystem{}
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.sem = semaphore.NewWeighted(int64(s.tuning.GetMaxConcurrent()))
	s.maxUpload = s.tuning.GetMaxUploadBytes()
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the public routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze-lift/", s.handleAnalyze)
	mux.HandleFunc("GET /metrics/{id}", s.handleMetrics)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}/chart", s.handleChart)
	mux.HandleFunc("GET /sessions/{id}/velocity.png", s.handleVelocityPNG)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// AttachAdminRoutes mounts the Prometheus exposition on the tsweb debug
// index at /debug/metrics.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("metrics", "Analysis metrics (Prometheus)", s.metrics.Handler())
}
