package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/barvelocity/internal/annotate"
	"github.com/banshee-data/barvelocity/internal/api"
	"github.com/banshee-data/barvelocity/internal/detector"
	"github.com/banshee-data/barvelocity/internal/httputil"
	"github.com/banshee-data/barvelocity/internal/lift"
	"github.com/banshee-data/barvelocity/internal/security"
	"github.com/banshee-data/barvelocity/internal/units"
	"github.com/banshee-data/barvelocity/internal/videoio"
)

type analyseFlags struct {
	input       string
	output      string
	configPath  string
	detectorURL string
	replay      string
	record      string
	plate       float64
	units       string
}

func parseAnalyseFlags(args []string, stderr io.Writer) (analyseFlags, error) {
	var f analyseFlags
	fs := flag.NewFlagSet("analyse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.output, "o", "", "Annotated output path (defaults to <input>_annotated.mp4)")
	fs.StringVar(&f.configPath, "config", "", "Tuning config JSON")
	fs.StringVar(&f.detectorURL, "detector-url", "http://127.0.0.1:9000", "Object detection service base URL")
	fs.StringVar(&f.replay, "replay", "", "Read detections from a recorded JSONL file")
	fs.StringVar(&f.record, "record", "", "Record detections to a JSONL file for later replay")
	fs.Float64Var(&f.plate, "plate", api.DefaultPlateDiameterM, "Reference plate diameter in metres")
	fs.StringVar(&f.units, "units", units.MPS, "Velocity units for the summary ("+units.GetValidUnitsString()+")")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: barvelocity analyse [flags] <video>")
		return f, errUsage
	}
	f.input = fs.Arg(0)
	if ext := strings.ToLower(filepath.Ext(f.input)); !slices.Contains(security.VideoExtensions, ext) {
		return f, fmt.Errorf("%w: %q", security.ErrUnsupportedVideo, ext)
	}
	if f.output == "" {
		f.output = strings.TrimSuffix(f.input, filepath.Ext(f.input)) + "_annotated.mp4"
	}
	if math.IsNaN(f.plate) || f.plate < lift.MinReferenceDiameterM || f.plate > lift.MaxReferenceDiameterM {
		return f, fmt.Errorf("plate diameter must be between %.1f and %.1f meters, got %g",
			lift.MinReferenceDiameterM, lift.MaxReferenceDiameterM, f.plate)
	}
	if f.replay != "" && f.record != "" {
		return f, errors.New("-replay and -record are mutually exclusive")
	}
	if !units.IsValid(f.units) {
		return f, fmt.Errorf("units must be one of: %s", units.GetValidUnitsString())
	}
	return f, nil
}

type repSummary struct {
	Index        int     `json:"index"`
	Duration     float64 `json:"duration_s"`
	DistanceM    float64 `json:"distance_m"`
	MeanVelocity float64 `json:"mean_velocity"`
	PeakVelocity float64 `json:"peak_velocity"`
}

type analyseSummary struct {
	Input           string       `json:"input"`
	Output          string       `json:"output"`
	Units           string       `json:"units"`
	TotalReps       int          `json:"total_reps"`
	PeakVelocity    float64      `json:"peak_velocity"`
	MeanVelocity    float64      `json:"mean_velocity"`
	TotalDistanceM  float64      `json:"total_distance_m"`
	CalibrationUsed bool         `json:"calibration_used"`
	PixelsPerMeter  float64      `json:"pixels_per_meter"`
	FramesProcessed int          `json:"frames_processed"`
	FramesSkipped   int          `json:"frames_skipped"`
	DetectorCalls   int          `json:"detector_calls"`
	Elapsed         string       `json:"elapsed"`
	Reps            []repSummary `json:"reps"`
}

func summarise(f analyseFlags, stats lift.SessionStats, elapsed time.Duration) analyseSummary {
	conv := func(v float64) float64 { return units.ConvertVelocity(v, f.units) }
	out := analyseSummary{
		Input:           f.input,
		Output:          f.output,
		Units:           units.Label(f.units),
		TotalReps:       stats.TotalReps,
		PeakVelocity:    conv(stats.PeakVelocity),
		MeanVelocity:    conv(stats.MeanVelocity),
		TotalDistanceM:  stats.TotalDistanceM,
		CalibrationUsed: stats.CalibrationUsed,
		PixelsPerMeter:  stats.PixelsPerMeter,
		FramesProcessed: stats.FramesProcessed,
		FramesSkipped:   stats.FramesSkipped,
		DetectorCalls:   stats.DetectorCalls,
		Elapsed:         elapsed.Round(time.Millisecond).String(),
		Reps:            make([]repSummary, 0, len(stats.Reps)),
	}
	for _, r := range stats.Reps {
		out.Reps = append(out.Reps, repSummary{
			Index:        r.Index,
			Duration:     r.Duration,
			DistanceM:    r.DistanceM,
			MeanVelocity: conv(r.MeanVelocity),
			PeakVelocity: conv(r.PeakVelocity),
		})
	}
	return out
}

func runAnalyse(args []string, stdout, stderr io.Writer) error {
	f, err := parseAnalyseFlags(args, stderr)
	if err != nil {
		return err
	}
	tuning, err := loadTuning(f.configPath)
	if err != nil {
		return err
	}

	var det lift.Detector
	if f.replay != "" {
		rd, err := detector.OpenReplay(f.replay)
		if err != nil {
			return err
		}
		det = rd
	} else {
		det = detector.NewHTTPDetector(f.detectorURL, httputil.NewStandardClient(tuning.GetDetectorTimeout()))
	}
	if f.record != "" {
		rf, err := os.Create(f.record)
		if err != nil {
			return fmt.Errorf("create record file: %w", err)
		}
		defer rf.Close()
		det = detector.NewRecorder(det, rf)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := videoio.Open(f.input)
	if err != nil {
		return err
	}
	defer src.Close()
	sink, err := videoio.Create(f.output, src.Info())
	if err != nil {
		return err
	}

	start := time.Now()
	pipeline := lift.NewPipeline(lift.ConfigFromTuning(tuning, f.plate), det, annotate.New(annotate.DefaultOptions()))
	res, err := pipeline.Run(ctx, src, sink)
	if cerr := sink.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("finalise output: %w", cerr)
	}
	if err != nil {
		os.Remove(f.output)
		return err
	}
	log.Printf("wrote %s", f.output)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summarise(f, res.Stats, time.Since(start)))
}
