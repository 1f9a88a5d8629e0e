// Package detector provides lift.Detector implementations: a client for an
// HTTP inference sidecar and a JSONL replay/record pair for offline runs.
package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/barvelocity/internal/httputil"
	"github.com/banshee-data/barvelocity/internal/lift"
)

// ErrModelNotLoaded is returned by Ready when the sidecar is up but has no
// model.
var ErrModelNotLoaded = errors.New("detection model not loaded")

const defaultJPEGQuality = 85

// HTTPDetector posts JPEG frames to an inference sidecar.
//
//	POST {base}/detect  body: image/jpeg  -> {"detections": [...]}
//	GET  {base}/health                   -> {"status": "...", "model_loaded": bool}
type HTTPDetector struct {
	baseURL string
	client  httputil.HTTPClient
	quality int
}

// NewHTTPDetector returns a detector for the sidecar at baseURL. A nil client
// uses an *http.Client with a 10s timeout.
func NewHTTPDetector(baseURL string, client httputil.HTTPClient) *HTTPDetector {
	if client == nil {
		client = httputil.NewStandardClient(10 * time.Second)
	}
	return &HTTPDetector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		quality: defaultJPEGQuality,
	}
}

type detectResponse struct {
	Detections []lift.Detection `json:"detections"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Detect encodes the frame and returns the sidecar's detections. Detections
// with out-of-range confidence or non-finite boxes are dropped.
func (d *HTTPDetector) Detect(ctx context.Context, frame lift.Frame) ([]lift.Detection, error) {
	if frame.Image == nil {
		return nil, errors.New("frame has no image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", frame.Index, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("X-Frame-Index", fmt.Sprint(frame.Index))

	var resp detectResponse
	if err := httputil.DoJSON(d.client, req, &resp); err != nil {
		return nil, fmt.Errorf("detect frame %d: %w", frame.Index, err)
	}
	return sanitize(resp.Detections), nil
}

// Ready checks the sidecar health endpoint.
func (d *HTTPDetector) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	var resp healthResponse
	if err := httputil.DoJSON(d.client, req, &resp); err != nil {
		return fmt.Errorf("detector health: %w", err)
	}
	if !resp.ModelLoaded {
		return ErrModelNotLoaded
	}
	return nil
}

func sanitize(dets []lift.Detection) []lift.Detection {
	out := dets[:0]
	for _, d := range dets {
		if !(d.Confidence >= 0 && d.Confidence <= 1) {
			continue
		}
		b := d.Box
		if !finite(b.X1) || !finite(b.Y1) || !finite(b.X2) || !finite(b.Y2) {
			continue
		}
		out = append(out, d)
	}
	return out
}
