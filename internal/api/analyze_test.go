package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/barvelocity/internal/config"
	"github.com/banshee-data/barvelocity/internal/db"
	"github.com/banshee-data/barvelocity/internal/fsutil"
	"github.com/banshee-data/barvelocity/internal/metrics"
	"github.com/banshee-data/barvelocity/internal/testutil"
	"github.com/banshee-data/barvelocity/internal/timeutil"
)

const scratchRoot = "/scratch"

var testNow = time.Date(2026, 4, 1, 7, 30, 0, 0, time.UTC)

type testEnv struct {
	server   *Server
	handler  http.Handler
	fs       *fsutil.MemoryFileSystem
	opener   *fakeOpener
	detector *liftDetector
	store    *db.DB
	metrics  *metrics.Metrics
	ids      []string
}

func ptr[T any](v T) *T { return &v }

func newTestEnv(t *testing.T, tune func(*config.TuningConfig)) *testEnv {
	t.Helper()
	tuning := &config.TuningConfig{DetectEvery: ptr(1)}
	if tune != nil {
		tune(tuning)
	}
	mfs := fsutil.NewMemoryFileSystem()
	env := &testEnv{
		fs:       mfs,
		opener:   newFakeOpener(mfs, 120),
		detector: newLiftDetector(),
		store:    cloneAPITestDB(t),
		metrics:  metrics.New(),
	}
	var mu sync.Mutex
	env.server = NewServer(Options{
		Tuning:      tuning,
		Detector:    env.detector,
		Opener:      env.opener,
		Store:       env.store,
		FS:          mfs,
		ScratchRoot: scratchRoot,
		Clock:       timeutil.NewMockClock(testNow),
		Metrics:     env.metrics,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			id := uuid.NewString()
			env.ids = append(env.ids, id)
			return id
		},
	})
	env.handler = env.server.ServeMux()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, filename string, fields map[string]string) *http.Request {
	return testutil.NewMultipartRequest(t, "/analyze-lift/", testutil.Upload{
		Filename: filename,
		Content:  []byte("fake mp4 payload"),
		Fields:   fields,
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestAnalyzeLift_Success(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(upload(t, "heavy squat.mp4", map[string]string{
		"plate_diameter": "0.45",
		"lift_type":      "squat",
		"weight_kg":      "140",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.ids, 1)
	id := env.ids[0]
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, id, rec.Header().Get("X-Session-ID"))
	assert.Equal(t, "/metrics/"+id+"_metrics.json", rec.Header().Get("X-Metrics-Path"))
	assert.Equal(t, strings.Repeat("f", 120), rec.Body.String(), "one encoded byte per frame")

	inPath := filepath.Join(scratchRoot, id, "input.mp4")
	assert.Equal(t, "fake mp4 payload", string(env.opener.inputs[inPath]))
	assert.False(t, env.fs.Exists(filepath.Join(scratchRoot, id)), "scratch removed")
	assert.Zero(t, env.fs.Len())
	assert.True(t, env.opener.sources[0].closed)
	assert.Equal(t, 1, env.opener.sinks[0].closed)

	stored, err := env.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "heavy_squat.mp4", stored.SourceFilename)
	assert.Equal(t, "squat", stored.LiftType)
	require.NotNil(t, stored.WeightKg)
	assert.Equal(t, 140.0, *stored.WeightKg)
	assert.Equal(t, testNow, stored.CreatedAt)
	assert.Equal(t, 1, stored.Stats.TotalReps)
	assert.True(t, stored.Stats.CalibrationUsed)
	assert.InDelta(t, 800, stored.Stats.PixelsPerMeter, 1e-9)
	assert.Equal(t, 120, stored.Stats.FramesProcessed)
	assert.Equal(t, 120, stored.Stats.DetectorCalls)
	assert.NotEmpty(t, stored.Velocities)
}

func TestAnalyzeLift_DefaultsWithoutOptionalFields(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(upload(t, "clip.MOV", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.store.GetSession(context.Background(), env.ids[0])
	require.NoError(t, err)
	assert.Equal(t, DefaultPlateDiameterM, stored.PlateDiameterM)
	assert.Empty(t, stored.LiftType)
	assert.Nil(t, stored.WeightKg)
	assert.Contains(t, env.opener.inputs, filepath.Join(scratchRoot, env.ids[0], "input.mov"))
}

func TestAnalyzeLift_Validation(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name:       "wrong method",
			req:        func(t *testing.T) *http.Request { return httptest.NewRequest(http.MethodGet, "/analyze-lift/", nil) },
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/analyze-lift/", strings.NewReader("{}"))
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid multipart form",
		},
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return testutil.NewMultipartRequest(t, "/analyze-lift/", testutil.Upload{Fields: map[string]string{"plate_diameter": "0.45"}})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "no video file provided",
		},
		{
			name:       "bad extension",
			req:        func(t *testing.T) *http.Request { return upload(t, "notes.txt", nil) },
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid video format",
		},
		{
			name:       "bad filename",
			req:        func(t *testing.T) *http.Request { return upload(t, "-rf;.mp4", nil) },
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid filename",
		},
		{
			name:       "plate too small",
			req:        func(t *testing.T) *http.Request { return upload(t, "a.mp4", map[string]string{"plate_diameter": "0.05"}) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "plate too large",
			req:        func(t *testing.T) *http.Request { return upload(t, "a.mp4", map[string]string{"plate_diameter": "1.5"}) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "plate not a number",
			req:        func(t *testing.T) *http.Request { return upload(t, "a.mp4", map[string]string{"plate_diameter": "NaN"}) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown lift type",
			req:        func(t *testing.T) *http.Request { return upload(t, "a.mp4", map[string]string{"lift_type": "curl"}) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative weight",
			req:        func(t *testing.T) *http.Request { return upload(t, "a.mp4", map[string]string{"weight_kg": "-20"}) },
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.do(tt.req(t))
			testutil.AssertStatusCode(t, rec.Code, tt.wantStatus)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rec))
			}
			assert.Zero(t, env.opener.opened(), "no processing on rejected uploads")
			assert.Empty(t, env.ids)
		})
	}
}

func TestAnalyzeLift_TooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.TuningConfig) { c.MaxUploadBytes = ptr(int64(8)) })

	rec := env.do(upload(t, "big.mp4", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusRequestEntityTooLarge)
	assert.Contains(t, decodeError(t, rec), "File too large")

	huge := testutil.NewMultipartRequest(t, "/analyze-lift/", testutil.Upload{
		Filename: "huge.mp4",
		Content:  make([]byte, 2<<20),
	})
	rec = env.do(huge)
	testutil.AssertStatusCode(t, rec.Code, http.StatusRequestEntityTooLarge)
	assert.Zero(t, env.opener.opened())
}

func TestAnalyzeLift_DetectorFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.detector.failAt = 50

	rec := env.do(upload(t, "squat.mp4", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
	assert.Equal(t, "processing failed", decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "sidecar")

	require.Len(t, env.ids, 1)
	assert.Zero(t, env.fs.Len(), "partial output and upload removed")
	assert.Equal(t, 1, env.opener.sinks[0].closed, "sink closed exactly once")
	assert.True(t, env.opener.sources[0].closed)
	assert.Empty(t, rec.Header().Get("X-Session-ID"))

	_, err := env.store.GetSession(context.Background(), env.ids[0])
	assert.ErrorIs(t, err, db.ErrNotFound, "failed sessions are not stored")
}

func TestAnalyzeLift_DecoderFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.opener.openErr = errBoom

	rec := env.do(upload(t, "squat.mp4", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
	assert.Equal(t, "processing failed", decodeError(t, rec))
	assert.Zero(t, env.fs.Len())
}

func TestAnalyzeLift_Busy(t *testing.T) {
	env := newTestEnv(t, func(c *config.TuningConfig) { c.MaxConcurrent = ptr(1) })
	require.NoError(t, env.server.sem.Acquire(context.Background(), 1))
	defer env.server.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec := env.do(upload(t, "squat.mp4", nil).WithContext(ctx))
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
	assert.Zero(t, env.opener.opened())
}

func TestAnalyzeLift_Concurrent(t *testing.T) {
	env := newTestEnv(t, func(c *config.TuningConfig) { c.MaxConcurrent = ptr(2) })

	const n = 4
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		req := upload(t, "squat.mp4", nil)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.do(req).Code
		}(i)
	}
	wg.Wait()

	for _, c := range codes {
		assert.Equal(t, http.StatusOK, c)
	}
	list, err := env.store.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, n)
	assert.Zero(t, env.fs.Len())
}

func TestAnalyzeLift_Metrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(upload(t, "squat.mp4", nil))
	env.do(upload(t, "notes.txt", nil))

	rec := httptest.NewRecorder()
	env.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `barvelocity_analyses_total{result="ok"} 1`)
	assert.Contains(t, body, `barvelocity_analyses_total{result="rejected"} 1`)
	assert.Contains(t, body, `barvelocity_reps_total 1`)
	assert.Contains(t, body, `barvelocity_frames_total{status="processed"}`)
}
