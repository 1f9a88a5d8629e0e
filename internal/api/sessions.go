package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/barvelocity/internal/db"
	"github.com/banshee-data/barvelocity/internal/httputil"
	"github.com/banshee-data/barvelocity/internal/monitoring"
	"github.com/banshee-data/barvelocity/internal/report"
	"github.com/banshee-data/barvelocity/internal/units"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// lookup loads the session named by the {id} path value, writing a 404 or
// 500 itself on failure. A trailing "_metrics.json" is accepted.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*db.SessionRecord, bool) {
	id := strings.TrimSuffix(r.PathValue("id"), "_metrics.json")
	rec, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "Metrics not found")
		return nil, false
	}
	if err != nil {
		monitoring.Logf("get session %q: %v", id, err)
		httputil.InternalServerError(w, "lookup failed")
		return nil, false
	}
	return rec, true
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			httputil.BadRequest(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}
	list, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		monitoring.Logf("list sessions: %v", err)
		httputil.InternalServerError(w, "lookup failed")
		return
	}
	if list == nil {
		list = []db.SessionSummary{}
	}
	httputil.WriteJSONOK(w, list)
}

// trace builds a chart trace for rec honouring the ?units= query.
func trace(w http.ResponseWriter, r *http.Request, rec *db.SessionRecord) (report.Trace, bool) {
	u := r.URL.Query().Get("units")
	if u == "" {
		u = units.MPS
	}
	if !units.IsValid(u) {
		httputil.BadRequest(w, "units must be one of: "+units.GetValidUnitsString())
		return report.Trace{}, false
	}
	title := "Bar velocity"
	if rec.LiftType != "" {
		title = strings.ReplaceAll(rec.LiftType, "_", " ")
	}
	sub := fmt.Sprintf("%s, %d reps, %s", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Stats.TotalReps, rec.SourceFilename)
	if rec.WeightKg != nil {
		sub += fmt.Sprintf(", %g kg", *rec.WeightKg)
	}
	return report.Trace{
		Title:      title,
		Subtitle:   sub,
		Velocities: rec.Velocities,
		Reps:       rec.Stats.Reps,
		Units:      u,
	}, true
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	tr, ok := trace(w, r, rec)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteHTML(&buf, tr); err != nil {
		monitoring.Logf("chart %s: %v", rec.ID, err)
		httputil.InternalServerError(w, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleVelocityPNG(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	tr, ok := trace(w, r, rec)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WritePNG(&buf, tr); err != nil {
		monitoring.Logf("plot %s: %v", rec.ID, err)
		httputil.InternalServerError(w, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
