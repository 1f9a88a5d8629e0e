package api

import (
	"context"
	"net/http"
	"time"

	"github.com/banshee-data/barvelocity/internal/httputil"
	"github.com/banshee-data/barvelocity/internal/version"
)

const readyTimeout = 2 * time.Second

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version"`
}

// handleHealth reports liveness. The server is healthy whenever it answers;
// model_loaded reflects the detector's readiness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	httputil.WriteJSONOK(w, healthResponse{
		Status:      "healthy",
		ModelLoaded: s.detector.Ready(ctx) == nil,
		Version:     version.Version,
	})
}
