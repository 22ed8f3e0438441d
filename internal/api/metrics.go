package api

import (
	"log/slog"
	"net/http"
)

// handleMetricsAll serves the fleet-wide aggregate. When the registry
// read fails — store down, or a row with a corrupt metrics payload — the
// endpoint degrades to a single-instance response built from the local
// collector instead of surfacing a hard failure to the operator.
func (s *Server) handleMetricsAll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.FleetMetrics(r.Context())
	if err != nil {
		s.logger.Warn("fleet read failed, serving degraded metrics",
			slog.String("error", err.Error()))
		respondJSON(w, http.StatusOK, s.registry.Fallback(err))
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
