package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListInstances returns the raw fleet snapshot without totals.
// Unlike /metrics/all this does not degrade: an unreachable store is a
// real error for inspection tooling.
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.registry.GetAllInstancesWithMetrics(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"instances":      instances,
		"instance_count": len(instances),
	})
}

// handleGetInstance returns one alive instance by id. Stale instances
// are indistinguishable from unknown ones by design: liveness is the
// staleness filter, not row existence.
func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	instances, err := s.registry.GetAllInstancesWithMetrics(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	for _, inst := range instances {
		if inst.InstanceID == instanceID {
			respondJSON(w, http.StatusOK, inst)
			return
		}
	}
	respondError(w, http.StatusNotFound, "instance not found or stale")
}

func (s *Server) handleSetDrain(w http.ResponseWriter, r *http.Request) {
	s.setDrain(w, r, true)
}

func (s *Server) handleClearDrain(w http.ResponseWriter, r *http.Request) {
	s.setDrain(w, r, false)
}

func (s *Server) setDrain(w http.ResponseWriter, r *http.Request, drain bool) {
	instanceID := chi.URLParam(r, "instanceID")

	if err := s.registry.SetDrainRequested(r.Context(), instanceID, drain); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"instance_id":     instanceID,
		"drain_requested": drain,
	})
}
