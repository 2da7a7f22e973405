package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/onur02004/MainRoadmap-sub000/internal/device"
)

type patchStateRequest struct {
	Mode    device.Mode   `json:"mode"`
	Params  device.Params `json:"params"`
	Execute *bool         `json:"execute"`
}

// handleGetDeviceState returns the current display state.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	st, err := s.states.GetState(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePatchDeviceState merges the desired state and, unless execute is
// false, drives the device towards it.
func (s *Server) handlePatchDeviceState(w http.ResponseWriter, r *http.Request) {
	var req patchStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	execute := true
	if req.Execute != nil {
		execute = *req.Execute
	}

	st, err := s.reconciler.Reconcile(r.Context(),
		ownerFromContext(r.Context()),
		chi.URLParam(r, "id"),
		req.Mode,
		req.Params,
		execute,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": st})
}

// handleGetStateHistory returns recent state transitions, newest first.
func (s *Server) handleGetStateHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.states.History(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries, "count": len(entries)})
}
