package api

import (
	"net/http"
)

type createPairingCodeRequest struct {
	DeviceID   string `json:"deviceId"`
	TTLSeconds int    `json:"ttlSeconds"`
}

type claimPairingCodeRequest struct {
	Code string `json:"code"`
}

// handleCreatePairingCode issues a pairing code for one of the caller's devices.
func (s *Server) handleCreatePairingCode(w http.ResponseWriter, r *http.Request) {
	var req createPairingCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	pc, err := s.registry.CreatePairingCode(r.Context(), ownerFromContext(r.Context()), req.DeviceID, req.TTLSeconds)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pc)
}

// handleClaimPairingCode consumes a code. No session is required.
func (s *Server) handleClaimPairingCode(w http.ResponseWriter, r *http.Request) {
	var req claimPairingCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	deviceID, err := s.registry.ClaimPairingCode(r.Context(), req.Code)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deviceId": deviceID})
}
