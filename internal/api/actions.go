package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type deviceActionRequest struct {
	Params map[string]any `json:"params"`
}

type deviceActionResponse struct {
	OK     bool            `json:"ok"`
	Stdout string          `json:"stdout"`
	Result json.RawMessage `json:"result,omitempty"`
}

// handleDeviceAction runs a declared action on one of the caller's devices.
// The response is written after the executor process has exited.
func (s *Server) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	var req deviceActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	out, err := s.dispatcher.Dispatch(r.Context(),
		ownerFromContext(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "action"),
		req.Params,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deviceActionResponse{
		OK:     true,
		Stdout: out.Stdout,
		Result: out.Result,
	})
}
