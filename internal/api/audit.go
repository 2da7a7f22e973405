package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/onur02004/MainRoadmap-sub000/internal/audit"
)

// AuditLister reads the executor audit trail.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// handleListAudit returns the caller's executor runs, newest first.
// Query parameters: deviceId, action, outcome, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		OwnerID:  ownerFromContext(r.Context()),
		DeviceID: q.Get("deviceId"),
		Action:   q.Get("action"),
		Outcome:  q.Get("outcome"),
	}

	for _, p := range []struct {
		name string
		dst  *int
		min  int
	}{
		{"limit", &filter.Limit, 1},
		{"offset", &filter.Offset, 0},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < p.min {
			writeBadRequest(w, "invalid "+p.name)
			return
		}
		*p.dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
