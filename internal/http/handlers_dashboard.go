package http

import (
	"net/http"
	"strings"
)

// handleDashboard returns the dashboard summary. An explicit ?now= renders
// the summary at that instant and skips the cache.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("now")); raw != "" {
		at, err := parseInstant(raw, s.location)
		if err != nil {
			writeError(w, r, err)
			return
		}
		summary, err := s.dashboard.Compute(r.Context(), userID, at)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := s.dashboard.Summary(r.Context(), userID, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
