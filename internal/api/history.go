package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-amp/internal/history"
)

// handleListHistory returns one page of the operation log.
//
// Query parameters: session, action, failed (bool), limit, offset.
// The device filter is always this bridge's amplifier.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "operation history is not configured")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		DeviceID:  s.amp.DeviceID(),
		SessionID: q.Get("session"),
		Action:    q.Get("action"),
	}

	var err error
	if v := q.Get("failed"); v != "" {
		if filter.FailedOnly, err = strconv.ParseBool(v); err != nil {
			writeBadRequest(w, "failed must be a boolean")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
