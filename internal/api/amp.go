package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-amp/internal/bridges/amp"
	"github.com/nerrad567/gray-logic-amp/internal/history"
)

// commandRequest is the body of POST /amp/commands.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// commandResponse is returned after a successful command.
type commandResponse struct {
	CommandID string           `json:"command_id"`
	State     amp.StateMessage `json:"state"`
}

// handleGetAmp returns the cached status without bus I/O.
func (s *Server) handleGetAmp(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.amp.Diagnostics())
}

// handleAmpCommand runs one control command through the bridge.
// The call blocks until the amplifier has finished initialising.
func (s *Server) handleAmpCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	cmd := amp.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		DeviceID:   s.amp.DeviceID(),
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     history.SourceAPI,
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		cmd.UserID = claims.Subject
	}

	state, err := s.amp.Execute(cmd, history.SourceAPI)
	if err != nil {
		s.logger.Warn("API command failed",
			"command_id", cmd.ID,
			"command", cmd.Command,
			"error", err)
		writeAmpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandResponse{
		CommandID: cmd.ID,
		State:     state,
	})
}

// handleAmpReadback reads volume and gain back from the hardware.
func (s *Server) handleAmpReadback(w http.ResponseWriter, _ *http.Request) {
	data, err := s.amp.ReadState()
	if err != nil {
		writeAmpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
