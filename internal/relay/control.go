package relay

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/observability"
	"github.com/voxstream/voice-relay/internal/playback"
	"github.com/voxstream/voice-relay/internal/tts"
)

// Control is the HTTP surface for starting and stopping speech
// playback toward a connected client.
type Control struct {
	hub     *Hub
	manager *playback.Manager
	synth   tts.Synthesizer
	logger  zerolog.Logger
}

// NewControl creates the playback control surface
func NewControl(hub *Hub, manager *playback.Manager, synth tts.Synthesizer, logger zerolog.Logger) *Control {
	return &Control{
		hub:     hub,
		manager: manager,
		synth:   synth,
		logger:  logger,
	}
}

// sayRequest asks for speech synthesis toward one client
type sayRequest struct {
	ClientID string `json:"client_id"`
	Text     string `json:"text"`
}

// stopRequest cancels playback for one client
type stopRequest struct {
	ClientID string `json:"client_id"`
}

type controlResponse struct {
	Status string `json:"status"`
}

// HandleSay begins synthesis for a client. Any playback already active
// for that client is cancelled first (barge-in). The request blocks
// until the stream completes, fails, or is cancelled by a newer
// request.
func (c *Control) HandleSay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.Text = strings.TrimSpace(req.Text)
	if req.ClientID == "" || req.Text == "" {
		http.Error(w, "client_id and text are required", http.StatusBadRequest)
		return
	}

	session := c.hub.Get(req.ClientID)
	if session == nil {
		http.Error(w, "unknown client", http.StatusNotFound)
		return
	}

	handle := c.manager.Begin(req.ClientID)

	chunks, err := c.synth.Synthesize(handle.Context(), req.Text)
	if err != nil {
		c.manager.End(req.ClientID, handle)
		if handle.Cancelled() {
			// Superseded before the stream opened; not an error
			writeControlJSON(w, http.StatusOK, controlResponse{Status: "cancelled"})
			return
		}
		c.logger.Error().Err(err).Str("client_id", req.ClientID).Msg("Synthesis failed to start")
		observability.RecordError("synthesis_start_error", "control")
		http.Error(w, "synthesis failed", http.StatusBadGateway)
		return
	}

	var streamErr error
	for chunk := range chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		if err := session.SendAudio(chunk.Data); err != nil {
			streamErr = err
			break
		}
	}

	c.manager.End(req.ClientID, handle)

	// Cancellation takes precedence over any racing stream error
	if handle.Cancelled() {
		writeControlJSON(w, http.StatusOK, controlResponse{Status: "cancelled"})
		return
	}
	if streamErr != nil {
		c.logger.Error().Err(streamErr).Str("client_id", req.ClientID).Msg("Playback stream failed")
		observability.RecordError("synthesis_stream_error", "control")
		http.Error(w, "synthesis failed", http.StatusBadGateway)
		return
	}

	writeControlJSON(w, http.StatusOK, controlResponse{Status: "completed"})
}

// HandleStop cancels active playback for a client without starting a
// new stream.
func (c *Control) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}

	if c.manager.Stop(req.ClientID) {
		writeControlJSON(w, http.StatusOK, controlResponse{Status: "stopped"})
		return
	}
	writeControlJSON(w, http.StatusOK, controlResponse{Status: "idle"})
}

func writeControlJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
