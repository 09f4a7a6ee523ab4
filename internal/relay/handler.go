package relay

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/agent"
	"github.com/voxstream/voice-relay/internal/config"
	"github.com/voxstream/voice-relay/internal/observability"
	"github.com/voxstream/voice-relay/internal/playback"
	"github.com/voxstream/voice-relay/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin against known clients
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// STTFactory builds a fresh STT client for one session
type STTFactory func(logger zerolog.Logger) stt.Client

// Handler serves the audio streaming endpoint
type Handler struct {
	cfg      *config.Config
	hub      *Hub
	playback *playback.Manager
	agent    agent.Invoker
	newSTT   STTFactory
	logger   zerolog.Logger
}

// NewHandler creates the streaming handler
func NewHandler(cfg *config.Config, hub *Hub, pm *playback.Manager, invoker agent.Invoker, newSTT STTFactory, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		hub:      hub,
		playback: pm,
		agent:    invoker,
		newSTT:   newSTT,
		logger:   logger,
	}
}

// HandleStream is the entry point for client audio connections.
// Query parameters: session_id (optional, generated when absent) and
// sample_rate (optional, defaults to the configured source rate).
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	srcRate := h.cfg.SourceSampleRate
	if raw := r.URL.Query().Get("sample_rate"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid sample_rate", http.StatusBadRequest)
			return
		}
		srcRate = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("session_id", sessionID).Logger()
	metrics := observability.NewConnMetrics()
	defer metrics.RecordEnd()

	sttClient := h.newSTT(logger)
	session := NewSession(h.cfg, conn, sessionID, srcRate, sttClient, h.agent, h.playback, logger)

	// Transport-start failure is fatal: report once, close, no retry
	if err := sttClient.Start(); err != nil {
		logger.Error().Err(err).Msg("STT transport failed to start")
		observability.RecordError("stt_start_error", "relay")
		session.sendError("transcription unavailable")
		return
	}

	h.hub.Register(session)
	defer h.hub.Unregister(session)

	logger.Info().Int("source_rate", srcRate).Msg("Client connected")

	runDone := make(chan error, 1)
	go func() {
		runDone <- session.Run(context.Background())
	}()

	h.readLoop(session, conn, logger)

	// Connection is gone: stop ingestion, flush the transport, and
	// wait for the pump and dispatcher to drain.
	session.CloseIngest()
	sttClient.Stop()
	// Cancel any in-flight playback for this client
	h.playback.Stop(sessionID)
	sttClient.Close()

	if err := <-runDone; err != nil {
		logger.Warn().Err(err).Msg("Session ended with error")
	}
	logger.Info().Msg("Client disconnected")
}

// readLoop consumes client messages until the connection closes.
// Binary messages are audio chunks; anything else is ignored.
func (h *Handler) readLoop(session *Session, conn *websocket.Conn, logger zerolog.Logger) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			session.HandleChunk(data)
		default:
			logger.Debug().Int("type", messageType).Msg("Ignoring non-binary message")
		}
	}
}
