package relay

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/voxstream/voice-relay/internal/agent"
	"github.com/voxstream/voice-relay/internal/audio"
	"github.com/voxstream/voice-relay/internal/config"
	"github.com/voxstream/voice-relay/internal/observability"
	"github.com/voxstream/voice-relay/internal/playback"
	"github.com/voxstream/voice-relay/internal/stt"
)

// wsConn is the subset of *websocket.Conn the session uses. Narrowed
// so tests can drive a session without a network connection.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session owns one client's audio lifecycle: it receives raw chunks,
// resamples them, paces them into fixed-size frames for the STT
// transport, dispatches transcript results, and carries synthesized
// audio back out. Exactly one Session exists per connection.
type Session struct {
	id      string
	srcRate int

	conn    wsConn
	writeMu sync.Mutex

	cfg      *config.Config
	frames   *audio.FrameBuffer
	vad      *audio.VADDetector
	sttc     stt.Client
	agent    agent.Invoker
	playback *playback.Manager
	logger   zerolog.Logger

	closeOnce sync.Once
}

// NewSession creates a session for one established connection.
func NewSession(
	cfg *config.Config,
	conn wsConn,
	sessionID string,
	srcRate int,
	sttc stt.Client,
	invoker agent.Invoker,
	pm *playback.Manager,
	logger zerolog.Logger,
) *Session {
	s := &Session{
		id:       sessionID,
		srcRate:  srcRate,
		conn:     conn,
		cfg:      cfg,
		frames:   audio.NewFrameBuffer(cfg.FrameBytes()),
		sttc:     sttc,
		agent:    invoker,
		playback: pm,
		logger:   logger,
	}
	if cfg.VADEnabled {
		s.vad = audio.NewVADDetector(&audio.VADConfig{
			EnergyThreshold: cfg.VADEnergyThreshold,
			SilenceFrames:   cfg.VADSilenceFrames,
		})
	}
	return s
}

// ID returns the session identifier used to correlate conversation
// turns and playback requests.
func (s *Session) ID() string {
	return s.id
}

// Run starts the frame pump and the transcript dispatcher and blocks
// until both finish. It returns the first fatal error, if any.
func (s *Session) Run(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(s.pumpFrames)
	g.Go(s.dispatchResults)
	return g.Wait()
}

// HandleChunk ingests one raw audio chunk from the client: an odd
// trailing byte is dropped, the samples are resampled to the target
// rate, and the result is appended to the frame buffer.
func (s *Session) HandleChunk(chunk []byte) {
	observability.RecordAudioBytes("in", len(chunk))

	chunk = audio.TrimOddByte(chunk)
	if len(chunk) == 0 {
		return
	}

	samples := audio.DecodePCM16(chunk)
	resampled := audio.Resample(samples, s.srcRate, s.cfg.TargetSampleRate)
	s.frames.Push(audio.EncodePCM16(resampled))
}

// CloseIngest marks that no more audio will arrive. The frame pump
// drains whole frames and then terminates.
func (s *Session) CloseIngest() {
	s.closeOnce.Do(func() {
		s.frames.Stop()
	})
}

// pumpFrames pulls fixed-size frames from the buffer and feeds the STT
// transport, in arrival order. A send failure is fatal to the
// connection: the client is notified and the socket closed.
func (s *Session) pumpFrames() error {
	for {
		frame, ok := s.frames.NextFrame()
		if !ok {
			return nil
		}
		observability.RecordFrame()

		if s.vad != nil {
			_, started, _ := s.vad.ProcessFrame(audio.DecodePCM16(frame))
			if started && s.playback.Stop(s.id) {
				s.logger.Info().Msg("User speech detected, playback interrupted")
			}
		}

		if err := s.sttc.SendAudio(frame); err != nil {
			s.logger.Error().Err(err).Msg("Failed to send frame to STT transport")
			observability.RecordError("stt_send_error", "relay")
			s.sendError("transcription transport failed")
			s.conn.Close()
			return err
		}
	}
}

// dispatchResults is the sequential transcript consumer. Every result
// is forwarded verbatim; a final result with non-empty trimmed text
// triggers exactly one agent call, dispatched asynchronously so the
// next utterance's partials are never blocked behind the reply.
func (s *Session) dispatchResults() error {
	results := s.sttc.Results()
	errs := s.sttc.Errors()

	for {
		select {
		case result, ok := <-results:
			if !ok {
				return nil
			}
			s.forwardTranscript(result)

			if result.IsFinal {
				text := strings.TrimSpace(result.Text)
				if text != "" {
					go s.invokeAgent(text)
				}
			}

		case err := <-errs:
			s.logger.Error().Err(err).Msg("STT transport stream failure")
			s.sendError("transcription stream failed")
			s.conn.Close()
			return err
		}
	}
}

// forwardTranscript sends one result to the client verbatim
func (s *Session) forwardTranscript(result *stt.Result) {
	observability.RecordTranscript(!result.IsFinal)

	if err := s.writeJSON(transcriptMessage{
		Transcript: result.Text,
		IsPartial:  !result.IsFinal,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to forward transcript")
	}
}

// invokeAgent performs the agent call for one finalized utterance and
// relays the reply. Agent failures are local to the utterance: logged
// and counted, the session continues.
func (s *Session) invokeAgent(text string) {
	start := time.Now()

	reply, err := s.agent.Invoke(context.Background(), text, s.id)
	if err != nil {
		observability.RecordAgentCall(start, false)
		observability.RecordError("agent_invoke_error", "relay")
		s.logger.Error().Err(err).Str("text", text).Msg("Agent invocation failed")
		return
	}
	observability.RecordAgentCall(start, true)

	if err := s.writeJSON(replyMessage{Reply: reply}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to forward agent reply")
	}
}

// SendAudio streams one chunk of synthesized speech to the client as a
// binary message.
func (s *Session) SendAudio(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	observability.RecordAudioBytes("out", len(data))
	return nil
}

// sendError notifies the client of a fatal condition. Best effort: the
// connection is about to close anyway.
func (s *Session) sendError(msg string) {
	if err := s.writeJSON(errorMessage{Error: msg}); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to send error message")
	}
}

func (s *Session) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
