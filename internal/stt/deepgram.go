package stt

import (
	"context"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/config"
	"github.com/voxstream/voice-relay/internal/observability"
)

// messageCallbackHandler implements the LiveMessageCallback interface.
// It embeds the default handler and overrides only the methods we need.
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message overrides the default handler to route transcription results
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to surface transport failures
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// DeepgramClient implements Client using Deepgram's streaming API
type DeepgramClient struct {
	config  *config.Config
	client  *listenClient.WSCallback
	results chan *Result
	errs    chan error
	logger  zerolog.Logger

	mu       sync.RWMutex
	isActive bool

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// NewDeepgramClient creates a new Deepgram streaming client for one
// session.
func NewDeepgramClient(cfg *config.Config, logger zerolog.Logger) *DeepgramClient {
	ctx, cancel := context.WithCancel(context.Background())

	return &DeepgramClient{
		config:  cfg,
		results: make(chan *Result, 100),
		errs:    make(chan error, 1),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start opens the Deepgram streaming transcription session.
// A start failure is fatal to the owning session; there is no retry.
func (d *DeepgramClient) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive {
		return fmt.Errorf("deepgram client is already active")
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       d.config.DeepgramLanguage,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       "linear16", // Little-endian 16-bit PCM
		Channels:       1,
		SampleRate:     d.config.TargetSampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleMessage,
		errorHandler: func(errorResponse *msginterfaces.ErrorResponse) error {
			d.logger.Error().
				Interface("response", errorResponse).
				Msg("Deepgram stream error")
			observability.RecordError("stt_stream_error", "deepgram")

			d.mu.Lock()
			d.isActive = false
			d.mu.Unlock()

			// Report once; the session decides to tear down. Dropped if
			// the session is already gone.
			select {
			case d.errs <- fmt.Errorf("deepgram stream error: %+v", errorResponse):
			default:
			}
			return nil
		},
	}

	client, err := listenClient.NewWSUsingCallback(
		d.ctx,
		d.config.DeepgramAPIKey,
		nil, // ClientOptions - nil uses defaults
		tOptions,
		callback,
	)
	if err != nil {
		return fmt.Errorf("failed to create Deepgram client: %w", err)
	}

	d.client = client
	d.isActive = true

	d.logger.Info().
		Str("model", d.config.DeepgramModel).
		Str("language", d.config.DeepgramLanguage).
		Int("sample_rate", d.config.TargetSampleRate).
		Msg("Deepgram streaming client started")
	return nil
}

// handleMessage processes messages from Deepgram
func (d *DeepgramClient) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Metadata":
		d.logger.Debug().Msg("Deepgram metadata received")

	case "SpeechStarted", "UtteranceEnd":
		d.logger.Debug().Str("type", msg.Type).Msg("Deepgram speech event")

	case "Results", "Message":
		// Only the first alternative is used
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		result := &Result{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		}

		select {
		case d.results <- result:
		default:
			d.logger.Warn().Msg("Result channel full, dropping transcription")
		}

	default:
		d.logger.Debug().Str("type", msg.Type).Msg("Deepgram: unknown message type")
	}
}

// SendAudio sends one audio frame to Deepgram
func (d *DeepgramClient) SendAudio(frame []byte) error {
	d.mu.RLock()
	active := d.isActive
	client := d.client
	d.mu.RUnlock()

	if !active || client == nil {
		return fmt.Errorf("deepgram client is not active")
	}

	if _, err := client.Write(frame); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return nil
}

// Results returns the channel of recognition results
func (d *DeepgramClient) Results() <-chan *Result {
	return d.results
}

// Errors returns the channel of fatal transport errors
func (d *DeepgramClient) Errors() <-chan error {
	return d.errs
}

// Stop signals end of audio to Deepgram
func (d *DeepgramClient) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isActive {
		return nil
	}

	d.client.Finish()
	d.isActive = false
	d.logger.Debug().Msg("Deepgram streaming client stopped")
	return nil
}

// Close tears down the client and closes the result channel
func (d *DeepgramClient) Close() error {
	d.cancel()

	if err := d.Stop(); err != nil {
		return err
	}

	d.closeOnce.Do(func() {
		// Allow in-flight callbacks to drain before the channel closes
		go func() {
			time.Sleep(100 * time.Millisecond)
			close(d.results)
		}()
	})

	return nil
}

// IsActive returns whether the client is currently active
func (d *DeepgramClient) IsActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isActive
}
