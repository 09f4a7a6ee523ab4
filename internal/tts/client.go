package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/config"
	"github.com/voxstream/voice-relay/internal/observability"
)

// readChunkSize is how much of the synthesis body is read per channel
// send. Small enough that cancellation is observed promptly.
const readChunkSize = 4096

// synthesizeRequest is the payload sent to the synthesis service
type synthesizeRequest struct {
	Text       string `json:"text"`
	VoiceID    string `json:"voice_id,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

// Client streams synthesized speech from an HTTP TTS service
type Client struct {
	baseURL    string
	voiceID    string
	sampleRate int
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new synthesis client
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.TTSURL, "/"),
		voiceID:    cfg.TTSVoiceID,
		sampleRate: cfg.TargetSampleRate,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Synthesize requests synthesis of text and streams the audio bytes.
// The request is bound to ctx: cancelling it tears down the HTTP
// stream promptly, and cancellation closes the channel without an
// error chunk.
func (c *Client) Synthesize(ctx context.Context, text string) (<-chan Chunk, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:       text,
		VoiceID:    c.voiceID,
		SampleRate: c.sampleRate,
		Encoding:   "pcm_s16le",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled before the stream opened; not a failure
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("synthesis service returned status %d", resp.StatusCode)
	}

	out := make(chan Chunk, 8)

	go func() {
		defer resp.Body.Close()
		defer close(out)

		buf := make([]byte, readChunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case out <- Chunk{Data: data}:
				case <-ctx.Done():
					observability.RecordSynthesis("cancelled")
					return
				}
			}
			if err != nil {
				switch {
				case errors.Is(err, io.EOF):
					observability.RecordSynthesis("success")
				case ctx.Err() != nil:
					// Intentional cancellation ends the stream cleanly
					observability.RecordSynthesis("cancelled")
				default:
					c.logger.Error().Err(err).Msg("Synthesis stream failed")
					observability.RecordSynthesis("error")
					out <- Chunk{Err: fmt.Errorf("synthesis stream failed: %w", err)}
				}
				return
			}
		}
	}()

	return out, nil
}

// HealthCheck probes the synthesis service for readiness
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode == http.StatusOK, nil
}
