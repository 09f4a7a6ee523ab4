package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/config"
	"github.com/voxstream/voice-relay/internal/resilience"
)

// Invoker is the conversational-agent boundary: one suspending call
// per finalized utterance.
type Invoker interface {
	// Invoke sends finalized text scoped to a session and returns the
	// agent's reply text.
	Invoke(ctx context.Context, text, sessionID string) (string, error)
}

// invokeRequest is the payload sent to the agent service
type invokeRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// invokeResponse is the payload returned by the agent service
type invokeResponse struct {
	Reply string `json:"reply"`
}

// Client calls the conversational agent over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a new agent client
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.AgentURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.AgentTimeout) * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(
			"agent",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: logger,
	}
}

// Invoke sends finalized text to the agent and returns the reply.
// Failures are reported to the caller as they occur; there is no retry.
func (c *Client) Invoke(ctx context.Context, text, sessionID string) (string, error) {
	var reply string

	err := c.breaker.Call(func() error {
		body, err := json.Marshal(invokeRequest{Text: text, SessionID: sessionID})
		if err != nil {
			return fmt.Errorf("failed to marshal agent request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create agent request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("agent request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("agent returned status %d", resp.StatusCode)
		}

		var out invokeResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode agent response: %w", err)
		}

		reply = out.Reply
		return nil
	})
	if err != nil {
		return "", err
	}

	return reply, nil
}

// HealthCheck probes the agent service for readiness
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
