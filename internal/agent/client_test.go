package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/config"
)

func testConfig(agentURL string) *config.Config {
	return &config.Config{
		AgentURL:                   agentURL,
		AgentTimeout:               5,
		CircuitBreakerMaxFailures:  3,
		CircuitBreakerResetTimeout: 30,
	}
}

func TestClient_Invoke(t *testing.T) {
	var gotText, gotSession string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoke" {
			t.Errorf("Expected path /invoke, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		var req invokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		gotText = req.Text
		gotSession = req.SessionID

		json.NewEncoder(w).Encode(invokeResponse{Reply: "hola, ¿en qué puedo ayudarte?"})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zerolog.Nop())

	reply, err := client.Invoke(context.Background(), "hola", "s1")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if reply != "hola, ¿en qué puedo ayudarte?" {
		t.Errorf("Unexpected reply: %q", reply)
	}
	if gotText != "hola" {
		t.Errorf("Expected text 'hola', got %q", gotText)
	}
	if gotSession != "s1" {
		t.Errorf("Expected session 's1', got %q", gotSession)
	}
}

func TestClient_InvokeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zerolog.Nop())

	if _, err := client.Invoke(context.Background(), "hola", "s1"); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestClient_InvokeCircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zerolog.Nop())

	for i := 0; i < 3; i++ {
		client.Invoke(context.Background(), "hola", "s1")
	}

	// Circuit now open: call fails fast without reaching the server
	_, err := client.Invoke(context.Background(), "hola", "s1")
	if err == nil {
		t.Fatal("Expected error with open circuit")
	}
}

func TestClient_InvokeContextCancelled(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	client := NewClient(testConfig(server.URL), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Invoke(ctx, "hola", "s1"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected path /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), zerolog.Nop())

	healthy, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if !healthy {
		t.Error("Expected healthy")
	}
}
