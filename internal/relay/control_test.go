package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/playback"
	"github.com/voxstream/voice-relay/internal/stt"
	"github.com/voxstream/voice-relay/internal/tts"
)

// fakeSynth streams a fixed payload, or blocks until cancelled
type fakeSynth struct {
	payload   []byte
	blocking  bool
	streaming chan struct{} // closed once the stream is being consumed
}

func newFakeSynth(payload []byte, blocking bool) *fakeSynth {
	return &fakeSynth{
		payload:   payload,
		blocking:  blocking,
		streaming: make(chan struct{}),
	}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (<-chan tts.Chunk, error) {
	out := make(chan tts.Chunk, 1)
	go func() {
		defer close(out)
		close(f.streaming)

		if len(f.payload) > 0 {
			select {
			case out <- tts.Chunk{Data: f.payload}:
			case <-ctx.Done():
				return
			}
		}
		if f.blocking {
			// Emit nothing further until cancellation
			<-ctx.Done()
		}
	}()
	return out, nil
}

func registeredSession(t *testing.T, hub *Hub, clientID string) (*Session, *fakeConn) {
	t.Helper()
	cfg := testSessionConfig()
	conn := newFakeConn()
	pm := playback.NewManager(zerolog.Nop())
	var sttc stt.Client = newFakeSTT()
	s := NewSession(cfg, conn, clientID, 16000, sttc, newFakeAgent("ok"), pm, zerolog.Nop())
	hub.Register(s)
	return s, conn
}

func postJSON(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestControl_SayValidation(t *testing.T) {
	hub := NewHub()
	manager := playback.NewManager(zerolog.Nop())
	control := NewControl(hub, manager, newFakeSynth(nil, false), zerolog.Nop())

	cases := []struct {
		name string
		body string
		code int
	}{
		{"missing both", `{}`, http.StatusBadRequest},
		{"missing text", `{"client_id":"c1"}`, http.StatusBadRequest},
		{"missing client", `{"text":"hola"}`, http.StatusBadRequest},
		{"blank text", `{"client_id":"c1","text":"   "}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
		{"unknown client", `{"client_id":"ghost","text":"hola"}`, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(control.HandleSay, tc.body)
			if rec.Code != tc.code {
				t.Errorf("Expected status %d, got %d", tc.code, rec.Code)
			}
		})
	}

	// Validation failures must leave no playback session behind
	if manager.Active("c1") || manager.Active("ghost") {
		t.Error("Rejected requests must have no side effects")
	}
}

func TestControl_SayStreamsAudioToClient(t *testing.T) {
	hub := NewHub()
	manager := playback.NewManager(zerolog.Nop())
	_, conn := registeredSession(t, hub, "c1")

	payload := []byte{1, 2, 3, 4}
	control := NewControl(hub, manager, newFakeSynth(payload, false), zerolog.Nop())

	rec := postJSON(control.HandleSay, `{"client_id":"c1","text":"hola"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp controlResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if resp.Status != "completed" {
		t.Errorf("Expected status completed, got %s", resp.Status)
	}

	var gotAudio bool
	for _, msg := range conn.messages() {
		if msg.messageType == 2 && len(msg.data) == len(payload) { // BinaryMessage
			gotAudio = true
		}
	}
	if !gotAudio {
		t.Error("Synthesized audio never reached the client connection")
	}

	if manager.Active("c1") {
		t.Error("Completed playback must unregister its session")
	}
}

func TestControl_BargeInCancelsFirstRequest(t *testing.T) {
	hub := NewHub()
	manager := playback.NewManager(zerolog.Nop())
	registeredSession(t, hub, "c1")

	first := newFakeSynth([]byte{9, 9}, true) // blocks until cancelled
	second := newFakeSynth([]byte{1}, false)

	controlFirst := NewControl(hub, manager, first, zerolog.Nop())
	controlSecond := NewControl(hub, manager, second, zerolog.Nop())

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- postJSON(controlFirst.HandleSay, `{"client_id":"c1","text":"uno"}`)
	}()

	// Wait until the first stream is actually live
	select {
	case <-first.streaming:
	case <-time.After(2 * time.Second):
		t.Fatal("First synthesis never started")
	}

	rec2 := postJSON(controlSecond.HandleSay, `{"client_id":"c1","text":"dos"}`)
	if rec2.Code != http.StatusOK {
		t.Fatalf("Second request failed: %d", rec2.Code)
	}

	select {
	case rec1 := <-firstDone:
		var resp controlResponse
		if err := json.Unmarshal(rec1.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Bad first response: %v", err)
		}
		if resp.Status != "cancelled" {
			t.Errorf("Superseded playback must report cancelled, got %s", resp.Status)
		}
		if rec1.Code != http.StatusOK {
			t.Errorf("Cancellation must not surface as an error status, got %d", rec1.Code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("First request never unblocked after barge-in")
	}
}

func TestControl_StreamErrorReported(t *testing.T) {
	hub := NewHub()
	manager := playback.NewManager(zerolog.Nop())
	registeredSession(t, hub, "c1")

	synth := &errSynth{}
	control := NewControl(hub, manager, synth, zerolog.Nop())

	rec := postJSON(control.HandleSay, `{"client_id":"c1","text":"hola"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 for synthesis stream failure, got %d", rec.Code)
	}
	if manager.Active("c1") {
		t.Error("Failed playback must unregister its session")
	}
}

// errSynth fails mid-stream
type errSynth struct{}

func (e *errSynth) Synthesize(ctx context.Context, text string) (<-chan tts.Chunk, error) {
	out := make(chan tts.Chunk, 2)
	out <- tts.Chunk{Data: []byte{1}}
	out <- tts.Chunk{Err: context.DeadlineExceeded}
	close(out)
	return out, nil
}

func TestControl_Stop(t *testing.T) {
	hub := NewHub()
	manager := playback.NewManager(zerolog.Nop())
	control := NewControl(hub, manager, newFakeSynth(nil, false), zerolog.Nop())

	// Missing client id
	rec := postJSON(control.HandleStop, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing client_id, got %d", rec.Code)
	}

	// Idle client
	rec = postJSON(control.HandleStop, `{"client_id":"c1"}`)
	var resp controlResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Status != "idle" {
		t.Errorf("Expected idle status, got %d %s", rec.Code, resp.Status)
	}

	// Active client
	handle := manager.Begin("c1")
	rec = postJSON(control.HandleStop, `{"client_id":"c1"}`)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Status != "stopped" {
		t.Errorf("Expected stopped status, got %d %s", rec.Code, resp.Status)
	}
	if !handle.Cancelled() {
		t.Error("Stop must cancel the active handle")
	}
	if manager.Active("c1") {
		t.Error("Stop must leave the client idle")
	}
}
