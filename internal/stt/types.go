package stt

// Result represents one incremental recognition result
type Result struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates a settled result (true) vs an interim one (false)
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64
}

// Client is the interface for streaming speech-to-text transports.
// A client serves exactly one session: Start once, stream audio frames
// in with SendAudio, consume Results until closed, then Close.
type Client interface {
	// Start opens the streaming transcription session
	Start() error

	// SendAudio sends one fixed-size audio frame to the transport
	SendAudio(frame []byte) error

	// Results returns the channel of incremental recognition results.
	// The channel is closed when the client is closed.
	Results() <-chan *Result

	// Errors returns the channel reporting mid-stream transport
	// failures. A failure is fatal to the session; the client does not
	// reconnect.
	Errors() <-chan error

	// Stop signals end of audio to the transport
	Stop() error

	// Close tears down the client and releases resources
	Close() error
}
