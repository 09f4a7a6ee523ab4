package tts

import "context"

// Chunk is one slice of a synthesis byte stream. Err is set on the
// terminal chunk when the stream fails for a reason other than
// cancellation; a cancelled or completed stream simply closes the
// channel.
type Chunk struct {
	Data []byte
	Err  error
}

// Synthesizer is the speech-synthesis boundary. The returned channel
// is closed when the stream completes, fails, or the context is
// cancelled; cancellation is observed cooperatively and never
// propagated as an error.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan Chunk, error)
}
