package audio

import "sync"

// FrameBuffer bridges push-based audio arrival with pull-based frame
// consumption. Producers append bytes with Push; a single consumer
// blocks in NextFrame until a full frame has accumulated. After Stop,
// NextFrame drains whole frames and then reports end of stream; a
// trailing remainder shorter than one frame is discarded.
//
// One FrameBuffer serves one session and is not reusable after Stop.
// At most one goroutine may block in NextFrame at a time.
type FrameBuffer struct {
	mu         sync.Mutex
	cond       *sync.Cond
	buf        []byte
	frameBytes int
	stopped    bool
}

// NewFrameBuffer creates a buffer emitting frames of frameBytes bytes.
func NewFrameBuffer(frameBytes int) *FrameBuffer {
	if frameBytes <= 0 {
		panic("audio: frame size must be positive")
	}
	fb := &FrameBuffer{frameBytes: frameBytes}
	fb.cond = sync.NewCond(&fb.mu)
	return fb
}

// Push appends data to the buffer. It never blocks and never rejects.
// Pushes after Stop are ignored.
func (fb *FrameBuffer) Push(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.stopped || len(data) == 0 {
		return
	}

	fb.buf = append(fb.buf, data...)
	// The waiter re-checks state under the lock, so a signal can never
	// be lost while data is pending.
	fb.cond.Signal()
}

// Stop marks that no more pushes will occur and wakes the consumer.
// Idempotent.
func (fb *FrameBuffer) Stop() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.stopped {
		return
	}
	fb.stopped = true
	fb.cond.Signal()
}

// NextFrame blocks until a full frame is available and returns it with
// ok=true. Once the buffer is stopped and fewer than frameBytes remain,
// it returns (nil, false); the remainder is never emitted.
func (fb *FrameBuffer) NextFrame() ([]byte, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for len(fb.buf) < fb.frameBytes && !fb.stopped {
		fb.cond.Wait()
	}

	if len(fb.buf) < fb.frameBytes {
		// Stopped with a sub-frame remainder
		return nil, false
	}

	frame := make([]byte, fb.frameBytes)
	copy(frame, fb.buf[:fb.frameBytes])
	fb.buf = fb.buf[fb.frameBytes:]
	return frame, true
}

// Buffered returns the number of bytes currently held.
func (fb *FrameBuffer) Buffered() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.buf)
}

// FrameBytes returns the configured frame size.
func (fb *FrameBuffer) FrameBytes() int {
	return fb.frameBytes
}
