package audio

import "testing"

func loudFrame(n int) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 4000
		} else {
			frame[i] = -4000
		}
	}
	return frame
}

func TestVADDetector_SpeechStart(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500.0, SilenceFrames: 3})

	speaking, started, ended := vad.ProcessFrame(loudFrame(160))
	if !speaking || !started || ended {
		t.Errorf("Expected speech start on loud frame: speaking=%v started=%v ended=%v", speaking, started, ended)
	}

	// Second loud frame: still speaking, no new start event
	speaking, started, _ = vad.ProcessFrame(loudFrame(160))
	if !speaking || started {
		t.Errorf("Expected ongoing speech without a second start event: speaking=%v started=%v", speaking, started)
	}
}

func TestVADDetector_SpeechEndAfterSilence(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500.0, SilenceFrames: 3})

	vad.ProcessFrame(loudFrame(160))

	silence := make([]int16, 160)
	for i := 0; i < 2; i++ {
		speaking, _, ended := vad.ProcessFrame(silence)
		if !speaking || ended {
			t.Fatalf("Speech must persist through %d silent frames", i+1)
		}
	}

	speaking, _, ended := vad.ProcessFrame(silence)
	if speaking || !ended {
		t.Errorf("Expected speech end after 3 silent frames: speaking=%v ended=%v", speaking, ended)
	}
}

func TestVADDetector_SilenceOnlyNeverStarts(t *testing.T) {
	vad := NewVADDetector(nil)

	silence := make([]int16, 160)
	for i := 0; i < 50; i++ {
		speaking, started, ended := vad.ProcessFrame(silence)
		if speaking || started || ended {
			t.Fatal("Silence must never produce speech events")
		}
	}
}

func TestVADDetector_Reset(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500.0, SilenceFrames: 3})

	vad.ProcessFrame(loudFrame(160))
	if !vad.IsSpeaking() {
		t.Fatal("Expected speaking state")
	}

	vad.Reset()
	if vad.IsSpeaking() {
		t.Error("Expected idle state after reset")
	}
}
