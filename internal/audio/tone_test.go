package audio

import (
	"testing"
	"time"
)

func TestToneDuration(t *testing.T) {
	chunks := Tone(800, 2*time.Second, 44100, 512)

	// 88200 samples split into 512-sample frames, last frame padded.
	expected := (2*44100 + 511) / 512
	if len(chunks) != expected {
		t.Errorf("Expected %d chunks, got %d", expected, len(chunks))
	}

	for i, chunk := range chunks {
		if len(chunk) != 512 {
			t.Errorf("Chunk %d: expected 512 samples, got %d", i, len(chunk))
		}
	}
}

func TestToneAmplitude(t *testing.T) {
	chunks := Tone(800, 100*time.Millisecond, 44100, 512)

	var peak int16
	for _, chunk := range chunks {
		for _, s := range chunk {
			if s > peak {
				peak = s
			}
			if -s > peak {
				peak = -s
			}
		}
	}

	if peak > toneAmplitude {
		t.Errorf("Peak %d exceeds amplitude %d", peak, toneAmplitude)
	}
	// A 100ms 800Hz tone contains full cycles, so the peak should come
	// close to the configured amplitude.
	if peak < toneAmplitude/2 {
		t.Errorf("Peak %d suspiciously low for amplitude %d", peak, toneAmplitude)
	}
}

func TestToneZeroDuration(t *testing.T) {
	if chunks := Tone(800, 0, 44100, 512); chunks != nil {
		t.Errorf("Expected nil for zero duration, got %d chunks", len(chunks))
	}
}
