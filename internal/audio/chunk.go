package audio

// Chunk is a fixed-size block of mono 16-bit PCM samples. A chunk is
// immutable once produced; gain adjustments always allocate a new chunk.
type Chunk []int16

// ApplyGain returns a copy of samples scaled by gain, with every sample
// clamped to the 16-bit signed range.
func ApplyGain(samples Chunk, gain float64) Chunk {
	out := make(Chunk, len(samples))
	for i, s := range samples {
		v := int(float64(s) * gain)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// ClampGain bounds a gain setting to the supported [0.0, 2.0] range.
func ClampGain(gain float64) float64 {
	if gain < 0 {
		return 0
	}
	if gain > 2 {
		return 2
	}
	return gain
}

// Silence returns a chunk of frameSize zero samples.
func Silence(frameSize int) Chunk {
	return make(Chunk, frameSize)
}

// SplitFrames slices samples into frameSize chunks, zero-padding the
// final chunk so every chunk has the same length.
func SplitFrames(samples []int16, frameSize int) []Chunk {
	if len(samples) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (len(samples)+frameSize-1)/frameSize)
	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}

		chunk := make(Chunk, frameSize)
		copy(chunk, samples[start:end])
		chunks = append(chunks, chunk)
	}

	return chunks
}
