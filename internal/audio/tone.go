package audio

import (
	"math"
	"time"
)

const toneAmplitude = 16384

// Tone synthesizes a sine tone of the given frequency and duration,
// chunked into frameSize frames. Used as the announcement fallback when
// the station identification clip cannot be transcoded.
func Tone(frequency float64, duration time.Duration, sampleRate, frameSize int) []Chunk {
	total := int(duration.Seconds() * float64(sampleRate))
	if total <= 0 {
		return nil
	}

	samples := make([]int16, total)
	for i := range samples {
		samples[i] = int16(toneAmplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate)))
	}

	return SplitFrames(samples, frameSize)
}
