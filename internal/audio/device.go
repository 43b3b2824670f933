package audio

import "errors"

var (
	// ErrStream indicates a failure opening or using an audio stream.
	ErrStream = errors.New("audio stream error")

	// ErrPlaybackFailed indicates a playback run produced no output.
	ErrPlaybackFailed = errors.New("playback failed")
)

// Device is the capability over the host's audio input/output streams.
// The production implementation is backed by PortAudio; tests inject
// fakes implementing the same contract.
type Device interface {
	// OpenInput opens the capture stream at the given sample rate
	// (mono, 16-bit signed PCM) reading frameSize samples per frame.
	OpenInput(sampleRate, frameSize int) (InputStream, error)

	// OpenOutput opens the playback stream with the same parameters.
	OpenOutput(sampleRate, frameSize int) (OutputStream, error)
}

// InputStream reads one frame of samples at a time. Reads block for at
// most one frame duration; overflow is signalled but non-fatal.
type InputStream interface {
	ReadFrame(frame []int16) error
	Close() error
}

// OutputStream writes one frame of samples at a time.
type OutputStream interface {
	WriteFrame(frame []int16) error
	Close() error
}
