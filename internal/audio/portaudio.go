package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice implements Device on top of the host PortAudio
// backend. Initialize must be called once before opening streams and
// Terminate once at teardown.
type PortAudioDevice struct{}

// NewPortAudioDevice initializes the PortAudio backend.
func NewPortAudioDevice() (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudioDevice{}, nil
}

// Close terminates the PortAudio backend.
func (d *PortAudioDevice) Close() error {
	return portaudio.Terminate()
}

// OpenInput opens the default capture stream.
func (d *PortAudioDevice) OpenInput(sampleRate, frameSize int) (InputStream, error) {
	buf := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: open input: %v", ErrStream, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start input: %v", ErrStream, err)
	}

	return &paInputStream{stream: stream, buf: buf}, nil
}

// OpenOutput opens the default playback stream.
func (d *PortAudioDevice) OpenOutput(sampleRate, frameSize int) (OutputStream, error) {
	buf := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), frameSize, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: open output: %v", ErrStream, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start output: %v", ErrStream, err)
	}

	return &paOutputStream{stream: stream, buf: buf}, nil
}

type paInputStream struct {
	stream *portaudio.Stream
	buf    []int16
}

func (s *paInputStream) ReadFrame(frame []int16) error {
	if err := s.stream.Read(); err != nil {
		// Input overflow drops old samples but the frame is usable.
		if err != portaudio.InputOverflowed {
			return fmt.Errorf("%w: read frame: %v", ErrStream, err)
		}
	}
	copy(frame, s.buf)
	return nil
}

func (s *paInputStream) Close() error {
	s.stream.Stop()
	return s.stream.Close()
}

type paOutputStream struct {
	stream *portaudio.Stream
	buf    []int16
}

func (s *paOutputStream) WriteFrame(frame []int16) error {
	copy(s.buf, frame)
	if err := s.stream.Write(); err != nil {
		if err != portaudio.OutputUnderflowed {
			return fmt.Errorf("%w: write frame: %v", ErrStream, err)
		}
	}
	return nil
}

func (s *paOutputStream) Close() error {
	s.stream.Stop()
	return s.stream.Close()
}
