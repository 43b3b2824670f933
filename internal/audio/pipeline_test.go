package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDevice scripts input frames and records everything written to
// its output streams.
type fakeDevice struct {
	mu            sync.Mutex
	inputFrame    int16
	failInput     bool
	inputFailures int // fail this many opens, then succeed
	failOutput    bool
	failWrite     bool
	written       []Chunk
}

func (d *fakeDevice) OpenInput(sampleRate, frameSize int) (InputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failInput {
		return nil, errors.New("no capture device")
	}
	if d.inputFailures > 0 {
		d.inputFailures--
		return nil, errors.New("no capture device")
	}
	return &fakeInput{device: d, frameSize: frameSize}, nil
}

func (d *fakeDevice) OpenOutput(sampleRate, frameSize int) (OutputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOutput {
		return nil, errors.New("no playback device")
	}
	return &fakeOutput{device: d}, nil
}

func (d *fakeDevice) Close() error { return nil }

func (d *fakeDevice) writtenChunks() []Chunk {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Chunk, len(d.written))
	copy(out, d.written)
	return out
}

type fakeInput struct {
	device    *fakeDevice
	frameSize int
}

func (s *fakeInput) ReadFrame(frame []int16) error {
	s.device.mu.Lock()
	s.device.inputFrame++
	value := s.device.inputFrame
	s.device.mu.Unlock()

	for i := range frame {
		frame[i] = value
	}
	// Pace reads so tests do not spin flat out.
	time.Sleep(time.Millisecond)
	return nil
}

func (s *fakeInput) Close() error { return nil }

type fakeOutput struct {
	device *fakeDevice
}

func (s *fakeOutput) WriteFrame(frame []int16) error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if s.device.failWrite {
		return errors.New("device gone")
	}
	chunk := make(Chunk, len(frame))
	copy(chunk, frame)
	s.device.written = append(s.device.written, chunk)
	return nil
}

func (s *fakeOutput) Close() error { return nil }

func newTestPipeline(device Device) *Pipeline {
	return NewPipeline(device, PipelineConfig{
		SampleRate:    44100,
		FrameSize:     4,
		PrerollFrames: 5,
		InputGain:     1.0,
		OutputGain:    1.2,
	}, testLogger())
}

func TestPlayPadsWithSilence(t *testing.T) {
	device := &fakeDevice{}
	p := newTestPipeline(device)

	chunks := []Chunk{{100, 100, 100, 100}, {-100, -100, -100, -100}}
	if err := p.Play(context.Background(), chunks, 1.0); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	written := device.writtenChunks()
	if len(written) != 4 {
		t.Fatalf("Expected 4 frames (pad + 2 chunks + pad), got %d", len(written))
	}

	for _, s := range written[0] {
		if s != 0 {
			t.Error("Leading pad is not silence")
			break
		}
	}
	for _, s := range written[3] {
		if s != 0 {
			t.Error("Trailing pad is not silence")
			break
		}
	}
	if written[1][0] != 100 || written[2][0] != -100 {
		t.Errorf("Payload frames out of order: %d, %d", written[1][0], written[2][0])
	}
}

func TestPlayAppliesGain(t *testing.T) {
	device := &fakeDevice{}
	p := newTestPipeline(device)

	chunks := []Chunk{{1000, 1000, 1000, 1000}}
	if err := p.Play(context.Background(), chunks, 2.0); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	written := device.writtenChunks()
	if written[1][0] != 2000 {
		t.Errorf("Expected gained sample 2000, got %d", written[1][0])
	}
}

func TestPlayEmptySession(t *testing.T) {
	device := &fakeDevice{}
	p := newTestPipeline(device)

	if err := p.Play(context.Background(), nil, 1.0); err != nil {
		t.Fatalf("Play of empty chunk list failed: %v", err)
	}

	// Only the two silence pads are written.
	if got := len(device.writtenChunks()); got != 2 {
		t.Errorf("Expected 2 pad frames, got %d", got)
	}
}

func TestPlayOpenFailure(t *testing.T) {
	device := &fakeDevice{failOutput: true}
	p := newTestPipeline(device)

	err := p.Play(context.Background(), []Chunk{{1, 2, 3, 4}}, 1.0)
	if !errors.Is(err, ErrPlaybackFailed) {
		t.Errorf("Expected ErrPlaybackFailed, got %v", err)
	}
}

func TestPlayWriteFailure(t *testing.T) {
	device := &fakeDevice{failWrite: true}
	p := newTestPipeline(device)

	err := p.Play(context.Background(), []Chunk{{1, 2, 3, 4}}, 1.0)
	if !errors.Is(err, ErrPlaybackFailed) {
		t.Errorf("Expected ErrPlaybackFailed, got %v", err)
	}
}

func TestCaptureFeedsPreRoll(t *testing.T) {
	device := &fakeDevice{}
	p := newTestPipeline(device)

	ctx, cancel := context.WithCancel(context.Background())
	p.StartCapture(ctx)

	deadline := time.After(2 * time.Second)
	for p.PreRollLen() < 5 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("Pre-roll never filled, have %d chunks", p.PreRollLen())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	p.Wait()

	if p.PreRollLen() != 5 {
		t.Errorf("Expected pre-roll capped at 5 chunks, got %d", p.PreRollLen())
	}
}

func TestCaptureSessionThroughPipeline(t *testing.T) {
	device := &fakeDevice{}
	p := newTestPipeline(device)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartCapture(ctx)

	// Wait for some pre-roll to accumulate.
	deadline := time.After(2 * time.Second)
	for p.PreRollLen() < 3 {
		select {
		case <-deadline:
			t.Fatal("Pre-roll never accumulated")
		case <-time.After(5 * time.Millisecond):
		}
	}

	session := p.BeginSession()
	preRollLen := session.Len()
	if preRollLen == 0 {
		t.Fatal("Session started without pre-roll contents")
	}

	// Capture keeps appending to the armed session.
	deadline = time.After(2 * time.Second)
	for session.Len() <= preRollLen {
		select {
		case <-deadline:
			t.Fatal("Session never grew past its pre-roll snapshot")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ended := p.EndSession()
	if ended != session {
		t.Error("EndSession returned a different session")
	}

	// The fake fills frame i entirely with value i, so a contiguous
	// recording carries strictly increasing frame values.
	chunks := ended.Chunks()
	for i := 1; i < len(chunks); i++ {
		if chunks[i][0] != chunks[i-1][0]+1 {
			t.Fatalf("Gap in recording at chunk %d: %d then %d",
				i, chunks[i-1][0], chunks[i][0])
		}
	}
}

func TestCaptureHaltsWhenInputCannotReopen(t *testing.T) {
	device := &fakeDevice{failInput: true}
	p := newTestPipeline(device)
	p.retryMin = time.Millisecond
	p.retryMax = time.Millisecond
	p.maxOpenFailures = 3

	errCh := make(chan error, 1)
	p.OnCaptureError(func(err error) { errCh <- err })

	p.StartCapture(context.Background())

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Capture loop still retrying after repeated open failures")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStream) {
			t.Errorf("Expected ErrStream from capture callback, got %v", err)
		}
	default:
		t.Error("Capture error callback never fired")
	}

	if p.CaptureHealthy() {
		t.Error("Pipeline still reports healthy capture after halting")
	}
}

func TestCaptureRecoversFromTransientOpenFailures(t *testing.T) {
	// Two failed opens, below the halt threshold, then a working
	// stream. The failure counter must reset on success.
	device := &fakeDevice{inputFailures: 2}
	p := newTestPipeline(device)
	p.retryMin = time.Millisecond
	p.retryMax = time.Millisecond
	p.maxOpenFailures = 3

	ctx, cancel := context.WithCancel(context.Background())
	p.StartCapture(ctx)

	deadline := time.After(2 * time.Second)
	for p.PreRollLen() == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("Capture never recovered after transient open failures")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if !p.CaptureHealthy() {
		t.Error("Pipeline reports unhealthy capture after recovery")
	}

	cancel()
	p.Wait()
}

func TestGainSettersClamp(t *testing.T) {
	p := newTestPipeline(&fakeDevice{})

	p.SetInputGain(5.0)
	p.SetOutputGain(-1.0)

	input, output := p.Gains()
	if input != 2.0 {
		t.Errorf("Expected input gain clamped to 2.0, got %f", input)
	}
	if output != 0.0 {
		t.Errorf("Expected output gain clamped to 0.0, got %f", output)
	}
}
