package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	captureRetryMin = 500 * time.Millisecond
	captureRetryMax = 5 * time.Second

	// captureMaxOpenFailures is the consecutive stream-open failure
	// count at which the capture loop halts and reports instead of
	// retrying forever.
	captureMaxOpenFailures = 10
)

// PipelineConfig contains audio pipeline parameters.
type PipelineConfig struct {
	SampleRate    int
	FrameSize     int
	PrerollFrames int
	InputGain     float64
	OutputGain    float64
}

// Pipeline moves audio between the device and memory buffers. Capture
// runs continuously for the process lifetime and feeds the pre-roll
// ring; playback runs are transient, one per transmission or
// announcement.
type Pipeline struct {
	device  Device
	preroll *PreRoll
	logger  *slog.Logger

	sampleRate int
	frameSize  int

	retryMin        time.Duration
	retryMax        time.Duration
	maxOpenFailures int

	// onCaptureError fires when the capture loop gives up. Set before
	// StartCapture.
	onCaptureError func(error)

	mu            sync.RWMutex
	inputGain     float64
	outputGain    float64
	captureHalted bool

	wg sync.WaitGroup
}

// NewPipeline creates an audio pipeline over the given device.
func NewPipeline(device Device, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		device:          device,
		preroll:         NewPreRoll(cfg.PrerollFrames),
		logger:          logger,
		sampleRate:      cfg.SampleRate,
		frameSize:       cfg.FrameSize,
		retryMin:        captureRetryMin,
		retryMax:        captureRetryMax,
		maxOpenFailures: captureMaxOpenFailures,
		inputGain:       ClampGain(cfg.InputGain),
		outputGain:      ClampGain(cfg.OutputGain),
	}
}

// OnCaptureError registers a callback invoked once if the capture loop
// halts because the input stream could not be reopened after repeated
// attempts. Must be set before StartCapture.
func (p *Pipeline) OnCaptureError(fn func(error)) {
	p.onCaptureError = fn
}

// StartCapture launches the continuous capture loop. The loop never
// stops for mode transitions; it ends only when ctx is cancelled.
// Stream open failures are retried with backoff.
func (p *Pipeline) StartCapture(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.captureLoop(ctx)
	}()
}

// Wait blocks until the capture loop has exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) captureLoop(ctx context.Context) {
	p.logger.Info("Capture loop started",
		slog.Int("sample_rate", p.sampleRate),
		slog.Int("frame_size", p.frameSize),
	)

	backoff := p.retryMin
	failures := 0
	for ctx.Err() == nil {
		in, err := p.device.OpenInput(p.sampleRate, p.frameSize)
		if err != nil {
			failures++
			if failures >= p.maxOpenFailures {
				p.haltCapture(failures, err)
				return
			}

			p.logger.Warn("Failed to open input stream, retrying",
				slog.String("error", err.Error()),
				slog.Int("consecutive_failures", failures),
				slog.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > p.retryMax {
				backoff = p.retryMax
			}
			continue
		}

		backoff = p.retryMin
		failures = 0
		p.readFrames(ctx, in)
		in.Close()
	}

	p.logger.Info("Capture loop stopped")
}

// haltCapture records the dead input device and reports it upward. The
// relay keeps running so PTT, announcements and the control surface
// stay available, but the halted state is visible in every status
// snapshot.
func (p *Pipeline) haltCapture(failures int, err error) {
	p.mu.Lock()
	p.captureHalted = true
	p.mu.Unlock()

	p.logger.Error("Capture halted, input stream cannot be reopened",
		slog.Int("attempts", failures),
		slog.String("error", err.Error()),
	)

	if p.onCaptureError != nil {
		p.onCaptureError(fmt.Errorf("%w: input stream failed to open %d consecutive times: %v",
			ErrStream, failures, err))
	}
}

// readFrames reads until ctx is cancelled or the stream errors, in
// which case the caller reopens the stream.
func (p *Pipeline) readFrames(ctx context.Context, in InputStream) {
	frame := make([]int16, p.frameSize)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := in.ReadFrame(frame); err != nil {
			p.logger.Warn("Capture read failed, reopening stream",
				slog.String("error", err.Error()),
			)
			return
		}

		// ApplyGain copies, so the ring never aliases the read buffer.
		p.preroll.Push(ApplyGain(frame, p.InputGain()))
	}
}

// BeginSession snapshots the pre-roll buffer into a new recording
// session and starts appending captured chunks to it.
func (p *Pipeline) BeginSession() *Session {
	return p.preroll.BeginSession()
}

// EndSession freezes and returns the active recording session.
func (p *Pipeline) EndSession() *Session {
	return p.preroll.EndSession()
}

// PreRollLen returns the number of chunks currently buffered.
func (p *Pipeline) PreRollLen() int {
	return p.preroll.Len()
}

// CaptureHealthy reports whether the capture loop is still feeding the
// pre-roll buffer. False once the loop has given up on the input stream.
func (p *Pipeline) CaptureHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.captureHalted
}

// Play writes a leading silence pad, every chunk with the given gain,
// and a trailing silence pad to a freshly opened output stream. An
// empty chunk list writes only the pads. Any failure is reported as
// ErrPlaybackFailed; the caller is responsible for releasing PTT on
// every exit path.
func (p *Pipeline) Play(ctx context.Context, chunks []Chunk, gain float64) error {
	out, err := p.device.OpenOutput(p.sampleRate, p.frameSize)
	if err != nil {
		return fmt.Errorf("%w: open output: %v", ErrPlaybackFailed, err)
	}
	defer out.Close()

	silence := Silence(p.frameSize)
	if err := out.WriteFrame(silence); err != nil {
		return fmt.Errorf("%w: leading pad: %v", ErrPlaybackFailed, err)
	}

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := out.WriteFrame(ApplyGain(chunk, gain)); err != nil {
			return fmt.Errorf("%w: chunk %d of %d: %v", ErrPlaybackFailed, i, len(chunks), err)
		}
	}

	if err := out.WriteFrame(silence); err != nil {
		return fmt.Errorf("%w: trailing pad: %v", ErrPlaybackFailed, err)
	}

	return nil
}

// SetInputGain updates the capture gain, clamped to [0.0, 2.0].
func (p *Pipeline) SetInputGain(gain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputGain = ClampGain(gain)
}

// SetOutputGain updates the playback gain, clamped to [0.0, 2.0].
func (p *Pipeline) SetOutputGain(gain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputGain = ClampGain(gain)
}

// InputGain returns the current capture gain.
func (p *Pipeline) InputGain() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inputGain
}

// OutputGain returns the current playback gain.
func (p *Pipeline) OutputGain() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.outputGain
}

// Gains returns the current input and output gain.
func (p *Pipeline) Gains() (input, output float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inputGain, p.outputGain
}

// SampleRate returns the pipeline sample rate.
func (p *Pipeline) SampleRate() int {
	return p.sampleRate
}

// FrameSize returns the pipeline frame size in samples.
func (p *Pipeline) FrameSize() int {
	return p.frameSize
}
