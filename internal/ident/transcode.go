package ident

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sa7bnb/repeater/internal/audio"
)

// ErrTranscodeFailed indicates the external transcoder could not
// produce usable PCM. Never fatal; callers fall back to the tone.
var ErrTranscodeFailed = errors.New("transcode failed")

const (
	fallbackToneFrequency = 800.0
	fallbackToneDuration  = 2 * time.Second
	transcodeTimeout      = 30 * time.Second
)

// TranscoderConfig contains transcoding collaborator parameters.
type TranscoderConfig struct {
	FFmpegPath  string
	SampleRate  int
	FrameSize   int
	MaxDuration time.Duration
}

// Transcoder converts the configured identification clip into raw PCM
// chunks by invoking ffmpeg, capping output at the maximum announcement
// duration. Tests substitute the runner to avoid the subprocess.
type Transcoder struct {
	cfg    TranscoderConfig
	logger *slog.Logger

	// runner executes the transcode command and returns its stdout.
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu       sync.Mutex
	decodes  uint64
	failures uint64
}

// NewTranscoder creates a transcoder using the configured ffmpeg binary.
func NewTranscoder(cfg TranscoderConfig, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		cfg:    cfg,
		logger: logger,
		runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Decode transcodes the clip at path into frame-sized PCM chunks at the
// pipeline's sample rate, mono. Output longer than the configured
// maximum duration is truncated to exactly that duration.
func (t *Transcoder) Decode(ctx context.Context, path string) ([]audio.Chunk, error) {
	runCtx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-ar", fmt.Sprintf("%d", t.cfg.SampleRate),
		"-ac", "1",
		"-f", "wav",
		"pipe:1",
	}

	start := time.Now()
	out, err := t.runner(runCtx, t.cfg.FFmpegPath, args...)
	if err != nil {
		t.recordFailure()
		t.logger.Warn("Transcode command failed",
			slog.String("clip", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrTranscodeFailed, path, err)
	}

	samples, rate, err := audio.DecodeWAV(out)
	if err != nil {
		t.recordFailure()
		return nil, fmt.Errorf("%w: decode output: %v", ErrTranscodeFailed, err)
	}

	if rate != t.cfg.SampleRate {
		t.recordFailure()
		return nil, fmt.Errorf("%w: expected %d Hz output, got %d", ErrTranscodeFailed, t.cfg.SampleRate, rate)
	}

	maxSamples := int(t.cfg.MaxDuration.Seconds() * float64(t.cfg.SampleRate))
	truncated := false
	if maxSamples > 0 && len(samples) > maxSamples {
		samples = samples[:maxSamples]
		truncated = true
	}

	t.recordDecode()
	t.logger.Info("Identification clip transcoded",
		slog.String("clip", path),
		slog.Int("samples", len(samples)),
		slog.Bool("truncated", truncated),
		slog.Duration("elapsed", time.Since(start)),
	)

	return audio.SplitFrames(samples, t.cfg.FrameSize), nil
}

// Fallback synthesizes the announcement tone used when transcoding
// fails: 2 seconds of 800 Hz sine.
func (t *Transcoder) Fallback() []audio.Chunk {
	return audio.Tone(fallbackToneFrequency, fallbackToneDuration, t.cfg.SampleRate, t.cfg.FrameSize)
}

// ClipPresent reports whether the clip file exists.
func ClipPresent(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Stats returns decode and failure counts.
func (t *Transcoder) Stats() (decodes, failures uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.decodes, t.failures
}

func (t *Transcoder) recordDecode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decodes++
}

func (t *Transcoder) recordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
}
