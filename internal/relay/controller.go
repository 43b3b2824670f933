package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sa7bnb/repeater/internal/audio"
	"github.com/sa7bnb/repeater/internal/ident"
	"github.com/sa7bnb/repeater/internal/metrics"
)

// PTT is the slice of the hardware gateway the controller drives.
type PTT interface {
	SetPTT(active bool) error
	Connected() bool
}

// AudioPipeline is the slice of the audio pipeline the controller drives.
type AudioPipeline interface {
	BeginSession() *audio.Session
	EndSession() *audio.Session
	Play(ctx context.Context, chunks []audio.Chunk, gain float64) error
	SetInputGain(gain float64)
	SetOutputGain(gain float64)
	Gains() (input, output float64)
	CaptureHealthy() bool
}

// AnnouncementSource produces the identification audio: a transcoded
// clip, or the synthesized fallback tone when transcoding fails.
type AnnouncementSource interface {
	Decode(ctx context.Context, path string) ([]audio.Chunk, error)
	Fallback() []audio.Chunk
}

// Config contains controller timing and announcement parameters.
type Config struct {
	// TransmitDelay is the pause between carrier drop and the
	// retransmission starting.
	TransmitDelay time.Duration

	// PTTLead is the delay between PTT assert and the first audio write.
	PTTLead time.Duration

	// IdentCheckInterval is how often the identification schedule is
	// checked while idle.
	IdentCheckInterval time.Duration

	// ClipPath is the identification clip handed to the transcoder.
	ClipPath string
}

// Deps are the controller's collaborators.
type Deps struct {
	Gateway   PTT
	Pipeline  AudioPipeline
	Scheduler *ident.Scheduler
	Source    AnnouncementSource
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Controller is the relay state machine. A single run-loop goroutine
// owns every mode transition; carrier edges, transmit timers,
// identification checks and playback completions all arrive as events
// on its channels, which keeps receiving, transmitting and announcing
// mutually exclusive by construction.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	gateway   PTT
	pipeline  AudioPipeline
	scheduler *ident.Scheduler
	source    AnnouncementSource
	metrics   *metrics.Metrics
	stats     *Statistics

	carrierCh chan bool
	manualCh  chan struct{}
	txReady   chan *audio.Session
	playDone  chan playResult

	mu      sync.RWMutex
	mode    Mode
	carrier bool

	notifyFn func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type playResult struct {
	mode   Mode
	start  time.Time
	chunks int
	err    error
}

// New creates a relay controller in Idle.
func New(cfg Config, deps Deps) *Controller {
	if cfg.IdentCheckInterval <= 0 {
		cfg.IdentCheckInterval = time.Second
	}

	return &Controller{
		cfg:       cfg,
		logger:    deps.Logger,
		gateway:   deps.Gateway,
		pipeline:  deps.Pipeline,
		scheduler: deps.Scheduler,
		source:    deps.Source,
		metrics:   deps.Metrics,
		stats:     NewStatistics(),
		carrierCh: make(chan bool, 16),
		manualCh:  make(chan struct{}, 1),
		txReady:   make(chan *audio.Session, 1),
		playDone:  make(chan playResult, 1),
		mode:      ModeIdle,
	}
}

// Start launches the run loop.
func (c *Controller) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx)
	}()
}

// Stop cancels the run loop and waits for it and any in-flight
// playback goroutine to finish. PTT is deasserted by the playback
// goroutine's exit path before Stop returns.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// CarrierEvent feeds a debounced carrier-detect edge into the run
// loop. Called from the hardware monitor goroutine.
func (c *Controller) CarrierEvent(active bool) {
	c.metrics.RecordCarrierEdge()

	select {
	case c.carrierCh <- active:
	default:
		c.logger.Warn("Carrier event dropped, queue full",
			slog.Bool("active", active),
		)
	}
}

// TriggerIdent requests a manual identification announcement. The
// request is dropped if one is already pending or the relay is busy.
func (c *Controller) TriggerIdent() {
	select {
	case c.manualCh <- struct{}{}:
	default:
	}
}

// Mode returns the current relay mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// CarrierActive returns the last observed carrier state.
func (c *Controller) CarrierActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.carrier
}

// OnChange registers a callback invoked after every state change.
// Must be set before Start.
func (c *Controller) OnChange(fn func()) {
	c.notifyFn = fn
}

// SetInputGain updates the capture gain.
func (c *Controller) SetInputGain(gain float64) {
	c.pipeline.SetInputGain(gain)
	c.notify()
}

// SetOutputGain updates the playback gain.
func (c *Controller) SetOutputGain(gain float64) {
	c.pipeline.SetOutputGain(gain)
	c.notify()
}

// SetIdentEnabled toggles automatic identification.
func (c *Controller) SetIdentEnabled(enabled bool) {
	c.scheduler.SetEnabled(enabled)
	c.notify()
}

// SetIdentInterval updates the identification interval.
func (c *Controller) SetIdentInterval(interval time.Duration) {
	c.scheduler.SetInterval(interval)
	c.notify()
}

// Status builds a snapshot for the dashboard.
func (c *Controller) Status() Status {
	c.mu.RLock()
	mode := c.mode
	carrier := c.carrier
	c.mu.RUnlock()

	input, output := c.pipeline.Gains()
	stats := c.stats.Snapshot()

	nextIdent := "inactive"
	if next, ok := c.scheduler.NextAt(); ok {
		nextIdent = next.Format("15:04:05")
	}

	return Status{
		CarrierActive:     carrier,
		Mode:              mode.String(),
		InputGain:         input,
		OutputGain:        output,
		IdentEnabled:      c.scheduler.Enabled(),
		IdentInterval:     int(c.scheduler.Interval().Seconds()),
		IdentClipPresent:  ident.ClipPresent(c.cfg.ClipPath),
		HardwareConnected: c.gateway.Connected(),
		CaptureHealthy:    c.pipeline.CaptureHealthy(),
		Stats: StatusStats{
			TotalReceptions:    stats.TotalReceptions,
			TotalTransmissions: stats.TotalTransmissions,
			TotalAnnouncements: stats.TotalAnnouncements,
			Uptime:             stats.Uptime,
			LastActivity:       stats.LastActivityClock,
			NextIdent:          nextIdent,
		},
	}
}

func (c *Controller) run(ctx context.Context) {
	identTicker := time.NewTicker(c.cfg.IdentCheckInterval)
	defer identTicker.Stop()

	c.logger.Info("Relay controller started",
		slog.Duration("transmit_delay", c.cfg.TransmitDelay),
		slog.Duration("ptt_lead", c.cfg.PTTLead),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Relay controller stopping")
			return

		case active := <-c.carrierCh:
			c.handleCarrier(ctx, active)

		case session := <-c.txReady:
			c.handleTransmitReady(ctx, session)

		case result := <-c.playDone:
			c.handlePlayDone(result)

		case <-c.manualCh:
			c.handleIdent(ctx, true)

		case <-identTicker.C:
			if c.scheduler.Due(time.Now()) {
				c.handleIdent(ctx, false)
			}
		}
	}
}

func (c *Controller) handleCarrier(ctx context.Context, active bool) {
	c.mu.Lock()
	c.carrier = active
	mode := c.mode
	c.mu.Unlock()
	c.notify()

	if active {
		if mode != ModeIdle {
			// Half-duplex: carrier activity during playback or an
			// announcement is not recorded.
			c.logger.Debug("Carrier asserted while busy, ignoring",
				slog.String("mode", mode.String()),
			)
			return
		}

		c.pipeline.BeginSession()
		c.stats.RecordReception()
		c.metrics.RecordReception()
		c.setMode(ModeReceiving)
		c.logger.Info("Receiving started")
		return
	}

	if mode != ModeReceiving {
		return
	}

	session := c.pipeline.EndSession()
	c.setMode(ModeIdle)
	c.logger.Info("Receiving stopped",
		slog.Int("chunks", session.Len()),
	)

	// Let the channel settle before keying up.
	time.AfterFunc(c.cfg.TransmitDelay, func() {
		select {
		case c.txReady <- session:
		case <-ctx.Done():
		}
	})
}

func (c *Controller) handleTransmitReady(ctx context.Context, session *audio.Session) {
	if session == nil {
		return
	}

	if mode := c.Mode(); mode != ModeIdle {
		// A fresh reception or an announcement won the race; the old
		// session is discarded.
		c.logger.Info("Transmit skipped, relay busy",
			slog.String("mode", mode.String()),
			slog.Int("chunks", session.Len()),
		)
		return
	}

	c.setMode(ModeTransmitting)
	c.stats.RecordTransmission()
	c.logger.Info("Transmitting started",
		slog.Int("chunks", session.Len()),
	)

	c.startPlayback(ctx, ModeTransmitting, func(playCtx context.Context) error {
		_, output := c.pipeline.Gains()
		return c.pipeline.Play(playCtx, session.Chunks(), output)
	}, session.Len())
}

func (c *Controller) handleIdent(ctx context.Context, manual bool) {
	if mode := c.Mode(); mode != ModeIdle {
		c.logger.Debug("Identification deferred, relay busy",
			slog.String("mode", mode.String()),
			slog.Bool("manual", manual),
		)
		return
	}

	now := time.Now()
	c.scheduler.MarkPlayed(now)
	c.setMode(ModeAnnouncing)
	c.stats.RecordAnnouncement()
	c.logger.Info("Identification started",
		slog.Bool("manual", manual),
		slog.String("clip", c.cfg.ClipPath),
	)

	c.startPlayback(ctx, ModeAnnouncing, func(playCtx context.Context) error {
		_, output := c.pipeline.Gains()

		chunks, err := c.source.Decode(playCtx, c.cfg.ClipPath)
		if err != nil {
			c.metrics.RecordTranscodeFailure()
			c.logger.Warn("Transcode failed, playing fallback tone",
				slog.String("error", err.Error()),
			)
			chunks = c.source.Fallback()
			output *= 0.5
		}

		return c.pipeline.Play(playCtx, chunks, output)
	}, 0)
}

// startPlayback runs one transmission or announcement in its own
// goroutine: assert PTT, wait the lead time, play, then deassert PTT
// on every exit path before reporting completion.
func (c *Controller) startPlayback(ctx context.Context, mode Mode, play func(context.Context) error, chunks int) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		start := time.Now()
		var err error

		defer func() {
			if pttErr := c.gateway.SetPTT(false); pttErr != nil {
				c.metrics.RecordPTTFailure()
			}

			select {
			case c.playDone <- playResult{mode: mode, start: start, chunks: chunks, err: err}:
			case <-ctx.Done():
			}
		}()

		if pttErr := c.gateway.SetPTT(true); pttErr != nil {
			c.metrics.RecordPTTFailure()
		}

		if !sleepCtx(ctx, c.cfg.PTTLead) {
			err = ctx.Err()
			return
		}

		err = play(ctx)
	}()
}

func (c *Controller) handlePlayDone(result playResult) {
	c.setMode(ModeIdle)

	elapsed := time.Since(result.start).Seconds()
	switch result.mode {
	case ModeTransmitting:
		c.metrics.RecordTransmission(elapsed, result.chunks)
	case ModeAnnouncing:
		c.metrics.RecordAnnouncement(elapsed)
	}

	if result.err != nil {
		c.metrics.RecordPlaybackError()
		c.logger.Error("Playback failed",
			slog.String("mode", result.mode.String()),
			slog.String("error", result.err.Error()),
		)
		return
	}

	c.logger.Info("Playback complete",
		slog.String("mode", result.mode.String()),
		slog.Float64("duration_seconds", elapsed),
	)
}

func (c *Controller) setMode(mode Mode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.notifyFn != nil {
		c.notifyFn()
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first; reports whether
// the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
