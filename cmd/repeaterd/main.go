package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sa7bnb/repeater/internal/audio"
	"github.com/sa7bnb/repeater/internal/config"
	"github.com/sa7bnb/repeater/internal/hardware"
	"github.com/sa7bnb/repeater/internal/ident"
	"github.com/sa7bnb/repeater/internal/metrics"
	"github.com/sa7bnb/repeater/internal/relay"
	"github.com/sa7bnb/repeater/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "repeater"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration, falling back to defaults when no file exists
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("vendor_id", fmt.Sprintf("0x%04x", cfg.Hardware.VendorID)),
		slog.String("product_id", fmt.Sprintf("0x%04x", cfg.Hardware.ProductID)),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frame_size", cfg.Audio.FrameSize),
		slog.Int("preroll_frames", cfg.Audio.PrerollFrames),
		slog.Bool("ident_enabled", cfg.Ident.Enabled),
		slog.String("ident_clip", cfg.Ident.ClipPath),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Open the CM108 gateway. A missing or unclaimable device degrades
	// to a disconnected gateway so the service still comes up for
	// diagnostics.
	gateway, err := hardware.Open(hardware.Config{
		VendorID:    cfg.Hardware.VendorID,
		ProductID:   cfg.Hardware.ProductID,
		ReadTimeout: cfg.Hardware.GetReadTimeout(),
	}, logger)
	if err != nil {
		logger.Warn("CM108 gateway unavailable, running without carrier detect and PTT",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("CM108 gateway opened")
	}

	// Known state before anything keys the transmitter.
	if err := gateway.SetPTT(false); err != nil {
		logger.Warn("Startup PTT deassert failed", slog.String("error", err.Error()))
	}
	time.Sleep(100 * time.Millisecond)

	// Initialize the audio backend and pipeline
	device, err := audio.NewPortAudioDevice()
	if err != nil {
		logger.Error("Failed to initialize audio backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipeline := audio.NewPipeline(device, audio.PipelineConfig{
		SampleRate:    cfg.Audio.SampleRate,
		FrameSize:     cfg.Audio.FrameSize,
		PrerollFrames: cfg.Audio.PrerollFrames,
		InputGain:     cfg.Audio.InputGain,
		OutputGain:    cfg.Audio.OutputGain,
	}, logger)

	// Identification: transcoder plus schedule
	transcoder := ident.NewTranscoder(ident.TranscoderConfig{
		FFmpegPath:  cfg.Ident.FFmpegPath,
		SampleRate:  cfg.Audio.SampleRate,
		FrameSize:   cfg.Audio.FrameSize,
		MaxDuration: cfg.Ident.GetMaxDuration(),
	}, logger)
	scheduler := ident.NewScheduler(cfg.Ident.Enabled, cfg.Ident.GetInterval())

	// Relay controller
	controller := relay.New(relay.Config{
		TransmitDelay: cfg.Audio.GetTransmitDelay(),
		PTTLead:       cfg.Hardware.GetPTTLead(),
		ClipPath:      cfg.Ident.ClipPath,
	}, relay.Deps{
		Gateway:   gateway,
		Pipeline:  pipeline,
		Scheduler: scheduler,
		Source:    transcoder,
		Logger:    logger,
		Metrics:   appMetrics,
	})
	controller.Start(ctx)

	// Carrier-detect monitor feeding the controller
	monitor := hardware.NewMonitor(gateway, cfg.Hardware.GetPollInterval(), logger)
	go monitor.Run(ctx, controller.CarrierEvent)

	// HTTP API server (if enabled)
	var (
		httpServer *server.HTTPServer
		hub        *server.Hub
	)
	if cfg.HTTP.Enabled {
		hub = server.NewHub(logger, func() interface{} {
			return controller.Status()
		})
		controller.OnChange(hub.Broadcast)
		hub.Start()

		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, controller, hub, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// A dead input device degrades the repeater to PTT/announce only;
	// the dashboard sees capture_healthy flip.
	pipeline.OnCaptureError(func(err error) {
		logger.Error("Audio capture lost", slog.String("error", err.Error()))
		if hub != nil {
			hub.Broadcast()
		}
	})
	pipeline.StartCapture(ctx)
	logger.Info("Audio pipeline started",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frame_size", cfg.Audio.FrameSize),
	)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
		hub.Stop()
	}

	// Stop the controller; its playback exit path deasserts PTT.
	cancel()
	controller.Stop()
	pipeline.Wait()

	// Transmitter must never be left keyed.
	if err := gateway.SetPTT(false); err != nil {
		logger.Warn("Final PTT deassert failed", slog.String("error", err.Error()))
	}
	if err := gateway.Close(); err != nil {
		logger.Warn("Error closing CM108 gateway", slog.String("error", err.Error()))
	}

	if err := device.Close(); err != nil {
		logger.Warn("Error closing audio backend", slog.String("error", err.Error()))
	}

	stats := controller.Status().Stats
	logger.Info("Final relay statistics",
		slog.Uint64("receptions", stats.TotalReceptions),
		slog.Uint64("transmissions", stats.TotalTransmissions),
		slog.Uint64("announcements", stats.TotalAnnouncements),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
