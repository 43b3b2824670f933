package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete repeater configuration
type Config struct {
	Hardware HardwareConfig `yaml:"hardware"`
	Audio    AudioConfig    `yaml:"audio"`
	Ident    IdentConfig    `yaml:"ident"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HardwareConfig contains CM108 carrier-detect/PTT device configuration
type HardwareConfig struct {
	VendorID       uint16 `yaml:"vendor_id"`
	ProductID      uint16 `yaml:"product_id"`
	PollIntervalMs int    `yaml:"poll_interval_ms"` // carrier-detect poll cadence
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`  // interrupt read timeout
	PTTLeadMs      int    `yaml:"ptt_lead_ms"`      // delay between PTT assert and first audio
}

// AudioConfig contains audio pipeline parameters
type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	FrameSize       int     `yaml:"frame_size"`        // samples per capture/playback frame
	PrerollFrames   int     `yaml:"preroll_frames"`    // pre-roll ring capacity
	InputGain       float64 `yaml:"input_gain"`
	OutputGain      float64 `yaml:"output_gain"`
	TransmitDelayMs int     `yaml:"transmit_delay_ms"` // carrier drop to playback start
}

// IdentConfig contains station identification configuration
type IdentConfig struct {
	Enabled            bool   `yaml:"enabled"`
	IntervalSeconds    int    `yaml:"interval_seconds"`
	ClipPath           string `yaml:"clip_path"`
	MaxDurationSeconds int    `yaml:"max_duration_seconds"`
	FFmpegPath         string `yaml:"ffmpeg_path"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs validation of the complete configuration
func (c *Config) Validate() error {
	if err := c.Hardware.Validate(); err != nil {
		return fmt.Errorf("hardware config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Ident.Validate(); err != nil {
		return fmt.Errorf("ident config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates hardware configuration
func (h *HardwareConfig) Validate() error {
	if h.VendorID == 0 {
		return fmt.Errorf("vendor_id cannot be zero")
	}

	if h.ProductID == 0 {
		return fmt.Errorf("product_id cannot be zero")
	}

	if h.PollIntervalMs < 1 || h.PollIntervalMs > 1000 {
		return fmt.Errorf("poll_interval_ms must be between 1 and 1000, got %d", h.PollIntervalMs)
	}

	if h.ReadTimeoutMs < 1 {
		return fmt.Errorf("read_timeout_ms must be at least 1, got %d", h.ReadTimeoutMs)
	}

	if h.PTTLeadMs < 0 {
		return fmt.Errorf("ptt_lead_ms cannot be negative, got %d", h.PTTLeadMs)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 22050 && a.SampleRate != 44100 && a.SampleRate != 48000 {
		return fmt.Errorf("sample_rate must be one of [22050, 44100, 48000], got %d", a.SampleRate)
	}

	if a.FrameSize < 64 || a.FrameSize > 8192 {
		return fmt.Errorf("frame_size must be between 64 and 8192 samples, got %d", a.FrameSize)
	}

	if a.PrerollFrames < 1 {
		return fmt.Errorf("preroll_frames must be at least 1, got %d", a.PrerollFrames)
	}

	if a.InputGain < 0 || a.InputGain > 2 {
		return fmt.Errorf("input_gain must be between 0.0 and 2.0, got %f", a.InputGain)
	}

	if a.OutputGain < 0 || a.OutputGain > 2 {
		return fmt.Errorf("output_gain must be between 0.0 and 2.0, got %f", a.OutputGain)
	}

	if a.TransmitDelayMs < 0 {
		return fmt.Errorf("transmit_delay_ms cannot be negative, got %d", a.TransmitDelayMs)
	}

	return nil
}

// Validate validates identification configuration
func (i *IdentConfig) Validate() error {
	if i.Enabled {
		if i.IntervalSeconds < 10 {
			return fmt.Errorf("interval_seconds must be at least 10 when ident is enabled, got %d", i.IntervalSeconds)
		}

		if i.ClipPath == "" {
			return fmt.Errorf("clip_path cannot be empty when ident is enabled")
		}
	}

	if i.MaxDurationSeconds < 1 {
		return fmt.Errorf("max_duration_seconds must be at least 1, got %d", i.MaxDurationSeconds)
	}

	if i.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetPollInterval returns the carrier-detect poll interval as a time.Duration
func (h *HardwareConfig) GetPollInterval() time.Duration {
	return time.Duration(h.PollIntervalMs) * time.Millisecond
}

// GetReadTimeout returns the interrupt read timeout as a time.Duration
func (h *HardwareConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutMs) * time.Millisecond
}

// GetPTTLead returns the PTT lead time as a time.Duration
func (h *HardwareConfig) GetPTTLead() time.Duration {
	return time.Duration(h.PTTLeadMs) * time.Millisecond
}

// GetTransmitDelay returns the carrier-drop-to-playback delay as a time.Duration
func (a *AudioConfig) GetTransmitDelay() time.Duration {
	return time.Duration(a.TransmitDelayMs) * time.Millisecond
}

// GetInterval returns the identification interval as a time.Duration
func (i *IdentConfig) GetInterval() time.Duration {
	return time.Duration(i.IntervalSeconds) * time.Second
}

// GetMaxDuration returns the maximum announcement duration as a time.Duration
func (i *IdentConfig) GetMaxDuration() time.Duration {
	return time.Duration(i.MaxDurationSeconds) * time.Second
}

// Default returns a configuration populated with the reference defaults,
// used when no config file is present.
func Default() *Config {
	return &Config{
		Hardware: HardwareConfig{
			VendorID:       0x0d8c,
			ProductID:      0x0012,
			PollIntervalMs: 20,
			ReadTimeoutMs:  50,
			PTTLeadMs:      100,
		},
		Audio: AudioConfig{
			SampleRate:      44100,
			FrameSize:       512,
			PrerollFrames:   15,
			InputGain:       1.0,
			OutputGain:      1.2,
			TransmitDelayMs: 100,
		},
		Ident: IdentConfig{
			Enabled:            true,
			IntervalSeconds:    600,
			ClipPath:           "station_id.mp3",
			MaxDurationSeconds: 10,
			FFmpegPath:         "ffmpeg",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}
