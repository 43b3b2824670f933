package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
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

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "zero vendor id",
			mutate: func(c *Config) {
				c.Hardware.VendorID = 0
			},
			expectError: true,
			errorMsg:    "vendor_id cannot be zero",
		},
		{
			name: "poll interval too large",
			mutate: func(c *Config) {
				c.Hardware.PollIntervalMs = 5000
			},
			expectError: true,
			errorMsg:    "poll_interval_ms must be between 1 and 1000",
		},
		{
			name: "unsupported sample rate",
			mutate: func(c *Config) {
				c.Audio.SampleRate = 8000
			},
			expectError: true,
			errorMsg:    "sample_rate must be one of",
		},
		{
			name: "input gain above limit",
			mutate: func(c *Config) {
				c.Audio.InputGain = 2.5
			},
			expectError: true,
			errorMsg:    "input_gain must be between 0.0 and 2.0",
		},
		{
			name: "negative transmit delay",
			mutate: func(c *Config) {
				c.Audio.TransmitDelayMs = -1
			},
			expectError: true,
			errorMsg:    "transmit_delay_ms cannot be negative",
		},
		{
			name: "ident interval too short",
			mutate: func(c *Config) {
				c.Ident.IntervalSeconds = 5
			},
			expectError: true,
			errorMsg:    "interval_seconds must be at least 10",
		},
		{
			name: "ident interval ignored when disabled",
			mutate: func(c *Config) {
				c.Ident.Enabled = false
				c.Ident.IntervalSeconds = 0
				c.Ident.ClipPath = ""
			},
			expectError: false,
		},
		{
			name: "empty ffmpeg path",
			mutate: func(c *Config) {
				c.Ident.FFmpegPath = ""
			},
			expectError: true,
			errorMsg:    "ffmpeg_path cannot be empty",
		},
		{
			name: "invalid http port",
			mutate: func(c *Config) {
				c.HTTP.Port = 70000
			},
			expectError: true,
			errorMsg:    "http port must be between 1 and 65535",
		},
		{
			name: "http port ignored when disabled",
			mutate: func(c *Config) {
				c.HTTP.Enabled = false
				c.HTTP.Port = 0
			},
			expectError: false,
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "trace"
			},
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
hardware:
  vendor_id: 0x0d8c
  product_id: 0x0012
  poll_interval_ms: 20
  read_timeout_ms: 50
  ptt_lead_ms: 100
audio:
  sample_rate: 44100
  frame_size: 512
  preroll_frames: 15
  input_gain: 1.0
  output_gain: 1.2
  transmit_delay_ms: 100
ident:
  enabled: true
  interval_seconds: 600
  clip_path: "station_id.mp3"
  max_duration_seconds: 10
  ffmpeg_path: "ffmpeg"
http:
  enabled: true
  address: "0.0.0.0"
  port: 8080
logging:
  level: "info"
  format: "text"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
hardware:
  vendor_id: 0x0d8c
  poll_interval_ms: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing hardware section",
			configYAML: `
audio:
  sample_rate: 44100
`,
			expectError: true,
			errorMsg:    "vendor_id cannot be zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	hardware := HardwareConfig{
		PollIntervalMs: 20,
		ReadTimeoutMs:  50,
		PTTLeadMs:      100,
	}

	if hardware.GetPollInterval() != 20*time.Millisecond {
		t.Errorf("Expected 20ms, got %v", hardware.GetPollInterval())
	}
	if hardware.GetReadTimeout() != 50*time.Millisecond {
		t.Errorf("Expected 50ms, got %v", hardware.GetReadTimeout())
	}
	if hardware.GetPTTLead() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", hardware.GetPTTLead())
	}

	audio := AudioConfig{TransmitDelayMs: 100}
	if audio.GetTransmitDelay() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", audio.GetTransmitDelay())
	}

	ident := IdentConfig{IntervalSeconds: 600, MaxDurationSeconds: 10}
	if ident.GetInterval() != 10*time.Minute {
		t.Errorf("Expected 10 minutes, got %v", ident.GetInterval())
	}
	if ident.GetMaxDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", ident.GetMaxDuration())
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}

	if cfg.Hardware.VendorID != 0x0d8c || cfg.Hardware.ProductID != 0x0012 {
		t.Errorf("Unexpected default device IDs: %04x:%04x",
			cfg.Hardware.VendorID, cfg.Hardware.ProductID)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.FrameSize != 512 {
		t.Errorf("Unexpected default audio format: %d Hz, %d samples",
			cfg.Audio.SampleRate, cfg.Audio.FrameSize)
	}
	if cfg.Audio.InputGain != 1.0 || cfg.Audio.OutputGain != 1.2 {
		t.Errorf("Unexpected default gains: %f/%f",
			cfg.Audio.InputGain, cfg.Audio.OutputGain)
	}
}
