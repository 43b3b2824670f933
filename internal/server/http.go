package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sa7bnb/repeater/internal/audio"
	"github.com/sa7bnb/repeater/internal/config"
	"github.com/sa7bnb/repeater/internal/metrics"
	"github.com/sa7bnb/repeater/internal/relay"
)

// HTTPServer provides HTTP API endpoints for monitoring and control
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	relay   *relay.Controller
	hub     *Hub
	metrics *metrics.Metrics

	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, ctrl *relay.Controller, hub *Hub, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		relay:     ctrl,
		hub:       hub,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Relay status and control endpoints
	mux.HandleFunc("/api/status", h.withMetrics("/api/status", h.handleStatus))
	mux.HandleFunc("/api/volume", h.withMetrics("/api/volume", h.handleVolume))
	mux.HandleFunc("/api/id", h.withMetrics("/api/id", h.handleIdent))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Live status push
	mux.HandleFunc("/ws", h.hub.HandleWS)

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.relay.Status()
	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "repeater",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"hardware": map[string]interface{}{
				"connected":      status.HardwareConnected,
				"carrier_active": status.CarrierActive,
			},
			"audio": map[string]interface{}{
				"capture_healthy": status.CaptureHealthy,
			},
			"relay": map[string]interface{}{
				"mode":                status.Mode,
				"total_receptions":    status.Stats.TotalReceptions,
				"total_transmissions": status.Stats.TotalTransmissions,
			},
			"identification": map[string]interface{}{
				"enabled":      status.IdentEnabled,
				"clip_present": status.IdentClipPresent,
				"next_ident":   status.Stats.NextIdent,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /api/status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.relay.Status())
}

// volumeRequest is the /api/volume request body. Fields are pointers
// so a request can adjust one gain without touching the other.
type volumeRequest struct {
	Input  *float64 `json:"input"`
	Output *float64 `json:"output"`
}

// handleVolume implements the /api/volume endpoint
func (h *HTTPServer) handleVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Input == nil && req.Output == nil {
		http.Error(w, "At least one of input or output required", http.StatusBadRequest)
		return
	}

	if req.Input != nil {
		h.relay.SetInputGain(audio.ClampGain(*req.Input))
	}
	if req.Output != nil {
		h.relay.SetOutputGain(audio.ClampGain(*req.Output))
	}

	h.logger.Info("Volume updated via API")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.relay.Status())
}

// identRequest is the /api/id request body.
type identRequest struct {
	Enabled         *bool `json:"enabled"`
	IntervalSeconds *int  `json:"interval_seconds"`
	Trigger         bool  `json:"trigger"`
}

// handleIdent implements the /api/id endpoint
func (h *HTTPServer) handleIdent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req identRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.IntervalSeconds != nil {
		if *req.IntervalSeconds <= 0 {
			http.Error(w, "Interval must be positive", http.StatusBadRequest)
			return
		}
		h.relay.SetIdentInterval(time.Duration(*req.IntervalSeconds) * time.Second)
	}

	if req.Enabled != nil {
		h.relay.SetIdentEnabled(*req.Enabled)
	}

	if req.Trigger {
		h.relay.TriggerIdent()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.relay.Status())
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitizedConfig := map[string]interface{}{
		"hardware": map[string]interface{}{
			"vendor_id":        fmt.Sprintf("0x%04x", h.config.Hardware.VendorID),
			"product_id":       fmt.Sprintf("0x%04x", h.config.Hardware.ProductID),
			"poll_interval_ms": h.config.Hardware.PollIntervalMs,
			"read_timeout_ms":  h.config.Hardware.ReadTimeoutMs,
			"ptt_lead_ms":      h.config.Hardware.PTTLeadMs,
		},
		"audio": map[string]interface{}{
			"sample_rate":       h.config.Audio.SampleRate,
			"frame_size":        h.config.Audio.FrameSize,
			"preroll_frames":    h.config.Audio.PrerollFrames,
			"input_gain":        h.config.Audio.InputGain,
			"output_gain":       h.config.Audio.OutputGain,
			"transmit_delay_ms": h.config.Audio.TransmitDelayMs,
		},
		"ident": map[string]interface{}{
			"enabled":              h.config.Ident.Enabled,
			"interval_seconds":     h.config.Ident.IntervalSeconds,
			"clip_path":            h.config.Ident.ClipPath,
			"max_duration_seconds": h.config.Ident.MaxDurationSeconds,
			"ffmpeg_path":          h.config.Ident.FFmpegPath,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Simplex Repeater",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":            "API documentation",
			"GET /health":      "Service health check",
			"GET /api/status":  "Relay status snapshot",
			"POST /api/volume": "Set input/output gain",
			"POST /api/id":     "Identification settings and manual trigger",
			"GET /config":      "Get service configuration",
			"GET /ws":          "Live status over WebSocket",
			"GET /metrics":     "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
