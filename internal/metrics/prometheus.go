package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the repeater daemon
type Metrics struct {
	// Relay cycle metrics
	CarrierEdges  prometheus.Counter
	Receptions    prometheus.Counter
	Transmissions prometheus.Counter
	Announcements prometheus.Counter

	// Hardware metrics
	PTTFailures prometheus.Counter

	// Audio metrics
	PlaybackErrors       prometheus.Counter
	TranscodeFailures    prometheus.Counter
	TransmissionDuration prometheus.Histogram
	AnnouncementDuration prometheus.Histogram
	SessionChunks        prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		CarrierEdges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "repeater_carrier_edges_total",
			Help: "Total number of carrier-detect transitions observed",
		}),
		Receptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "repeater_receptions_total",
			Help: "Total number of receive cycles started",
		}),
		Transmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "repeater_transmissions_total",
			Help: "Total number of retransmission cycles started",
		}),
		Announcements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "repeater_announcements_total",
			Help: "Total number of station identification announcements",
		}),

		PTTFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "repeater_ptt_failures_total",
			Help: "Total number of failed PTT transfers",
		}),

		PlaybackErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "repeater_playback_errors_total",
			Help: "Total number of failed playback runs",
		}),
		TranscodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "repeater_transcode_failures_total",
			Help: "Total number of identification clip transcode failures",
		}),
		TransmissionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "repeater_transmission_duration_seconds",
			Help:    "Duration of retransmission playback runs",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),
		AnnouncementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "repeater_announcement_duration_seconds",
			Help:    "Duration of identification announcement playback runs",
			Buckets: prometheus.LinearBuckets(1, 1, 12), // 1s to 12s
		}),
		SessionChunks: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "repeater_session_chunks",
			Help:    "Recorded chunks per completed receive session",
			Buckets: prometheus.ExponentialBuckets(15, 2, 10),
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "repeater_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "repeater_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "repeater_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// Record methods tolerate a nil receiver so components under test can
// run without a registered metrics set.

// RecordCarrierEdge increments the carrier transition counter
func (m *Metrics) RecordCarrierEdge() {
	if m == nil {
		return
	}
	m.CarrierEdges.Inc()
}

// RecordReception increments the receive cycle counter
func (m *Metrics) RecordReception() {
	if m == nil {
		return
	}
	m.Receptions.Inc()
}

// RecordTransmission records a retransmission cycle and its duration
func (m *Metrics) RecordTransmission(durationSeconds float64, chunks int) {
	if m == nil {
		return
	}
	m.Transmissions.Inc()
	m.TransmissionDuration.Observe(durationSeconds)
	m.SessionChunks.Observe(float64(chunks))
}

// RecordAnnouncement records an identification announcement
func (m *Metrics) RecordAnnouncement(durationSeconds float64) {
	if m == nil {
		return
	}
	m.Announcements.Inc()
	m.AnnouncementDuration.Observe(durationSeconds)
}

// RecordPTTFailure increments the PTT transfer failure counter
func (m *Metrics) RecordPTTFailure() {
	if m == nil {
		return
	}
	m.PTTFailures.Inc()
}

// RecordPlaybackError increments the playback failure counter
func (m *Metrics) RecordPlaybackError() {
	if m == nil {
		return
	}
	m.PlaybackErrors.Inc()
}

// RecordTranscodeFailure increments the transcode failure counter
func (m *Metrics) RecordTranscodeFailure() {
	if m == nil {
		return
	}
	m.TranscodeFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
