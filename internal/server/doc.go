// Package server exposes the repeater's HTTP API: status and control
// endpoints, a WebSocket status push for dashboards, health checks and
// Prometheus metrics.
package server
