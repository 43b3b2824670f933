package hardware

import (
	"context"
	"log/slog"
	"time"
)

// CarrierReader is the slice of the gateway the monitor needs.
type CarrierReader interface {
	ReadCarrierDetect() bool
}

// Monitor polls the carrier-detect line and reports edges. Debouncing
// falls out of the gateway contract: a timed-out read repeats the last
// observed value and therefore can never produce an edge.
type Monitor struct {
	reader   CarrierReader
	interval time.Duration
	logger   *slog.Logger
	last     bool
}

// NewMonitor creates a carrier-detect monitor polling at the given
// interval.
func NewMonitor(reader CarrierReader, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &Monitor{
		reader:   reader,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled, invoking onEdge only when the
// carrier value actually changes.
func (m *Monitor) Run(ctx context.Context, onEdge func(active bool)) {
	m.logger.Info("Carrier-detect monitor started",
		slog.Duration("poll_interval", m.interval),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Carrier-detect monitor stopped")
			return

		case <-ticker.C:
			current := m.reader.ReadCarrierDetect()
			if current != m.last {
				m.last = current
				m.logger.Debug("Carrier edge",
					slog.Bool("active", current),
				)
				onEdge(current)
			}
		}
	}
}
