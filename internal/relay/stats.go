package relay

import (
	"sync"
	"time"
)

// Statistics holds monotonically growing relay counters. Never reset
// while the process runs.
type Statistics struct {
	mu            sync.RWMutex
	receptions    uint64
	transmissions uint64
	announcements uint64
	uptimeStart   time.Time
	lastActivity  time.Time
}

// NewStatistics creates statistics with the uptime clock starting now.
func NewStatistics() *Statistics {
	return &Statistics{uptimeStart: time.Now()}
}

// RecordReception counts a receive cycle starting and marks activity.
func (s *Statistics) RecordReception() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receptions++
	s.lastActivity = time.Now()
}

// RecordTransmission counts a retransmission cycle starting.
func (s *Statistics) RecordTransmission() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transmissions++
}

// RecordAnnouncement counts an identification announcement starting.
func (s *Statistics) RecordAnnouncement() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announcements++
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalReceptions    uint64    `json:"total_receptions"`
	TotalTransmissions uint64    `json:"total_transmissions"`
	TotalAnnouncements uint64    `json:"total_announcements"`
	UptimeStart        time.Time `json:"-"`
	LastActivity       time.Time `json:"-"`
	Uptime             string    `json:"uptime"`
	LastActivityClock  string    `json:"last_activity"`
}

// Snapshot returns a consistent copy of the statistics.
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastActivity := "none"
	if !s.lastActivity.IsZero() {
		lastActivity = s.lastActivity.Format("15:04:05")
	}

	return StatsSnapshot{
		TotalReceptions:    s.receptions,
		TotalTransmissions: s.transmissions,
		TotalAnnouncements: s.announcements,
		UptimeStart:        s.uptimeStart,
		LastActivity:       s.lastActivity,
		Uptime:             time.Since(s.uptimeStart).Truncate(time.Second).String(),
		LastActivityClock:  lastActivity,
	}
}
