package ident

import (
	"sync"
	"time"
)

// Scheduler tracks when the station identification announcement is
// due. The elapsed-time clock resets when an announcement starts, not
// when it completes.
type Scheduler struct {
	mu         sync.RWMutex
	enabled    bool
	interval   time.Duration
	lastPlayed time.Time
}

// NewScheduler creates a scheduler; the interval countdown starts now.
func NewScheduler(enabled bool, interval time.Duration) *Scheduler {
	return &Scheduler{
		enabled:    enabled,
		interval:   interval,
		lastPlayed: time.Now(),
	}
}

// Due reports whether an automatic announcement should start at now.
func (s *Scheduler) Due(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled {
		return false
	}
	return now.Sub(s.lastPlayed) >= s.interval
}

// MarkPlayed records an announcement starting at start, resetting the
// interval countdown.
func (s *Scheduler) MarkPlayed(start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPlayed = start
}

// SetEnabled toggles automatic identification.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetInterval updates the announcement interval.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval > 0 {
		s.interval = interval
	}
}

// Enabled reports whether automatic identification is on.
func (s *Scheduler) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Interval returns the announcement interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// NextAt returns when the next automatic announcement is scheduled.
// ok is false when automatic identification is disabled.
func (s *Scheduler) NextAt() (next time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled {
		return time.Time{}, false
	}
	return s.lastPlayed.Add(s.interval), true
}
