package audio

import (
	"sync"
	"time"
)

// PreRoll is a fixed-capacity ring of the most recently captured audio
// chunks. The capture loop pushes into it continuously regardless of
// relay state, so audio preceding carrier-detect confirmation is not
// lost. An armed recording session receives every chunk pushed after
// its pre-roll snapshot under the same lock, which guarantees the
// snapshot and the live capture are contiguous.
type PreRoll struct {
	mu       sync.Mutex
	chunks   []Chunk
	capacity int
	session  *Session
}

// Session is an ordered, growing sequence of chunks for one reception.
// It begins with the pre-roll snapshot taken when recording started and
// grows until frozen at carrier drop.
type Session struct {
	mu      sync.Mutex
	chunks  []Chunk
	frozen  bool
	started time.Time
}

// NewPreRoll creates a pre-roll ring holding at most capacity chunks.
func NewPreRoll(capacity int) *PreRoll {
	if capacity < 1 {
		capacity = 1
	}
	return &PreRoll{
		chunks:   make([]Chunk, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a captured chunk, evicting the oldest beyond capacity,
// and forwards the chunk to the armed session if one exists.
func (p *PreRoll) Push(chunk Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chunks = append(p.chunks, chunk)
	if len(p.chunks) > p.capacity {
		p.chunks = p.chunks[1:]
	}

	if p.session != nil {
		p.session.append(chunk)
	}
}

// Len returns the current number of buffered chunks.
func (p *PreRoll) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}

// Snapshot returns a copy of the buffered chunks in arrival order.
func (p *PreRoll) Snapshot() []Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *PreRoll) snapshotLocked() []Chunk {
	out := make([]Chunk, len(p.chunks))
	copy(out, p.chunks)
	return out
}

// BeginSession snapshots the pre-roll contents into a new recording
// session and arms it so subsequent pushes are appended. Snapshot and
// arming happen under one lock so no chunk is skipped or duplicated
// between the two. An already armed session is returned unchanged.
func (p *PreRoll) BeginSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		return p.session
	}

	p.session = &Session{
		chunks:  p.snapshotLocked(),
		started: time.Now(),
	}
	return p.session
}

// EndSession disarms and freezes the active session, returning it for
// playback. Returns nil if no session is armed.
func (p *PreRoll) EndSession() *Session {
	p.mu.Lock()
	session := p.session
	p.session = nil
	p.mu.Unlock()

	if session != nil {
		session.freeze()
	}
	return session
}

func (s *Session) append(chunk Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.frozen {
		s.chunks = append(s.chunks, chunk)
	}
}

func (s *Session) freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Chunks returns the recorded chunks. Only valid for read access after
// the session has been frozen by EndSession.
func (s *Session) Chunks() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Len returns the number of recorded chunks.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time {
	return s.started
}

// Duration reports the session length as audio time for the given
// stream parameters.
func (s *Session) Duration(sampleRate, frameSize int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := s.Len() * frameSize
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
