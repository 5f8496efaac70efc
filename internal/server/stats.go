package server

import (
	"sync"
	"time"
)

// Stats tracks server counters across all connections.
type Stats struct {
	mu sync.Mutex

	startTime time.Time

	activeConns int
	totalConns  uint64

	framesReceived uint64
	framesDropped  uint64
	repliesSent    uint64
	bytesIn        uint64
	bytesOut       uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Uptime time.Duration

	ActiveConns int
	TotalConns  uint64

	FramesReceived uint64
	FramesDropped  uint64
	RepliesSent    uint64
	BytesIn        uint64
	BytesOut       uint64
}

// NewStats creates a zeroed counter set with the clock started.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) ConnOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConns++
	s.totalConns++
}

func (s *Stats) ConnClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConns--
}

func (s *Stats) FrameReceived(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesReceived++
	s.bytesIn += uint64(n)
}

func (s *Stats) FrameDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesDropped++
}

func (s *Stats) ReplySent(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repliesSent++
	s.bytesOut += uint64(n)
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		Uptime:         time.Since(s.startTime),
		ActiveConns:    s.activeConns,
		TotalConns:     s.totalConns,
		FramesReceived: s.framesReceived,
		FramesDropped:  s.framesDropped,
		RepliesSent:    s.repliesSent,
		BytesIn:        s.bytesIn,
		BytesOut:       s.bytesOut,
	}
}
