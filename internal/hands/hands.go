// Package hands keeps a shared clock-hand angle record in sync with wall
// time. The render/push loop reads it every frame; on resume the record is
// force-set to the present so time spent suspended is never swept through.
package hands

import (
	"math"
	"sync"
	"time"

	"tradeclock/internal/timebase"
)

// Angles holds the instantaneous hand angles in degrees, each in [0, 360).
type Angles struct {
	Hour   float64 `json:"hour"`
	Minute float64 `json:"minute"`
	Second float64 `json:"second"`
}

// Compute returns the authoritative instantaneous angles for t.
func Compute(t time.Time) Angles {
	h := float64(t.Hour() % 12)
	m := float64(t.Minute())
	s := float64(t.Second())
	return Angles{
		Hour:   norm((h + m/60) * 30),
		Minute: norm((m + s/60) * 6),
		Second: norm(s * 6),
	}
}

func norm(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Service owns the shared angle record. It runs no timer of its own; it
// reacts to tick states routed through Observe. The two write paths are
// structurally distinct: Tick for the per-second recompute, Snap for the
// force-set after a resume.
type Service struct {
	mu        sync.RWMutex
	angles    Angles
	lastToken uint64
	started   bool
	snaps     uint64
}

// New creates a Service with a zero angle record.
func New() *Service {
	return &Service{}
}

// Observe routes a tick state to the appropriate write path: the first state
// primes the token baseline, a changed resume token snaps, anything else is
// a normal tick.
func (s *Service) Observe(st timebase.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		s.lastToken = st.ResumeToken
		s.angles = Compute(st.NowTime)
		return
	}
	if st.ResumeToken != s.lastToken {
		s.lastToken = st.ResumeToken
		s.snapLocked(st.NowTime)
		return
	}
	s.angles = Compute(st.NowTime)
}

// Tick recomputes the record for t on the normal per-second path.
func (s *Service) Tick(t time.Time) {
	s.mu.Lock()
	s.angles = Compute(t)
	s.mu.Unlock()
}

// Snap force-sets the record to the instantaneous angles for t, abandoning
// any in-flight interpolation. The render loop observes a single jump, never
// a multi-second catch-up sweep.
func (s *Service) Snap(t time.Time) {
	s.mu.Lock()
	s.snapLocked(t)
	s.mu.Unlock()
}

func (s *Service) snapLocked(t time.Time) {
	s.angles = Compute(t)
	s.snaps++
}

// Angles returns the current record. The full record is always written
// atomically by a single writer, so readers never see a torn update.
func (s *Service) Angles() Angles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.angles
}

// Snaps reports how many times the snap path has run.
func (s *Service) Snaps() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snaps
}
