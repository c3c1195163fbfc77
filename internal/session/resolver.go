// Package session resolves which configured trading session is active and
// which comes next at a given instant, with correct midnight-crossing
// semantics for overnight sessions.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"tradeclock/internal/domain"
)

// Snapshot is the result of resolving the session list against one instant.
// At most one session is active and at most one is next; countdowns are nil
// when the corresponding session is absent.
type Snapshot struct {
	Active *domain.ResolvedWindow
	Next   *domain.ResolvedWindow

	TimeToEnd   *int64 // whole seconds until the active session ends
	TimeToStart *int64 // whole seconds until the next session starts
}

// Resolver computes session windows in a fixed reference timezone.
type Resolver struct {
	sessions []domain.Session
	loc      *time.Location
	log      *slog.Logger
}

// NewResolver creates a Resolver for the given sessions and IANA timezone.
// An unrecognised timezone falls back to the host-local zone with a warning.
func NewResolver(sessions []domain.Session, tz string, log *slog.Logger) *Resolver {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid session timezone, falling back to host-local zone", "tz", tz, "error", err)
		loc = time.Local
	}
	return &Resolver{
		sessions: sessions,
		loc:      loc,
		log:      log,
	}
}

// Location returns the resolver's reference timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve computes the active and next sessions at now.
//
// For each session the window anchored on now's calendar day is built first;
// an end at or before the start rolls the end to the next day (overnight
// wrap). A wrapped window opened yesterday may still contain now, so that
// occurrence is checked before concluding the session has not started yet.
// A window whose occurrence has already elapsed advances to tomorrow and
// competes as upcoming.
//
// Among active candidates the most recently started wins; among upcoming
// candidates the earliest start wins. Both ties break by declaration order.
func (r *Resolver) Resolve(now time.Time) Snapshot {
	now = now.In(r.loc)
	y, mo, d := now.Date()

	var snap Snapshot
	var bestActiveAge time.Duration

	for _, s := range r.sessions {
		startH, startM, err := parseClock(s.Start)
		if err != nil {
			r.log.Debug("skipping session with malformed start", "session", s.Name, "start", s.Start, "error", err)
			continue
		}
		endH, endM, err := parseClock(s.End)
		if err != nil {
			r.log.Debug("skipping session with malformed end", "session", s.Name, "end", s.End, "error", err)
			continue
		}

		start := time.Date(y, mo, d, startH, startM, 0, 0, r.loc)
		end := time.Date(y, mo, d, endH, endM, 0, 0, r.loc)

		// Zero-width window: never active, always upcoming for the next
		// occurrence of its start time.
		if end.Equal(start) {
			if !now.Before(start) {
				start = start.AddDate(0, 0, 1)
			}
			snap.considerUpcoming(domain.ResolvedWindow{Session: s, Start: start, End: start})
			continue
		}

		wrapped := end.Before(start)
		if wrapped {
			end = end.AddDate(0, 0, 1)
			// Yesterday's occurrence of an overnight session can still be
			// open in the early hours of today.
			if now.Before(start) {
				prevStart := start.AddDate(0, 0, -1)
				prevEnd := end.AddDate(0, 0, -1)
				if !now.Before(prevStart) && now.Before(prevEnd) {
					start, end = prevStart, prevEnd
				}
			}
		}

		win := domain.ResolvedWindow{Session: s, Start: start, End: end}

		switch {
		case !now.Before(start) && now.Before(end):
			age := now.Sub(start)
			if snap.Active == nil || age < bestActiveAge {
				active := win
				snap.Active = &active
				bestActiveAge = age
			}
		case !now.Before(start):
			// Today's occurrence has elapsed; compete with tomorrow's.
			win.Start = start.AddDate(0, 0, 1)
			win.End = end.AddDate(0, 0, 1)
			snap.considerUpcoming(win)
		default:
			snap.considerUpcoming(win)
		}
	}

	if snap.Active != nil {
		secs := int64(snap.Active.End.Sub(now) / time.Second)
		snap.TimeToEnd = &secs
	}
	if snap.Next != nil {
		secs := int64(snap.Next.Start.Sub(now) / time.Second)
		snap.TimeToStart = &secs
	}

	return snap
}

// considerUpcoming keeps the candidate with the earliest start. A strict
// comparison preserves declaration order on ties.
func (s *Snapshot) considerUpcoming(win domain.ResolvedWindow) {
	if s.Next == nil || win.Start.Before(s.Next.Start) {
		next := win
		s.Next = &next
	}
}

// parseClock parses an "HH:MM" string into hour and minute components.
func parseClock(v string) (int, int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing %q as HH:MM: %w", v, err)
	}
	return t.Hour(), t.Minute(), nil
}
