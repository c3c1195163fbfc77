// Package domain defines the core types shared across the trading clock:
// sessions, calendar events, resolved windows, and the keys derived from them.
package domain

import (
	"fmt"
	"time"
)

// Session is a named recurring daily trading window, defined as time-of-day
// bounds in the clock's reference timezone. Sessions are supplied by
// configuration and never mutated by the core.
type Session struct {
	Name       string
	ColorToken string
	Start      string // "HH:MM" in the reference timezone
	End        string // "HH:MM"; End <= Start means the window spans midnight
}

// ResolvedWindow anchors a Session to concrete instants. It is recomputed on
// every tick and never persisted.
type ResolvedWindow struct {
	Session Session
	Start   time.Time
	End     time.Time
}

// Event is an externally supplied economic-calendar event. Exactly which
// timestamp field is populated depends on the upstream feed, so consumers
// resolve the epoch through an EpochAccessor instead of reading a fixed field.
type Event struct {
	ID      string
	Name    string
	Country string
	Impact  string

	// Timestamp-bearing fields; any subset may be set.
	TimestampMs int64  // Unix ms
	TimeUTC     string // RFC3339
	Date        string // "2006-01-02 15:04" or "2006-01-02", interpreted as UTC
}

// EpochAccessor resolves an event's timestamp to Unix milliseconds. The
// second return is false when the event carries no usable timestamp.
type EpochAccessor func(Event) (int64, bool)

// KeyFunc derives the stable membership key for an event.
type KeyFunc func(Event) string

// ResolveEpoch is the default EpochAccessor. It checks the timestamp-bearing
// fields in priority order: explicit Unix ms, RFC3339 string, date string.
func ResolveEpoch(ev Event) (int64, bool) {
	if ev.TimestampMs != 0 {
		return ev.TimestampMs, true
	}
	if ev.TimeUTC != "" {
		if t, err := time.Parse(time.RFC3339, ev.TimeUTC); err == nil {
			return t.UnixMilli(), true
		}
	}
	if ev.Date != "" {
		for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
			if t, err := time.ParseInLocation(layout, ev.Date, time.UTC); err == nil {
				return t.UnixMilli(), true
			}
		}
	}
	return 0, false
}

// Identifier returns the event's ID, falling back to its name when the feed
// did not assign one.
func (e Event) Identifier() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// EventKey builds the membership key for an event: identifier plus resolved
// epoch, so identically named events at different times do not collide. The
// epoch part is "na" when no timestamp resolves. Keys are stable for the
// lifetime of an event.
func EventKey(ev Event, epoch EpochAccessor) string {
	ms, ok := epoch(ev)
	if !ok {
		return ev.Identifier() + "-na"
	}
	return fmt.Sprintf("%s-%d", ev.Identifier(), ms)
}

// DefaultKey is EventKey with the default accessor.
func DefaultKey(ev Event) string {
	return EventKey(ev, ResolveEpoch)
}
