// Package httpapi serves the clock state, session windows, calendar day
// sequences, and economic events over HTTP and a websocket tick stream.
package httpapi

import (
	"tradeclock/internal/domain"
	"tradeclock/internal/events"
	"tradeclock/internal/hands"
	"tradeclock/internal/session"
)

// HandsJSON carries the analog hand angles plus the snap counter, so a
// client can tell a smooth tick from a post-resume jump.
type HandsJSON struct {
	Hour   float64 `json:"hour"`
	Minute float64 `json:"minute"`
	Second float64 `json:"second"`
	Snaps  uint64  `json:"snaps"`
}

// SessionWindowJSON is a resolved session occurrence.
type SessionWindowJSON struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Start string `json:"start"` // RFC3339 in the reference timezone
	End   string `json:"end"`
}

// SessionSnapshotJSON pairs the active and next session with countdowns.
type SessionSnapshotJSON struct {
	Active      *SessionWindowJSON `json:"active,omitempty"`
	Next        *SessionWindowJSON `json:"next,omitempty"`
	TimeToEnd   *int64             `json:"timeToEnd,omitempty"`   // seconds
	TimeToStart *int64             `json:"timeToStart,omitempty"` // seconds
}

// EventJSON is one economic event with its classification for the current
// instant.
type EventJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Impact  string `json:"impact,omitempty"`
	EpochMs int64  `json:"epochMs"`
	Now     bool   `json:"now,omitempty"`
	Next    bool   `json:"next,omitempty"`
}

// ClockResponse is the full clock state, served on /api/clock and streamed
// on /ws/clock once per second.
type ClockResponse struct {
	Timezone      string              `json:"timezone"`
	EpochMs       int64               `json:"epochMs"`
	Time          string              `json:"time"` // RFC3339 in the reference timezone
	DayKey        string              `json:"dayKey"`
	TradingDay    bool                `json:"tradingDay"`
	ResumeToken   uint64              `json:"resumeToken"`
	Hands         HandsJSON           `json:"hands"`
	Session       SessionSnapshotJSON `json:"session"`
	NextEvent     *EventJSON          `json:"nextEvent,omitempty"`
	NextCountdown string              `json:"nextCountdown,omitempty"` // "H:MM:SS"
}

// SessionsResponse lists the configured sessions and their current
// resolution.
type SessionsResponse struct {
	Timezone string              `json:"timezone"`
	Sessions []SessionConfigJSON `json:"sessions"`
	Snapshot SessionSnapshotJSON `json:"snapshot"`
}

// SessionConfigJSON is a configured session as declared, before resolution.
type SessionConfigJSON struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Start string `json:"start"` // "HH:MM"
	End   string `json:"end"`
}

// CalendarDayJSON is one day of a calendar range.
type CalendarDayJSON struct {
	Key     string `json:"key"` // YYYY-MM-DD
	Trading bool   `json:"trading"`
}

// CalendarResponse is a day sequence between two instants.
type CalendarResponse struct {
	Timezone  string            `json:"timezone"`
	Days      []CalendarDayJSON `json:"days"`
	Truncated bool              `json:"truncated"`
}

// DayEventsResponse lists the events bucketed into one calendar day.
type DayEventsResponse struct {
	Day    string      `json:"day"`
	Events []EventJSON `json:"events"`
}

func convertWindow(w *domain.ResolvedWindow) *SessionWindowJSON {
	if w == nil {
		return nil
	}
	return &SessionWindowJSON{
		Name:  w.Session.Name,
		Color: w.Session.ColorToken,
		Start: w.Start.Format("2006-01-02T15:04:05Z07:00"),
		End:   w.End.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func convertSnapshot(s session.Snapshot) SessionSnapshotJSON {
	return SessionSnapshotJSON{
		Active:      convertWindow(s.Active),
		Next:        convertWindow(s.Next),
		TimeToEnd:   s.TimeToEnd,
		TimeToStart: s.TimeToStart,
	}
}

func convertHands(a hands.Angles, snaps uint64) HandsJSON {
	return HandsJSON{
		Hour:   a.Hour,
		Minute: a.Minute,
		Second: a.Second,
		Snaps:  snaps,
	}
}

// convertEvents flattens an event list against a classification, skipping
// events without a resolvable timestamp.
func convertEvents(evs []domain.Event, cls events.Classification) []EventJSON {
	out := make([]EventJSON, 0, len(evs))
	for _, ev := range evs {
		ms, ok := domain.ResolveEpoch(ev)
		if !ok {
			continue
		}
		key := domain.DefaultKey(ev)
		_, isNow := cls.NowKeys[key]
		_, isNext := cls.NextKeys[key]
		out = append(out, EventJSON{
			ID:      ev.Identifier(),
			Name:    ev.Name,
			Country: ev.Country,
			Impact:  ev.Impact,
			EpochMs: ms,
			Now:     isNow,
			Next:    isNext,
		})
	}
	return out
}
