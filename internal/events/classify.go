// Package events classifies economic-calendar events relative to the
// current instant: which are in progress right now, and which single event
// comes up next.
package events

import (
	"fmt"
	"time"

	"tradeclock/internal/domain"
)

// Classification is the result of classifying an event list against one
// instant. NextKeys holds at most one key; it is kept as a set so both
// groups are consumed uniformly.
type Classification struct {
	NowKeys     map[string]struct{}
	NextKeys    map[string]struct{}
	NextEpochMs int64 // 0 when no upcoming event exists
}

// Classify splits events into NOW and NEXT relative to nowMs.
//
// An event is NOW when its epoch lies within windowMs of nowMs on either
// side. The window is symmetric around the present; whether the product
// intent was a one-sided "started recently and still running" rule is an
// open ambiguity upstream, and the symmetric reading is implemented here.
//
// NEXT is the single non-NOW event with the smallest epoch strictly greater
// than nowMs; ties break by input order. Events without a resolvable
// timestamp are ignored.
func Classify(evs []domain.Event, nowMs, windowMs int64, epoch domain.EpochAccessor, key domain.KeyFunc) Classification {
	if epoch == nil {
		epoch = domain.ResolveEpoch
	}
	if key == nil {
		key = domain.DefaultKey
	}

	c := Classification{
		NowKeys:  make(map[string]struct{}),
		NextKeys: make(map[string]struct{}),
	}

	var bestMs int64
	var bestKey string
	found := false

	for _, ev := range evs {
		ms, ok := epoch(ev)
		if !ok {
			continue
		}

		delta := ms - nowMs
		if delta < 0 {
			delta = -delta
		}
		if delta <= windowMs {
			c.NowKeys[key(ev)] = struct{}{}
			continue
		}

		if ms > nowMs && (!found || ms < bestMs) {
			found = true
			bestMs = ms
			bestKey = key(ev)
		}
	}

	if found {
		c.NextKeys[bestKey] = struct{}{}
		c.NextEpochMs = bestMs
	}
	return c
}

// FormatCountdown renders a duration as H:MM:SS, clamped to zero. Hours are
// not padded and carry the full remaining count (25:00:00 is a valid value).
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int64(d / time.Hour)
	m := int64(d % time.Hour / time.Minute)
	s := int64(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
