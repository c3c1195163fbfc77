// Package calendar converts instant ranges into local calendar-day keys and
// buckets events into those days. Day keys are computed by formatting each
// instant in the target timezone, never by adding a cached UTC offset, so
// sequences stay correct across DST transitions.
package calendar

import (
	"time"

	"tradeclock/internal/domain"
)

// DayKeyLayout is the canonical format of a local calendar-day key.
const DayKeyLayout = "2006-01-02"

// MaxDaySpan bounds the length of a day sequence against pathological
// ranges. A truncated sequence is reported, not an error.
const MaxDaySpan = 400

// DayKey formats t as the YYYY-MM-DD key of its local calendar day in loc.
// Returns "" for a zero instant or nil location.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format(DayKeyLayout)
}

// BuildDaySequence returns the ordered keys of every local calendar day the
// range [start, end] touches in loc. The second return reports whether the
// walk hit MaxDaySpan and the sequence was truncated.
//
// When both bounds land on the same local day the sequence is exactly that
// one key, decided before any walking. This keeps a stray extra day from
// appearing when an end-of-day instant formats into the neighbouring day
// under a different offset.
func BuildDaySequence(start, end time.Time, loc *time.Location) ([]string, bool) {
	if loc == nil || start.IsZero() || end.IsZero() || start.After(end) {
		return nil, false
	}

	startKey := DayKey(start, loc)
	endKey := DayKey(end, loc)
	if startKey == endKey {
		return []string{startKey}, false
	}

	keys := []string{startKey}
	cur := start
	for i := 0; i < MaxDaySpan; i++ {
		// Fixed 24h UTC steps; the key is recomputed from scratch each step
		// because DST shifts the local-to-UTC delta mid-range.
		cur = cur.Add(24 * time.Hour)
		key := DayKey(cur, loc)
		if key != keys[len(keys)-1] {
			if len(keys) == MaxDaySpan {
				break
			}
			keys = append(keys, key)
		}
		if key == endKey {
			return keys, false
		}
	}
	return keys, true
}

// BucketEvents assigns events to the given day keys by their local calendar
// day in loc. Every key gets an entry even when no event lands on it, so
// empty days still render. An event whose day is not in the key set is
// dropped: a single-day view shows only that day, never spillover from
// timezone rounding. Events without a resolvable timestamp are dropped too.
func BucketEvents(events []domain.Event, dayKeys []string, loc *time.Location, epoch domain.EpochAccessor) map[string][]domain.Event {
	if epoch == nil {
		epoch = domain.ResolveEpoch
	}

	buckets := make(map[string][]domain.Event, len(dayKeys))
	for _, key := range dayKeys {
		buckets[key] = []domain.Event{}
	}

	for _, ev := range events {
		ms, ok := epoch(ev)
		if !ok {
			continue
		}
		key := DayKey(time.UnixMilli(ms), loc)
		if _, ok := buckets[key]; !ok {
			continue
		}
		buckets[key] = append(buckets[key], ev)
	}
	return buckets
}
