package calendar

import (
	"testing"
	"time"

	"tradeclock/internal/domain"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("loading %s: %v", name, err)
	}
	return loc
}

func TestDayKey(t *testing.T) {
	ny := mustLoc(t, "America/New_York")

	// 2024-06-11 03:00 UTC is still 2024-06-10 in New York.
	ts := time.Date(2024, 6, 11, 3, 0, 0, 0, time.UTC)
	if got := DayKey(ts, ny); got != "2024-06-10" {
		t.Errorf("DayKey = %q, want %q", got, "2024-06-10")
	}
	if got := DayKey(ts, time.UTC); got != "2024-06-11" {
		t.Errorf("DayKey = %q, want %q", got, "2024-06-11")
	}
}

func TestDayKeyStable(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	ts := time.Date(2024, 3, 10, 6, 30, 0, 0, time.UTC)
	first := DayKey(ts, ny)
	second := DayKey(ts, ny)
	if first != second {
		t.Errorf("DayKey not idempotent: %q then %q", first, second)
	}
}

func TestDayKeyInvalidInputs(t *testing.T) {
	if got := DayKey(time.Time{}, time.UTC); got != "" {
		t.Errorf("DayKey(zero) = %q, want empty", got)
	}
	if got := DayKey(time.Now(), nil); got != "" {
		t.Errorf("DayKey(nil loc) = %q, want empty", got)
	}
}

func TestBuildDaySequenceSingleDay(t *testing.T) {
	ny := mustLoc(t, "America/New_York")

	start := time.Date(2024, 6, 11, 9, 0, 0, 0, ny)
	end := time.Date(2024, 6, 11, 23, 59, 59, 0, ny)
	keys, truncated := BuildDaySequence(start, end, ny)

	if truncated {
		t.Error("single-day range reported truncated")
	}
	if len(keys) != 1 || keys[0] != "2024-06-11" {
		t.Errorf("keys = %v, want exactly [2024-06-11]", keys)
	}

	// Identical bounds also produce exactly one key.
	keys, _ = BuildDaySequence(start, start, ny)
	if len(keys) != 1 {
		t.Errorf("start == end produced %d keys, want 1", len(keys))
	}
}

func TestBuildDaySequenceMultiDay(t *testing.T) {
	ny := mustLoc(t, "America/New_York")

	start := time.Date(2024, 6, 10, 15, 0, 0, 0, ny)
	end := time.Date(2024, 6, 14, 2, 0, 0, 0, ny)
	keys, truncated := BuildDaySequence(start, end, ny)

	want := []string{"2024-06-10", "2024-06-11", "2024-06-12", "2024-06-13", "2024-06-14"}
	if truncated {
		t.Error("short range reported truncated")
	}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestBuildDaySequenceAcrossDSTSpringForward(t *testing.T) {
	// US spring forward: 2024-03-10, local day is 23 hours long.
	ny := mustLoc(t, "America/New_York")

	start := time.Date(2024, 3, 8, 12, 0, 0, 0, ny)
	end := time.Date(2024, 3, 12, 12, 0, 0, 0, ny)
	keys, truncated := BuildDaySequence(start, end, ny)

	want := []string{"2024-03-08", "2024-03-09", "2024-03-10", "2024-03-11", "2024-03-12"}
	if truncated {
		t.Error("DST range reported truncated")
	}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestBuildDaySequenceAcrossDSTFallBack(t *testing.T) {
	// US fall back: 2024-11-03, local day is 25 hours long. The fixed 24h
	// walk must not duplicate or skip any key.
	ny := mustLoc(t, "America/New_York")

	start := time.Date(2024, 11, 1, 12, 0, 0, 0, ny)
	end := time.Date(2024, 11, 5, 12, 0, 0, 0, ny)
	keys, truncated := BuildDaySequence(start, end, ny)

	want := []string{"2024-11-01", "2024-11-02", "2024-11-03", "2024-11-04", "2024-11-05"}
	if truncated {
		t.Error("DST range reported truncated")
	}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestBuildDaySequenceStrictlyIncreasing(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	start := time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)

	keys, _ := BuildDaySequence(start, end, ny)
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			t.Fatalf("keys not strictly increasing at %d: %q then %q", i, keys[i-1], keys[i])
		}
	}
}

func TestBuildDaySequenceInvalidRange(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	start := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	if keys, _ := BuildDaySequence(start, end, ny); len(keys) != 0 {
		t.Errorf("reversed range produced %v, want empty", keys)
	}
	if keys, _ := BuildDaySequence(time.Time{}, end, ny); len(keys) != 0 {
		t.Errorf("zero start produced %v, want empty", keys)
	}
	if keys, _ := BuildDaySequence(start, end.AddDate(0, 0, 5), nil); len(keys) != 0 {
		t.Errorf("nil location produced %v, want empty", keys)
	}
}

func TestBuildDaySequenceSafetyCap(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(3, 0, 0) // ~1096 days, far past the cap

	keys, truncated := BuildDaySequence(start, end, time.UTC)
	if !truncated {
		t.Error("pathological range not reported as truncated")
	}
	if len(keys) > MaxDaySpan {
		t.Errorf("len(keys) = %d, exceeds the %d-day safety bound", len(keys), MaxDaySpan)
	}
}

func TestBucketEvents(t *testing.T) {
	ny := mustLoc(t, "America/New_York")

	inDay := time.Date(2024, 6, 11, 8, 30, 0, 0, ny)
	outside := time.Date(2024, 6, 13, 8, 30, 0, 0, ny)
	events := []domain.Event{
		{ID: "a", TimestampMs: inDay.UnixMilli()},
		{ID: "b", TimestampMs: outside.UnixMilli()},
		{ID: "c"}, // no timestamp
	}

	keys := []string{"2024-06-11", "2024-06-12"}
	buckets := BucketEvents(events, keys, ny, domain.ResolveEpoch)

	if len(buckets) != 2 {
		t.Fatalf("len(buckets) = %d, want 2", len(buckets))
	}
	if got := buckets["2024-06-11"]; len(got) != 1 || got[0].ID != "a" {
		t.Errorf("buckets[2024-06-11] = %v, want [a]", got)
	}
	// An empty day still has an entry so it renders.
	if got, ok := buckets["2024-06-12"]; !ok || len(got) != 0 {
		t.Errorf("buckets[2024-06-12] = %v (present=%v), want empty slice", got, ok)
	}
}

func TestBucketEventsDropsSpillover(t *testing.T) {
	ny := mustLoc(t, "America/New_York")

	// 2024-06-12 01:00 UTC is 2024-06-11 21:00 in New York. With only the
	// UTC day key requested in NY time, the event's NY day differs from the
	// key set and the event must be dropped, not spilled into another day.
	ev := domain.Event{ID: "spill", TimestampMs: time.Date(2024, 6, 12, 1, 0, 0, 0, time.UTC).UnixMilli()}
	buckets := BucketEvents([]domain.Event{ev}, []string{"2024-06-12"}, ny, nil)

	if got := buckets["2024-06-12"]; len(got) != 0 {
		t.Errorf("buckets[2024-06-12] = %v, want empty (event belongs to 06-11 locally)", got)
	}
}
