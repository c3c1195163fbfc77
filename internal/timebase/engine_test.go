package timebase

import (
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeClock is a mutex-guarded manual clock. The engine's run loop reads it
// from its own goroutine, so accesses must be synchronized.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{t: time.UnixMilli(ms)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

func TestAlignDelay(t *testing.T) {
	base := time.UnixMilli(1700000000250)
	if got := alignDelay(base); got != 750*time.Millisecond {
		t.Errorf("alignDelay = %v, want %v", got, 750*time.Millisecond)
	}
	// Exactly on the boundary: wait a full second for the next one.
	if got := alignDelay(time.UnixMilli(1700000000000)); got != time.Second {
		t.Errorf("alignDelay at boundary = %v, want %v", got, time.Second)
	}
}

func TestSubscribersShareOneEngine(t *testing.T) {
	r := NewRegistry(testLogger())

	h1 := r.Subscribe("UTC")
	h2 := r.Subscribe("UTC")
	h3 := r.Subscribe("UTC")
	defer h3.Close()

	if got := r.EngineCount(); got != 1 {
		t.Fatalf("EngineCount = %d after 3 subscribers to one tz, want 1", got)
	}

	// Every handle is seeded with the current state without waiting a tick.
	select {
	case st := <-h1.C:
		if st.NowEpochMs == 0 {
			t.Error("seed state has zero NowEpochMs")
		}
	default:
		t.Error("subscriber channel not seeded with current state")
	}

	h1.Close()
	h2.Close()
	if got := r.EngineCount(); got != 1 {
		t.Errorf("EngineCount = %d while one subscriber remains, want 1", got)
	}

	h3.Close()
	if got := r.EngineCount(); got != 0 {
		t.Errorf("EngineCount = %d after all subscribers closed, want 0", got)
	}
}

func TestDistinctTimezonesDistinctEngines(t *testing.T) {
	r := NewRegistry(testLogger())

	h1 := r.Subscribe("UTC")
	defer h1.Close()
	h2 := r.Subscribe("America/New_York")
	defer h2.Close()

	if got := r.EngineCount(); got != 2 {
		t.Errorf("EngineCount = %d for two timezones, want 2", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := NewRegistry(testLogger())
	h := r.Subscribe("UTC")
	h.Close()
	h.Close()
	if got := r.EngineCount(); got != 0 {
		t.Errorf("EngineCount = %d, want 0", got)
	}
}

func TestNoTicksAfterTeardown(t *testing.T) {
	r := NewRegistry(testLogger())
	h := r.Subscribe("UTC")
	<-h.C // drain seed
	h.Close()

	// The channel is closed on unsubscribe. At most one buffered tick may
	// remain from before Close; after that the channel reports closed.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-h.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel was not closed after teardown")
		}
	}
}

func TestInvalidTimezoneFallsBack(t *testing.T) {
	r := NewRegistry(testLogger())
	h := r.Subscribe("Not/AZone")
	defer h.Close()

	st := h.State()
	if st.NowEpochMs == 0 {
		t.Error("fallback engine should still carry a wall-clock state")
	}
	if got := r.EngineCount(); got != 1 {
		t.Errorf("EngineCount = %d, want 1", got)
	}
}

func TestTickKeepsResumeTokenWithoutGap(t *testing.T) {
	clk := newFakeClock(1700000000000)
	r := newRegistry(testLogger(), clk.Now)

	h := r.Subscribe("UTC")
	defer h.Close()
	<-h.C // seed

	want := clk.Advance(time.Second)
	h.eng.tick()

	st := <-h.C
	if st.ResumeToken != 0 {
		t.Errorf("ResumeToken = %d after normal tick, want 0", st.ResumeToken)
	}
	if st.NowEpochMs != want.UnixMilli() {
		t.Errorf("NowEpochMs = %d, want %d", st.NowEpochMs, want.UnixMilli())
	}
}

func TestSuspendGapBumpsResumeToken(t *testing.T) {
	clk := newFakeClock(1700000000000)
	r := newRegistry(testLogger(), clk.Now)

	h := r.Subscribe("UTC")
	defer h.Close()
	<-h.C

	// Simulate a 5-minute suspension: the next tick observes the full gap.
	want := clk.Advance(5 * time.Minute)
	h.eng.tick()

	st := <-h.C
	if st.ResumeToken != 1 {
		t.Errorf("ResumeToken = %d after suspend gap, want 1", st.ResumeToken)
	}
	// Time jumps straight to the present, it is never replayed.
	if st.NowEpochMs != want.UnixMilli() {
		t.Errorf("NowEpochMs = %d, want %d", st.NowEpochMs, want.UnixMilli())
	}

	// Token is monotonic across later normal ticks.
	clk.Advance(time.Second)
	h.eng.tick()
	st = <-h.C
	if st.ResumeToken != 1 {
		t.Errorf("ResumeToken = %d after follow-up tick, want 1", st.ResumeToken)
	}
}

func TestExplicitResumeBumpsToken(t *testing.T) {
	clk := newFakeClock(1700000000000)
	r := newRegistry(testLogger(), clk.Now)

	h := r.Subscribe("UTC")
	defer h.Close()
	<-h.C

	clk.Advance(2 * time.Second)
	h.eng.resume()

	st := <-h.C
	if st.ResumeToken != 1 {
		t.Errorf("ResumeToken = %d after explicit resume, want 1", st.ResumeToken)
	}
}

func TestSlowSubscriberSeesLatestState(t *testing.T) {
	clk := newFakeClock(1700000000000)
	r := newRegistry(testLogger(), clk.Now)

	h := r.Subscribe("UTC")
	defer h.Close()
	// Do not drain the seed: the buffer is full when the ticks arrive.

	clk.Advance(time.Second)
	h.eng.tick()
	want := clk.Advance(time.Second)
	h.eng.tick()

	st := <-h.C
	if st.NowEpochMs != want.UnixMilli() {
		t.Errorf("slow subscriber read NowEpochMs = %d, want latest %d", st.NowEpochMs, want.UnixMilli())
	}
}
