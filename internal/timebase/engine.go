// Package timebase provides the shared wall-clock tick source for the
// trading clock. One engine exists per timezone, reference counted across
// subscribers, so any number of displays tick from the same second-aligned
// timer and observe identical state snapshots. A monotonic resume token lets
// consumers detect time that elapsed while the process was suspended.
package timebase

import (
	"log/slog"
	"sync"
	"time"
)

// suspendGap is the wall-clock gap between consecutive ticks beyond which
// the engine treats the tick as a resume from suspension rather than a
// normal second boundary.
const suspendGap = 5 * time.Second

// State is the snapshot delivered to subscribers on every tick. All
// subscribers of one engine receive the same State value per tick.
type State struct {
	NowEpochMs  int64
	NowTime     time.Time // current time in the engine's location
	ResumeToken uint64    // increments once per detected resume, never decreases
}

// Handle is one subscription to an engine. C delivers state snapshots with
// latest-wins semantics: a slow consumer skips intermediate ticks but always
// receives the newest state. Close releases the subscription; closing the
// last handle for a timezone tears down its timer.
type Handle struct {
	C <-chan State

	eng  *engine
	id   int
	once sync.Once
}

// State returns the engine's current snapshot without waiting for a tick.
func (h *Handle) State() State {
	return h.eng.snapshot()
}

// Close releases the subscription. Safe to call more than once.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.eng.unsubscribe(h.id)
	})
}

// Registry owns the per-timezone engines.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*engine
	log     *slog.Logger
	nowFn   func() time.Time
}

// NewRegistry creates an empty Registry logging through log.
func NewRegistry(log *slog.Logger) *Registry {
	return newRegistry(log, time.Now)
}

// newRegistry allows tests to inject the wall-clock function.
func newRegistry(log *slog.Logger, nowFn func() time.Time) *Registry {
	return &Registry{
		engines: make(map[string]*engine),
		log:     log,
		nowFn:   nowFn,
	}
}

// Subscribe registers a consumer for the given IANA timezone and returns its
// handle. Subscribers to the same timezone share one underlying timer. An
// unrecognised timezone falls back to the host-local zone with a warning;
// Subscribe never fails for that case.
func (r *Registry) Subscribe(tz string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	eng, ok := r.engines[tz]
	if !ok {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			r.log.Warn("invalid timezone, falling back to host-local zone", "tz", tz, "error", err)
			loc = time.Local
		}
		eng = newEngine(r, tz, loc, r.nowFn)
		r.engines[tz] = eng
		go eng.run()
	}
	return eng.subscribe()
}

// NotifyResume signals a host-level foreground/visibility transition to all
// engines. Each engine recomputes its state from the wall clock and bumps
// its resume token. Engines also detect suspension on their own from tick
// gaps, so this hook is only needed when the host has an explicit signal.
func (r *Registry) NotifyResume() {
	r.mu.Lock()
	engines := make([]*engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	r.mu.Unlock()

	for _, e := range engines {
		select {
		case e.resumec <- struct{}{}:
		default:
		}
	}
}

// EngineCount reports how many per-timezone engines are currently live.
func (r *Registry) EngineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// maybeDrop removes and stops an engine once its last subscriber is gone.
// Lock order is registry then engine, matching Subscribe.
func (r *Registry) maybeDrop(e *engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.subs) > 0 || e.stopped {
		return
	}
	if r.engines[e.tz] == e {
		delete(r.engines, e.tz)
	}
	e.stopped = true
	close(e.stopc)
}

// ---------------------------------------------------------------------------
// engine
// ---------------------------------------------------------------------------

type engine struct {
	reg *Registry
	tz  string
	loc *time.Location
	now func() time.Time

	stopc   chan struct{}
	resumec chan struct{}

	mu      sync.Mutex
	st      State
	subs    map[int]chan State
	nextID  int
	stopped bool
}

func newEngine(reg *Registry, tz string, loc *time.Location, nowFn func() time.Time) *engine {
	now := nowFn()
	return &engine{
		reg:     reg,
		tz:      tz,
		loc:     loc,
		now:     nowFn,
		stopc:   make(chan struct{}),
		resumec: make(chan struct{}, 1),
		st: State{
			NowEpochMs: now.UnixMilli(),
			NowTime:    now.In(loc),
		},
		subs: make(map[int]chan State),
	}
}

// alignDelay computes how long to wait so the first tick lands on the next
// wall-clock second boundary.
func alignDelay(now time.Time) time.Duration {
	return time.Duration(1000-now.UnixMilli()%1000) * time.Millisecond
}

// run drives the tick loop: one aligned first tick, then every second until
// the engine is stopped.
func (e *engine) run() {
	first := time.NewTimer(alignDelay(e.now()))
	defer first.Stop()

	var ticker *time.Ticker
	var tickc <-chan time.Time

	for {
		select {
		case <-e.stopc:
			if ticker != nil {
				ticker.Stop()
			}
			return
		case <-first.C:
			e.tick()
			ticker = time.NewTicker(time.Second)
			tickc = ticker.C
		case <-tickc:
			e.tick()
		case <-e.resumec:
			e.resume()
		}
	}
}

// tick recomputes state from the wall clock. A gap larger than suspendGap
// since the previous tick means the process was suspended; the elapsed time
// is never replayed, the state jumps straight to the present and the resume
// token increments.
func (e *engine) tick() {
	now := e.now()

	e.mu.Lock()
	st := State{
		NowEpochMs:  now.UnixMilli(),
		NowTime:     now.In(e.loc),
		ResumeToken: e.st.ResumeToken,
	}
	if st.NowEpochMs-e.st.NowEpochMs > suspendGap.Milliseconds() {
		st.ResumeToken++
	}
	e.st = st
	e.broadcastLocked(st)
	e.mu.Unlock()
}

// resume handles an explicit host resume signal: state is recomputed from
// the wall clock and the resume token increments unconditionally.
func (e *engine) resume() {
	now := e.now()

	e.mu.Lock()
	st := State{
		NowEpochMs:  now.UnixMilli(),
		NowTime:     now.In(e.loc),
		ResumeToken: e.st.ResumeToken + 1,
	}
	e.st = st
	e.broadcastLocked(st)
	e.mu.Unlock()
}

// broadcastLocked delivers st to every subscriber without blocking. Each
// subscriber channel holds one element; when full, the stale state is
// replaced so consumers always read the latest snapshot.
func (e *engine) broadcastLocked(st State) {
	for _, ch := range e.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

func (e *engine) snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

func (e *engine) subscribe() *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	ch := make(chan State, 1)
	e.subs[id] = ch
	// Seed with the current state so new subscribers render immediately.
	ch <- e.st
	return &Handle{C: ch, eng: e, id: id}
}

func (e *engine) unsubscribe(id int) {
	e.mu.Lock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
	empty := len(e.subs) == 0
	e.mu.Unlock()

	if empty {
		e.reg.maybeDrop(e)
	}
}
