package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tradeclock/internal/calendar"
	"tradeclock/internal/domain"
	"tradeclock/internal/events"
	"tradeclock/internal/hands"
	"tradeclock/internal/holidays"
	"tradeclock/internal/session"
	"tradeclock/internal/store"
	"tradeclock/internal/timebase"
)

// eventFetchBack and eventFetchAhead bound the store query backing the
// clock's NOW/NEXT classification, wide enough to cover timezone offsets on
// either side of the current day.
const (
	eventFetchBack  = 24 * time.Hour
	eventFetchAhead = 48 * time.Hour

	// defaultCalendarDays is the range served when /api/calendar gets no
	// explicit end.
	defaultCalendarDays = 14
)

// ClockServer serves the trading clock HTTP API. It holds one subscription
// to the shared tick source and fans the state out to request handlers and
// websocket clients.
type ClockServer struct {
	registry *timebase.Registry
	resolver *session.Resolver
	sessions []domain.Session
	events   store.EventStore   // nil when no event storage is configured
	trading  *holidays.Calendar // nil disables trading-day flags
	hands    *hands.Service
	log      *slog.Logger

	tz        string
	nowWindow time.Duration

	mu    sync.RWMutex
	state timebase.State
}

// NewClockServer creates a ClockServer. eventStore and tradingCalendar may
// be nil; the corresponding response fields degrade gracefully.
func NewClockServer(
	registry *timebase.Registry,
	resolver *session.Resolver,
	sessions []domain.Session,
	eventStore store.EventStore,
	tradingCalendar *holidays.Calendar,
	tz string,
	nowWindow time.Duration,
	log *slog.Logger,
) *ClockServer {
	return &ClockServer{
		registry:  registry,
		resolver:  resolver,
		sessions:  sessions,
		events:    eventStore,
		trading:   tradingCalendar,
		hands:     hands.New(),
		log:       log,
		tz:        tz,
		nowWindow: nowWindow,
	}
}

// Run consumes the tick stream until ctx is cancelled, feeding the hand
// service and caching the latest state for request handlers. Blocks; run it
// in its own goroutine.
func (s *ClockServer) Run(ctx context.Context) {
	h := s.registry.Subscribe(s.tz)
	defer h.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-h.C:
			if !ok {
				return
			}
			s.hands.Observe(st)
			s.mu.Lock()
			s.state = st
			s.mu.Unlock()
		}
	}
}

// currentState returns the latest observed tick state, falling back to the
// wall clock before the first tick arrives.
func (s *ClockServer) currentState() timebase.State {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if st.NowTime.IsZero() {
		now := time.Now().In(s.resolver.Location())
		st = timebase.State{NowEpochMs: now.UnixMilli(), NowTime: now}
	}
	return st
}

// RegisterRoutes registers all API routes on the given mux.
func (s *ClockServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/clock", s.handleClock)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/events/{day}", s.handleDayEvents)
	mux.HandleFunc("POST /api/resume", s.handleResume)
	mux.HandleFunc("GET /ws/clock", s.handleClockStream)
}

// Handler returns an http.Handler with CORS middleware.
func (s *ClockServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// eventsAround fetches the stored events surrounding t for classification.
func (s *ClockServer) eventsAround(ctx context.Context, t time.Time) []domain.Event {
	if s.events == nil {
		return nil
	}
	evs, err := s.events.EventsBetween(ctx, t.Add(-eventFetchBack), t.Add(eventFetchAhead))
	if err != nil {
		s.log.Warn("loading events for clock state", "error", err)
		return nil
	}
	return evs
}

func (s *ClockServer) isTradingDay(dayKey string) bool {
	if s.trading == nil {
		return true
	}
	return s.trading.IsTradingDay(dayKey)
}

// buildClock assembles the full clock state for one instant.
func (s *ClockServer) buildClock(ctx context.Context) ClockResponse {
	st := s.currentState()
	loc := s.resolver.Location()
	dayKey := calendar.DayKey(st.NowTime, loc)

	resp := ClockResponse{
		Timezone:    s.tz,
		EpochMs:     st.NowEpochMs,
		Time:        st.NowTime.Format("2006-01-02T15:04:05Z07:00"),
		DayKey:      dayKey,
		TradingDay:  s.isTradingDay(dayKey),
		ResumeToken: st.ResumeToken,
		Hands:       convertHands(s.hands.Angles(), s.hands.Snaps()),
		Session:     convertSnapshot(s.resolver.Resolve(st.NowTime)),
	}

	evs := s.eventsAround(ctx, st.NowTime)
	if len(evs) == 0 {
		return resp
	}
	cls := events.Classify(evs, st.NowEpochMs, s.nowWindow.Milliseconds(), nil, nil)
	for _, ev := range convertEvents(evs, cls) {
		if ev.Next {
			next := ev
			resp.NextEvent = &next
			resp.NextCountdown = events.FormatCountdown(
				time.Duration(cls.NextEpochMs-st.NowEpochMs) * time.Millisecond)
			break
		}
	}
	return resp
}

func (s *ClockServer) handleClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.buildClock(r.Context()))
}

func (s *ClockServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	st := s.currentState()
	cfgs := make([]SessionConfigJSON, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cfgs = append(cfgs, SessionConfigJSON{
			Name:  sess.Name,
			Color: sess.ColorToken,
			Start: sess.Start,
			End:   sess.End,
		})
	}
	writeJSON(w, SessionsResponse{
		Timezone: s.tz,
		Sessions: cfgs,
		Snapshot: convertSnapshot(s.resolver.Resolve(st.NowTime)),
	})
}

func (s *ClockServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	loc := s.resolver.Location()
	now := s.currentState().NowTime

	start := now
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := parseDayOrInstant(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start %q", v))
			return
		}
		start = t
	}
	end := start.AddDate(0, 0, defaultCalendarDays-1)
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := parseDayOrInstant(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end %q", v))
			return
		}
		end = t
	}

	keys, truncated := calendar.BuildDaySequence(start, end, loc)
	if keys == nil {
		writeError(w, http.StatusBadRequest, "end precedes start")
		return
	}

	days := make([]CalendarDayJSON, 0, len(keys))
	for _, k := range keys {
		days = append(days, CalendarDayJSON{Key: k, Trading: s.isTradingDay(k)})
	}
	writeJSON(w, CalendarResponse{Timezone: s.tz, Days: days, Truncated: truncated})
}

// parseDayOrInstant accepts either a YYYY-MM-DD day key (interpreted in
// loc) or a full RFC3339 instant.
func parseDayOrInstant(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(calendar.DayKeyLayout, v, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (s *ClockServer) handleDayEvents(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	loc := s.resolver.Location()
	dayStart, err := time.ParseInLocation(calendar.DayKeyLayout, day, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid day %q", day))
		return
	}

	var evs []domain.Event
	if s.events != nil {
		// Fetch a day either side so events land in the right local bucket
		// regardless of the timezone offset.
		evs, err = s.events.EventsBetween(r.Context(),
			dayStart.Add(-eventFetchBack), dayStart.AddDate(0, 0, 1).Add(eventFetchBack))
		if err != nil {
			s.log.Warn("loading events", "day", day, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load events")
			return
		}
	}

	buckets := calendar.BucketEvents(evs, []string{day}, loc, nil)
	st := s.currentState()
	cls := events.Classify(buckets[day], st.NowEpochMs, s.nowWindow.Milliseconds(), nil, nil)
	writeJSON(w, DayEventsResponse{Day: day, Events: convertEvents(buckets[day], cls)})
}

// handleResume is the host's explicit foreground signal; every engine
// re-reads the wall clock and bumps its resume token.
func (s *ClockServer) handleResume(w http.ResponseWriter, r *http.Request) {
	s.registry.NotifyResume()
	w.WriteHeader(http.StatusNoContent)
}
