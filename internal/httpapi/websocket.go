package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST routes are already open to any origin; the stream matches.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleClockStream streams the clock state once per second over a
// websocket. Each connection holds its own tick subscription, so the engine
// for the timezone stays alive exactly as long as someone is watching. A
// client may send the text message "resume" after a suspension to force a
// snap instead of waiting for gap detection.
func (s *ClockServer) handleClockStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	h := s.registry.Subscribe(s.tz)
	defer h.Close()

	// Read pump: consume control frames and resume signals until the client
	// goes away, then unblock the write loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "resume" {
				s.registry.NotifyResume()
			}
		}
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case _, ok := <-h.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(s.buildClock(ctx)); err != nil {
				return
			}
		}
	}
}
