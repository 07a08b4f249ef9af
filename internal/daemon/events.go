package daemon

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"bookforge/internal/logging"
	"bookforge/internal/workflow"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = eventPongWait * 9 / 10
)

// handleEvents upgrades to a websocket and streams workflow events for one
// book. The first message is a status snapshot so clients need not poll first.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	progress, err := s.daemon.workflow.Progress(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(s.origins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(s.origins, origin)
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.daemon.workflow.Subscribe(id)
	defer cancel()

	// The read loop only services control frames and notices disconnects.
	done := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := workflow.Event{
		Type:       workflow.EventStatus,
		BookID:     progress.BookID,
		Status:     progress.Status,
		Generation: progress.Generation,
		Generated:  progress.GeneratedChapters,
		Total:      progress.TotalChapters,
		Error:      progress.Error,
		Time:       time.Now().UTC(),
	}
	if err := writeEvent(conn, snapshot); err != nil {
		return
	}

	ticker := time.NewTicker(eventPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			closeSocket(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-done:
			return
		case evt, ok := <-events:
			if !ok {
				closeSocket(conn, websocket.CloseGoingAway, "event stream closed")
				return
			}
			if err := writeEvent(conn, evt); err != nil {
				return
			}
			if evt.Type == workflow.EventDeleted {
				closeSocket(conn, websocket.CloseNormalClosure, "book deleted")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, evt workflow.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(evt)
}

func closeSocket(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteWait))
}
