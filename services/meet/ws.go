package meet

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the reverse proxy in front of meetd.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleSessionSocket attaches a WebSocket connection to the session's
// room and streams every fan-out message to it until either side goes
// away. Clients only listen; inbound frames are drained for close
// detection.
func (a *API) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	if a.store.Hub == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("fan-out layer not initialized"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	s, err := a.coordinator.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if s == nil {
		respondError(w, http.StatusNotFound, ErrSessionNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error.
		return
	}

	sub := a.store.Hub.Subscribe(RoomKey(id))
	wsConnections.Inc()
	defer func() {
		wsConnections.Dec()
		a.store.Hub.Unsubscribe(sub)
		conn.Close()
	}()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(map[string]any{
				"event":   msg.Event,
				"payload": msg.Payload,
			}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
