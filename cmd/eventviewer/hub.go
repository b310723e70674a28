package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hyy20190326/luis-0509/internal/models"
)

// Hub fans notifications out to every connected browser.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan models.Notification
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan models.Notification, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Msg("Client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Msg("Client disconnected")

		case event := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Warn().Err(err).Msg("Write error")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// publish drops the event when the broadcast buffer is full.
func (h *Hub) publish(n models.Notification) {
	select {
	case h.broadcast <- n:
	default:
		log.Warn().Str("session", n.Session).Msg("Viewer backlog full, dropping event")
	}
}

func (h *Hub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade error")
			return
		}
		hub.register <- conn

		go func() {
			defer func() {
				hub.unregister <- conn
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// notifyHandler accepts the service's notification POSTs. When authKey is set
// the Authorization header must match it.
func notifyHandler(hub *Hub, authKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if authKey != "" && r.Header.Get("Authorization") != authKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var n models.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			log.Warn().Err(err).Msg("JSON unmarshal error")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		logEvent("http", n)
		hub.publish(n)
		w.WriteHeader(http.StatusNoContent)
	}
}

func logEvent(source string, n models.Notification) {
	ev := log.Info().
		Str("source", source).
		Str("session", n.Session).
		Str("event", n.Event)
	if n.Text != nil {
		ev = ev.Str("text", truncate(*n.Text, 40))
	}
	if n.Intention != nil {
		ev = ev.Str("intention", *n.Intention)
	}
	ev.Msg("Received")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
