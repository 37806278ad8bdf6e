package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocket Upgrader (Gorilla)
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // phones load the page from anywhere
}

// Hub serves the receive-only push channel. Every connection is one member
// of the queue's subscriber set for as long as it stays open.
type Hub struct {
	queue domain.JobQueue

	// conns maps connection id to its socket so shutdown can close them.
	conns map[string]*websocket.Conn
	mu    sync.RWMutex
}

func NewHub(q domain.JobQueue) *Hub {
	return &Hub{
		queue: q,
		conns: make(map[string]*websocket.Conn),
	}
}

// ServeHTTP upgrades the request and streams payloads as text frames.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.WithField("error", err).Error("WebSocket upgrade failed")
		return
	}

	id := uuid.NewString()
	log := observability.WithFields(logrus.Fields{"conn": id, "remote_addr": conn.RemoteAddr().String()})

	ctx, cancel := context.WithCancel(context.Background())
	jobs, err := h.queue.Subscribe(ctx)
	if err != nil {
		cancel()
		conn.Close()
		log.WithField("error", err).Error("Subscribe failed")
		return
	}

	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	log.Info("Push client connected")

	defer func() {
		cancel()
		h.mu.Lock()
		delete(h.conns, id)
		h.mu.Unlock()
		conn.Close()
		log.Info("Push client disconnected")
	}()

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, jobs, log)
}

// readPump discards anything the client sends; its only job is noticing
// the disconnect and answering control frames.
func (h *Hub) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, jobs <-chan domain.Job, log *logrus.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(job.Payload)); err != nil {
				log.WithField("error", err).Warn("Failed to write to websocket")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Count returns the number of open push connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll sends a going-away close frame to every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}
