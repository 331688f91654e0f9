package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// UpdateMessage tells a client its state changed and must be pulled again.
	UpdateMessage = "update"

	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 5 * time.Second
)

// Hub fans "update" signals out to the connections of a user.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]string
	notify   chan string
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]string),
		notify:  make(chan string, 64),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case userID := <-h.notify:
			h.send(userID)
		}
	}
}

// StartTicker signals every client periodically so that missed updates are
// eventually pulled.
func (h *Hub) StartTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.BroadcastUpdate()
		}
	}
}

// Notify signals all connections of userID. A signal is dropped when the
// hub is backed up; the ticker covers it.
func (h *Hub) Notify(userID string) {
	select {
	case h.notify <- userID:
	default:
		h.log.Warn("Hub backed up, dropping update", "user", userID)
	}
}

// BroadcastUpdate signals every connected client.
func (h *Hub) BroadcastUpdate() {
	h.Notify("")
}

// Clients returns the number of open connections of userID, or of everyone
// when userID is empty.
func (h *Hub) Clients(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, id := range h.clients {
		if userID == "" || id == userID {
			n++
		}
	}
	return n
}

func (h *Hub) send(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client, id := range h.clients {
		if userID != "" && id != userID {
			continue
		}
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, []byte(UpdateMessage)); err != nil {
			h.log.Warn("WS write failed, dropping client", "user", id, "error", err)
			client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// Serve upgrades the request and keeps the connection registered for userID
// until the client goes away. responseHeader may carry Set-Cookie.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string, responseHeader http.Header) {
	conn, err := h.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		h.log.Error("WebSocket upgrade failed", "error", err)
		return
	}

	h.log.Info("Client connected", "remote_addr", r.RemoteAddr, "user", userID)
	h.mu.Lock()
	h.clients[conn] = userID
	h.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.log.Info("Client disconnected", "user", userID)
	}()

	go h.ping(conn, done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Error("WS read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
