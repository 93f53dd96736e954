package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/labkeeper/internal/logging"
	"github.com/Iron-Ham/labkeeper/internal/provider"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// handlesMessage is pushed to stream subscribers.
type handlesMessage struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

var upgrader = websocket.Upgrader{
	// The API binds to loopback; any local page may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type streamHandler struct {
	handle *provider.Handle
	logger *logging.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newStreamHandler(handle *provider.Handle, logger *logging.Logger) *streamHandler {
	return &streamHandler{
		handle: handle,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// serve upgrades the request and pushes the current ids, then every change,
// until the client goes away.
func (h *streamHandler) serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	h.track(conn)
	defer h.untrack(conn)

	send := make(chan handlesMessage, sendBuffer)
	unsubscribe := h.handle.OnHandlesChanged(func(ids []string) {
		select {
		case send <- handlesMessage{Type: "handles", IDs: ids}:
		default:
			h.logger.Warn("stream subscriber is slow, dropping update")
		}
	})
	defer unsubscribe()

	send <- handlesMessage{Type: "handles", IDs: h.handle.ListHandles()}

	closed := make(chan struct{})
	go h.readPump(conn, closed)
	h.writePump(conn, send, closed)
}

// readPump discards client messages and notices disconnects.
func (h *streamHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
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

func (h *streamHandler) writePump(conn *websocket.Conn, send <-chan handlesMessage, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *streamHandler) track(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *streamHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// closeAll sends a close frame to every subscriber. Hijacked connections are
// not closed by http.Server.Shutdown.
func (h *streamHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}
