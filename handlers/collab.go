package handlers

import (
	"net/http"
	"sync"

	"github.com/docsync/docsync/internal/collab"
	"github.com/docsync/docsync/internal/config"
	"github.com/docsync/docsync/internal/realtime"
	"github.com/docsync/docsync/pkg/logger"
	"github.com/docsync/docsync/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CollabHandler upgrades GET /ws to a WebSocket and runs a collaboration
// session on it until the peer goes away.
type CollabHandler struct {
	coord    *collab.Coordinator
	upgrader websocket.Upgrader
	opts     realtime.Options

	mu    sync.Mutex
	conns map[string]*realtime.Conn
}

func NewCollabHandler(coord *collab.Coordinator, ws config.WebSocketConfig, sendBuffer int, allowedOrigin string) *CollabHandler {
	return &CollabHandler{
		coord: coord,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  ws.ReadBufferSize,
			WriteBufferSize: ws.WriteBufferSize,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		opts: realtime.Options{
			SendBuffer:     sendBuffer,
			MaxMessageSize: ws.MaxMessageSize,
			WriteWait:      ws.WriteWait,
			PongWait:       ws.PongWait,
			PingPeriod:     ws.PingPeriod,
		},
		conns: make(map[string]*realtime.Conn),
	}
}

func originChecker(allowed string) func(*http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

func (h *CollabHandler) Register(r gin.IRouter) {
	r.GET("/ws", h.serve)
}

func (h *CollabHandler) serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	conn := realtime.NewConn(uuid.New().String(), ws, h.opts)
	h.track(conn, true)
	metrics.ConnectionsActive.Inc()
	defer func() {
		metrics.ConnectionsActive.Dec()
		h.track(conn, false)
	}()
	logger.Debugf("conn %s: connected from %s", conn.ID(), c.ClientIP())

	sess := h.coord.NewSession(conn)
	go conn.WritePump()

	ctx := c.Request.Context()
	conn.ReadPump(func(msg []byte) { sess.Handle(ctx, msg) })
	sess.Disconnect()
	logger.Debugf("conn %s: disconnected", conn.ID())
}

func (h *CollabHandler) track(conn *realtime.Conn, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if add {
		h.conns[conn.ID()] = conn
	} else {
		delete(h.conns, conn.ID())
	}
}

// CloseAll closes every live connection. http.Server.Shutdown does not
// track upgraded connections, so the server calls this on shutdown.
func (h *CollabHandler) CloseAll() {
	h.mu.Lock()
	conns := make([]*realtime.Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Active returns the number of open connections.
func (h *CollabHandler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
