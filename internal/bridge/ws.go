package bridge

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mgrant26/clubcthulu/internal/protocol"
)

const writeTimeout = 5 * time.Second

// WSHandler owns the WebSocket transport. Each text frame is one
// datagram-equivalent fed straight into the dispatcher; replies come back
// through the hub.
type WSHandler struct {
	hub      *Hub
	injector Injector
	upgrader websocket.Upgrader
}

// NewWSHandler creates a handler feeding frames into injector and
// registering peers on hub.
func NewWSHandler(hub *Hub, injector Injector) *WSHandler {
	return &WSHandler{
		hub:      hub,
		injector: injector,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds the websocket route on an Echo router.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *WSHandler) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn)
	return nil
}

func (h *WSHandler) serveConn(conn *websocket.Conn) {
	defer conn.Close()

	// The peer's TCP remote doubles as its address in the datagram world,
	// so session lookups and relay sends need no special casing.
	addr := synthAddr(conn.RemoteAddr().String())
	if addr == nil {
		return
	}
	key := addr.String()
	h.hub.Register(key, &wsPeer{conn: conn})
	defer h.hub.Unregister(key)

	conn.SetReadLimit(protocol.MaxPayload)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.injector.ProcessDatagram(data, addr)
	}
}

// wsPeer is the write half of one websocket connection. Relay deliveries
// and retries can race, so writes serialize on the peer's mutex.
type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) WritePayload(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, payload)
}
