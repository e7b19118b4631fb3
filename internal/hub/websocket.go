package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Maximum inbound frame size. Device frames are a few hundred bytes.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers, the device firmware, and native apps all connect here;
	// origin policy matches the open CORS policy of the HTTP surface.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn adapts a gorilla websocket connection to the Conn interface.
// The write mutex serializes frame writes from the hub's fan-out and the
// dispatcher; ping control frames do not need it.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) WriteMessage(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// ServeWS upgrades the HTTP request and runs the connection's read loop
// until the link drops. Each connection gets its own goroutine courtesy of
// net/http.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := h.Register(&wsConn{conn: conn})
	h.log.Info("websocket connected", "client", c.ID, "remote", r.RemoteAddr)

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		h.Pong(c)
		return nil
	})

	defer func() {
		h.Unregister(c)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "client", c.ID, "err", err)
			} else {
				h.log.Debug("websocket closed", "client", c.ID)
			}
			return
		}
		h.HandleMessage(c, data)
	}
}
