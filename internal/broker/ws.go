// Package broker exposes the WebSocket access path: the same command
// protocol carried over WebSocket text frames, one command line per inbound
// frame and one reply or fan-out message per outbound frame.
package broker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConn adapts a websocket.Conn to the Conn interface. Outbound lines
// become text frames; the mutex serializes writers the same way tcpConn does.
type wsConn struct {
	id string
	ws *websocket.Conn

	mu sync.Mutex
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), ws: ws}
}

func (c *wsConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }
func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) Close() error         { return c.ws.Close() }
func (c *wsConn) ID() string           { return c.id }

// Routes configures the HTTP mux for the WebSocket listener: a plain-text
// health check and the WebSocket endpoint.
func (b *Broker) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", b.healthHandler)
	mux.HandleFunc("/ws", b.websocketHandler)
	return mux
}

func (b *Broker) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "TopicHub broker is running!")
}

// websocketHandler upgrades the request and runs the connection's read loop.
// Each text frame is dispatched as one command line; a trailing newline in
// the frame is tolerated so line-oriented clients work unchanged.
func (b *Broker) websocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     b.origins.check,
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newWSConn(ws)
	if !b.track(conn) {
		ws.Close()
		return
	}

	b.logger.Info("websocket connection accepted",
		zap.String("conn_id", conn.ID()),
		zap.String("remote", r.RemoteAddr))

	b.serveWSConn(conn)
	b.untrack(conn)
}

func (b *Broker) serveWSConn(conn *wsConn) {
	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !isWSCloseError(err) {
				b.logger.Warn("websocket read error",
					zap.String("conn_id", conn.ID()),
					zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			b.dispatcher.Dispatch(conn, line)
		}
	}

	b.teardown(conn, "end of stream")
}

// isWSCloseError reports whether a websocket read error is an ordinary
// close rather than something worth logging.
func isWSCloseError(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return true
	}
	return isExpectedCloseError(err)
}
