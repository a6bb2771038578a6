package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPongWait  = 45 * time.Second
	wsWriteWait = 10 * time.Second
)

// WSHandler upgrades HTTP requests to WebSocket connections speaking the
// same frame protocol as the TCP listener.
func (h *Hub) WSHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.SetReadLimit(maxLineBytes)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		h.handleWire(&wsWire{conn: conn})
	})
}

type wsWire struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsWire) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (w *wsWire) WriteFrame(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsWire) Ping() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (w *wsWire) Close() error { return w.conn.Close() }

func (w *wsWire) RemoteAddr() string { return w.conn.RemoteAddr().String() }
