package exwebsocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn serializes writes so several goroutines can share one websocket.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func New(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

func (ws *Conn) SafeWriteJSON(v interface{}) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.WriteJSON(v)
}
