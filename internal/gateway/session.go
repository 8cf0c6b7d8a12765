package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession wraps a websocket connection as a Sender. gorilla/websocket
// permits one concurrent writer, so sends are serialized by a mutex.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSSession(conn *websocket.Conn) *WSSession {
	return &WSSession{conn: conn}
}

func (s *WSSession) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *WSSession) Close() error {
	return s.conn.Close()
}
