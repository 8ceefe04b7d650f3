package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 30 * time.Second
)

// WriteTyped sends a strongly-typed request payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}, deadline time.Time) error {
	if deadline.IsZero() {
		deadline = time.Now().Add(writeWait)
	}
	conn.SetWriteDeadline(deadline)
	return conn.WriteJSON(v)
}

// ReadMessage reads and decodes the next server frame.
// It sets a read deadline.
func ReadMessage(conn *websocket.Conn, deadline time.Time) (*ServerMessage, error) {
	if deadline.IsZero() {
		deadline = time.Now().Add(readWait)
	}
	conn.SetReadDeadline(deadline)
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
