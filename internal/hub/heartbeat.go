package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

// Serve owns a subscriber connection until it dies: it runs the ping
// heartbeat, consumes incoming control frames, and unsubscribes on exit.
// Callers run it in the connection's goroutine after registering the conn.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		h.Unsubscribe(conn)
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Subscribers never send data frames; the read loop exists to
		// process pongs and detect the peer going away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
