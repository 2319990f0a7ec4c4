package mirror

import (
	"context"
	"crypto/rand"
	"time"

	"nhooyr.io/websocket"
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan frame
	hub  *Hub
}

func newClient(conn *websocket.Conn, hub *Hub) *client {
	return &client{
		id:   generateID(),
		conn: conn,
		send: make(chan frame, 256),
		hub:  hub,
	}
}

// readPump exists only to notice disconnects. Observers are read-only, so
// every inbound payload is dropped.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(4096)

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case f, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, f.kind, f.data); err != nil {
				return
			}
		}
	}
}

func generateID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(6)
}

func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	rand.Read(b)
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}
