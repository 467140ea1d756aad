package feed

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// WSTransport consumes the notification feed over a websocket endpoint.
// Frames are JSON text messages with the same {type, message} shape as the
// SSE stream.
type WSTransport struct {
	// BaseURL of the websocket endpoint, e.g. "ws://localhost:8000/ws/notifications".
	BaseURL string
	Dialer  *websocket.Dialer
	Header  http.Header
}

func (t *WSTransport) Connect(ctx context.Context, subject string) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	url := strings.TrimRight(t.BaseURL, "/") + "/" + subject
	conn, resp, err := dialer.DialContext(ctx, url, t.Header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Next() (Event, error) {
	var event Event
	if err := c.conn.ReadJSON(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
