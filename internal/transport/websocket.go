package transport

import (
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// wsConn carries one frame per WebSocket data message.
type wsConn struct {
	conn *websocket.Conn
	size int
}

// NewWebSocketConn wraps an established WebSocket connection. Messages larger
// than size fail the read with websocket.ErrReadLimit; shorter messages are
// zero-padded to a full frame.
func NewWebSocketConn(conn *websocket.Conn, size int) FrameConn {
	conn.SetReadLimit(int64(size))
	return &wsConn{conn: conn, size: size}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	buf := make([]byte, c.size)
	copy(buf, data)
	return buf, nil
}

func (c *wsConn) WriteFrame(f []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, f)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close sends a best-effort close message before releasing the connection.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return c.conn.Close()
}

// DialWebSocket connects to a chat WebSocket gateway. A non-empty origin is
// sent as the Origin header, which the gateway checks against its allow list.
func DialWebSocket(url, origin string, size int, timeout time.Duration) (FrameConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectError{Network: "ws", Address: url, Err: err}
	}
	return NewWebSocketConn(conn, size), nil
}
