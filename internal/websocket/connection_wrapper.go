package websocket

import (
	"github.com/gorilla/websocket"
)

// gorillaConn adapts *websocket.Conn to Connection. Everything but
// RemoteAddr is promoted from the embedded connection.
type gorillaConn struct {
	*websocket.Conn
}

// NewConnection wraps an upgraded gorilla connection.
func NewConnection(conn *websocket.Conn) Connection {
	return gorillaConn{Conn: conn}
}

func (c gorillaConn) RemoteAddr() string {
	if addr := c.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
