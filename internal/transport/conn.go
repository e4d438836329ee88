package transport

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is the persistent websocket connection to a grid server. The protocol
// over it is strictly request-then-response: callers must not issue
// overlapping SendMessage calls on one Conn.
type Conn struct {
	url    string
	dialer *websocket.Dialer
	ws     *websocket.Conn
}

// NewConn prepares a connection to address (host:port). Nothing is dialed
// until the first SendMessage; timeout bounds the websocket handshake only,
// not in-flight calls.
func NewConn(address string, secure bool, timeout time.Duration) *Conn {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	return &Conn{
		url:    scheme + "://" + address,
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// SendMessage writes one message and blocks until exactly one response is
// read. The socket is dialed lazily on first use and redialed on the next
// call after Close or a failed round trip. A server-reported error field
// comes back as *RemoteError; anything else is a transport failure.
func (c *Conn) SendMessage(msg Message) (*Response, error) {
	if c.ws == nil {
		ws, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", c.url, err)
		}
		log.Debug().Str("url", c.url).Msg("grid connection established")
		c.ws = ws
	}

	if err := c.ws.WriteJSON(msg); err != nil {
		c.drop()
		return nil, fmt.Errorf("write %s: %w", msg.Type, err)
	}

	var resp Response
	if err := c.ws.ReadJSON(&resp); err != nil {
		c.drop()
		return nil, fmt.Errorf("read response to %s: %w", msg.Type, err)
	}

	if errVal, ok := resp.Data["error"]; ok && errVal != nil {
		return nil, &RemoteError{Message: fmt.Sprint(errVal)}
	}
	return &resp, nil
}

// drop discards a socket known to be broken so the next SendMessage redials.
func (c *Conn) drop() {
	_ = c.ws.Close()
	c.ws = nil
}

// Close tears down the socket. Safe to call repeatedly and before any dial.
func (c *Conn) Close() error {
	if c.ws == nil {
		return nil
	}
	err := c.ws.Close()
	c.ws = nil
	return err
}
