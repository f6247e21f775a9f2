package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one physical socket. ReadMessage is only called from the reader goroutine;
// writes are serialized by the Manager.
type Conn interface {
	WriteMessage(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// NewDialer returns a gorilla based Dialer.
func NewDialer(handshakeTimeout, writeTimeout, readTimeout time.Duration) Dialer {
	return &gorillaDialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		handshakeTimeout: handshakeTimeout,
		writeTimeout:     writeTimeout,
		readTimeout:      readTimeout,
	}
}

type gorillaDialer struct {
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	readTimeout      time.Duration
}

func (d *gorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if d.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.handshakeTimeout)
		defer cancel()
	}
	c, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	gc := &gorillaConn{c: c, writeTimeout: d.writeTimeout, readTimeout: d.readTimeout}
	gc.extendRead()
	// 服务端 ping 同样续期读超时
	c.SetPingHandler(func(data string) error {
		gc.extendRead()
		err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	return gc, nil
}

type gorillaConn struct {
	c            *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration
}

func (g *gorillaConn) extendRead() {
	if g.readTimeout > 0 {
		_ = g.c.SetReadDeadline(time.Now().Add(g.readTimeout))
	}
}

func (g *gorillaConn) WriteMessage(data []byte) error {
	if g.writeTimeout > 0 {
		_ = g.c.SetWriteDeadline(time.Now().Add(g.writeTimeout))
	}
	return g.c.WriteMessage(websocket.TextMessage, data)
}

func (g *gorillaConn) ReadMessage() ([]byte, error) {
	_, b, err := g.c.ReadMessage()
	if err == nil {
		g.extendRead()
	}
	return b, err
}

func (g *gorillaConn) Close() error {
	_ = g.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return g.c.Close()
}
