// Package websocket carries replication frames as websocket binary
// messages over a plain HTTP listener.
package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/keel-engine/keel/internal/core/replication"
)

// DefaultPath is the HTTP endpoint used when Transport.Path is empty.
const DefaultPath = "/sync"

var errListenerClosed = errors.New("websocket: listener closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Transport implements replication.Transport over gorilla websocket.
type Transport struct {
	// Path is the upgrade endpoint on both ends; DefaultPath when empty.
	Path string
}

func (t *Transport) path() string {
	if t.Path == "" {
		return DefaultPath
	}
	return t.Path
}

// Listen binds a TCP listener and serves websocket upgrades on the
// transport path. Pass host:0 to bind an ephemeral port; Addr reports
// the resolved one.
func (t *Transport) Listen(_ context.Context, addr string) (replication.Listener, error) {
	tcp, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &listener{
		tcp:   tcp,
		conns: make(chan replication.Conn, 16),
		done:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.path(), l.serveUpgrade)
	l.srv = &http.Server{Handler: mux}
	go func() {
		_ = l.srv.Serve(tcp)
		l.shutdown()
	}()
	return l, nil
}

// Dial connects to a listening transport at host:port.
func (t *Transport) Dial(ctx context.Context, addr string) (replication.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: t.path()}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return newConn(ws), nil
}

type listener struct {
	tcp   net.Listener
	srv   *http.Server
	conns chan replication.Conn
	done  chan struct{}
	once  sync.Once
}

func (l *listener) serveUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := newConn(ws)
	select {
	case l.conns <- conn:
	case <-l.done:
		_ = conn.Close()
	}
}

func (l *listener) Accept(ctx context.Context) (replication.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, errListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *listener) Addr() string { return l.tcp.Addr().String() }

func (l *listener) Close() error {
	l.shutdown()
	return l.srv.Close()
}

func (l *listener) shutdown() {
	l.once.Do(func() { close(l.done) })
}

// conn wraps one websocket. A pump goroutine feeds received binary
// messages into an inbox so Receive can honor context cancellation.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	inbox   chan []byte
	readErr error
	done    chan struct{}
	once    sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{
		ws:    ws,
		inbox: make(chan []byte, 64),
		done:  make(chan struct{}),
	}
	go c.readPump()
	return c
}

func (c *conn) readPump() {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			// readErr is published by the inbox close.
			c.readErr = err
			close(c.inbox)
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		select {
		case c.inbox <- data:
		case <-c.done:
			return
		}
	}
}

func (c *conn) Send(ctx context.Context, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.inbox:
		if !ok {
			return nil, c.readErr
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

func (c *conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})
	return c.ws.Close()
}
