// Package quic carries replication frames over one bidirectional QUIC
// stream per connection, length-prefixed with the engine's binary
// buffer framing.
package quic

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/keel-engine/keel/internal/core/replication"
	"github.com/keel-engine/keel/internal/core/serialize"
)

// alpn tags replication connections during the TLS handshake.
const alpn = "keel-repl"

// Transport implements replication.Transport over quic-go.
type Transport struct {
	// TLS supplies the server credentials; Listen requires it. Use
	// GenerateDevTLS for loopback development.
	TLS *tls.Config
	// Insecure makes Dial skip certificate verification, matching
	// GenerateDevTLS self-signed certificates.
	Insecure bool
	// MaxIdleTimeout closes silent connections; 30s when zero.
	MaxIdleTimeout time.Duration
	// KeepAlivePeriod spaces keepalive pings; 10s when zero.
	KeepAlivePeriod time.Duration
}

func (t *Transport) quicConfig() *quic.Config {
	idle := t.MaxIdleTimeout
	if idle == 0 {
		idle = 30 * time.Second
	}
	keepAlive := t.KeepAlivePeriod
	if keepAlive == 0 {
		keepAlive = 10 * time.Second
	}
	return &quic.Config{
		MaxIdleTimeout:     idle,
		KeepAlivePeriod:    keepAlive,
		MaxIncomingStreams: 4,
	}
}

// Listen binds a UDP socket and accepts QUIC connections on it. Pass
// host:0 for an ephemeral port.
func (t *Transport) Listen(_ context.Context, addr string) (replication.Listener, error) {
	if t.TLS == nil {
		return nil, errNoTLS
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	tlsConf := t.TLS.Clone()
	if len(tlsConf.NextProtos) == 0 {
		tlsConf.NextProtos = []string{alpn}
	}
	ql, err := quic.Listen(udpConn, tlsConf, t.quicConfig())
	if err != nil {
		_ = udpConn.Close()
		return nil, err
	}
	return &listener{ql: ql, udp: udpConn}, nil
}

// Dial connects to a listening transport at host:port. The stream is
// opened eagerly so the first frame flows without a round trip later.
func (t *Transport) Dial(ctx context.Context, addr string) (replication.Conn, error) {
	tlsConf := &tls.Config{
		InsecureSkipVerify: t.Insecure,
		NextProtos:         []string{alpn},
		MinVersion:         tls.VersionTLS13,
	}
	qc, err := quic.DialAddr(ctx, addr, tlsConf, t.quicConfig())
	if err != nil {
		return nil, err
	}
	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "open stream failed")
		return nil, err
	}
	c := newConn(qc)
	c.adoptStream(stream)
	return c, nil
}

type listener struct {
	ql  *quic.Listener
	udp *net.UDPConn
}

// Accept returns the next connection. Its stream resolves lazily on
// first use, so a stalled peer cannot block the accept loop.
func (l *listener) Accept(ctx context.Context) (replication.Conn, error) {
	qc, err := l.ql.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return newConn(qc), nil
}

func (l *listener) Addr() string { return l.ql.Addr().String() }

func (l *listener) Close() error {
	err := l.ql.Close()
	_ = l.udp.Close()
	return err
}

// conn wraps one QUIC connection and its single replication stream.
// A pump goroutine decodes length-prefixed frames into an inbox so
// Receive can honor context cancellation.
type conn struct {
	qc *quic.Conn

	streamMu sync.Mutex
	stream   *quic.Stream
	writer   *serialize.Writer
	reader   *serialize.Reader

	writeMu sync.Mutex

	inbox   chan []byte
	readErr error
	done    chan struct{}
	once    sync.Once
}

func newConn(qc *quic.Conn) *conn {
	return &conn{
		qc:    qc,
		inbox: make(chan []byte, 64),
		done:  make(chan struct{}),
	}
}

func (c *conn) adoptStream(stream *quic.Stream) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	c.bindStream(stream)
}

// ensureStream resolves the server-side stream on first use; the
// dialling side opened it and its first frame makes it acceptable here.
func (c *conn) ensureStream(ctx context.Context) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.stream != nil {
		return nil
	}
	stream, err := c.qc.AcceptStream(ctx)
	if err != nil {
		return err
	}
	c.bindStream(stream)
	return nil
}

func (c *conn) bindStream(stream *quic.Stream) {
	c.stream = stream
	c.writer = serialize.NewWriter(stream)
	c.reader = serialize.NewReader(stream)
	go c.readPump()
}

func (c *conn) readPump() {
	for {
		frame, err := c.reader.ReadBuffer()
		if err != nil {
			c.readErr = err
			close(c.inbox)
			return
		}
		select {
		case c.inbox <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *conn) Send(ctx context.Context, frame []byte) error {
	if err := c.ensureStream(ctx); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteBuffer(frame)
}

func (c *conn) Receive(ctx context.Context) ([]byte, error) {
	if err := c.ensureStream(ctx); err != nil {
		return nil, err
	}
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

func (c *conn) RemoteAddr() string { return c.qc.RemoteAddr().String() }

func (c *conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.qc.CloseWithError(0, "closed")
}

// GenerateDevTLS builds a self-signed loopback certificate for
// development and tests. Production deployments supply their own
// tls.Config.
func GenerateDevTLS() (*tls.Config, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"Keel"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}
	cert := tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
