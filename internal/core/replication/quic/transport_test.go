package quic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keel-engine/keel/internal/core/replication"
)

func devTransport(t *testing.T) *Transport {
	t.Helper()
	tlsConf, err := GenerateDevTLS()
	require.NoError(t, err)
	return &Transport{TLS: tlsConf, Insecure: true}
}

func loopback(t *testing.T) (replication.Conn, replication.Conn) {
	t.Helper()
	ctx := context.Background()
	transport := devTransport(t)

	ln, err := transport.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan replication.Conn, 1)
	go func() {
		if c, err := ln.Accept(ctx); err == nil {
			accepted <- c
		}
	}()

	client, err := transport.Dial(ctx, ln.Addr())
	require.NoError(t, err)

	select {
	case server := <-accepted:
		return client, server
	case <-time.After(5 * time.Second):
		t.Fatal("accept timed out")
		return nil, nil
	}
}

func TestListenRequiresTLS(t *testing.T) {
	transport := &Transport{}
	_, err := transport.Listen(context.Background(), "127.0.0.1:0")
	require.ErrorIs(t, err, errNoTLS)
}

func TestFrameExchange(t *testing.T) {
	ctx := context.Background()
	client, server := loopback(t)
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	// The client speaks first; that opens the stream on the server.
	require.NoError(t, client.Send(ctx, []byte("hello")))
	frame, err := server.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), frame)

	require.NoError(t, server.Send(ctx, []byte("welcome")))
	frame, err = client.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("welcome"), frame)
}

func TestFrameOrderPreserved(t *testing.T) {
	ctx := context.Background()
	client, server := loopback(t)
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	for i := 0; i < 50; i++ {
		require.NoError(t, client.Send(ctx, []byte{byte(i), byte(i + 1)}))
	}
	for i := 0; i < 50; i++ {
		frame, err := server.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i), byte(i + 1)}, frame)
	}
}

func TestLargeFrame(t *testing.T) {
	ctx := context.Background()
	client, server := loopback(t)
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	big := make([]byte, 1<<20)
	for i := range big {
		big[i] = byte(i * 7)
	}
	require.NoError(t, client.Send(ctx, big))

	recvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	frame, err := server.Receive(recvCtx)
	require.NoError(t, err)
	require.Equal(t, big, frame)
}

func TestReceiveAfterPeerClose(t *testing.T) {
	ctx := context.Background()
	client, server := loopback(t)
	defer func() { _ = server.Close() }()

	// Open the server-side stream before tearing the connection down.
	require.NoError(t, client.Send(ctx, []byte("bye")))
	_, err := server.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = server.Receive(recvCtx)
	require.Error(t, err)
}

func TestReceiveHonorsContext(t *testing.T) {
	client, server := loopback(t)
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := server.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialRejectsWrongAddress(t *testing.T) {
	transport := devTransport(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := transport.Dial(ctx, "127.0.0.1:1")
	require.Error(t, err)
}
