package rtp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// openPair opens a client/server endpoint pair on loopback and
// completes the handshake, returning both and registering a test
// cleanup that closes them.
func openPair(t *testing.T, opts ...Option) (client, server *Endpoint) {
	t.Helper()
	server, err := Open(0, append([]Option{WithPacketTimeout(100 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	serverAddr := server.conn.LocalAddr().(*net.UDPAddr)

	client, err = Open(0, append([]Option{WithPacketTimeout(100 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Accept(ctx) }()
	require.NoError(t, client.Connect(ctx, serverAddr))
	require.NoError(t, <-errCh)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestHandshakeEstablishesBothSides(t *testing.T) {
	client, server := openPair(t)
	require.Equal(t, StateEstablished, client.State())
	require.Equal(t, StateEstablished, server.State())
}

func TestReconnectAfterCloseIsRejected(t *testing.T) {
	client, server := openPair(t, WithTeardownGrace(time.Second))
	require.NoError(t, client.Disconnect())
	require.Eventually(t, func() bool {
		return server.State() == StateClosed
	}, 3*time.Second, 10*time.Millisecond, "server should close within the teardown grace period")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, server.Accept(ctx), ErrAlreadyConnected)
	require.ErrorIs(t, client.Connect(ctx, server.conn.LocalAddr().(*net.UDPAddr)), ErrAlreadyConnected)
}

func TestLossFreeEcho(t *testing.T) {
	client, server := openPair(t)
	require.NoError(t, client.Send([]byte("hello")))

	got, err := server.Receive()
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestBidirectionalAndMultipleSends(t *testing.T) {
	client, server := openPair(t)
	require.NoError(t, client.Send([]byte("ping")))
	require.NoError(t, server.Send([]byte("pong")))

	got, err := server.Receive()
	require.NoError(t, err)
	require.Equal(t, "ping", string(got))

	got, err = client.Receive()
	require.NoError(t, err)
	require.Equal(t, "pong", string(got))
}

func TestGracefulDisconnectDeliversThenEOF(t *testing.T) {
	client, server := openPair(t, WithTeardownGrace(time.Second))
	require.NoError(t, client.Send([]byte("one")))
	require.NoError(t, client.Send([]byte("two")))
	require.NoError(t, client.Send([]byte("three")))

	go client.Disconnect()

	var received []byte
	for len(received) < len("onetwothree") {
		got, err := server.Receive()
		if err != nil {
			break
		}
		received = append(received, got...)
	}
	require.Equal(t, "onetwothree", string(received))

	require.Eventually(t, func() bool {
		return server.State() == StateClosed
	}, 3*time.Second, 10*time.Millisecond, "server should close within the teardown grace period")

	_, err := server.Receive()
	require.ErrorIs(t, err, io.EOF)
}

func TestLargePayloadChunking(t *testing.T) {
	client, server := openPair(t, WithMTU(70), WithSendWindow(8), WithReceiveWindow(8))
	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	require.NoError(t, client.Send(payload))

	var received []byte
	for len(received) < len(payload) {
		got, err := server.Receive()
		require.NoError(t, err)
		received = append(received, got...)
	}
	require.Equal(t, payload, received)
}
