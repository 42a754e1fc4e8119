package rtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/xid"
)

var (
	// ErrClosed is returned by Connect and Accept once the endpoint has
	// entered CLOSED. Send on a CLOSED endpoint is a no-op returning nil.
	ErrClosed = errors.New("rtp: endpoint closed")
	// ErrAlreadyConnected is returned by Connect/Accept called on an
	// endpoint that already started a handshake, including one whose
	// connection has since reached CLOSED: each Endpoint is good for
	// exactly one connection lifecycle.
	ErrAlreadyConnected = errors.New("rtp: endpoint already connected")
)

// Endpoint is one side of a reliable connection: it owns a UDP socket,
// a selective-repeat send window and receive window, and the
// handshake/teardown state machine. Exactly one peer is supported at a
// time, and an Endpoint handles exactly one connection lifecycle:
// once Connect or Accept has been called, a second call on the same
// Endpoint (even after the first connection reaches CLOSED) always
// fails with ErrAlreadyConnected. Open a new Endpoint per connection.
type Endpoint struct {
	id xid.ID
	logger
	cfg  Config
	conn *net.UDPConn

	mu               sync.Mutex
	state            State
	hs               handshakeState
	peerAddr         *net.UDPAddr
	localSeq         uint32 // our own SYN/SYN-ACK seq once assigned, for matching the final ack
	handshakeStarted bool   // Connect or Accept already called; blocks reuse after CLOSED
	teardownDeadline time.Time
	teardownArmed    bool

	connectedCh chan struct{}
	closedCh    chan struct{}
	closeOnce   sync.Once

	running atomic.Bool
	loopWG  sync.WaitGroup

	send    *sendWindow
	recv    *recvWindow
	metrics *Metrics
}

// Open binds a new Endpoint to localPort, ready for Accept or Connect.
func Open(localPort int, opts ...Option) (*Endpoint, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("rtp: listen on port %d: %w", localPort, err)
	}

	e := &Endpoint{
		id:          xid.New(),
		logger:      logger{log: cfg.Logger},
		cfg:         cfg,
		conn:        conn,
		connectedCh: make(chan struct{}),
		closedCh:    make(chan struct{}),
		send:        newSendWindow(cfg.SendWindowSize),
		recv:        newRecvWindow(cfg.ReceiveWindow),
	}
	e.metrics = newMetrics(cfg.Registry, e.id.String())
	e.running.Store(true)

	e.loopWG.Add(1)
	go e.loop()

	e.Info("endpoint opened", "endpoint", e.id.String(), "local_port", localPort)
	return e, nil
}

// ID returns the endpoint's log-correlation identifier.
func (e *Endpoint) ID() string { return e.id.String() }

// State returns the endpoint's current connection state.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Connect performs the client side of the 3-way handshake against
// peerAddr and blocks until it completes, ctx is cancelled, or the
// endpoint is closed. An Endpoint handles exactly one connection
// lifecycle: calling Connect or Accept a second time, even once the
// first connection has reached CLOSED, returns ErrAlreadyConnected.
func (e *Endpoint) Connect(ctx context.Context, peerAddr *net.UDPAddr) error {
	e.mu.Lock()
	if e.handshakeStarted {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.handshakeStarted = true
	e.peerAddr = peerAddr
	e.state = StateSynSent
	e.mu.Unlock()

	syn := &Packet{IsHandshake: true}
	e.send.Enqueue(syn)
	e.Info("connect: SYN enqueued", "endpoint", e.id.String(), "peer", peerAddr.String())

	select {
	case <-e.connectedCh:
		return nil
	case <-e.closedCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Accept performs the server side of the 3-way handshake, blocking
// until a peer connects, ctx is cancelled, or the endpoint is closed.
// An Endpoint handles exactly one connection lifecycle: calling
// Connect or Accept a second time, even once the first connection has
// reached CLOSED, returns ErrAlreadyConnected.
func (e *Endpoint) Accept(ctx context.Context) error {
	e.mu.Lock()
	if e.handshakeStarted {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.handshakeStarted = true
	e.state = StateListen
	e.mu.Unlock()

	e.Info("accept: listening", "endpoint", e.id.String())
	select {
	case <-e.connectedCh:
		return nil
	case <-e.closedCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send splits b into MTU-sized payload chunks and enqueues each as a
// packet, in order. Non-blocking; a no-op once the connection is
// CLOSED.
func (e *Endpoint) Send(b []byte) error {
	if e.State() == StateClosed {
		return nil
	}
	if len(b) == 0 {
		return nil
	}
	chunkSize := MaxPayload(e.cfg.MTU)
	if chunkSize <= 0 {
		return fmt.Errorf("rtp: MTU %d too small for header of %d bytes", e.cfg.MTU, HeaderSize)
	}
	for off := 0; off < len(b); off += chunkSize {
		end := off + chunkSize
		if end > len(b) {
			end = len(b)
		}
		chunk := make([]byte, end-off)
		copy(chunk, b[off:end])
		e.send.Enqueue(&Packet{Payload: chunk})
	}
	return nil
}

// Receive blocks until at least one payload has been delivered,
// draining and concatenating everything currently available. It
// returns io.EOF once the connection is CLOSED and nothing more will
// ever arrive.
func (e *Endpoint) Receive() ([]byte, error) {
	first, ok := e.recv.delivered.Pop()
	if !ok {
		return nil, io.EOF
	}
	rest := e.recv.delivered.DrainAll()
	total := len(first)
	for _, p := range rest {
		total += len(p)
	}
	out := make([]byte, 0, total)
	out = append(out, first...)
	for _, p := range rest {
		out = append(out, p...)
	}
	e.metrics.BytesDelivered.Add(float64(len(out)))
	return out, nil
}

// Disconnect initiates a graceful FIN exchange and blocks until the
// connection reaches CLOSED, either because the peer acknowledged the
// FIN or the teardown grace period elapsed.
func (e *Endpoint) Disconnect() error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.armTeardown()
	e.state = StateClosing
	e.mu.Unlock()

	e.send.Enqueue(&Packet{IsDisconnect: true})
	e.Info("disconnect: FIN enqueued", "endpoint", e.id.String())

	<-e.closedCh
	return nil
}

// armTeardown sets teardownDeadline if not already armed. Caller must
// hold e.mu. Re-arming (e.g. on a duplicate FIN) is a no-op: teardown
// grace is fixed from the first FIN seen, never extended.
func (e *Endpoint) armTeardown() {
	if e.teardownArmed {
		return
	}
	e.teardownArmed = true
	e.teardownDeadline = time.Now().Add(e.cfg.TeardownGrace)
}

// Close immediately tears down the endpoint without a FIN exchange:
// the transfer loop exits, the socket is closed, and any blocked
// Receive/Accept/Connect unblocks.
func (e *Endpoint) Close() error {
	var merr *multierror.Error
	e.closeOnce.Do(func() {
		e.running.Store(false)
		e.loopWG.Wait()
		if err := e.conn.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
		e.mu.Lock()
		e.state = StateClosed
		e.hs = handshakeState{}
		e.localSeq = 0
		e.mu.Unlock()
		close(e.closedCh)
		e.recv.delivered.Close()
		e.Info("endpoint closed", "endpoint", e.id.String())
	})
	return merr.ErrorOrNil()
}

// SetReceiveWindow updates the locally advertised receive window
// size; the new value is carried on the next outbound packet.
func (e *Endpoint) SetReceiveWindow(n uint32) {
	e.recv.SetWindow(n)
}
