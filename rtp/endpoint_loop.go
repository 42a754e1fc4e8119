package rtp

import (
	"time"
)

// loop is the single transfer-loop goroutine: on each iteration it
// polls the socket for one inbound packet, attempts one outbound
// transmission, scans the unacked table for expired deadlines, and
// checks whether teardown has completed. Splitting this into
// cooperating goroutines is an equally valid implementation provided
// the same invariants and ordering hold; a single loop is simplest to
// reason about and is what this endpoint does.
func (e *Endpoint) loop() {
	defer e.loopWG.Done()
	buf := make([]byte, e.cfg.MTU)
	for e.running.Load() {
		e.receivePhase(buf)
		e.sendPhase()
		e.timerPhase()
		e.teardownPhase()
	}
}

// receivePhase polls the socket with a short read deadline so it never
// starves the send/timer phases, then routes a valid packet into the
// disconnect/handshake/window/ack/data handlers in that fixed order.
func (e *Endpoint) receivePhase(buf []byte) {
	e.conn.SetReadDeadline(time.Now().Add(e.cfg.SocketPollPeriod))
	n, addr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		return // timeout or closed socket: nothing to process this tick
	}
	pkt, ok := Deserialize(buf[:n], addr)
	if !ok {
		e.metrics.PacketsDropped.Inc()
		return
	}
	e.metrics.PacketsReceived.Inc()
	e.onReceive(pkt)
}

// onReceive applies one validated inbound packet's side effects, in
// the fixed order: disconnect, handshake, advertised-window update,
// ACK, then data.
func (e *Endpoint) onReceive(pkt *Packet) {
	if pkt.IsDisconnect {
		e.handleDisconnect(pkt)
	}
	if pkt.IsHandshake {
		e.handleHandshake(pkt)
	}
	if pkt.AdvertisedWindow > 0 {
		e.send.SetWindow(pkt.AdvertisedWindow)
	}
	if pkt.IsAck {
		e.send.OnAck(pkt.AckNum)
		e.checkHandshakeAck(pkt.AckNum)
	}
	if pkt.SeqNum != 0 && !pkt.IsHandshake && !pkt.IsDisconnect {
		e.recv.OnDataPacket(pkt)
		e.metrics.ReceiveWindowLen.Set(float64(len(e.recv.staging)))
	}
}

// handleHandshake implements the server and client halves of the
// 3-way handshake. Idempotent: a duplicate SYN or SYN-ACK queues
// another ack of its sequence number without re-advancing rcv_base or
// the connected flag. A duplicate SYN does not enqueue a second
// SYN-ACK; the first one stays in the unacked table and is resent by
// the timer phase until the final ack removes it.
func (e *Endpoint) handleHandshake(pkt *Packet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case !pkt.IsAck: // SYN: server side, or an initiator seeing its own echoed SYN (ignored)
		if e.state != StateListen && e.state != StateEstablished {
			return
		}
		if e.hs.part1Received {
			e.recv.pendingAcks.Push(pkt.SeqNum)
			return
		}
		e.peerAddr = pkt.PeerAddr
		e.recv.rcvBase = pkt.SeqNum + 1
		e.hs.part1Received = true
		e.recv.pendingAcks.Push(pkt.SeqNum)
		e.send.Enqueue(&Packet{IsHandshake: true})

	default: // SYN-ACK: client side
		if e.state != StateSynSent && e.state != StateEstablished {
			return
		}
		if e.hs.part2Received {
			e.recv.pendingAcks.Push(pkt.SeqNum)
			return
		}
		e.recv.rcvBase = pkt.SeqNum + 1
		e.hs.part2Received = true
		e.recv.pendingAcks.Push(pkt.SeqNum)
		e.markEstablishedLocked()
	}
}

// markEstablishedLocked transitions to ESTABLISHED and wakes any
// blocked Connect/Accept call. Caller must hold e.mu.
func (e *Endpoint) markEstablishedLocked() {
	if e.state == StateEstablished {
		return
	}
	e.state = StateEstablished
	close(e.connectedCh)
}

// checkHandshakeAck completes the server side of the 3-way handshake:
// handshake part 3 (spec.md §4.4) is the client's final, bare ACK
// (is_ack, ack=S2, no is_handshake flag), so it never routes through
// handleHandshake. Here, any incoming ack_num is checked against this
// endpoint's own SYN-ACK sequence number while listening with part 1
// already received and part 3 not yet seen; a match marks the
// connection established. Mirrors the teacher's rcvSynRcvd transition
// (tcp/control_rcvhandlers.go), which acks its own SYN the same way.
func (e *Endpoint) checkHandshakeAck(ack uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateListen || !e.hs.part1Received || e.hs.part3Received {
		return
	}
	if ack != e.localSeq {
		return
	}
	e.hs.part3Received = true
	e.markEstablishedLocked()
}

// handleDisconnect implements the receiving half of graceful teardown:
// a bare FIN arms the teardown deadline and schedules a FIN-ACK reply;
// a FIN-ACK confirms our own FIN and closes the connection right away.
func (e *Endpoint) handleDisconnect(pkt *Packet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pkt.IsAck {
		// Peer acknowledged our FIN: done, no need to wait out the grace period.
		e.finishTeardownLocked()
		return
	}
	if e.teardownArmed {
		// Duplicate FIN mid-teardown: re-ack, don't reset the deadline.
		e.recv.pendingAcks.Push(pkt.SeqNum)
		return
	}
	e.armTeardown()
	e.state = StateClosing
	e.recv.pendingAcks.Push(pkt.SeqNum)
	e.send.Enqueue(&Packet{IsDisconnect: true})
}

// finishTeardownLocked marks the endpoint CLOSED and wakes any blocked
// Disconnect/Receive call. Caller must hold e.mu. Per spec.md §3, all
// per-connection collections (including handshake progress) are reset
// on entering CLOSED; handshakeStarted is deliberately left untouched
// so a closed Endpoint can never be fed into a second Connect/Accept.
func (e *Endpoint) finishTeardownLocked() {
	if e.state == StateClosed {
		return
	}
	e.state = StateClosed
	e.hs = handshakeState{}
	e.localSeq = 0
	e.send.Reset()
	e.recv.Reset()
	e.recv.delivered.Close()
	select {
	case <-e.connectedCh: // already closed
	default:
		close(e.connectedCh)
	}
	select {
	case <-e.closedCh: // already closed
	default:
		close(e.closedCh)
	}
}

// sendPhase attempts one data/handshake/disconnect transmission under
// the window constraint; if nothing was sent and an ACK is owed, it
// emits one untracked standalone ACK instead.
func (e *Endpoint) sendPhase() {
	now := time.Now()
	pkt, ok := e.send.TryTransmit(now, e.cfg.PacketTimeout, e.recv.pendingAcks)
	if ok {
		if pkt.IsHandshake {
			// Record our own SYN/SYN-ACK sequence number now that it has
			// been assigned, so the peer's reply can be matched against
			// it (see checkHandshakeAck).
			e.mu.Lock()
			e.localSeq = pkt.SeqNum
			e.mu.Unlock()
		}
		e.transmit(pkt)
		return
	}
	if ack, ok := e.recv.pendingAcks.TryPop(); ok {
		e.transmit(&Packet{IsAck: true, AckNum: ack})
	}
}

// timerPhase retransmits every unacked packet whose deadline has
// passed, oldest first, and rotates each to the tail of the table.
func (e *Endpoint) timerPhase() {
	now := time.Now()
	e.send.ScanTimeouts(now, e.cfg.PacketTimeout, func(p *Packet) {
		e.metrics.Retransmits.Inc()
		e.transmit(p)
	})
	e.metrics.SendWindowInUse.Set(float64(e.send.UnackedLen()))
}

// teardownPhase closes the connection once the teardown grace period
// has elapsed without a FIN-ACK.
func (e *Endpoint) teardownPhase() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.teardownArmed && e.state != StateClosed && !time.Now().Before(e.teardownDeadline) {
		e.finishTeardownLocked()
	}
}

// transmit serializes pkt, stamps the local receive window onto it,
// and writes it to the peer.
func (e *Endpoint) transmit(pkt *Packet) {
	e.mu.Lock()
	peer := e.peerAddr
	e.mu.Unlock()
	if peer == nil {
		return
	}
	pkt.AdvertisedWindow = e.recv.windowSize
	if _, err := e.conn.WriteTo(pkt.Serialize(), peer); err != nil {
		e.Debug("transmit failed", "endpoint", e.id.String(), "err", err)
		return
	}
	e.metrics.PacketsSent.Inc()
}
