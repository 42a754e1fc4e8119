package rtp

// recvWindow is the selective-repeat receiver half of an Endpoint: it
// stages out-of-order arrivals, releases the contiguous prefix
// starting at rcv_base to the delivered queue, and records which
// sequence numbers still need acknowledging.
type recvWindow struct {
	rcvBase    uint32
	windowSize uint32

	staging     map[uint32]*Packet
	delivered   *queue[[]byte]
	pendingAcks *queue[uint32]
}

func newRecvWindow(windowSize uint32) *recvWindow {
	return &recvWindow{
		rcvBase:     1,
		windowSize:  windowSize,
		staging:     make(map[uint32]*Packet),
		delivered:   newQueue[[]byte](),
		pendingAcks: newQueue[uint32](),
	}
}

// OnDataPacket applies an inbound non-ACK-only packet carrying
// sequence number p.SeqNum: a duplicate below the window is re-acked
// without redelivery, an in-window arrival is staged and the
// contiguous prefix released, and anything out of range is silently
// dropped.
func (rw *recvWindow) OnDataPacket(p *Packet) {
	s := p.SeqNum
	belowWindow := s < rw.rcvBase && (rw.rcvBase-s) <= rw.windowSize
	switch {
	case belowWindow:
		rw.pendingAcks.Push(s)
	case s >= rw.rcvBase && s < rw.rcvBase+rw.windowSize:
		rw.pendingAcks.Push(s)
		if _, staged := rw.staging[s]; !staged {
			rw.staging[s] = p
		}
		if s == rw.rcvBase {
			rw.release()
		}
	default:
		// out of range: drop without acknowledging
	}
}

// release drains the contiguous run starting at rcv_base out of
// staging into the delivered queue, advancing rcv_base past it.
func (rw *recvWindow) release() {
	for {
		p, ok := rw.staging[rw.rcvBase]
		if !ok {
			return
		}
		delete(rw.staging, rw.rcvBase)
		rw.delivered.Push(p.Payload)
		rw.rcvBase++
	}
}

// SetWindow updates the locally advertised receive window size.
func (rw *recvWindow) SetWindow(n uint32) {
	if n > 0 {
		rw.windowSize = n
	}
}

// Reset clears all receiver state, e.g. on entering CLOSED. The
// delivered queue is left as it is, so payloads already released can
// still be drained by Receive.
func (rw *recvWindow) Reset() {
	rw.rcvBase = 1
	rw.staging = make(map[uint32]*Packet)
	rw.pendingAcks.DrainAll()
}
