package rtp

import (
	"sync"
	"time"
)

// sendWindow is the selective-repeat sender half of an Endpoint: it
// assigns sequence numbers to queued payloads, tracks unacknowledged
// packets in a timerTable and advances send_base as ACKs arrive.
//
// send_base and next_seq_num are guarded by their own mutex, separate
// from the unacked table's lock, so the send path can reserve a window
// slot without contending with the timer scan or the ACK path's table
// mutation.
type sendWindow struct {
	baseMu     sync.Mutex
	sendBase   uint32
	nextSeq    uint32
	windowSize uint32

	unacked  *timerTable
	outgoing *queue[*Packet]
}

func newSendWindow(windowSize uint32) *sendWindow {
	return &sendWindow{
		sendBase:   1,
		nextSeq:    1,
		windowSize: windowSize,
		unacked:    newTimerTable(),
		outgoing:   newQueue[*Packet](),
	}
}

// Enqueue appends a payload packet to the send queue. Non-blocking.
func (sw *sendWindow) Enqueue(p *Packet) {
	sw.outgoing.Push(p)
}

// Pending reports how many payload packets are queued but not yet
// assigned a sequence number.
func (sw *sendWindow) Pending() int {
	return sw.outgoing.Len()
}

// reserveSlot reports whether another packet may be assigned a sequence
// number right now, and if so reserves the slot by advancing
// next_seq_num and returns the sequence number to use.
func (sw *sendWindow) reserveSlot() (seq uint32, ok bool) {
	sw.baseMu.Lock()
	defer sw.baseMu.Unlock()
	if sw.nextSeq >= sw.sendBase+sw.windowSize {
		return 0, false
	}
	seq = sw.nextSeq
	sw.nextSeq++
	return seq, true
}

// TryTransmit pops one queued packet, if the window has room, assigns
// it a sequence number, piggybacks an ACK from pendingAcks if one is
// waiting, inserts it into the unacked table with a fresh deadline and
// returns it ready for serialization and transmission. Returns
// ok=false if there was nothing to send or the window is full - the
// packet is left at the head of the queue in that case.
func (sw *sendWindow) TryTransmit(now time.Time, timeout time.Duration, pendingAcks *queue[uint32]) (*Packet, bool) {
	seq, ok := sw.reserveSlot()
	if !ok {
		return nil, false
	}
	p, ok := sw.outgoing.TryPop()
	if !ok {
		// Nothing queued: give the sequence number back.
		sw.baseMu.Lock()
		if sw.nextSeq == seq+1 {
			sw.nextSeq = seq
		}
		sw.baseMu.Unlock()
		return nil, false
	}
	p.SeqNum = seq
	if ack, ok := pendingAcks.TryPop(); ok {
		p.IsAck = true
		p.AckNum = ack
	}
	sw.unacked.Insert(p, now.Add(timeout))
	return p, true
}

// OnAck applies an incoming ack_num: removes it from the unacked table
// if it falls within the current window, then advances send_base past
// any run of sequence numbers that are no longer outstanding.
func (sw *sendWindow) OnAck(ack uint32) {
	sw.baseMu.Lock()
	base, next := sw.sendBase, sw.nextSeq
	sw.baseMu.Unlock()

	if ack < base || ack >= base+sw.windowSize {
		return // duplicate/out-of-window ack, ignore
	}
	sw.unacked.Remove(ack)
	if ack != base {
		return
	}

	sw.baseMu.Lock()
	defer sw.baseMu.Unlock()
	b := sw.sendBase + 1
	for b < next && !sw.unacked.Has(b) {
		b++
	}
	sw.sendBase = b
}

// ScanTimeouts retransmits every packet whose deadline has passed,
// oldest first, via send, then reinserts it at the tail with a fresh
// deadline. send is called with the table's lock released.
func (sw *sendWindow) ScanTimeouts(now time.Time, timeout time.Duration, send func(*Packet)) {
	expired := sw.unacked.PopExpired(now)
	for _, p := range expired {
		send(p)
		sw.unacked.Insert(p, now.Add(timeout))
	}
}

// Reset clears all sender state, e.g. on entering CLOSED.
func (sw *sendWindow) Reset() {
	sw.baseMu.Lock()
	sw.sendBase = 1
	sw.nextSeq = 1
	sw.baseMu.Unlock()
	sw.unacked.Reset()
	sw.outgoing.DrainAll()
}

// SetWindow updates the configured send window size (driven by the
// peer's advertised_window).
func (sw *sendWindow) SetWindow(n uint32) {
	sw.baseMu.Lock()
	defer sw.baseMu.Unlock()
	if n > 0 {
		sw.windowSize = n
	}
}

// UnackedLen reports the number of packets currently in flight.
func (sw *sendWindow) UnackedLen() int {
	return sw.unacked.Len()
}
