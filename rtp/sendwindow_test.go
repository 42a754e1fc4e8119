package rtp

import (
	"testing"
	"time"
)

func TestSendWindowAssignsSequentialSeqNums(t *testing.T) {
	sw := newSendWindow(4)
	sw.Enqueue(&Packet{Payload: []byte("a")})
	sw.Enqueue(&Packet{Payload: []byte("b")})

	now := time.Now()
	p1, ok := sw.TryTransmit(now, time.Second, newQueue[uint32]())
	if !ok || p1.SeqNum != 1 {
		t.Fatalf("first packet: got seq %d ok=%v, want seq=1", p1.SeqNum, ok)
	}
	p2, ok := sw.TryTransmit(now, time.Second, newQueue[uint32]())
	if !ok || p2.SeqNum != 2 {
		t.Fatalf("second packet: got seq %d ok=%v, want seq=2", p2.SeqNum, ok)
	}
	if sw.UnackedLen() != 2 {
		t.Fatalf("unacked len = %d, want 2", sw.UnackedLen())
	}
}

func TestSendWindowBlocksBeyondWindowSize(t *testing.T) {
	sw := newSendWindow(1)
	sw.Enqueue(&Packet{Payload: []byte("a")})
	sw.Enqueue(&Packet{Payload: []byte("b")})

	now := time.Now()
	if _, ok := sw.TryTransmit(now, time.Second, newQueue[uint32]()); !ok {
		t.Fatal("expected first send to succeed with window size 1")
	}
	if _, ok := sw.TryTransmit(now, time.Second, newQueue[uint32]()); ok {
		t.Fatal("expected second send to be blocked by window size 1")
	}
}

func TestSendWindowPiggybacksAck(t *testing.T) {
	sw := newSendWindow(4)
	sw.Enqueue(&Packet{Payload: []byte("a")})
	pending := newQueue[uint32]()
	pending.Push(42)

	p, ok := sw.TryTransmit(time.Now(), time.Second, pending)
	if !ok {
		t.Fatal("expected transmit to succeed")
	}
	if !p.IsAck || p.AckNum != 42 {
		t.Fatalf("expected piggybacked ack=42, got IsAck=%v AckNum=%d", p.IsAck, p.AckNum)
	}
}

func TestSendWindowAckAdvancesBase(t *testing.T) {
	sw := newSendWindow(4)
	for i := 0; i < 3; i++ {
		sw.Enqueue(&Packet{Payload: []byte("x")})
	}
	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, ok := sw.TryTransmit(now, time.Second, newQueue[uint32]()); !ok {
			t.Fatalf("transmit %d failed", i)
		}
	}
	// Ack seq 2 before seq 1: base must not move since 1 is still outstanding.
	sw.OnAck(2)
	if sw.sendBase != 1 {
		t.Fatalf("send_base = %d after acking 2 out of order, want 1", sw.sendBase)
	}
	if sw.unacked.Has(2) {
		t.Fatal("seq 2 should have been removed from the unacked table")
	}
	// Now ack 1: base should jump straight past the already-acked 2, to 3.
	sw.OnAck(1)
	if sw.sendBase != 3 {
		t.Fatalf("send_base = %d after acking 1, want 3 (skipping already-acked 2)", sw.sendBase)
	}
}

func TestSendWindowIgnoresOutOfWindowAck(t *testing.T) {
	sw := newSendWindow(4)
	sw.Enqueue(&Packet{Payload: []byte("a")})
	sw.TryTransmit(time.Now(), time.Second, newQueue[uint32]())

	sw.OnAck(99) // far outside [send_base, send_base+window)
	if sw.sendBase != 1 {
		t.Fatalf("send_base = %d after out-of-window ack, want unchanged 1", sw.sendBase)
	}
}

func TestSendWindowScanTimeoutsRetransmitsAndRotates(t *testing.T) {
	sw := newSendWindow(4)
	sw.Enqueue(&Packet{Payload: []byte("a")})
	sw.Enqueue(&Packet{Payload: []byte("b")})
	past := time.Now().Add(-time.Second)
	sw.TryTransmit(past, time.Millisecond, newQueue[uint32]()) // seq 1, already expired
	sw.TryTransmit(past, time.Hour, newQueue[uint32]())        // seq 2, not expired

	var retransmitted []uint32
	sw.ScanTimeouts(time.Now(), time.Hour, func(p *Packet) {
		retransmitted = append(retransmitted, p.SeqNum)
	})
	if len(retransmitted) != 1 || retransmitted[0] != 1 {
		t.Fatalf("retransmitted = %v, want [1]", retransmitted)
	}
	if sw.UnackedLen() != 2 {
		t.Fatalf("unacked len = %d after retransmit, want 2 (still unacked, just rescheduled)", sw.UnackedLen())
	}
}
