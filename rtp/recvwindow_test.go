package rtp

import "testing"

func deliveredStrings(rw *recvWindow) []string {
	var out []string
	for {
		p, ok := rw.delivered.TryPop()
		if !ok {
			return out
		}
		out = append(out, string(p))
	}
}

func TestRecvWindowInOrderDelivery(t *testing.T) {
	rw := newRecvWindow(5)
	rw.OnDataPacket(&Packet{SeqNum: 1, Payload: []byte("a")})
	rw.OnDataPacket(&Packet{SeqNum: 2, Payload: []byte("b")})
	got := deliveredStrings(rw)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("delivered = %v, want [a b]", got)
	}
	if rw.rcvBase != 3 {
		t.Fatalf("rcv_base = %d, want 3", rw.rcvBase)
	}
}

func TestRecvWindowReordering(t *testing.T) {
	rw := newRecvWindow(5)
	rw.OnDataPacket(&Packet{SeqNum: 2, Payload: []byte("b")})
	if rw.rcvBase != 1 {
		t.Fatalf("rcv_base advanced on out-of-order arrival: got %d, want 1", rw.rcvBase)
	}
	rw.OnDataPacket(&Packet{SeqNum: 1, Payload: []byte("a")})
	rw.OnDataPacket(&Packet{SeqNum: 3, Payload: []byte("c")})

	got := deliveredStrings(rw)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("delivered = %v, want [a b c]", got)
	}
}

func TestRecvWindowDuplicateBelowWindowReAcksNotRedelivers(t *testing.T) {
	rw := newRecvWindow(5)
	for i := uint32(1); i <= 5; i++ {
		rw.OnDataPacket(&Packet{SeqNum: i, Payload: []byte{byte('a' + i)}})
	}
	deliveredStrings(rw) // drain
	rw.pendingAcks.DrainAll()

	rw.OnDataPacket(&Packet{SeqNum: 3, Payload: []byte("dup")})
	if got := deliveredStrings(rw); len(got) != 0 {
		t.Fatalf("duplicate-below-window must not redeliver, got %v", got)
	}
	acks := rw.pendingAcks.DrainAll()
	if len(acks) != 1 || acks[0] != 3 {
		t.Fatalf("expected a single pending ack for seq 3, got %v", acks)
	}
}

func TestRecvWindowOutOfRangeDropsWithoutAck(t *testing.T) {
	rw := newRecvWindow(3)
	rw.OnDataPacket(&Packet{SeqNum: 100, Payload: []byte("future")})
	if rw.pendingAcks.Len() != 0 {
		t.Fatal("out-of-range packet must not be acknowledged")
	}
	if len(rw.staging) != 0 {
		t.Fatal("out-of-range packet must not be staged")
	}
}

func TestRecvWindowIgnoresDuplicateStaged(t *testing.T) {
	rw := newRecvWindow(5)
	rw.OnDataPacket(&Packet{SeqNum: 2, Payload: []byte("first")})
	rw.OnDataPacket(&Packet{SeqNum: 2, Payload: []byte("second")})
	if len(rw.staging) != 1 {
		t.Fatalf("staging len = %d, want 1", len(rw.staging))
	}
	if string(rw.staging[2].Payload) != "first" {
		t.Fatalf("staged payload overwritten: got %q, want %q", rw.staging[2].Payload, "first")
	}
}
