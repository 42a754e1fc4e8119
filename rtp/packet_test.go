package rtp

import (
	"net"
	"testing"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	origin := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4242}
	cases := []*Packet{
		{SeqNum: 1, AckNum: 0, AdvertisedWindow: 10, Payload: []byte("hello")},
		{IsAck: true, AckNum: 7, AdvertisedWindow: 5},
		{IsHandshake: true, SeqNum: 123, AdvertisedWindow: 10},
		{IsDisconnect: true, IsAck: true, SeqNum: 99999999, AckNum: 1},
		{SeqNum: 1, Payload: []byte{}},
	}
	for _, want := range cases {
		buf := want.Serialize()
		if len(buf) != HeaderSize+len(want.Payload) {
			t.Fatalf("serialize length = %d, want %d", len(buf), HeaderSize+len(want.Payload))
		}
		got, ok := Deserialize(buf, origin)
		if !ok {
			t.Fatalf("deserialize rejected a packet we just serialized: % x", buf)
		}
		if got.IsAck != want.IsAck || got.IsHandshake != want.IsHandshake || got.IsDisconnect != want.IsDisconnect {
			t.Fatalf("flags mismatch: got %+v, want %+v", got, want)
		}
		if got.SeqNum != want.SeqNum || got.AckNum != want.AckNum || got.AdvertisedWindow != want.AdvertisedWindow {
			t.Fatalf("fields mismatch: got %+v, want %+v", got, want)
		}
		if string(got.Payload) != string(want.Payload) {
			t.Fatalf("payload mismatch: got %q, want %q", got.Payload, want.Payload)
		}
		if got.PeerAddr != origin {
			t.Fatalf("origin not threaded through: got %v, want %v", got.PeerAddr, origin)
		}
	}
}

func TestDeserializeRejectsShortBuffer(t *testing.T) {
	if _, ok := Deserialize(make([]byte, HeaderSize-1), nil); ok {
		t.Fatal("expected a too-short buffer to be rejected")
	}
}

func TestDeserializeRejectsCorruptChecksum(t *testing.T) {
	p := &Packet{SeqNum: 1, Payload: []byte("payload")}
	buf := p.Serialize()
	buf[HeaderSize] ^= 0xFF // flip a bit in the payload
	if _, ok := Deserialize(buf, nil); ok {
		t.Fatal("expected checksum mismatch to be rejected")
	}
}

func TestDeserializeRejectsTruncatedAfterHeader(t *testing.T) {
	// A truncated payload (header present, but shorter than the
	// checksum covers) must fail the checksum check, not panic.
	p := &Packet{SeqNum: 1, Payload: []byte("payload")}
	buf := p.Serialize()
	if _, ok := Deserialize(buf[:len(buf)-2], nil); ok {
		t.Fatal("expected truncated payload to fail checksum verification")
	}
}
