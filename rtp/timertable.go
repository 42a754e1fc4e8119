package rtp

import (
	"container/list"
	"sync"
	"time"
)

// timerTable is the insertion-ordered unacked table: seq_num -> packet
// for packets transmitted but not yet acknowledged. Iteration order is
// send order, so an oldest-first timeout scan is a forward walk.
//
// Built directly on container/list plus a map index: the idiomatic
// stdlib answer to "hash map with a doubly linked list" for O(1)
// arbitrary-key removal while keeping send order for the timeout scan.
type timerTable struct {
	mu    sync.Mutex
	order *list.List
	index map[uint32]*list.Element
}

type timerEntry struct {
	seq      uint32
	pkt      *Packet
	deadline time.Time
}

func newTimerTable() *timerTable {
	return &timerTable{
		order: list.New(),
		index: make(map[uint32]*list.Element),
	}
}

// Insert places pkt at the tail of the table, keyed by its seq_num,
// with the given deadline. Overwrites any existing entry for the same
// sequence number.
func (t *timerTable) Insert(pkt *Packet, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.index[pkt.SeqNum]; ok {
		t.order.Remove(el)
	}
	el := t.order.PushBack(&timerEntry{seq: pkt.SeqNum, pkt: pkt, deadline: deadline})
	t.index[pkt.SeqNum] = el
}

// Remove deletes the entry for seq, if present, and reports whether it
// was there.
func (t *timerTable) Remove(seq uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.index[seq]
	if !ok {
		return false
	}
	t.order.Remove(el)
	delete(t.index, seq)
	return true
}

// Has reports whether seq is currently in the table.
func (t *timerTable) Has(seq uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.index[seq]
	return ok
}

// Len reports the number of in-flight, unacknowledged packets.
func (t *timerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

// PopExpired removes, in insertion (oldest-first) order, the leading
// run of entries whose deadline is not after now, and returns their
// packets. The scan stops at the first entry whose deadline is still
// ahead; entries behind it are not examined. The
// caller is expected to retransmit each one and then Insert it again
// with a fresh deadline, which moves it to the tail for the next scan
// - this keeps any datagram I/O outside the table's lock.
func (t *timerTable) PopExpired(now time.Time) []*Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Packet
	for el := t.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*timerEntry)
		if entry.deadline.After(now) {
			break
		}
		out = append(out, entry.pkt)
		t.order.Remove(el)
		delete(t.index, entry.seq)
		el = next
	}
	return out
}

// Reset clears every in-flight entry, e.g. on entering CLOSED.
func (t *timerTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order.Init()
	t.index = make(map[uint32]*list.Element)
}
