package rtp

// State is the connection state of an Endpoint, progressing
// CLOSED -> SYN_SENT/LISTEN -> ESTABLISHED -> CLOSING -> CLOSED.
type State int

const (
	StateClosed State = iota
	StateSynSent
	StateListen
	StateEstablished
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateSynSent:
		return "SYN_SENT"
	case StateListen:
		return "LISTEN"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// handshakeState tracks which parts of the 3-way handshake have been
// processed, independent of the coarser connection State, so that a
// duplicate SYN or SYN-ACK can be answered again without re-advancing
// protocol state.
type handshakeState struct {
	part1Received bool // server has seen the client's SYN
	part2Received bool // client has seen the server's SYN-ACK
	part3Received bool // server has seen the client's final ACK
}
