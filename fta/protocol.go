// Package fta implements the File Transfer Application header
// exchanged over an rtp.Endpoint's byte stream: a fixed-width ASCII
// header (error flag, operation code, filename, size) followed by
// either file bytes, a progress message, or nothing.
package fta

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire layout, grounded on the original TowelRTP fta_util header:
// 1 byte error flag, 1 byte operation code, 256 bytes of
// space-padded filename, 32 decimal digits of size.
const (
	filenameWidth = 256
	sizeWidth     = 32
	// HeaderSize is the total width of a Header's wire form.
	HeaderSize = 1 + 1 + filenameWidth + sizeWidth
)

// Op identifies what a Header's accompanying body represents.
type Op byte

const (
	// OpGet requests the named file from the server; the body is empty.
	OpGet Op = '0'
	// OpFile carries file bytes in the body, in a GET reply or a PUT request.
	OpFile Op = '1'
	// OpProgress carries a human-readable progress update in the body.
	OpProgress Op = '2'
)

// Header is the fixed-width preamble of every FTA message.
type Header struct {
	Error    bool
	Op       Op
	Filename string
	Size     uint64
}

// Encode renders h as its fixed-width wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	if h.Error {
		buf[0] = '1'
	} else {
		buf[0] = '0'
	}
	buf[1] = byte(h.Op)
	name := h.Filename
	if len(name) > filenameWidth {
		name = name[len(name)-filenameWidth:]
	}
	copy(buf[2+filenameWidth-len(name):2+filenameWidth], name)
	for i := 2; i < 2+filenameWidth-len(name); i++ {
		buf[i] = ' '
	}
	size := strconv.FormatUint(h.Size, 10)
	for len(size) < sizeWidth {
		size = "0" + size
	}
	copy(buf[2+filenameWidth:], size)
	return buf
}

// DecodeHeader parses the first HeaderSize bytes of buf into a
// Header. It returns an error if buf is shorter than HeaderSize or the
// size field is not a valid decimal number.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("fta: short header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	size, err := strconv.ParseUint(string(buf[2+filenameWidth:HeaderSize]), 10, 64)
	if err != nil {
		return Header{}, fmt.Errorf("fta: invalid size field: %w", err)
	}
	return Header{
		Error:    buf[0] == '1',
		Op:       Op(buf[1]),
		Filename: strings.TrimSpace(string(buf[2 : 2+filenameWidth])),
		Size:     size,
	}, nil
}
