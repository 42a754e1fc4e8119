package fta

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arlyon/rtp/rtp"
)

// conn is the subset of *rtp.Endpoint the FTA client/server need; it
// lets tests substitute a fake without spinning up real sockets.
type conn interface {
	Send([]byte) error
	Receive() ([]byte, error)
}

// Client drives file transfers over an established rtp.Endpoint.
type Client struct {
	conn conn
	log  *slog.Logger
	// OnProgress, if set, is called with 0..100 as progress updates
	// arrive from the server during a Put.
	OnProgress func(percent int)
}

// NewClient wraps an already-connected endpoint.
func NewClient(e *rtp.Endpoint, log *slog.Logger) *Client {
	return &Client{conn: e, log: log}
}

func (c *Client) logf(msg string, args ...any) {
	if c.log != nil {
		c.log.Info(msg, args...)
	}
}

// readExactly blocks until at least n bytes have been received,
// draining the client's connection as many times as needed.
func readExactly(c conn, n int, have []byte) ([]byte, error) {
	for len(have) < n {
		chunk, err := c.Receive()
		if err != nil {
			return have, err
		}
		have = append(have, chunk...)
	}
	return have, nil
}

// Get requests filename from the server and returns its contents.
func (c *Client) Get(filename string) ([]byte, error) {
	transferID := uuid.New()
	c.logf("fta: GET requested", "file", filename, "transfer_id", transferID)

	req := Header{Op: OpGet, Filename: filename}
	if err := c.conn.Send(req.Encode()); err != nil {
		return nil, fmt.Errorf("fta: send GET request: %w", err)
	}

	buf, err := readExactly(c.conn, HeaderSize, nil)
	if err != nil {
		return nil, fmt.Errorf("fta: read GET response header: %w", err)
	}
	hdr, err := DecodeHeader(buf[:HeaderSize])
	if err != nil {
		return nil, err
	}
	if hdr.Error {
		return nil, fmt.Errorf("fta: server reports %q not found", filename)
	}
	body, err := readExactly(c.conn, HeaderSize+int(hdr.Size), buf)
	if err != nil {
		return nil, fmt.Errorf("fta: read GET body: %w", err)
	}
	c.logf("fta: GET complete", "file", filename, "transfer_id", transferID, "bytes", hdr.Size)
	return body[HeaderSize:], nil
}

// Put uploads filename's contents to the server, streaming any
// progress updates the server sends back to OnProgress.
func (c *Client) Put(filename string, data []byte) error {
	transferID := uuid.New()
	c.logf("fta: PUT starting", "file", filename, "transfer_id", transferID, "bytes", len(data))

	req := Header{Op: OpFile, Filename: filename, Size: uint64(len(data))}
	payload := append(req.Encode(), data...)
	if err := c.conn.Send(payload); err != nil {
		return fmt.Errorf("fta: send PUT payload: %w", err)
	}

	buf, err := readExactly(c.conn, HeaderSize, nil)
	for err == nil {
		hdr, derr := DecodeHeader(buf[:HeaderSize])
		if derr != nil {
			return derr
		}
		if hdr.Op != OpProgress {
			break
		}
		rest, rerr := readExactly(c.conn, HeaderSize+int(hdr.Size), buf)
		if rerr != nil {
			return fmt.Errorf("fta: read progress body: %w", rerr)
		}
		if c.OnProgress != nil {
			reportProgress(c.OnProgress, string(rest[HeaderSize:]))
		}
		buf, err = readExactly(c.conn, HeaderSize, nil)
	}
	if err != nil {
		return fmt.Errorf("fta: read PUT acknowledgement: %w", err)
	}
	c.logf("fta: PUT complete", "file", filename, "transfer_id", transferID)
	return nil
}

func reportProgress(cb func(int), msg string) {
	var pct int
	fmt.Sscanf(msg, "%d%%", &pct)
	cb(pct)
}
