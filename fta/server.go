package fta

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/arlyon/rtp/rtp"
)

// Server handles FTA requests on an accepted connection, one request
// per HandleOne call: a GET returns a file's contents, a PUT stores an
// uploaded file, streaming progress updates back to the client every
// progressInterval.
type Server struct {
	conn             conn
	log              *slog.Logger
	progressInterval time.Duration
	readFile         func(name string) ([]byte, error)
	writeFile        func(name string, data []byte) error
}

// NewServer wraps an already-connected endpoint. Production use
// defaults to os.ReadFile/os.WriteFile; tests override readFile and
// writeFile to avoid touching the filesystem.
func NewServer(e *rtp.Endpoint, log *slog.Logger) *Server {
	return &Server{
		conn:             e,
		log:              log,
		progressInterval: 200 * time.Millisecond,
		readFile:         os.ReadFile,
		writeFile: func(name string, data []byte) error {
			return os.WriteFile(name, data, 0o644)
		},
	}
}

func (s *Server) logf(msg string, args ...any) {
	if s.log != nil {
		s.log.Info(msg, args...)
	}
}

// HandleOne reads one FTA request off the connection and serves it.
// The fta-server command calls it in a loop, once per request, for as
// long as the connection stays open.
func (s *Server) HandleOne() error {
	buf, err := readExactly(s.conn, HeaderSize, nil)
	if err != nil {
		return fmt.Errorf("fta: read request header: %w", err)
	}
	hdr, err := DecodeHeader(buf[:HeaderSize])
	if err != nil {
		return err
	}
	transferID := uuid.New()

	switch hdr.Op {
	case OpGet:
		return s.handleGet(hdr, transferID)
	case OpFile:
		return s.handlePut(hdr, buf[HeaderSize:], transferID)
	default:
		return fmt.Errorf("fta: unsupported operation code %q", hdr.Op)
	}
}

func (s *Server) handleGet(hdr Header, transferID uuid.UUID) error {
	s.logf("fta: GET request", "file", hdr.Filename, "transfer_id", transferID)
	data, err := s.readFile(hdr.Filename)
	if err != nil {
		resp := Header{Error: true, Op: OpGet, Filename: ""}
		return s.conn.Send(resp.Encode())
	}
	resp := Header{Op: OpFile, Filename: hdr.Filename, Size: uint64(len(data))}
	return s.conn.Send(append(resp.Encode(), data...))
}

// handlePut reads hdr.Size bytes of uploaded file content, already
// primed with whatever arrived alongside the header (already), and
// streams a progress message every progressInterval until the upload
// completes.
func (s *Server) handlePut(hdr Header, already []byte, transferID uuid.UUID) error {
	s.logf("fta: PUT request", "file", hdr.Filename, "transfer_id", transferID, "bytes", hdr.Size)
	data := make([]byte, 0, hdr.Size)
	data = append(data, already...)
	lastUpdate := time.Now()
	for uint64(len(data)) < hdr.Size {
		chunk, err := s.conn.Receive()
		if err != nil {
			return fmt.Errorf("fta: read PUT body: %w", err)
		}
		data = append(data, chunk...)
		if time.Since(lastUpdate) > s.progressInterval {
			pct := int(float64(len(data)) / float64(hdr.Size) * 100)
			msg := fmt.Sprintf("%d%%", pct)
			progress := Header{Op: OpProgress, Size: uint64(len(msg))}
			if err := s.conn.Send(append(progress.Encode(), msg...)); err != nil {
				return fmt.Errorf("fta: send progress update: %w", err)
			}
			lastUpdate = time.Now()
		}
	}
	if err := s.writeFile(hdr.Filename, data); err != nil {
		return fmt.Errorf("fta: write uploaded file: %w", err)
	}
	done := Header{Op: OpGet, Filename: ""}
	return s.conn.Send(done.Encode())
}
