// Package capture reads raw client streams and turns them into files on disk.
package capture

import (
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
)

// EndReason tells why a read phase stopped
type EndReason string

const (
	EndEOF     EndReason = "eof"     // peer closed its write side
	EndTimeout EndReason = "timeout" // no data within the idle timeout
	EndLimit   EndReason = "limit"   // MaxSize reached
)

// DeadlineReader is the part of net.Conn the reader needs
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// ReadOptions controls ReadStream
type ReadOptions struct {
	ChunkSize   int
	IdleTimeout time.Duration
	MaxSize     int // 0 = unlimited
}

// ReadResult is the raw request captured from one connection
type ReadResult struct {
	Data []byte
	End  EndReason
}

// ReadStream reads conn in ChunkSize pieces until the peer closes, the idle
// timeout passes between two chunks, or MaxSize bytes are held. Those three
// endings are not errors and keep everything read so far. Any other read
// failure is returned.
func ReadStream(conn DeadlineReader, opts ReadOptions) (*ReadResult, error) {
	if opts.ChunkSize <= 0 {
		return nil, errors.New("capture: chunk size must be positive")
	}

	chunk := make([]byte, opts.ChunkSize)
	var data []byte

	for {
		if err := conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout)); err != nil {
			return nil, errors.Wrap(err, "capture: arming read deadline")
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			data = append(data, chunk[:n]...)
			if opts.MaxSize > 0 && len(data) >= opts.MaxSize {
				return &ReadResult{Data: data[:opts.MaxSize], End: EndLimit}, nil
			}
		}

		switch {
		case err == nil && n == 0:
			return &ReadResult{Data: data, End: EndEOF}, nil
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return &ReadResult{Data: data, End: EndEOF}, nil
		case isTimeout(err):
			return &ReadResult{Data: data, End: EndTimeout}, nil
		default:
			return nil, errors.Wrap(err, "capture: reading stream")
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
