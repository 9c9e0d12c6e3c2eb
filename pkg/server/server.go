// Package server runs the capture loop: accept one connection, read it to the
// end, archive it, extract any image, answer, close, repeat.
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hmgle/sockcap/internal/config"
	"github.com/hmgle/sockcap/pkg/capture"
	"github.com/hmgle/sockcap/pkg/logger"
	"github.com/hmgle/sockcap/pkg/response"
)

const defaultPollInterval = time.Second

// Recorder stores capture records somewhere queryable
type Recorder interface {
	Record(ctx context.Context, rec *logger.CaptureRecord) error
}

type Options struct {
	Config   *config.Config
	Template []byte
	Logger   logger.CaptureLogger

	// Optional
	Index        Recorder
	Archiver     *capture.Archiver
	PollInterval time.Duration // how often a blocked accept checks for shutdown
}

// Server is a sequential capture listener. One connection is handled fully
// before the next is accepted.
type Server struct {
	cfg          *config.Config
	template     []byte
	logger       logger.CaptureLogger
	index        Recorder
	archiver     *capture.Archiver
	pollInterval time.Duration
	readOpts     capture.ReadOptions

	mu       sync.Mutex
	listener net.Listener
	state    atomic.Int32
}

type deadlineListener interface {
	SetDeadline(t time.Time) error
}

// New creates a capture server. Nothing is bound until Listen or Serve.
func New(opts Options) *Server {
	s := &Server{
		cfg:          opts.Config,
		template:     opts.Template,
		logger:       opts.Logger,
		index:        opts.Index,
		archiver:     opts.Archiver,
		pollInterval: opts.PollInterval,
		readOpts: capture.ReadOptions{
			ChunkSize:   opts.Config.ChunkSize,
			IdleTimeout: opts.Config.IdleTimeoutDuration(),
			MaxSize:     opts.Config.MaxRequestSize,
		},
	}
	if s.template == nil {
		s.template = response.Default
	}
	if s.archiver == nil {
		s.archiver = capture.NewArchiver(opts.Config.CaptureDir)
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	return s
}

// State returns the current loop state
func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(st State) {
	if prev := State(s.state.Swap(int32(st))); prev != st {
		s.logger.Debug("state %s -> %s", prev, st)
	}
}

// Listen binds the listening socket and returns its address
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	ln, err := listen(s.cfg.Addr(), s.cfg.Backlog)
	if err != nil {
		return nil, err
	}
	if _, ok := ln.(deadlineListener); !ok {
		ln.Close()
		return nil, errors.New("server: listener does not support deadlines")
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Serve runs the loop until ctx is cancelled or a fault occurs. Cancellation
// is noticed between connections and returns nil. A fault anywhere in the
// accept/handle/respond cycle stops the loop and is returned. The listening
// socket is released in both cases.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	defer s.release()

	s.logger.Info("Start the socket server on %s...", s.listener.Addr())
	s.logger.Debug("Saving captures under %s", s.archiver.Dir())
	s.logger.Info("\"Ctrl+C\" for stopping the server!")

	dl := s.listener.(deadlineListener)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stop the server...")
			return nil
		default:
		}

		s.setState(StateAccepting)
		if err := dl.SetDeadline(time.Now().Add(s.pollInterval)); err != nil {
			return s.fault(errors.Wrap(err, "server: arming accept deadline"))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return s.fault(errors.Wrap(err, "server: accepting connection"))
		}

		if err := s.handle(ctx, conn); err != nil {
			return s.fault(err)
		}
	}
}

func (s *Server) fault(err error) error {
	s.logger.Error("An error occurred: %v", err)
	return err
}

func (s *Server) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	s.setState(StateIdle)
}

// handle runs one connection through read, archive, extract, respond. Any
// error returned is fatal to the loop; the client then sees the connection
// close without a response.
func (s *Server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	s.setState(StateHandling)
	start := time.Now()
	rec := &logger.CaptureRecord{
		ID:         uuid.NewString(),
		SessionID:  s.logger.SessionID(),
		Timestamp:  start,
		RemoteAddr: conn.RemoteAddr().String(),
	}
	s.logger.Info("Request from %s", rec.RemoteAddr)

	res, err := capture.ReadStream(conn, s.readOpts)
	if err != nil {
		return errors.Wrapf(err, "server: handling %s", rec.RemoteAddr)
	}
	switch res.End {
	case capture.EndTimeout:
		s.logger.Info("Socket timeout. Ending connection.")
	case capture.EndLimit:
		s.logger.Warn("Request from %s reached %d bytes, rest discarded", rec.RemoteAddr, s.readOpts.MaxSize)
	}
	rec.BytesRead = len(res.Data)
	rec.EndReason = string(res.End)

	rec.SnapshotPath, err = s.archiver.SaveRequest(res.Data)
	if err != nil {
		return errors.Wrapf(err, "server: handling %s", rec.RemoteAddr)
	}
	s.logger.Info("Request saved as %s", rec.SnapshotPath)

	if img, ok := capture.ExtractImage(res.Data); ok {
		rec.ImagePath, err = s.archiver.SaveImage(img.Data)
		if err != nil {
			return errors.Wrapf(err, "server: handling %s", rec.RemoteAddr)
		}
		rec.ImageType = img.Subtype
		rec.ImageSize = len(img.Data)
		s.logger.Info("Image saved as %s", rec.ImagePath)
	}

	s.setState(StateResponding)
	framed := response.Frame(s.template)
	if err := conn.SetWriteDeadline(time.Now().Add(s.readOpts.IdleTimeout)); err != nil {
		return errors.Wrap(err, "server: arming write deadline")
	}
	if _, err := conn.Write(framed); err != nil {
		return errors.Wrapf(err, "server: sending response to %s", rec.RemoteAddr)
	}
	rec.ResponseSize = len(framed)

	s.setState(StateClosing)
	// Release the client before the record is published; the deferred Close is then a no-op.
	conn.Close()
	rec.Duration = time.Since(start)

	s.record(ctx, rec)
	return nil
}

// record publishes rec. Failures here are logged and never stop the loop.
func (s *Server) record(ctx context.Context, rec *logger.CaptureRecord) {
	if s.index != nil {
		// A shutdown arriving mid-connection must not drop the row.
		if err := s.index.Record(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Error("Failed to index capture: %v", err)
		}
	}
	if err := s.logger.LogCapture(rec); err != nil {
		s.logger.Error("Failed to log capture: %v", err)
	}
}
