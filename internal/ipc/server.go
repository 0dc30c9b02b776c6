package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"hookd/internal/daemon"
	"hookd/internal/hook"
	"hookd/internal/logging"
)

// maxRequestBytes bounds one request envelope. Hook payloads are small;
// anything larger is hostile or broken input.
const maxRequestBytes = 4 << 20

// Server accepts hook connections on a Unix domain socket and feeds them to
// the daemon. Each connection carries exactly one request: the server reads
// until the client half-closes, dispatches, writes the response, and closes.
type Server struct {
	path           string
	daemon         *daemon.Daemon
	logger         *slog.Logger
	listener       net.Listener
	requestTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds the socket and prepares the accept loop. A stale socket
// file from a crashed daemon is removed before binding.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, requestTimeout time.Duration, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:           path,
		daemon:         d,
		logger:         logging.WithComponent(logger, "ipc"),
		listener:       listener,
		requestTimeout: requestTimeout,
		ctx:            serverCtx,
		cancel:         cancel,
	}, nil
}

// Path returns the bound socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve starts accepting connections until the context is canceled or Close
// is called.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check socket permissions; restart the daemon if this persists"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handleConn(c)
			}(conn)
		}
	}()
}

// handleConn services one request/response exchange. Faults never reach the
// client as errors: every path ends with well-formed JSON on the wire, the
// empty object at worst.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.requestTimeout))

	data, err := io.ReadAll(io.LimitReader(conn, maxRequestBytes))
	if err != nil {
		s.logger.Warn("request read failed", logging.Error(err))
		_, _ = conn.Write(hook.EmptyResponse)
		return
	}

	resp := s.daemon.HandleRequest(s.ctx, data)
	if _, err := conn.Write(resp); err != nil {
		s.logger.Warn("response write failed", logging.Error(err))
	}
}

// Close stops the accept loop, waits for in-flight connections, and removes
// the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}
