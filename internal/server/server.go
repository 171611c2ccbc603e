package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ihavespoons/attn/internal/logger"
	"github.com/ihavespoons/attn/internal/protocol"
)

const (
	// restartDelay is the flat backoff before re-binding after the
	// listener drops. A locally-scoped service does not need
	// exponential backoff.
	restartDelay = 2 * time.Second

	// acceptRetryDelay paces retries after a transient accept failure.
	acceptRetryDelay = 100 * time.Millisecond

	maxLineBytes = 1 << 20
)

// BindError reports that the socket path could not be made listenable.
type BindError struct {
	Path string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind socket %s: %v", e.Path, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Handler is the single observer for decoded events and listening
// transitions. HandleMessage calls are serialized onto one goroutine no
// matter how many connections produced them; the session registry is
// not safe for concurrent mutation. ListeningChanged fires exactly once
// per transition but is invoked directly from whichever server
// goroutine observed the change, so implementations must be safe to
// call concurrently with HandleMessage.
type Handler interface {
	HandleMessage(msg protocol.Message)
	ListeningChanged(listening bool)
}

// Server owns a unix domain socket and frames client byte streams into
// newline-delimited event lines. It is long-lived inside the daemon, so
// a dropped listener self-heals with a flat retry rather than staying
// dead.
type Server struct {
	path    string
	handler Handler

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	running  bool

	listenMu  sync.Mutex
	listening bool

	deliver chan func()
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a server for the given socket path.
func New(path string, handler Handler) *Server {
	return &Server{
		path:    path,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start binds the socket and begins accepting connections. The initial
// bind failure is returned as a *BindError; failures after a successful
// start trigger automatic restart instead.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	ln, err := s.listen()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.running = true
	s.listener = ln
	s.deliver = make(chan func(), 64)
	s.done = make(chan struct{})
	s.mu.Unlock()

	// Single dispatch goroutine: the serialization point for all
	// decoded events.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case fn := <-s.deliver:
				fn()
			case <-s.done:
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	s.setListening(true)
	logger.Info().Str("path", s.path).Msg("Socket server listening")

	return nil
}

// Stop cancels all open connections, stops listening, and removes the
// socket file. In-flight partial lines are discarded. Idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ln := s.listener
	s.listener = nil
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	close(s.done)

	if ln != nil {
		_ = ln.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}

	s.wg.Wait()
	_ = os.Remove(s.path)

	s.setListening(false)
	logger.Info().Str("path", s.path).Msg("Socket server stopped")
}

// Listening reports whether the server currently accepts connections.
func (s *Server) Listening() bool {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	return s.listening
}

// listen prepares the socket path and binds it, restricted to the
// owning user.
func (s *Server) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, &BindError{Path: s.path, Err: err}
	}

	// A stale socket file from a crashed run would block the bind.
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return nil, &BindError{Path: s.path, Err: err}
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return nil, &BindError{Path: s.path, Err: err}
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		_ = ln.Close()
		return nil, &BindError{Path: s.path, Err: err}
	}

	return ln, nil
}

func (s *Server) acceptLoop() {
	for {
		s.mu.Lock()
		ln := s.listener
		running := s.running
		s.mu.Unlock()

		if !running || ln == nil {
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			if !s.isRunning() {
				return
			}

			if errors.Is(err, net.ErrClosed) {
				// Listener broke underneath us; self-heal.
				if !s.rebind() {
					return
				}
				continue
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				time.Sleep(acceptRetryDelay)
				continue
			}

			logger.Warn().Err(err).Msg("Accept failed")
			time.Sleep(acceptRetryDelay)
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// rebind reports the dropped listener and retries the bind on a flat
// delay until it succeeds or the server stops.
func (s *Server) rebind() bool {
	s.setListening(false)
	logger.Warn().Str("path", s.path).Msg("Listener dropped, attempting restart")

	for {
		select {
		case <-s.done:
			return false
		case <-time.After(restartDelay):
		}

		ln, err := s.listen()
		if err != nil {
			logger.Warn().Err(err).Msg("Socket restart failed, will retry")
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			_ = ln.Close()
			return false
		}
		s.listener = ln
		s.mu.Unlock()

		s.setListening(true)
		logger.Info().Str("path", s.path).Msg("Socket server restarted")
		return true
	}
}

// handleConn frames one client's byte stream into lines. Partial
// trailing data persists across reads; a close or error drops the
// connection and its buffer without rolling back delivered events.
func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		msg, ok := protocol.Parse(scanner.Text())
		if !ok {
			continue
		}

		select {
		case s.deliver <- func() { s.handler.HandleMessage(msg) }:
		case <-s.done:
			return
		}
	}
}

func (s *Server) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// setListening reports a transition to the handler exactly once per
// change, synchronously on the calling goroutine. It cannot go through
// the dispatch channel: Stop reports its transition after the dispatch
// goroutine has already exited.
func (s *Server) setListening(listening bool) {
	s.listenMu.Lock()
	changed := s.listening != listening
	s.listening = listening
	s.listenMu.Unlock()

	if changed {
		s.handler.ListeningChanged(listening)
	}
}
