// Package tcp exposes the chat engine over a plain-TCP, newline-delimited
// text protocol: one accepted connection becomes one client session.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/identity"
)

// Server accepts TCP connections and runs one session per connection.
type Server struct {
	addr         string
	hub          *core.Hub
	identity     identity.Store
	maxLineBytes int
	idleTimeout  time.Duration
	log          *zerolog.Logger

	mu       sync.Mutex
	boundTo  net.Addr
	conns    map[net.Conn]struct{}
	sessions sync.WaitGroup
}

// NewServer builds a TCP server for the given hub and identity store.
func NewServer(hub *core.Hub, ids identity.Store, cfg config.Config, logger *zerolog.Logger) *Server {
	return &Server{
		addr:         cfg.Addr,
		hub:          hub,
		identity:     ids,
		maxLineBytes: cfg.MaxLineBytes,
		idleTimeout:  cfg.IdleTimeout,
		log:          logger,
		conns:        make(map[net.Conn]struct{}),
	}
}

// Addr reports the bound listen address, nil before ListenAndServe.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundTo
}

// ListenAndServe accepts connections until ctx is cancelled. The accept
// loop never blocks on a session; every connection is handed off to its
// own goroutine. On cancellation it closes the listener and every live
// connection, then waits for sessions to unwind.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", s.addr, err)
	}
	defer listener.Close()

	s.mu.Lock()
	s.boundTo = listener.Addr()
	s.mu.Unlock()

	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("listener close error")
			}
		case <-shutdown:
		}
	}()

	s.log.Info().Str("addr", listener.Addr().String()).Msg("listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.closeConns()
				s.sessions.Wait()
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.closeConns()
				s.sessions.Wait()
				return nil
			}
			s.log.Warn().Err(err).Msg("accept error")
			continue
		}

		s.track(conn)
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
	newSession(conn, s.hub, s.identity, s.maxLineBytes, s.idleTimeout, s.log).run(ctx)
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
