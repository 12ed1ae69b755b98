package socks5

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quayside/socks5/auth"
)

// ErrUnsupportedCommand is returned by the server driver after answering an
// unknown command with a CommandNotSupported reply.
var ErrUnsupportedCommand = errors.New("command not supported")

// Config holds server configuration. The zero value is usable: no
// authentication required, direct outbound dialing, no limits.
type Config struct {
	// Authenticators, tried in the client's preference order. Defaults to
	// accepting unauthenticated clients.
	Authenticators []auth.Authenticator

	// Dialer makes outbound CONNECT connections. Defaults to a plain
	// net.Dialer; set a ProxyDialer to chain through an upstream proxy.
	Dialer Dialer

	// Logger receives per-connection events. Defaults to a discard logger.
	Logger *slog.Logger

	// MaxConnections limits concurrent client connections (0 = unlimited).
	MaxConnections int

	// NegotiationTimeout bounds the handshake and request exchange.
	NegotiationTimeout time.Duration

	// BindTimeout bounds the wait for the inbound BIND connection
	// (0 = wait forever).
	BindTimeout time.Duration

	// UDPTargetTTL is how long a UDP association keeps accepting replies
	// from a target it has not sent to. Defaults to two minutes.
	UDPTargetTTL time.Duration
}

const defaultUDPTargetTTL = 2 * time.Minute

func (cfg Config) withDefaults() Config {
	if len(cfg.Authenticators) == 0 {
		cfg.Authenticators = []auth.Authenticator{auth.NoAuth{}}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.UDPTargetTTL <= 0 {
		cfg.UDPTargetTTL = defaultUDPTargetTTL
	}
	return cfg
}

// Server accepts SOCKS5 client connections and drives each through the
// handshake, authentication, and request dispatch. Connections share no
// mutable state; the Server only tracks them for Close.
type Server struct {
	cfg Config

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	connCount atomic.Int64
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	return &Server{
		cfg:   cfg.withDefaults(),
		conns: make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections from ln until it fails or the server is closed.
// The caller owns ln and closes it to stop the loop.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return err
		}

		if max := s.cfg.MaxConnections; max > 0 && s.connCount.Load() >= int64(max) {
			s.cfg.Logger.Warn("connection limit reached", "remote_addr", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		s.trackConn(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.trackConn(conn, false)

			if err := s.ServeConn(context.Background(), conn); err != nil && !s.closed.Load() {
				s.cfg.Logger.Debug("connection finished", "remote_addr", conn.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// Close terminates all active connections and waits for their handlers to
// return. Listeners passed to Serve are the caller's to close.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// ConnectionCount returns the number of active client connections.
func (s *Server) ConnectionCount() int64 {
	return s.connCount.Load()
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		s.conns[conn] = struct{}{}
		s.connCount.Add(1)
	} else {
		delete(s.conns, conn)
		s.connCount.Add(-1)
	}
}
