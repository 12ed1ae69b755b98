package socks5

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/quayside/socks5/auth"
	"github.com/quayside/socks5/statute"
)

// ServeConn drives one client connection through the full server-side
// sequence: greeting, method selection, authentication, request, command
// dispatch. The connection is closed before ServeConn returns, on every
// path. When a reply is owed to the peer it is written before the error
// surfaces locally.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	if t := s.cfg.NegotiationTimeout; t > 0 {
		_ = conn.SetDeadline(time.Now().Add(t))
	}

	identity, err := auth.ServerNegotiate(conn, s.cfg.Authenticators)
	if err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}

	req, err := statute.ReadRequest(conn)
	if err != nil {
		if errors.Is(err, statute.ErrMalformedAddress) {
			_ = statute.ErrorReply(statute.RepAddrTypeNotSupported).WriteTo(conn)
		}
		return fmt.Errorf("read request: %w", err)
	}

	_ = conn.SetDeadline(time.Time{})

	logger := s.cfg.Logger.With(
		"remote_addr", conn.RemoteAddr().String(),
		"command", statute.CmdString(req.Cmd),
		"dest", req.Addr.String(),
	)
	if identity != "" {
		logger = logger.With("user", identity)
	}

	switch req.Cmd {
	case statute.CmdConnect:
		return s.handleConnect(ctx, conn, req, logger)
	case statute.CmdBind:
		return s.handleBind(ctx, conn, req, logger)
	case statute.CmdUDPAssociate:
		return s.handleAssociate(ctx, conn, req, logger)
	default:
		_ = statute.ErrorReply(statute.RepCommandNotSupported).WriteTo(conn)
		return fmt.Errorf("%s: %w", statute.CmdString(req.Cmd), ErrUnsupportedCommand)
	}
}

func (s *Server) handleConnect(ctx context.Context, conn net.Conn, req statute.Request, logger *slog.Logger) error {
	target, err := s.cfg.Dialer.DialContext(ctx, "tcp", req.Addr.String())
	if err != nil {
		rep := replyForError(err)
		_ = statute.ErrorReply(rep).WriteTo(conn)
		logger.Debug("connect failed", "reply", statute.RepString(rep), "error", err)
		return fmt.Errorf("dial %s: %w", req.Addr, err)
	}
	defer target.Close()

	bound, err := statute.FromNetAddr(target.LocalAddr())
	if err != nil {
		bound = statute.ZeroAddress
	}
	if err := (statute.Reply{Rep: statute.RepSuccess, Addr: bound}).WriteTo(conn); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}

	logger.Debug("connect established", "bound", bound.String())
	return Relay(ctx, conn, target)
}

// handleBind opens a one-shot listener, reports it to the client, and waits
// for exactly one inbound connection before relaying.
func (s *Server) handleBind(ctx context.Context, conn net.Conn, req statute.Request, logger *slog.Logger) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", localBindAddr(conn))
	if err != nil {
		_ = statute.ErrorReply(statute.RepServerFailure).WriteTo(conn)
		return fmt.Errorf("bind listen: %w", err)
	}
	defer ln.Close()

	bound, err := statute.FromNetAddr(ln.Addr())
	if err != nil {
		_ = statute.ErrorReply(statute.RepServerFailure).WriteTo(conn)
		return fmt.Errorf("bind address: %w", err)
	}
	if err := (statute.Reply{Rep: statute.RepSuccess, Addr: bound}).WriteTo(conn); err != nil {
		return fmt.Errorf("write bind reply: %w", err)
	}
	logger.Debug("bind listening", "bound", bound.String())

	if t := s.cfg.BindTimeout; t > 0 {
		if tl, ok := ln.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(t))
		}
	}

	peer, err := ln.Accept()
	if err != nil {
		rep := replyForError(err)
		_ = statute.ErrorReply(rep).WriteTo(conn)
		return fmt.Errorf("bind accept: %w", err)
	}
	defer peer.Close()
	ln.Close()

	peerAddr, err := statute.FromNetAddr(peer.RemoteAddr())
	if err != nil {
		peerAddr = statute.ZeroAddress
	}
	if err := (statute.Reply{Rep: statute.RepSuccess, Addr: peerAddr}).WriteTo(conn); err != nil {
		return fmt.Errorf("write bind reply: %w", err)
	}

	logger.Debug("bind established", "peer", peerAddr.String())
	return Relay(ctx, conn, peer)
}

// localBindAddr returns "ip:0" on the interface the client reached us on,
// so BIND listeners and UDP relay sockets are reachable from where the
// client is.
func localBindAddr(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return ":0"
	}
	return net.JoinHostPort(host, "0")
}
