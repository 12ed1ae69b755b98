package socks5

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/quayside/socks5/statute"
)

const maxDatagramSize = 65535

// handleAssociate allocates a UDP relay socket for the client, reports its
// address, and pumps datagrams until the control stream closes. Per RFC 1928
// the association terminates with the TCP connection the request arrived on.
func (s *Server) handleAssociate(ctx context.Context, conn net.Conn, req statute.Request, logger *slog.Logger) error {
	lc := net.ListenConfig{}
	pc, err := lc.ListenPacket(ctx, "udp", localBindAddr(conn))
	if err != nil {
		_ = statute.ErrorReply(statute.RepServerFailure).WriteTo(conn)
		return fmt.Errorf("udp relay listen: %w", err)
	}

	assoc := newUDPAssociation(pc, expectedClientAddr(req.Addr), s.cfg.UDPTargetTTL, logger)
	defer assoc.Close()

	relayAddr := relayReplyAddr(conn, pc)
	if err := (statute.Reply{Rep: statute.RepSuccess, Addr: relayAddr}).WriteTo(conn); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	logger.Debug("udp association open", "relay", relayAddr.String())

	go assoc.pump()

	// Hold the control stream open; its closure tears the association
	// down. The client owes us no further bytes on it.
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}

	logger.Debug("udp association closed")
	return nil
}

// expectedClientAddr extracts the source address the client announced it
// will send datagrams from, or nil when it announced the unspecified
// address.
func expectedClientAddr(a statute.Address) *net.UDPAddr {
	if a.Type == statute.ATYPDomain || a.IP == nil || a.IP.IsUnspecified() {
		return nil
	}
	return a.UDPAddr()
}

// relayReplyAddr picks the address reported to the client: the relay
// socket's port on the IP the client connected to.
func relayReplyAddr(conn net.Conn, pc net.PacketConn) statute.Address {
	ua, ok := pc.LocalAddr().(*net.UDPAddr)
	if !ok {
		addr, err := statute.FromNetAddr(pc.LocalAddr())
		if err != nil {
			return statute.ZeroAddress
		}
		return addr
	}

	ip := ua.IP
	if ip.IsUnspecified() {
		if host, _, err := net.SplitHostPort(conn.LocalAddr().String()); err == nil {
			if connIP := net.ParseIP(host); connIP != nil {
				ip = connIP
			}
		}
	}
	return statute.IPAddress(ip, uint16(ua.Port))
}

// udpAssociation relays datagrams between one client and its targets over a
// single relay socket. Client-originated datagrams are unwrapped and
// forwarded; target replies are wrapped with the target's address and sent
// back. Replies from targets the client never sent to are dropped, as are
// fragmented and malformed datagrams.
type udpAssociation struct {
	pc       net.PacketConn
	expected *net.UDPAddr
	logger   *slog.Logger

	// targets tracks addresses the client has sent to, with TTL expiry,
	// so only solicited replies are relayed back.
	targets *cache.Cache

	mu     sync.Mutex
	client net.Addr
}

func newUDPAssociation(pc net.PacketConn, expected *net.UDPAddr, ttl time.Duration, logger *slog.Logger) *udpAssociation {
	return &udpAssociation{
		pc:       pc,
		expected: expected,
		logger:   logger,
		targets:  cache.New(ttl, 2*ttl),
	}
}

func (a *udpAssociation) Close() error { return a.pc.Close() }

func (a *udpAssociation) pump() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := a.pc.ReadFrom(buf)
		if err != nil {
			return
		}

		if a.fromClient(from) {
			a.relayOut(buf[:n])
		} else {
			a.relayBack(from, buf[:n])
		}
	}
}

// fromClient reports whether from is the association's client. The client
// address is fixed by the first datagram matching the announced source; a
// target cannot race it because targets only exist once the client has sent.
func (a *udpAssociation) fromClient(from net.Addr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client.String() == from.String()
	}

	ua, ok := from.(*net.UDPAddr)
	if !ok {
		return false
	}
	if e := a.expected; e != nil {
		if !e.IP.Equal(ua.IP) {
			return false
		}
		if e.Port != 0 && e.Port != ua.Port {
			return false
		}
	}

	a.client = from
	return true
}

func (a *udpAssociation) relayOut(b []byte) {
	d, err := statute.ParseDatagram(b)
	if err != nil {
		a.logger.Debug("dropping client datagram", "error", err)
		return
	}

	dst, err := net.ResolveUDPAddr("udp", d.Addr.String())
	if err != nil {
		a.logger.Debug("dropping client datagram", "dest", d.Addr.String(), "error", err)
		return
	}

	a.targets.SetDefault(dst.String(), struct{}{})
	if _, err := a.pc.WriteTo(d.Payload, dst); err != nil {
		a.logger.Debug("udp send failed", "dest", dst.String(), "error", err)
	}
}

func (a *udpAssociation) relayBack(from net.Addr, b []byte) {
	if _, ok := a.targets.Get(from.String()); !ok {
		return
	}
	a.targets.SetDefault(from.String(), struct{}{})

	src, err := statute.FromNetAddr(from)
	if err != nil {
		return
	}
	out, err := statute.Datagram{Addr: src, Payload: b}.Bytes()
	if err != nil {
		return
	}

	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return
	}

	if _, err := a.pc.WriteTo(out, client); err != nil {
		a.logger.Debug("udp reply failed", "error", err)
	}
}
