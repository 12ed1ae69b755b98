package socks5

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/quayside/socks5/auth"
	"github.com/quayside/socks5/statute"
)

// ReplyError is the terminal failure of a request: the server answered with
// a non-success reply code.
type ReplyError struct {
	Rep byte
}

func (e *ReplyError) Error() string {
	return "request failed: " + statute.RepString(e.Rep)
}

type clientState int

const (
	clientStart clientState = iota
	clientReady
	clientEstablished
	clientFailed
)

// Client drives the initiator side of a SOCKS5 exchange over one control
// stream. A Client handles exactly one command; run a fresh Client over a
// fresh connection to retry.
type Client struct {
	rw    io.ReadWriter
	auth  auth.ClientAuth
	state clientState
}

// NewClient wraps a control stream. rw is typically a net.Conn to the proxy,
// but any byte stream works; the Client never dials or closes it.
func NewClient(rw io.ReadWriter, a auth.ClientAuth) *Client {
	return &Client{rw: rw, auth: a}
}

// Handshake sends the greeting and completes method negotiation, including
// the username/password sub-negotiation when selected. It is called
// implicitly by the command methods when needed.
func (c *Client) Handshake() error {
	if c.state != clientStart {
		return errors.New("handshake already performed")
	}

	if _, err := auth.ClientNegotiate(c.rw, c.auth); err != nil {
		c.state = clientFailed
		return err
	}
	c.state = clientReady
	return nil
}

// Connect issues a CONNECT request for target. On success the control stream
// carries relayed application bytes and the server's bound address is
// returned. On failure the stream is unusable and must be closed by the
// caller.
func (c *Client) Connect(target statute.Address) (statute.Address, error) {
	reply, err := c.request(statute.CmdConnect, target)
	if err != nil {
		return statute.Address{}, err
	}
	c.state = clientEstablished
	return reply.Addr, nil
}

// Bind issues a BIND request and returns the address the server is listening
// on, to be communicated to the expected peer. BindWait completes the
// exchange.
func (c *Client) Bind(target statute.Address) (statute.Address, error) {
	reply, err := c.request(statute.CmdBind, target)
	if err != nil {
		return statute.Address{}, err
	}
	return reply.Addr, nil
}

// BindWait blocks for the second BIND reply, sent when the peer has
// connected, and returns the peer's address. After BindWait the control
// stream relays the inbound connection.
func (c *Client) BindWait() (statute.Address, error) {
	if c.state != clientReady {
		return statute.Address{}, errors.New("no BIND in progress")
	}

	reply, err := statute.ReadReply(c.rw)
	if err != nil {
		c.state = clientFailed
		return statute.Address{}, fmt.Errorf("read bind reply: %w", err)
	}
	if reply.Rep != statute.RepSuccess {
		c.state = clientFailed
		return statute.Address{}, &ReplyError{Rep: reply.Rep}
	}
	c.state = clientEstablished
	return reply.Addr, nil
}

// UDPAssociate issues a UDP ASSOCIATE request announcing pc's local address
// and returns a UDPConn that frames datagrams to and from the relay. The
// association lives as long as the control stream: closing the stream tears
// it down, so the caller must keep it open while using the UDPConn.
func (c *Client) UDPAssociate(pc net.PacketConn) (*UDPConn, error) {
	local, err := statute.FromNetAddr(pc.LocalAddr())
	if err != nil {
		return nil, fmt.Errorf("local address: %w", err)
	}

	reply, err := c.request(statute.CmdUDPAssociate, local)
	if err != nil {
		return nil, err
	}

	relay, err := c.relayAddr(reply.Addr)
	if err != nil {
		c.state = clientFailed
		return nil, err
	}
	c.state = clientEstablished
	return NewUDPConn(pc, relay), nil
}

// request runs the handshake if still pending, sends one command, and reads
// the reply. Non-success replies surface as *ReplyError.
func (c *Client) request(cmd byte, target statute.Address) (statute.Reply, error) {
	switch c.state {
	case clientStart:
		if err := c.Handshake(); err != nil {
			return statute.Reply{}, err
		}
	case clientReady:
	default:
		return statute.Reply{}, errors.New("connection already established or failed")
	}

	if err := (statute.Request{Cmd: cmd, Addr: target}).WriteTo(c.rw); err != nil {
		c.state = clientFailed
		return statute.Reply{}, fmt.Errorf("write request: %w", err)
	}

	reply, err := statute.ReadReply(c.rw)
	if err != nil {
		c.state = clientFailed
		return statute.Reply{}, fmt.Errorf("read reply: %w", err)
	}
	if reply.Rep != statute.RepSuccess {
		c.state = clientFailed
		return statute.Reply{}, &ReplyError{Rep: reply.Rep}
	}
	return reply, nil
}

// relayAddr resolves the relay address from a UDP ASSOCIATE reply. Servers
// behind the unspecified address are reached at the control stream's remote
// IP.
func (c *Client) relayAddr(bound statute.Address) (*net.UDPAddr, error) {
	if bound.Type == statute.ATYPDomain {
		addr, err := net.ResolveUDPAddr("udp", bound.String())
		if err != nil {
			return nil, fmt.Errorf("resolve relay address: %w", err)
		}
		return addr, nil
	}

	ip := bound.IP
	if ip.IsUnspecified() {
		conn, ok := c.rw.(net.Conn)
		if !ok {
			return nil, errors.New("relay address unspecified and control stream has no remote address")
		}
		host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
		if err != nil {
			return nil, fmt.Errorf("control stream remote address: %w", err)
		}
		ip = net.ParseIP(host)
	}

	return &net.UDPAddr{IP: ip, Port: int(bound.Port)}, nil
}
