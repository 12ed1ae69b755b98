package socks5

import (
	"fmt"
	"net"

	"github.com/quayside/socks5/statute"
)

// UDPConn frames datagrams for a UDP association: writes are wrapped in the
// RFC 1928 UDP header and sent to the relay; reads unwrap the header and
// yield the originating address. It is a pure transform around the packet
// transport it is given and does not own the association's lifetime — the
// control stream does.
type UDPConn struct {
	pc    net.PacketConn
	relay net.Addr
}

// NewUDPConn wraps pc, addressing all outgoing datagrams to relay.
func NewUDPConn(pc net.PacketConn, relay net.Addr) *UDPConn {
	return &UDPConn{pc: pc, relay: relay}
}

// WriteTo wraps payload for dest and sends it to the relay.
func (u *UDPConn) WriteTo(payload []byte, dest statute.Address) (int, error) {
	b, err := statute.Datagram{Addr: dest, Payload: payload}.Bytes()
	if err != nil {
		return 0, err
	}
	if _, err := u.pc.WriteTo(b, u.relay); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// ReadFrom receives one datagram from the relay, unwraps it, and copies the
// payload into p. Datagrams from senders other than the relay are dropped.
// Fragmented or malformed datagrams produce an error rather than being
// passed through.
func (u *UDPConn) ReadFrom(p []byte) (int, statute.Address, error) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := u.pc.ReadFrom(buf)
		if err != nil {
			return 0, statute.Address{}, err
		}
		if from.String() != u.relay.String() {
			continue
		}

		d, err := statute.ParseDatagram(buf[:n])
		if err != nil {
			return 0, statute.Address{}, fmt.Errorf("relay datagram: %w", err)
		}
		if len(d.Payload) > len(p) {
			return 0, statute.Address{}, fmt.Errorf("payload of %d bytes exceeds buffer", len(d.Payload))
		}
		return copy(p, d.Payload), d.Addr, nil
	}
}

// LocalAddr returns the local address of the underlying packet transport.
func (u *UDPConn) LocalAddr() net.Addr { return u.pc.LocalAddr() }

// Close closes the underlying packet transport. The association itself ends
// when the control stream closes.
func (u *UDPConn) Close() error { return u.pc.Close() }
