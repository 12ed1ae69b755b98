package statute

import (
	"errors"
	"fmt"
)

// Version is the SOCKS protocol version byte carried by every RFC 1928
// message.
const Version = byte(0x05)

// UserPassVersion is the sub-negotiation version byte from RFC 1929.
const UserPassVersion = byte(0x01)

// Authentication method identifiers.
const (
	MethodNoAuth       = byte(0x00)
	MethodGSSAPI       = byte(0x01)
	MethodUserPass     = byte(0x02)
	MethodNoAcceptable = byte(0xFF)
)

// Username/password sub-negotiation status.
const (
	AuthSuccess = byte(0x00)
	AuthFailure = byte(0x01)
)

// Request commands.
const (
	CmdConnect      = byte(0x01)
	CmdBind         = byte(0x02)
	CmdUDPAssociate = byte(0x03)
)

// Address types.
const (
	ATYPIPv4   = byte(0x01)
	ATYPDomain = byte(0x03)
	ATYPIPv6   = byte(0x04)
)

// Reply codes.
const (
	RepSuccess              = byte(0x00)
	RepServerFailure        = byte(0x01)
	RepNotAllowed           = byte(0x02)
	RepNetworkUnreachable   = byte(0x03)
	RepHostUnreachable      = byte(0x04)
	RepConnectionRefused    = byte(0x05)
	RepTTLExpired           = byte(0x06)
	RepCommandNotSupported  = byte(0x07)
	RepAddrTypeNotSupported = byte(0x08)
)

var (
	// ErrBadVersion is returned when a message carries a version byte
	// other than 0x05 (or 0x01 for the RFC 1929 sub-negotiation).
	ErrBadVersion = errors.New("bad protocol version")

	// ErrBadReserved is returned when a reserved field is nonzero.
	ErrBadReserved = errors.New("nonzero reserved field")

	// ErrMalformedAddress is returned when an address carries an unknown
	// type tag or claims more bytes than are present.
	ErrMalformedAddress = errors.New("malformed address")

	// ErrMalformedDatagram is returned when a UDP datagram is too short to
	// hold its header or violates the header layout.
	ErrMalformedDatagram = errors.New("malformed datagram")

	// ErrFragmented is returned when a UDP datagram carries a nonzero FRAG
	// field. Fragment reassembly is not implemented.
	ErrFragmented = errors.New("fragmented datagrams not supported")

	// ErrNoMethods is returned when a greeting offers zero methods or more
	// than 255.
	ErrNoMethods = errors.New("greeting must offer between 1 and 255 methods")
)

// RepString renders a reply code for logs and error messages.
func RepString(rep byte) string {
	switch rep {
	case RepSuccess:
		return "succeeded"
	case RepServerFailure:
		return "general SOCKS server failure"
	case RepNotAllowed:
		return "connection not allowed by ruleset"
	case RepNetworkUnreachable:
		return "network unreachable"
	case RepHostUnreachable:
		return "host unreachable"
	case RepConnectionRefused:
		return "connection refused"
	case RepTTLExpired:
		return "TTL expired"
	case RepCommandNotSupported:
		return "command not supported"
	case RepAddrTypeNotSupported:
		return "address type not supported"
	default:
		return fmt.Sprintf("unassigned reply 0x%02x", rep)
	}
}

// CmdString renders a command byte for logs and error messages.
func CmdString(cmd byte) string {
	switch cmd {
	case CmdConnect:
		return "CONNECT"
	case CmdBind:
		return "BIND"
	case CmdUDPAssociate:
		return "UDP ASSOCIATE"
	default:
		return fmt.Sprintf("command 0x%02x", cmd)
	}
}
