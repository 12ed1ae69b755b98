package statute

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Address is a SOCKS5 destination or bound address: an IPv4 or IPv6 address,
// or a domain name, plus a 16-bit port.
//
// Exactly one of IP and Domain is meaningful, selected by Type. Addresses are
// value types; every decoded message owns its own Address.
type Address struct {
	Type   byte
	IP     net.IP // set when Type is ATYPIPv4 or ATYPIPv6
	Domain string // set when Type is ATYPDomain
	Port   uint16
}

// ZeroAddress is the all-zero IPv4 address sent in error replies.
var ZeroAddress = Address{Type: ATYPIPv4, IP: net.IPv4zero.To4()}

// IPAddress builds an Address from an IP and port, choosing the IPv4 form
// whenever the IP fits in it.
func IPAddress(ip net.IP, port uint16) Address {
	if ip4 := ip.To4(); ip4 != nil {
		return Address{Type: ATYPIPv4, IP: ip4, Port: port}
	}
	return Address{Type: ATYPIPv6, IP: ip.To16(), Port: port}
}

// DomainAddress builds a domain-name Address. The domain must encode to at
// most 255 bytes; longer names fail at encode time.
func DomainAddress(domain string, port uint16) Address {
	return Address{Type: ATYPDomain, Domain: domain, Port: port}
}

// ParseHostPort converts a "host:port" string into an Address, picking the
// IP form when host parses as an IP and the domain form otherwise.
func ParseHostPort(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: bad port: %w", s, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return IPAddress(ip, uint16(port)), nil
	}
	return DomainAddress(host, uint16(port)), nil
}

// FromNetAddr converts a net.TCPAddr, net.UDPAddr, or any other net.Addr
// into an Address.
func FromNetAddr(a net.Addr) (Address, error) {
	switch t := a.(type) {
	case *net.TCPAddr:
		return IPAddress(t.IP, uint16(t.Port)), nil
	case *net.UDPAddr:
		return IPAddress(t.IP, uint16(t.Port)), nil
	default:
		return ParseHostPort(a.String())
	}
}

// Host returns the domain name or the textual IP, without the port.
func (a Address) Host() string {
	if a.Type == ATYPDomain {
		return a.Domain
	}
	return a.IP.String()
}

// String returns the "host:port" form.
func (a Address) String() string {
	return net.JoinHostPort(a.Host(), strconv.Itoa(int(a.Port)))
}

// UDPAddr converts an IP-form address for use with the net package. Domain
// addresses must be resolved by the caller first.
func (a Address) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.IP, Port: int(a.Port)}
}

// Equal reports whether two addresses denote the same wire value.
func (a Address) Equal(b Address) bool {
	if a.Type != b.Type || a.Port != b.Port {
		return false
	}
	if a.Type == ATYPDomain {
		return a.Domain == b.Domain
	}
	return a.IP.Equal(b.IP)
}

// validate checks the invariants the wire form requires.
func (a Address) validate() error {
	switch a.Type {
	case ATYPIPv4:
		if a.IP.To4() == nil {
			return fmt.Errorf("%w: not an IPv4 address", ErrMalformedAddress)
		}
	case ATYPIPv6:
		if a.IP.To16() == nil {
			return fmt.Errorf("%w: not an IPv6 address", ErrMalformedAddress)
		}
	case ATYPDomain:
		if len(a.Domain) == 0 || len(a.Domain) > 255 {
			return fmt.Errorf("%w: domain length %d", ErrMalformedAddress, len(a.Domain))
		}
	default:
		return fmt.Errorf("%w: unknown address type 0x%02x", ErrMalformedAddress, a.Type)
	}
	return nil
}

// Append appends the wire form (ATYP, ADDR, PORT) to b.
func (a Address) Append(b []byte) ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}

	b = append(b, a.Type)
	switch a.Type {
	case ATYPIPv4:
		b = append(b, a.IP.To4()...)
	case ATYPDomain:
		b = append(b, byte(len(a.Domain)))
		b = append(b, a.Domain...)
	case ATYPIPv6:
		b = append(b, a.IP.To16()...)
	}
	return binary.BigEndian.AppendUint16(b, a.Port), nil
}

// ParseAddress decodes one address from the front of b and reports how many
// bytes it consumed. Address decoding is a prefix operation: it is always
// embedded in a larger message that continues after the address.
func ParseAddress(b []byte) (Address, int, error) {
	if len(b) < 1 {
		return Address{}, 0, fmt.Errorf("%w: empty", ErrMalformedAddress)
	}

	a := Address{Type: b[0]}
	n := 1
	switch a.Type {
	case ATYPIPv4:
		if len(b) < n+4+2 {
			return Address{}, 0, fmt.Errorf("%w: truncated IPv4", ErrMalformedAddress)
		}
		a.IP = net.IP(append([]byte(nil), b[n:n+4]...))
		n += 4
	case ATYPDomain:
		if len(b) < n+1 {
			return Address{}, 0, fmt.Errorf("%w: missing domain length", ErrMalformedAddress)
		}
		dlen := int(b[n])
		n++
		if dlen == 0 {
			return Address{}, 0, fmt.Errorf("%w: empty domain", ErrMalformedAddress)
		}
		if len(b) < n+dlen+2 {
			return Address{}, 0, fmt.Errorf("%w: truncated domain", ErrMalformedAddress)
		}
		a.Domain = string(b[n : n+dlen])
		n += dlen
	case ATYPIPv6:
		if len(b) < n+16+2 {
			return Address{}, 0, fmt.Errorf("%w: truncated IPv6", ErrMalformedAddress)
		}
		a.IP = net.IP(append([]byte(nil), b[n:n+16]...))
		n += 16
	default:
		return Address{}, 0, fmt.Errorf("%w: unknown address type 0x%02x", ErrMalformedAddress, a.Type)
	}

	a.Port = binary.BigEndian.Uint16(b[n : n+2])
	n += 2
	return a, n, nil
}

// ReadAddress decodes one address from a stream.
func ReadAddress(r io.Reader) (Address, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Address{}, err
	}

	a := Address{Type: tag[0]}
	switch a.Type {
	case ATYPIPv4:
		ip := make(net.IP, 4)
		if _, err := io.ReadFull(r, ip); err != nil {
			return Address{}, err
		}
		a.IP = ip
	case ATYPDomain:
		var dlen [1]byte
		if _, err := io.ReadFull(r, dlen[:]); err != nil {
			return Address{}, err
		}
		if dlen[0] == 0 {
			return Address{}, fmt.Errorf("%w: empty domain", ErrMalformedAddress)
		}
		domain := make([]byte, int(dlen[0]))
		if _, err := io.ReadFull(r, domain); err != nil {
			return Address{}, err
		}
		a.Domain = string(domain)
	case ATYPIPv6:
		ip := make(net.IP, 16)
		if _, err := io.ReadFull(r, ip); err != nil {
			return Address{}, err
		}
		a.IP = ip
	default:
		return Address{}, fmt.Errorf("%w: unknown address type 0x%02x", ErrMalformedAddress, a.Type)
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return Address{}, err
	}
	a.Port = binary.BigEndian.Uint16(port[:])
	return a, nil
}
