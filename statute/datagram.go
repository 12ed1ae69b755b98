package statute

import (
	"fmt"
)

// Datagram is the framing wrapped around every datagram exchanged over a UDP
// association.
//
//	+----+------+------+----------+----------+----------+
//	|RSV | FRAG | ATYP | DST.ADDR | DST.PORT |   DATA   |
//	+----+------+------+----------+----------+----------+
//	| 2  |  1   |  1   | Variable |    2     | Variable |
//	+----+------+------+----------+----------+----------+
//
// Frag is always zero: fragmented datagrams are rejected at parse time and
// never produced at encode time.
type Datagram struct {
	Frag    byte
	Addr    Address
	Payload []byte
}

// ParseDatagram decodes a whole datagram. Payload aliases b; callers that
// retain the datagram past the life of b must copy it.
func ParseDatagram(b []byte) (Datagram, error) {
	if len(b) < 4 {
		return Datagram{}, fmt.Errorf("%w: %d bytes", ErrMalformedDatagram, len(b))
	}
	if b[0] != 0x00 || b[1] != 0x00 {
		return Datagram{}, fmt.Errorf("datagram: %w", ErrBadReserved)
	}
	if b[2] != 0x00 {
		return Datagram{}, fmt.Errorf("%w: frag %d", ErrFragmented, b[2])
	}

	addr, n, err := ParseAddress(b[3:])
	if err != nil {
		return Datagram{}, fmt.Errorf("%w: %w", ErrMalformedDatagram, err)
	}

	return Datagram{Addr: addr, Payload: b[3+n:]}, nil
}

// Append appends the encoded datagram to b.
func (d Datagram) Append(b []byte) ([]byte, error) {
	if d.Frag != 0 {
		return nil, fmt.Errorf("%w: frag %d", ErrFragmented, d.Frag)
	}

	b = append(b, 0x00, 0x00, 0x00)
	b, err := d.Addr.Append(b)
	if err != nil {
		return nil, fmt.Errorf("datagram: %w", err)
	}
	return append(b, d.Payload...), nil
}

// Bytes encodes the datagram into a fresh buffer.
func (d Datagram) Bytes() ([]byte, error) {
	return d.Append(make([]byte, 0, 10+len(d.Payload)))
}
