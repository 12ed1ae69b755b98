package statute

import (
	"fmt"
	"io"
)

// MethodRequest is the client greeting.
//
//	+----+----------+----------+
//	|VER | NMETHODS | METHODS  |
//	+----+----------+----------+
//	| 1  |    1     | 1 to 255 |
//	+----+----------+----------+
//
// Methods preserves the client's preference order.
type MethodRequest struct {
	Methods []byte
}

// ReadMethodRequest decodes a client greeting. A version byte other than
// 0x05 fails before any method bytes are consumed.
func ReadMethodRequest(r io.Reader) (MethodRequest, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return MethodRequest{}, err
	}
	if hdr[0] != Version {
		return MethodRequest{}, fmt.Errorf("greeting: %w: got 0x%02x", ErrBadVersion, hdr[0])
	}
	if hdr[1] == 0 {
		return MethodRequest{}, fmt.Errorf("greeting: %w", ErrNoMethods)
	}

	methods := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(r, methods); err != nil {
		return MethodRequest{}, err
	}
	return MethodRequest{Methods: methods}, nil
}

// WriteTo encodes the greeting as a single write.
func (m MethodRequest) WriteTo(w io.Writer) error {
	if len(m.Methods) == 0 || len(m.Methods) > 255 {
		return ErrNoMethods
	}

	b := make([]byte, 0, 2+len(m.Methods))
	b = append(b, Version, byte(len(m.Methods)))
	b = append(b, m.Methods...)
	_, err := w.Write(b)
	return err
}

// MethodReply is the server's method selection.
//
//	+----+--------+
//	|VER | METHOD |
//	+----+--------+
type MethodReply struct {
	Method byte
}

func ReadMethodReply(r io.Reader) (MethodReply, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return MethodReply{}, err
	}
	if b[0] != Version {
		return MethodReply{}, fmt.Errorf("method selection: %w: got 0x%02x", ErrBadVersion, b[0])
	}
	return MethodReply{Method: b[1]}, nil
}

func (m MethodReply) WriteTo(w io.Writer) error {
	_, err := w.Write([]byte{Version, m.Method})
	return err
}

// UserPassRequest is the RFC 1929 credentials message.
//
//	+----+------+----------+------+----------+
//	|VER | ULEN |  UNAME   | PLEN |  PASSWD  |
//	+----+------+----------+------+----------+
type UserPassRequest struct {
	Username []byte
	Password []byte
}

func ReadUserPassRequest(r io.Reader) (UserPassRequest, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return UserPassRequest{}, err
	}
	if hdr[0] != UserPassVersion {
		return UserPassRequest{}, fmt.Errorf("userpass: %w: got 0x%02x", ErrBadVersion, hdr[0])
	}

	username := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(r, username); err != nil {
		return UserPassRequest{}, err
	}

	var plen [1]byte
	if _, err := io.ReadFull(r, plen[:]); err != nil {
		return UserPassRequest{}, err
	}
	password := make([]byte, int(plen[0]))
	if _, err := io.ReadFull(r, password); err != nil {
		return UserPassRequest{}, err
	}

	return UserPassRequest{Username: username, Password: password}, nil
}

func (m UserPassRequest) WriteTo(w io.Writer) error {
	if len(m.Username) > 255 {
		return fmt.Errorf("userpass: username length %d exceeds 255", len(m.Username))
	}
	if len(m.Password) > 255 {
		return fmt.Errorf("userpass: password length %d exceeds 255", len(m.Password))
	}

	b := make([]byte, 0, 3+len(m.Username)+len(m.Password))
	b = append(b, UserPassVersion, byte(len(m.Username)))
	b = append(b, m.Username...)
	b = append(b, byte(len(m.Password)))
	b = append(b, m.Password...)
	_, err := w.Write(b)
	return err
}

// UserPassReply is the sub-negotiation status. Status 0x00 means success;
// any other value is a failure.
type UserPassReply struct {
	Status byte
}

func ReadUserPassReply(r io.Reader) (UserPassReply, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return UserPassReply{}, err
	}
	if b[0] != UserPassVersion {
		return UserPassReply{}, fmt.Errorf("userpass status: %w: got 0x%02x", ErrBadVersion, b[0])
	}
	return UserPassReply{Status: b[1]}, nil
}

func (m UserPassReply) WriteTo(w io.Writer) error {
	_, err := w.Write([]byte{UserPassVersion, m.Status})
	return err
}

// Request is a client command request.
//
//	+----+-----+-------+------+----------+----------+
//	|VER | CMD |  RSV  | ATYP | DST.ADDR | DST.PORT |
//	+----+-----+-------+------+----------+----------+
type Request struct {
	Cmd  byte
	Addr Address
}

func ReadRequest(r io.Reader) (Request, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Request{}, err
	}
	if hdr[0] != Version {
		return Request{}, fmt.Errorf("request: %w: got 0x%02x", ErrBadVersion, hdr[0])
	}
	if hdr[2] != 0x00 {
		return Request{}, fmt.Errorf("request: %w: 0x%02x", ErrBadReserved, hdr[2])
	}

	addr, err := ReadAddress(r)
	if err != nil {
		return Request{}, fmt.Errorf("request: %w", err)
	}
	return Request{Cmd: hdr[1], Addr: addr}, nil
}

func (m Request) WriteTo(w io.Writer) error {
	b, err := m.Addr.Append([]byte{Version, m.Cmd, 0x00})
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// Reply is the server's answer to a Request. Addr is the bound address; its
// meaning depends on the command.
//
//	+----+-----+-------+------+----------+----------+
//	|VER | REP |  RSV  | ATYP | BND.ADDR | BND.PORT |
//	+----+-----+-------+------+----------+----------+
type Reply struct {
	Rep  byte
	Addr Address
}

// ErrorReply builds a Reply carrying rep and the all-zero bound address.
func ErrorReply(rep byte) Reply {
	return Reply{Rep: rep, Addr: ZeroAddress}
}

func ReadReply(r io.Reader) (Reply, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Reply{}, err
	}
	if hdr[0] != Version {
		return Reply{}, fmt.Errorf("reply: %w: got 0x%02x", ErrBadVersion, hdr[0])
	}
	if hdr[2] != 0x00 {
		return Reply{}, fmt.Errorf("reply: %w: 0x%02x", ErrBadReserved, hdr[2])
	}

	addr, err := ReadAddress(r)
	if err != nil {
		return Reply{}, fmt.Errorf("reply: %w", err)
	}
	return Reply{Rep: hdr[1], Addr: addr}, nil
}

func (m Reply) WriteTo(w io.Writer) error {
	b, err := m.Addr.Append([]byte{Version, m.Rep, 0x00})
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	_, err = w.Write(b)
	return err
}
