package auth

import (
	"fmt"
	"io"

	"github.com/quayside/socks5/statute"
)

// ClientAuth configures the client side of negotiation.
//
// With empty credentials only the no-authentication method is offered. With a
// username set, username/password is offered first (highest preference) and
// no-authentication second. Offer overrides the computed method list when the
// caller needs full control of ordering.
type ClientAuth struct {
	Username string
	Password string

	Offer []byte
}

// Methods returns the method offer in preference order.
func (a ClientAuth) Methods() []byte {
	if len(a.Offer) > 0 {
		return a.Offer
	}
	if a.Username != "" {
		return []byte{statute.MethodUserPass, statute.MethodNoAuth}
	}
	return []byte{statute.MethodNoAuth}
}

// ClientNegotiate sends the greeting, reads the server's selection, and runs
// the chosen sub-negotiation. It returns the selected method on success.
func ClientNegotiate(rw io.ReadWriter, a ClientAuth) (byte, error) {
	if err := (statute.MethodRequest{Methods: a.Methods()}).WriteTo(rw); err != nil {
		return 0, fmt.Errorf("write greeting: %w", err)
	}

	sel, err := statute.ReadMethodReply(rw)
	if err != nil {
		return 0, fmt.Errorf("read method selection: %w", err)
	}

	switch sel.Method {
	case statute.MethodNoAuth:
		return sel.Method, nil

	case statute.MethodUserPass:
		if a.Username == "" {
			return 0, fmt.Errorf("%w: username/password", ErrUnsupportedMethod)
		}
		req := statute.UserPassRequest{
			Username: []byte(a.Username),
			Password: []byte(a.Password),
		}
		if err := req.WriteTo(rw); err != nil {
			return 0, fmt.Errorf("write credentials: %w", err)
		}
		status, err := statute.ReadUserPassReply(rw)
		if err != nil {
			return 0, fmt.Errorf("read auth status: %w", err)
		}
		if status.Status != statute.AuthSuccess {
			return 0, fmt.Errorf("%w: status 0x%02x", ErrAuthFailed, status.Status)
		}
		return sel.Method, nil

	case statute.MethodNoAcceptable:
		return 0, ErrNoAcceptableAuth

	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedMethod, sel.Method)
	}
}

// ServerNegotiate reads the client's greeting, picks the first method in the
// client's offer that has a configured Authenticator, answers the selection,
// and runs the sub-negotiation. The 0xFF refusal is written before
// ErrNoAcceptableAuth is returned.
func ServerNegotiate(rw io.ReadWriter, auths []Authenticator) (identity string, err error) {
	greeting, err := statute.ReadMethodRequest(rw)
	if err != nil {
		return "", fmt.Errorf("read greeting: %w", err)
	}

	selected := Choose(greeting.Methods, auths)
	if selected == nil {
		_ = statute.MethodReply{Method: statute.MethodNoAcceptable}.WriteTo(rw)
		return "", ErrNoAcceptableAuth
	}

	if err := (statute.MethodReply{Method: selected.Method()}).WriteTo(rw); err != nil {
		return "", fmt.Errorf("write method selection: %w", err)
	}

	return selected.Authenticate(rw)
}

// Choose returns the Authenticator for the first of the client's offered
// methods the server supports, or nil when none match. Client order decides
// the tie-break, not the order of auths.
func Choose(offered []byte, auths []Authenticator) Authenticator {
	for _, m := range offered {
		for _, a := range auths {
			if a.Method() == m {
				return a
			}
		}
	}
	return nil
}
