package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/quayside/socks5/statute"
)

var (
	// ErrNoAcceptableAuth is returned when negotiation cannot agree on a
	// method: the server answered 0xFF, or no offered method is configured.
	ErrNoAcceptableAuth = errors.New("no acceptable authentication method")

	// ErrAuthFailed is returned when the chosen sub-negotiation rejects the
	// presented credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUnsupportedMethod is returned when the server selects a method the
	// client cannot drive.
	ErrUnsupportedMethod = errors.New("server selected unsupported authentication method")
)

// Authenticator runs the server side of one authentication method's
// sub-negotiation over the control stream.
type Authenticator interface {
	// Method returns the RFC 1928 method identifier.
	Method() byte

	// Authenticate drives the sub-negotiation and returns the
	// authenticated identity, or ErrAuthFailed.
	Authenticate(rw io.ReadWriter) (identity string, err error)
}

// NoAuth accepts every client without a sub-negotiation exchange.
type NoAuth struct{}

func (NoAuth) Method() byte { return statute.MethodNoAuth }

func (NoAuth) Authenticate(io.ReadWriter) (string, error) { return "", nil }

// CredentialStore validates username/password pairs for UserPass.
type CredentialStore interface {
	Valid(username, password string) bool
}

// StaticCredentials is an in-memory CredentialStore.
type StaticCredentials map[string]string

// Valid compares in constant time, including a dummy comparison for unknown
// usernames so lookup success is not observable through timing.
func (s StaticCredentials) Valid(username, password string) bool {
	stored, ok := s[username]
	if !ok {
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// UserPass implements the RFC 1929 username/password sub-negotiation.
type UserPass struct {
	Credentials CredentialStore
}

func (UserPass) Method() byte { return statute.MethodUserPass }

// Authenticate reads the credentials message, consults the store, and writes
// the status byte. A failure status is written before the error is returned
// so the peer is never left without an answer.
func (a UserPass) Authenticate(rw io.ReadWriter) (string, error) {
	req, err := statute.ReadUserPassRequest(rw)
	if err != nil {
		return "", fmt.Errorf("read credentials: %w", err)
	}

	if a.Credentials == nil || !a.Credentials.Valid(string(req.Username), string(req.Password)) {
		_ = statute.UserPassReply{Status: statute.AuthFailure}.WriteTo(rw)
		return "", ErrAuthFailed
	}

	if err := (statute.UserPassReply{Status: statute.AuthSuccess}).WriteTo(rw); err != nil {
		return "", fmt.Errorf("write auth status: %w", err)
	}
	return string(req.Username), nil
}
