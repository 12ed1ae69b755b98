package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/quayside/socks5/auth"
	"github.com/quayside/socks5/statute"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ProxyDialer is a Dialer that establishes connections through a SOCKS5
// proxy with the CONNECT command.
type ProxyDialer struct {
	// ProxyAddr is the proxy's "host:port".
	ProxyAddr string

	// Auth carries optional username/password credentials.
	Auth auth.ClientAuth

	// Forward dials the proxy itself; defaults to a plain net.Dialer.
	Forward Dialer
}

// NewProxyDialer builds a ProxyDialer for proxyAddr with optional
// credentials.
func NewProxyDialer(proxyAddr, username, password string) *ProxyDialer {
	return &ProxyDialer{
		ProxyAddr: proxyAddr,
		Auth:      auth.ClientAuth{Username: username, Password: password},
	}
}

// DialContext connects to the proxy, performs the handshake, and issues a
// CONNECT for address. The returned conn relays application bytes to the
// target.
func (d *ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, fmt.Errorf("proxy dial %s %s: unsupported network", network, address)
	}

	target, err := statute.ParseHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("proxy dial: %w", err)
	}

	forward := d.Forward
	if forward == nil {
		forward = &net.Dialer{}
	}
	conn, err := forward.DialContext(ctx, "tcp", d.ProxyAddr)
	if err != nil {
		return nil, fmt.Errorf("proxy dial %s: %w", d.ProxyAddr, err)
	}

	// The handshake honors ctx through the connection deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := NewClient(conn, d.Auth).Connect(target); err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy connect %s: %w", address, err)
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

// NewDialer parses an upstream URL and constructs the matching Dialer.
//
// Supported schemes:
//   - direct://
//   - socks5://[user:pass@]host:port
func NewDialer(upstream string) (Dialer, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if u.Path != "" && u.Path != "/" {
		return nil, errors.New("invalid url: path should be empty")
	}

	switch strings.ToLower(u.Scheme) {
	case "":
		return nil, errors.New("invalid url: missing scheme")
	case "direct":
		return &net.Dialer{}, nil
	case "socks5":
		host := u.Hostname()
		if host == "" {
			return nil, errors.New("invalid url: missing host")
		}
		port := u.Port()
		if port == "" {
			port = "1080"
		}

		var user, pass string
		if u.User != nil {
			user = u.User.Username()
			pass, _ = u.User.Password()
		}
		return NewProxyDialer(net.JoinHostPort(host, port), user, pass), nil
	default:
		return nil, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}
}
