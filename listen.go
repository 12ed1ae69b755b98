package socks5

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP opens a TCP listener suitable for Serve, applying ka to every
// accepted connection.
func ListenTCP(network, addr string, ka net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{KeepAliveConfig: ka}

	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}
	return ln, nil
}
