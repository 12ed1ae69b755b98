package socks5

import (
	"context"
	"errors"
	"io"
	"net"

	"golang.org/x/sync/errgroup"
)

// halfCloser is implemented by connections that can signal one direction is
// done while keeping the other open, such as *net.TCPConn.
type halfCloser interface {
	CloseWrite() error
}

// Relay copies bytes bidirectionally between left and right until both
// directions finish or ctx is canceled, in which case both connections are
// closed to unblock the copies. Each direction half-closes its destination
// on EOF when the connection supports it.
func Relay(ctx context.Context, left, right net.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = left.Close()
		_ = right.Close()
	})
	defer stop()

	g := errgroup.Group{}
	g.Go(func() error {
		_, err := io.Copy(right, left)
		if hc, ok := right.(halfCloser); ok {
			_ = hc.CloseWrite()
		}
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(left, right)
		if hc, ok := left.(halfCloser); ok {
			_ = hc.CloseWrite()
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
