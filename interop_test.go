package socks5

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	tx "github.com/txthinking/socks5"
	"golang.org/x/net/proxy"

	"github.com/quayside/socks5/auth"
	"github.com/quayside/socks5/internal/testutil"
)

// Interoperability tests run this implementation against independently
// written SOCKS5 peers.

func TestForeignClientConnect(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		user string
		pass string
	}{
		{name: "no_auth"},
		{
			name: "user_pass",
			cfg: Config{
				Authenticators: []auth.Authenticator{
					auth.UserPass{Credentials: auth.StaticCredentials{"user": "pass"}},
				},
			},
			user: "user",
			pass: "pass",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			echoLn := testutil.StartEchoTCPServer(t, ctx)
			defer echoLn.Close()

			_, ln := startServer(t, tt.cfg)

			client, err := tx.NewClient(ln.Addr().String(), tt.user, tt.pass, 2, 0)
			if err != nil {
				t.Fatal(err)
			}

			conn, err := client.Dial("tcp", echoLn.Addr().String())
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()

			testutil.AssertEcho(t, conn, conn, []byte("hello"))
		})
	}
}

func TestForeignClientUDPEcho(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echo := testutil.StartEchoUDPServer(t, ctx)
	defer echo.Close()

	_, ln := startServer(t, Config{})

	client, err := tx.NewClient(ln.Addr().String(), "", "", 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	conn, err := client.Dial("udp", echo.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	payload := []byte("udp interop")
	if _, err := conn.Write(payload); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != string(payload) {
		t.Fatalf("expected %q got %q", payload, buf[:n])
	}
}

func TestXNetProxyDialer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	_, ln := startServer(t, Config{
		Authenticators: []auth.Authenticator{
			auth.UserPass{Credentials: auth.StaticCredentials{"user": "pass"}},
		},
	})

	d, err := proxy.SOCKS5("tcp", ln.Addr().String(), &proxy.Auth{User: "user", Password: "pass"}, proxy.Direct)
	if err != nil {
		t.Fatal(err)
	}

	conn, err := d.Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	testutil.AssertEcho(t, conn, conn, []byte("hello"))
}

func TestProxyDialerAgainstForeignServer(t *testing.T) {
	tests := []struct {
		name string
		user string
		pass string
	}{
		{name: "no_auth"},
		{name: "user_pass", user: "user", pass: "pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			echoLn := testutil.StartEchoTCPServer(t, ctx)
			defer echoLn.Close()

			upLn, waitUp := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
				_ = foreignConnectHandler(ctx, c, tt.user, tt.pass)
			})

			d := NewProxyDialer(upLn.Addr().String(), tt.user, tt.pass)
			conn, err := d.DialContext(ctx, "tcp", echoLn.Addr().String())
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()

			testutil.AssertEcho(t, conn, conn, []byte("hello"))

			waitUp()
		})
	}
}

// foreignConnectHandler serves one CONNECT using the txthinking/socks5
// message primitives, standing in for a server this package did not write.
func foreignConnectHandler(ctx context.Context, c net.Conn, user, pass string) error {
	if _, err := tx.NewNegotiationRequestFrom(c); err != nil {
		return err
	}

	if user == "" && pass == "" {
		if _, err := tx.NewNegotiationReply(tx.MethodNone).WriteTo(c); err != nil {
			return err
		}
	} else {
		if _, err := tx.NewNegotiationReply(tx.MethodUsernamePassword).WriteTo(c); err != nil {
			return err
		}

		urq, err := tx.NewUserPassNegotiationRequestFrom(c)
		if err != nil {
			return err
		}
		if string(urq.Uname) != user || string(urq.Passwd) != pass {
			_, _ = tx.NewUserPassNegotiationReply(tx.UserPassStatusFailure).WriteTo(c)
			return nil
		}
		if _, err := tx.NewUserPassNegotiationReply(tx.UserPassStatusSuccess).WriteTo(c); err != nil {
			return err
		}
	}

	req, err := tx.NewRequestFrom(c)
	if err != nil {
		return err
	}
	if req.Cmd != tx.CmdConnect {
		_, _ = tx.NewReply(tx.RepCommandNotSupported, tx.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		_, _ = tx.NewReply(tx.RepHostUnreachable, tx.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}
	defer dst.Close()

	a, addr, port, err := tx.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return err
	}
	if a == tx.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := tx.NewReply(tx.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return err
	}

	go func() {
		_, _ = io.Copy(dst, c)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)

	return nil
}
