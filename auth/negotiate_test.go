package auth

import (
	"errors"
	"net"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/quayside/socks5/statute"
)

func TestChoosePrefersClientOrder(t *testing.T) {
	userPass := UserPass{Credentials: StaticCredentials{"u": "p"}}
	noAuth := NoAuth{}

	tests := []struct {
		name    string
		offered []byte
		auths   []Authenticator
		want    byte
		none    bool
	}{
		{
			name:    "client_prefers_userpass",
			offered: []byte{statute.MethodUserPass, statute.MethodNoAuth},
			auths:   []Authenticator{noAuth, userPass}, // server lists no-auth first
			want:    statute.MethodUserPass,
		},
		{
			name:    "client_prefers_noauth",
			offered: []byte{statute.MethodNoAuth, statute.MethodUserPass},
			auths:   []Authenticator{userPass, noAuth},
			want:    statute.MethodNoAuth,
		},
		{
			name:    "no_overlap",
			offered: []byte{statute.MethodGSSAPI},
			auths:   []Authenticator{noAuth, userPass},
			none:    true,
		},
		{
			name:    "unknown_method_skipped",
			offered: []byte{0x42, statute.MethodNoAuth},
			auths:   []Authenticator{noAuth},
			want:    statute.MethodNoAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Choose(tt.offered, tt.auths)
			if tt.none {
				if got != nil {
					t.Fatalf("expected no selection, got 0x%02x", got.Method())
				}
				return
			}
			if got == nil || got.Method() != tt.want {
				t.Fatalf("expected 0x%02x, got %v", tt.want, got)
			}
		})
	}
}

func TestNegotiateEndToEnd(t *testing.T) {
	tests := []struct {
		name       string
		clientAuth ClientAuth
		auths      []Authenticator
		wantMethod byte
		clientErr  error
		serverErr  error
		identity   string
	}{
		{
			name:       "no_auth",
			auths:      []Authenticator{NoAuth{}, UserPass{Credentials: StaticCredentials{"u": "p"}}},
			wantMethod: statute.MethodNoAuth,
		},
		{
			name:       "userpass_ok",
			clientAuth: ClientAuth{Username: "u", Password: "p"},
			auths:      []Authenticator{UserPass{Credentials: StaticCredentials{"u": "p"}}},
			wantMethod: statute.MethodUserPass,
			identity:   "u",
		},
		{
			name:       "userpass_rejected",
			clientAuth: ClientAuth{Username: "u", Password: "wrong"},
			auths:      []Authenticator{UserPass{Credentials: StaticCredentials{"u": "p"}}},
			clientErr:  ErrAuthFailed,
			serverErr:  ErrAuthFailed,
		},
		{
			name:       "no_overlap",
			clientAuth: ClientAuth{Offer: []byte{statute.MethodNoAuth}},
			auths:      []Authenticator{UserPass{Credentials: StaticCredentials{"u": "p"}}},
			clientErr:  ErrNoAcceptableAuth,
			serverErr:  ErrNoAcceptableAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			var identity string
			g := errgroup.Group{}
			g.Go(func() error {
				var err error
				identity, err = ServerNegotiate(serverConn, tt.auths)
				return err
			})

			method, clientErr := ClientNegotiate(clientConn, tt.clientAuth)
			serverErr := g.Wait()

			if tt.clientErr != nil {
				if !errors.Is(clientErr, tt.clientErr) {
					t.Fatalf("client: expected %v, got %v", tt.clientErr, clientErr)
				}
				if !errors.Is(serverErr, tt.serverErr) {
					t.Fatalf("server: expected %v, got %v", tt.serverErr, serverErr)
				}
				return
			}

			if clientErr != nil {
				t.Fatal(clientErr)
			}
			if serverErr != nil {
				t.Fatal(serverErr)
			}
			if method != tt.wantMethod {
				t.Fatalf("selected 0x%02x, expected 0x%02x", method, tt.wantMethod)
			}
			if identity != tt.identity {
				t.Fatalf("identity %q, expected %q", identity, tt.identity)
			}
		})
	}
}

func TestServerNegotiateRefusalByte(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		_, err := ServerNegotiate(serverConn, []Authenticator{NoAuth{}})
		return err
	})

	if err := (statute.MethodRequest{Methods: []byte{statute.MethodGSSAPI}}).WriteTo(clientConn); err != nil {
		t.Fatal(err)
	}
	sel, err := statute.ReadMethodReply(clientConn)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Method != statute.MethodNoAcceptable {
		t.Fatalf("refusal byte 0x%02x, expected 0xFF", sel.Method)
	}

	if err := g.Wait(); !errors.Is(err, ErrNoAcceptableAuth) {
		t.Fatalf("expected ErrNoAcceptableAuth, got %v", err)
	}
}

func TestStaticCredentials(t *testing.T) {
	creds := StaticCredentials{"alice": "secret", "bob": ""}

	tests := []struct {
		user, pass string
		want       bool
	}{
		{"alice", "secret", true},
		{"alice", "Secret", false},
		{"bob", "", true},
		{"mallory", "secret", false},
	}

	for _, tt := range tests {
		if got := creds.Valid(tt.user, tt.pass); got != tt.want {
			t.Fatalf("Valid(%q, %q) = %v", tt.user, tt.pass, got)
		}
	}
}
