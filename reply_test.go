package socks5

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/quayside/socks5/statute"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestReplyForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want byte
	}{
		{
			name: "connection_refused",
			err:  &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			want: statute.RepConnectionRefused,
		},
		{
			name: "network_unreachable",
			err:  &net.OpError{Op: "dial", Err: syscall.ENETUNREACH},
			want: statute.RepNetworkUnreachable,
		},
		{
			name: "host_unreachable",
			err:  &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH},
			want: statute.RepHostUnreachable,
		},
		{
			name: "dns_failure",
			err:  &net.DNSError{Err: "no such host", Name: "example.invalid"},
			want: statute.RepHostUnreachable,
		},
		{
			name: "timeout",
			err:  &net.OpError{Op: "dial", Err: timeoutError{}},
			want: statute.RepTTLExpired,
		},
		{
			name: "upstream_reply_passthrough",
			err:  fmt.Errorf("proxy connect: %w", &ReplyError{Rep: statute.RepNotAllowed}),
			want: statute.RepNotAllowed,
		},
		{
			name: "unclassified",
			err:  errors.New("boom"),
			want: statute.RepServerFailure,
		},
		{
			name: "wrapped_refused",
			err:  fmt.Errorf("dial example.com:80: %w", syscall.ECONNREFUSED),
			want: statute.RepConnectionRefused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := replyForError(tt.err); got != tt.want {
				t.Fatalf("replyForError(%v) = %s, expected %s",
					tt.err, statute.RepString(got), statute.RepString(tt.want))
			}
		})
	}
}
