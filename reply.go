package socks5

import (
	"errors"
	"net"
	"syscall"

	"github.com/quayside/socks5/statute"
)

// replyForError maps an outbound dial or listen failure to the closest
// RFC 1928 reply code. Anything unclassified becomes a general failure.
func replyForError(err error) byte {
	var replyErr *ReplyError
	if errors.As(err, &replyErr) {
		// Chained upstream proxy: carry its verdict through unchanged.
		return replyErr.Rep
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return statute.RepHostUnreachable
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return statute.RepConnectionRefused
	case errors.Is(err, syscall.ENETUNREACH):
		return statute.RepNetworkUnreachable
	case errors.Is(err, syscall.EHOSTUNREACH):
		return statute.RepHostUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return statute.RepTTLExpired
	}

	return statute.RepServerFailure
}
