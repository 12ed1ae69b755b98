package statute

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		size int
	}{
		{name: "ipv4", addr: IPAddress(net.IPv4(192, 0, 2, 7), 80), size: 1 + 4 + 2},
		{name: "ipv6", addr: IPAddress(net.ParseIP("2001:db8::1"), 443), size: 1 + 16 + 2},
		{name: "domain", addr: DomainAddress("example.com", 1080), size: 1 + 1 + 11 + 2},
		{name: "domain_one_byte", addr: DomainAddress("a", 1), size: 1 + 1 + 1 + 2},
		{name: "max_domain", addr: DomainAddress(strings.Repeat("x", 255), 65535), size: 1 + 1 + 255 + 2},
		{name: "zero_port", addr: IPAddress(net.IPv4zero, 0), size: 1 + 4 + 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.addr.Append(nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(b) != tt.size {
				t.Fatalf("encoded %d bytes, expected %d", len(b), tt.size)
			}

			// Encoding is idempotent.
			b2, err := tt.addr.Append(nil)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(b, b2) {
				t.Fatalf("second encode differs: %x vs %x", b, b2)
			}

			// Prefix decode consumes exactly what encode produced, even
			// with trailing bytes present.
			got, n, err := ParseAddress(append(b, 0xAA, 0xBB))
			if err != nil {
				t.Fatal(err)
			}
			if n != len(b) {
				t.Fatalf("consumed %d bytes, expected %d", n, len(b))
			}
			if !got.Equal(tt.addr) {
				t.Fatalf("decoded %v, expected %v", got, tt.addr)
			}

			// Stream decode agrees with the byte-slice decode.
			got2, err := ReadAddress(bytes.NewReader(b))
			if err != nil {
				t.Fatal(err)
			}
			if !got2.Equal(tt.addr) {
				t.Fatalf("stream decoded %v, expected %v", got2, tt.addr)
			}
		})
	}
}

func TestAddressMalformed(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{name: "empty", b: nil},
		{name: "unknown_type", b: []byte{0x02, 0, 0, 0, 0, 0, 0}},
		{name: "truncated_ipv4", b: []byte{ATYPIPv4, 192, 0, 2}},
		{name: "ipv4_missing_port", b: []byte{ATYPIPv4, 192, 0, 2, 7, 0}},
		{name: "truncated_ipv6", b: []byte{ATYPIPv6, 0x20, 0x01}},
		{name: "domain_missing_len", b: []byte{ATYPDomain}},
		{name: "domain_zero_len", b: []byte{ATYPDomain, 0, 0, 80}},
		{name: "domain_len_overruns", b: []byte{ATYPDomain, 5, 'a', 'b', 0, 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseAddress(tt.b); !errors.Is(err, ErrMalformedAddress) {
				t.Fatalf("expected ErrMalformedAddress, got %v", err)
			}
		})
	}
}

func TestAddressEncodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		addr Address
	}{
		{name: "domain_too_long", addr: DomainAddress(strings.Repeat("x", 256), 80)},
		{name: "empty_domain", addr: DomainAddress("", 80)},
		{name: "unknown_type", addr: Address{Type: 0x7F}},
		{name: "nil_ipv4", addr: Address{Type: ATYPIPv4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.addr.Append(nil); !errors.Is(err, ErrMalformedAddress) {
				t.Fatalf("expected ErrMalformedAddress, got %v", err)
			}
		})
	}
}

func TestParseHostPort(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Address
		err  bool
	}{
		{name: "ipv4", in: "192.0.2.7:80", want: IPAddress(net.IPv4(192, 0, 2, 7), 80)},
		{name: "ipv6", in: "[2001:db8::1]:443", want: IPAddress(net.ParseIP("2001:db8::1"), 443)},
		{name: "domain", in: "example.com:1080", want: DomainAddress("example.com", 1080)},
		{name: "missing_port", in: "example.com", err: true},
		{name: "bad_port", in: "example.com:http", err: true},
		{name: "port_out_of_range", in: "example.com:70000", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHostPort(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("parsed %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	a := DomainAddress("example.com", 80)
	if got := a.String(); got != "example.com:80" {
		t.Fatalf("got %q", got)
	}
	b := IPAddress(net.ParseIP("2001:db8::1"), 443)
	if got := b.String(); got != "[2001:db8::1]:443" {
		t.Fatalf("got %q", got)
	}
}
