// Package socks5 implements the SOCKS5 proxy protocol (RFC 1928) as a
// library exposing both the client and server roles.
//
// The wire codec lives in the statute subpackage and the method negotiation
// in the auth subpackage; this package contains the drivers that sequence
// them over a connection: Client for the initiator side, Server for the
// acceptor side, and UDPConn for framing datagrams over a UDP association.
//
// The drivers perform no network I/O of their own beyond the streams and
// capability interfaces (Dialer, net.ListenConfig) they are handed, so both
// sides can be driven over in-memory pipes in tests and over any transport
// in production.
package socks5
