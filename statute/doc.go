// Package statute implements the RFC 1928 and RFC 1929 wire formats.
//
// It contains the address model (IPv4, IPv6, and domain-name destinations in
// their on-wire form) and the codec for every SOCKS5 message: the client
// greeting, the server's method selection, the username/password
// sub-negotiation exchange, requests, replies, and the UDP relay datagram
// header.
//
// The package performs no I/O of its own beyond reading from and writing to
// the io.Reader/io.Writer it is handed; connection handling, authentication
// policy, and command dispatch live in the root socks5 package.
package statute
