// Package auth implements SOCKS5 authentication-method negotiation for both
// protocol roles.
//
// The client side encodes an ordered method offer and drives the chosen
// sub-negotiation; the server side selects the first method in the client's
// offer it is configured for (client preference wins over server ordering)
// and runs the matching Authenticator. Username/password follows RFC 1929
// with constant-time credential comparison.
package auth
