// Package socks5 implements the server side of the SOCKS5 subset spoken by
// socksrelay's local half: version 5, the no-authentication method, and the
// CONNECT command with IPv4, domain and IPv6 destinations.
//
// Protocol constants and reply encoding come from github.com/txthinking/socks5.
// The negotiation itself is a small explicit state machine (Handshake), since
// a failed negotiation is never answered with an error reply; the connection
// is simply dropped.
package socks5
