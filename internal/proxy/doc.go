// Package proxy implements the listener side of both socksrelay halves.
//
// It contains the local SOCKS5 server, the remote tunnel server that accepts
// header-prefixed streams, and the shared bidirectional copy used to splice
// their connections together.
package proxy
