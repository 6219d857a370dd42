// Package dialer provides the outbound dialers used by socksrelay.
//
// Dialers implement a small interface (DialContext) and are used by both
// halves of the proxy: the remote half dials destinations directly, the local
// half dials its relay endpoint and announces the real destination with a
// tunnel header.
package dialer
