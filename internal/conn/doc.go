// Package conn holds listener plumbing shared by both halves of socksrelay:
// TCP listeners that apply keepalive settings to accepted connections and the
// UDP socket used by the relay multiplexer.
package conn
