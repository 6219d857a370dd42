// Package udprelay carries SOCKS5 streams over tunnel-framed UDP datagrams.
//
// On the remote half a Multiplexer reads datagrams from one shared UDP
// socket, strips the tunnel header and feeds the payload into a TCP
// connection to the named destination. Each client peer (identified by its
// UDP source address) gets exactly one downstream connection, reused for all
// of its datagrams; whatever the destination sends back is returned to the
// peer as plain datagrams on the same shared socket.
//
// On the local half a ClientSession turns one SOCKS5 client connection into
// that datagram stream.
//
// The peer table and the shared socket's send side are owned by a single
// Registry goroutine. Everything else talks to it over channels, so no lock
// is ever held across a dial, read or write.
package udprelay
