package udprelay

import (
	"context"
	"errors"
	"io"
	"net"
)

// ChunkSize is how much of a downstream connection's output goes into one
// reply datagram, and how much of a SOCKS5 client's stream goes into one
// tunnel datagram.
const ChunkSize = 1024

// session is one peer's downstream TCP connection. Its writer goroutine
// (run) drains in into the connection; its forwarder goroutine returns the
// connection's output to the peer. Only the Registry sends on or closes in.
type session struct {
	reg  *Registry
	key  string
	peer net.Addr
	dst  string
	in   chan delivery
}

func newSession(reg *Registry, key string, peer net.Addr, dst string) *session {
	return &session{
		reg:  reg,
		key:  key,
		peer: peer,
		dst:  dst,
		in:   make(chan delivery, SessionQueueLen),
	}
}

func (s *session) run(ctx context.Context) {
	c, err := s.dial(ctx)
	if err != nil {
		s.reg.logger.Printf("%s: %v", s.key, err)
		s.requeue()
		return
	}
	defer c.Close()

	go s.forward(c)

	for d := range s.in {
		if len(d.payload) == 0 {
			continue
		}
		if _, err := c.Write(d.payload); err != nil {
			s.reg.logger.Printf("%s: write %s: %v", s.key, s.dst, err)
		}
	}
}

// requeue retires a session whose dial failed. The datagram that caused the
// dial is dropped; everything queued behind it goes back to the Registry in
// order, so the next one dials afresh.
func (s *session) requeue() {
	s.reg.remove(s)

	first := true
	for d := range s.in {
		if first {
			first = false
			continue
		}
		s.reg.Deliver(d.peer, d.dst, d.payload)
	}
}

func (s *session) dial(ctx context.Context) (net.Conn, error) {
	if _, _, err := net.SplitHostPort(s.dst); err != nil {
		return nil, err
	}
	return s.reg.dialer.DialContext(ctx, "tcp", s.dst)
}

// forward copies the downstream connection's output back to the peer until
// end-of-stream or an error, then retires the session.
func (s *session) forward(c net.Conn) {
	defer s.reg.remove(s)

	buf := make([]byte, ChunkSize)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			if serr := s.reg.send(s.peer, buf[:n]); serr != nil {
				s.reg.logger.Printf("%s: send: %v", s.key, serr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.reg.logger.Printf("%s: read %s: %v", s.key, s.dst, err)
			}
			return
		}
	}
}
