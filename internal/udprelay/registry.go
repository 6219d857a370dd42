package udprelay

import (
	"context"
	"io"
	"log"
	"net"

	"github.com/die-net/socksrelay/internal/dialer"
)

// SessionQueueLen bounds the payloads waiting for a peer's downstream
// connection. Datagrams arriving at a full queue are dropped.
const SessionQueueLen = 64

type delivery struct {
	peer    net.Addr
	dst     string
	payload []byte
}

type sendRequest struct {
	peer net.Addr
	b    []byte
	errc chan error
}

// Registry maps peer identities to their downstream sessions. Run must be
// running for any other method to make progress; once Run returns, the
// methods return immediately.
type Registry struct {
	pc     net.PacketConn
	dialer dialer.Dialer
	logger *log.Logger

	deliverc chan delivery
	sendc    chan sendRequest
	removec  chan *session
	lenc     chan chan int
	done     chan struct{}
}

// NewRegistry returns a Registry that dials new sessions with d and sends
// replies on pc. A nil logger discards messages.
func NewRegistry(pc net.PacketConn, d dialer.Dialer, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		pc:       pc,
		dialer:   d,
		logger:   logger,
		deliverc: make(chan delivery),
		sendc:    make(chan sendRequest),
		removec:  make(chan *session),
		lenc:     make(chan chan int),
		done:     make(chan struct{}),
	}
}

// Run owns the session table until ctx is done. It is the only goroutine
// that touches the table or writes to the shared socket.
func (r *Registry) Run(ctx context.Context) {
	defer close(r.done)

	sessions := make(map[string]*session)
	defer func() {
		for key, s := range sessions {
			close(s.in)
			delete(sessions, key)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case d := <-r.deliverc:
			key := d.peer.String()
			s, ok := sessions[key]
			if !ok {
				s = newSession(r, key, d.peer, d.dst)
				sessions[key] = s
				go s.run(ctx)
			}
			select {
			case s.in <- d:
			default:
				r.logger.Printf("%s: queue full, dropping %d bytes", key, len(d.payload))
			}

		case req := <-r.sendc:
			_, err := r.pc.WriteTo(req.b, req.peer)
			req.errc <- err

		case s := <-r.removec:
			if cur, ok := sessions[s.key]; ok && cur == s {
				delete(sessions, s.key)
				close(s.in)
			}

		case c := <-r.lenc:
			c <- len(sessions)
		}
	}
}

// Deliver hands a decoded datagram to peer's session, creating the session
// if peer has none.
func (r *Registry) Deliver(peer net.Addr, dst string, payload []byte) {
	select {
	case r.deliverc <- delivery{peer: peer, dst: dst, payload: payload}:
	case <-r.done:
	}
}

// Len is the number of live sessions, or 0 once Run has returned.
func (r *Registry) Len() int {
	c := make(chan int, 1)
	select {
	case r.lenc <- c:
		return <-c
	case <-r.done:
		return 0
	}
}

// send writes b to peer on the shared socket and waits for the result, so
// the caller may reuse b afterwards.
func (r *Registry) send(peer net.Addr, b []byte) error {
	req := sendRequest{peer: peer, b: b, errc: make(chan error, 1)}
	select {
	case r.sendc <- req:
		return <-req.errc
	case <-r.done:
		return net.ErrClosed
	}
}

// remove drops s from the table if it is still the session for its peer.
func (r *Registry) remove(s *session) {
	select {
	case r.removec <- s:
	case <-r.done:
	}
}
