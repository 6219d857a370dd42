package udprelay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksrelay/internal/dialer"
	"github.com/die-net/socksrelay/internal/tunnel"
)

// MaxDatagramSize is the receive buffer for one datagram.
const MaxDatagramSize = 64 << 10

// Multiplexer serves every UDP peer of the remote half from one socket.
type Multiplexer struct {
	pc     net.PacketConn
	logger *log.Logger
	reg    *Registry
}

// NewMultiplexer returns a Multiplexer reading from pc and dialing
// destinations with d. A nil logger discards messages.
func NewMultiplexer(pc net.PacketConn, d dialer.Dialer, logger *log.Logger) *Multiplexer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Multiplexer{
		pc:     pc,
		logger: logger,
		reg:    NewRegistry(pc, d, logger),
	}
}

// Sessions is the number of peers with a live downstream connection.
func (m *Multiplexer) Sessions() int {
	return m.reg.Len()
}

// Serve runs the receive loop until ctx is done or the socket fails. It
// does not close pc.
func (m *Multiplexer) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.reg.Run(gctx)
		return nil
	})

	// Unblock ReadFrom once the group is shutting down.
	stop := context.AfterFunc(gctx, func() {
		_ = m.pc.SetReadDeadline(time.Now())
	})
	defer stop()

	g.Go(func() error {
		err := m.receive()
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	return g.Wait()
}

func (m *Multiplexer) receive() error {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, peer, err := m.pc.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("udp receive: %w", err)
		}

		dst, payload, err := tunnel.DecodeHeader(buf[:n])
		if err != nil {
			m.logger.Printf("%s: drop datagram: %v", peer, err)
			continue
		}

		m.reg.Deliver(peer, dst, bytes.Clone(payload))
	}
}
